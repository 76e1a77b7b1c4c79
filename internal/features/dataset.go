package features

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Columns expected in the hospital training CSV.
const (
	colAge             = "Age"
	colGender          = "Gender"
	colBloodPressure   = "Blood_Pressure"
	colHeartRate       = "Heart_Rate"
	colTemperature     = "Temperature"
	colOxygen          = "Oxygen_Saturation"
	colSymptoms        = "Symptoms"
	colMedicalHistory  = "Medical_History"
	colEmergencyStatus = "Emergency_Status"

	// LabelColumn is the trailing target column written by WriteDataset.
	LabelColumn = "label"
)

// Example is one encoded training row.
type Example struct {
	Row    int // 1-based data row, header excluded
	Vector Vector
	Label  int
}

// DatasetStats summarizes a dataset build.
type DatasetStats struct {
	Rows      int
	Positives int
}

// RowError attaches the offending data row to an encoding failure.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }

func (e *RowError) Unwrap() error { return e.Err }

// ReadDataset parses the hospital CSV and encodes every row through s. Rows
// are passed to fn in file order; the first error stops the read.
func ReadDataset(ctx context.Context, r io.Reader, s *Schema, fn func(Example) error) error {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, c := range []string{colAge, colGender, colBloodPressure, colHeartRate, colTemperature, colOxygen, colSymptoms, colMedicalHistory, colEmergencyStatus} {
		if _, ok := idx[c]; !ok {
			return fmt.Errorf("missing column %q", c)
		}
	}

	for row := 1; ; row++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read row %d: %w", row, err)
		}

		get := func(c string) string { return rec[idx[c]] }

		pr, err := recordFromRow(get)
		if err != nil {
			return &RowError{Row: row, Err: err}
		}
		v, err := s.Encode(pr)
		if err != nil {
			return &RowError{Row: row, Err: err}
		}

		label := 0
		if strings.Contains(get(colEmergencyStatus), "Emergency") {
			label = 1
		}
		if err := fn(Example{Row: row, Vector: v, Label: label}); err != nil {
			return err
		}
	}
}

func recordFromRow(get func(string) string) (*PatientRecord, error) {
	sys, dia, err := splitBloodPressure(get(colBloodPressure))
	if err != nil {
		return nil, err
	}
	return &PatientRecord{
		Age:              ParseNumeric(get(colAge)),
		Gender:           strings.TrimSpace(get(colGender)),
		SystolicBP:       sys,
		DiastolicBP:      dia,
		HeartRate:        ParseNumeric(get(colHeartRate)),
		Temperature:      ParseNumeric(get(colTemperature)),
		OxygenSaturation: ParseNumeric(get(colOxygen)),
		Symptoms:         SplitTerms(get(colSymptoms)),
		MedicalHistory:   SplitTerms(get(colMedicalHistory)),
	}, nil
}

// splitBloodPressure parses "systolic/diastolic".
func splitBloodPressure(s string) (Numeric, Numeric, error) {
	sys, dia, ok := strings.Cut(s, "/")
	if !ok {
		return Numeric{}, Numeric{}, &ValidationError{Field: colBloodPressure, Reason: fmt.Sprintf("want systolic/diastolic, got %q", s)}
	}
	return ParseNumeric(sys), ParseNumeric(dia), nil
}

// WriteDataset encodes the hospital CSV from r and writes the feature matrix
// to w: a header of schema columns plus LabelColumn, then one row per record.
func WriteDataset(ctx context.Context, r io.Reader, w io.Writer, s *Schema) (DatasetStats, error) {
	var stats DatasetStats
	cw := csv.NewWriter(w)

	if err := cw.Write(append(s.Columns(), LabelColumn)); err != nil {
		return stats, fmt.Errorf("write header: %w", err)
	}

	row := make([]string, s.Width()+1)
	err := ReadDataset(ctx, r, s, func(ex Example) error {
		for i, x := range ex.Vector {
			row[i] = strconv.FormatFloat(x, 'f', -1, 64)
		}
		row[len(row)-1] = strconv.Itoa(ex.Label)
		stats.Rows++
		stats.Positives += ex.Label
		return cw.Write(row)
	})
	if err != nil {
		return stats, err
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return stats, fmt.Errorf("flush: %w", err)
	}
	return stats, nil
}
