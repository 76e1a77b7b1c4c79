// Package features builds the fixed-order numeric feature vector scored by
// the triage models. The Schema defined here is the single definition shared
// by the training-set builder and the serving path: column order, categorical
// codes and vocabularies all come from one value, so the two cannot drift.
package features

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/twmb/murmur3"
)

// FieldKind is the declared type of a scalar column.
type FieldKind int

const (
	// Integer columns are truncated toward zero.
	Integer FieldKind = iota
	// Real columns pass through unchanged.
	Real
	// Categorical columns are replaced by their encoding table code.
	Categorical
)

// Field is one scalar column of the vector.
type Field struct {
	Name        string
	Kind        FieldKind
	Encoding    *Encoding // Categorical only
	NonNegative bool

	numeric  func(*PatientRecord) Numeric
	category func(*PatientRecord) string
}

// Schema is the immutable description of the feature vector. Build it once
// at startup and share it read-only.
type Schema struct {
	fields   []Field
	symptoms []string
	history  []string
	aux      map[string]*Encoding
	columns  []string
	version  string
}

// Default vocabularies the served models were trained with. Order is
// load-bearing.
var (
	defaultSymptoms  = [...]string{"Headache", "Chest pain", "Fever", "Nausea", "Cough", "Shortness of breath", "Fatigue"}
	defaultHistory   = [...]string{"Asthma", "Cancer", "Diabetes", "Hypertension", "Heart Disease", "Kidney Disease"}
	defaultGenders   = [...]string{"Male", "Female", "Other"}
	heartDiseaseVocs = [...]struct {
		field  string
		values []string
	}{
		{"Sex", []string{"M", "F"}},
		{"ChestPainType", []string{"ATA", "NAP", "ASY", "TA"}},
		{"RestingECG", []string{"Normal", "ST", "LVH"}},
		{"ExerciseAngina", []string{"N", "Y"}},
		{"ST_Slope", []string{"Up", "Flat", "Down"}},
	}
)

// DefaultSchema returns the schema of the emergency-admission models:
//
//	Age, Gender, SystolicBP, DiastolicBP, Heart_Rate, Temperature, Oxygen_Saturation,
//	Symptom_<term>... (7), History_<term>... (6)
func DefaultSchema() *Schema {
	gender := NewEncoding("Gender", defaultGenders[:]...)

	fields := []Field{
		{Name: "Age", Kind: Integer, NonNegative: true, numeric: func(r *PatientRecord) Numeric { return r.Age }},
		{Name: "Gender", Kind: Categorical, Encoding: gender, category: func(r *PatientRecord) string { return r.Gender }},
		{Name: "SystolicBP", Kind: Real, numeric: func(r *PatientRecord) Numeric { return r.SystolicBP }},
		{Name: "DiastolicBP", Kind: Real, numeric: func(r *PatientRecord) Numeric { return r.DiastolicBP }},
		{Name: "Heart_Rate", Kind: Integer, numeric: func(r *PatientRecord) Numeric { return r.HeartRate }},
		{Name: "Temperature", Kind: Real, numeric: func(r *PatientRecord) Numeric { return r.Temperature }},
		{Name: "Oxygen_Saturation", Kind: Real, numeric: func(r *PatientRecord) Numeric { return r.OxygenSaturation }},
	}

	aux := make(map[string]*Encoding, len(heartDiseaseVocs))
	for _, h := range heartDiseaseVocs {
		aux[h.field] = NewEncoding(h.field, h.values...)
	}

	return newSchema(fields, defaultSymptoms[:], defaultHistory[:], aux)
}

func newSchema(fields []Field, symptoms, history []string, aux map[string]*Encoding) *Schema {
	s := &Schema{
		fields:   slices.Clone(fields),
		symptoms: slices.Clone(symptoms),
		history:  slices.Clone(history),
		aux:      aux,
	}

	s.columns = make([]string, 0, s.Width())
	for _, f := range s.fields {
		s.columns = append(s.columns, f.Name)
	}
	for _, t := range s.symptoms {
		s.columns = append(s.columns, indicatorColumn("Symptom", t))
	}
	for _, t := range s.history {
		s.columns = append(s.columns, indicatorColumn("History", t))
	}

	h := murmur3.New64()
	for _, c := range s.columns {
		_, _ = h.Write([]byte(c))
		_, _ = h.Write([]byte{0})
	}
	for _, f := range s.fields {
		if f.Encoding != nil {
			_, _ = h.Write([]byte(strings.Join(f.Encoding.values, "\x1f")))
		}
	}
	s.version = strconv.FormatUint(h.Sum64(), 16)

	return s
}

func indicatorColumn(prefix, term string) string {
	return prefix + "_" + strings.ReplaceAll(term, " ", "_")
}

// Width is the length of every vector this schema produces.
func (s *Schema) Width() int {
	return len(s.fields) + len(s.symptoms) + len(s.history)
}

// Columns returns the column names in vector order.
func (s *Schema) Columns() []string { return slices.Clone(s.columns) }

// Version is a stable hash of the column layout and categorical vocabularies.
func (s *Schema) Version() string { return s.version }

// Symptoms returns the symptom vocabulary in column order.
func (s *Schema) Symptoms() []string { return slices.Clone(s.symptoms) }

// History returns the medical-history vocabulary in column order.
func (s *Schema) History() []string { return slices.Clone(s.history) }

// Categories returns every encoding table's vocabulary keyed by field name.
func (s *Schema) Categories() map[string][]string {
	out := make(map[string][]string, len(s.aux)+1)
	for _, f := range s.fields {
		if f.Encoding != nil {
			out[f.Name] = f.Encoding.Values()
		}
	}
	for name, e := range s.aux {
		out[name] = e.Values()
	}
	return out
}

// CheckColumns verifies that a model trained on the given column names is
// compatible with this schema.
func (s *Schema) CheckColumns(model string, names []string) error {
	if len(names) != len(s.columns) {
		return &SchemaMismatchError{Model: model, Want: len(s.columns), Got: len(names)}
	}
	for i, n := range names {
		if n != s.columns[i] {
			return &SchemaMismatchError{Model: model, Want: len(s.columns), Got: len(names), Column: n}
		}
	}
	return nil
}

// Encode maps a record to its feature vector. It is pure and safe for
// concurrent use.
func (s *Schema) Encode(r *PatientRecord) (Vector, error) {
	if r == nil {
		return nil, &ValidationError{Field: "record", Reason: "missing"}
	}

	v := make(Vector, 0, s.Width())
	for i := range s.fields {
		x, err := s.fields[i].encode(r)
		if err != nil {
			return nil, err
		}
		v = append(v, x)
	}
	v = appendIndicators(v, s.symptoms, r.Symptoms)
	v = appendIndicators(v, s.history, r.MedicalHistory)
	return v, nil
}

func (f *Field) encode(r *PatientRecord) (float64, error) {
	if f.Kind == Categorical {
		value := f.category(r)
		if value == "" {
			return 0, &ValidationError{Field: f.Name, Reason: "missing"}
		}
		code, err := f.Encoding.Code(value)
		if err != nil {
			return 0, err
		}
		return float64(code), nil
	}

	n := f.numeric(r)
	x, present, valid := n.Value()
	switch {
	case !present:
		return 0, &ValidationError{Field: f.Name, Reason: "missing"}
	case !valid:
		return 0, &ValidationError{Field: f.Name, Reason: fmt.Sprintf("not a number: %s", n)}
	case math.IsNaN(x) || math.IsInf(x, 0):
		return 0, &ValidationError{Field: f.Name, Reason: "not finite"}
	case f.NonNegative && x < 0:
		return 0, &ValidationError{Field: f.Name, Reason: fmt.Sprintf("must be >= 0, got %s", n)}
	}
	if f.Kind == Integer {
		x = math.Trunc(x)
	}
	return x, nil
}

// appendIndicators adds one 0/1 column per vocabulary term. A term matches
// when it occurs case-insensitively anywhere inside any record value; values
// matching no term are ignored.
func appendIndicators(v Vector, vocabulary []string, values []string) Vector {
	lowered := make([]string, len(values))
	for i, s := range values {
		lowered[i] = strings.ToLower(s)
	}
	for _, term := range vocabulary {
		t := strings.ToLower(term)
		var hit float64
		for _, s := range lowered {
			if strings.Contains(s, t) {
				hit = 1
				break
			}
		}
		v = append(v, hit)
	}
	return v
}

// Vector is an encoded record in schema column order.
type Vector []float64

// Fingerprint is a murmur3 hash of the vector's values. Equal vectors share a
// fingerprint, which lets evaluations be correlated without storing the
// record itself.
func (v Vector) Fingerprint() string {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		if x == 0 {
			x = 0 // -0 hashes as 0
		}
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	return strconv.FormatUint(murmur3.Sum64(buf), 16)
}
