package features

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PatientRecord is the raw intake payload. Field names follow the hospital
// dataset columns the models were trained on.
type PatientRecord struct {
	Age              Numeric `json:"Age"`
	Gender           string  `json:"Gender"`
	SystolicBP       Numeric `json:"SystolicBP"`
	DiastolicBP      Numeric `json:"DiastolicBP"`
	HeartRate        Numeric `json:"Heart_Rate"`
	Temperature      Numeric `json:"Temperature"`
	OxygenSaturation Numeric `json:"Oxygen_Saturation"`
	Symptoms         Terms   `json:"Symptoms"`
	MedicalHistory   Terms   `json:"Medical_History"`
}

// Numeric is a loosely typed JSON number. It accepts numbers and numeric
// strings so that coercion failures surface as ValidationError from Encode
// rather than as opaque decode errors.
type Numeric struct {
	value float64
	raw   string
	set   bool
	ok    bool
}

// Num returns a set, valid Numeric.
func Num(v float64) Numeric {
	return Numeric{value: v, set: true, ok: true}
}

// ParseNumeric coerces s the way a JSON string value would be.
func ParseNumeric(s string) Numeric {
	s = strings.TrimSpace(s)
	if s == "" {
		return Numeric{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Numeric{raw: s, set: true}
	}
	return Numeric{value: v, raw: s, set: true, ok: true}
}

// Value returns the coerced value, whether the field was present, and
// whether it parsed as a number.
func (n Numeric) Value() (v float64, present, valid bool) {
	return n.value, n.set, n.ok
}

func (n *Numeric) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = Numeric{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = ParseNumeric(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		*n = Numeric{raw: string(b), set: true}
		return nil
	}
	*n = Num(v)
	return nil
}

func (n Numeric) MarshalJSON() ([]byte, error) {
	switch {
	case !n.set:
		return []byte("null"), nil
	case !n.ok:
		return json.Marshal(n.raw)
	default:
		return json.Marshal(n.value)
	}
}

func (n Numeric) String() string {
	switch {
	case !n.set:
		return "<missing>"
	case !n.ok:
		return fmt.Sprintf("%q", n.raw)
	default:
		return strconv.FormatFloat(n.value, 'g', -1, 64)
	}
}

// Terms is a free-text multi-valued field. It decodes from a JSON array of
// strings or from a single comma-separated string, as found in the dataset.
type Terms []string

func (t *Terms) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = SplitTerms(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("terms must be a string or an array of strings: %w", err)
	}
	*t = list
	return nil
}

// SplitTerms splits a comma-separated free-text cell into trimmed terms.
// An empty cell yields no terms.
func SplitTerms(s string) Terms {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make(Terms, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
