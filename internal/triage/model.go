package triage

import (
	"slices"
	"time"
)

// Category is the triage decision derived from a model probability.
type Category string

const (
	// CategoryEmergency means emergency admission is required
	CategoryEmergency Category = "emergency"

	// CategoryNoEmergency means admission, but not through emergency
	CategoryNoEmergency Category = "no_emergency"

	// CategoryNoAdmission means no admission at all
	CategoryNoAdmission Category = "no_admission"
)

// Severity orders categories; higher is more urgent.
func (c Category) Severity() int {
	switch c {
	case CategoryEmergency:
		return 2
	case CategoryNoEmergency:
		return 1
	default:
		return 0
	}
}

// Prediction is one model's decision plus the probability that produced it.
type Prediction struct {
	Category    Category `json:"category"`
	Probability float64  `json:"probability"`
}

// Predictions maps model name to that model's prediction.
type Predictions map[string]Prediction

// Disagree reports whether the models reached different categories.
func (p Predictions) Disagree() bool {
	var first Category
	for _, pr := range p {
		if first == "" {
			first = pr.Category
			continue
		}
		if pr.Category != first {
			return true
		}
	}
	return false
}

// Highest returns the most severe category across all models.
func (p Predictions) Highest() Category {
	highest := CategoryNoAdmission
	for _, pr := range p {
		if pr.Category.Severity() > highest.Severity() {
			highest = pr.Category
		}
	}
	return highest
}

// Models returns the model names in sorted order.
func (p Predictions) Models() []string {
	names := make([]string, 0, len(p))
	for n := range p {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Evaluation is a persisted triage run. The patient record itself is never
// stored; the vector fingerprint correlates repeat submissions.
type Evaluation struct {
	ID            string      `json:"id"`
	Fingerprint   string      `json:"fingerprint"`
	SchemaVersion string      `json:"schema_version"`
	Predictions   Predictions `json:"predictions"`
	Disagreement  bool        `json:"disagreement"`
	Highest       Category    `json:"highest_category"`
	CreatedAt     time.Time   `json:"created_at"`
	Duration      float64     `json:"duration_seconds"`
}
