package triage

import (
	"fmt"
	"math"

	"github.com/linnemanlabs/vitaltriage/internal/features"
)

// Default decision thresholds.
const (
	DefaultEmergencyThreshold   = 0.8
	DefaultNoEmergencyThreshold = 0.4
)

// Scorer is an opaque trained binary classifier.
type Scorer interface {
	// PredictProba returns the probability of the positive (emergency) class.
	PredictProba(v features.Vector) (float64, error)
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(v features.Vector) (float64, error)

// PredictProba implements Scorer.
func (f ScorerFunc) PredictProba(v features.Vector) (float64, error) { return f(v) }

// Model is a named Scorer.
type Model struct {
	Name   string
	Scorer Scorer
}

// Thresholds maps a probability to a Category. Intervals are closed at the
// bottom so a boundary value lands in the more severe category.
type Thresholds struct {
	Emergency   float64
	NoEmergency float64
}

// DefaultThresholds returns 0.8 / 0.4.
func DefaultThresholds() Thresholds {
	return Thresholds{Emergency: DefaultEmergencyThreshold, NoEmergency: DefaultNoEmergencyThreshold}
}

// Validate enforces 0 <= NoEmergency <= Emergency <= 1.
func (t Thresholds) Validate() error {
	if math.IsNaN(t.Emergency) || math.IsNaN(t.NoEmergency) {
		return fmt.Errorf("thresholds must be numbers (emergency=%v, no_emergency=%v)", t.Emergency, t.NoEmergency)
	}
	if t.NoEmergency < 0 || t.Emergency > 1 || t.NoEmergency > t.Emergency {
		return fmt.Errorf("thresholds must satisfy 0 <= no_emergency (%v) <= emergency (%v) <= 1", t.NoEmergency, t.Emergency)
	}
	return nil
}

// Categorize maps p to its category.
func (t Thresholds) Categorize(p float64) Category {
	switch {
	case p >= t.Emergency:
		return CategoryEmergency
	case p >= t.NoEmergency:
		return CategoryNoEmergency
	default:
		return CategoryNoAdmission
	}
}

// Classify scores v with one model and maps the probability to a category.
// Any scorer failure, including a probability outside [0,1], is returned as
// a *ScoringError naming the model; no fallback category is ever produced.
func Classify(v features.Vector, m Model, t Thresholds) (Prediction, error) {
	p, err := m.Scorer.PredictProba(v)
	if err != nil {
		return Prediction{}, &ScoringError{Model: m.Name, Err: err}
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return Prediction{}, &ScoringError{Model: m.Name, Err: fmt.Errorf("probability %v outside [0,1]", p)}
	}
	return Prediction{Category: t.Categorize(p), Probability: p}, nil
}
