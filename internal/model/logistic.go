package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/linnemanlabs/vitaltriage/internal/features"
)

// LogisticRegression scores sigmoid(w.x + b).
type LogisticRegression struct {
	header
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

// NewLogisticRegression returns a model with the given coefficients.
func NewLogisticRegression(weights []float64, intercept float64) *LogisticRegression {
	return &LogisticRegression{
		header:    header{Kind: KindLogisticRegression, NFeatures: len(weights)},
		Weights:   append([]float64(nil), weights...),
		Intercept: intercept,
	}
}

func (m *LogisticRegression) validate() error {
	if len(m.Weights) != m.NFeatures {
		return fmt.Errorf("weights has %d entries, n_features is %d", len(m.Weights), m.NFeatures)
	}
	for i, w := range m.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("weight %d is not finite", i)
		}
	}
	if math.IsNaN(m.Intercept) || math.IsInf(m.Intercept, 0) {
		return errors.New("intercept is not finite")
	}
	return nil
}

// NumFeatures returns the vector width the model was trained on.
func (m *LogisticRegression) NumFeatures() int { return len(m.Weights) }

// PredictProba returns the positive-class probability for v.
func (m *LogisticRegression) PredictProba(v features.Vector) (float64, error) {
	if err := checkWidth(len(m.Weights), v); err != nil {
		return 0, err
	}
	z := m.Intercept
	for i, w := range m.Weights {
		z += w * v[i]
	}
	return sigmoid(z), nil
}

// sigmoid is split by sign so exp never overflows.
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
