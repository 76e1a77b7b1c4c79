// Package model loads the trained scoring models and evaluates them against
// encoded feature vectors. Models are stored as JSON documents exported from
// the training pipeline and listed in a YAML manifest.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/linnemanlabs/vitaltriage/internal/features"
)

// Kind identifies a model family.
type Kind string

const (
	KindLogisticRegression Kind = "logistic_regression"
	KindRandomForest       Kind = "random_forest"
)

// Scorer is a trained model that returns the positive-class probability for a
// feature vector. Implementations are read-only after construction.
type Scorer interface {
	PredictProba(v features.Vector) (float64, error)
	NumFeatures() int
}

// header is the part of every model document shared across kinds.
type header struct {
	Kind         Kind     `json:"kind"`
	NFeatures    int      `json:"n_features"`
	FeatureNames []string `json:"feature_names,omitempty"`
}

// Decode reads a single model document. The decoded model's width and, when
// present, feature_names are checked against s.
func Decode(name string, r io.Reader, s *features.Schema) (Scorer, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", name, err)
	}

	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", name, err)
	}
	if err := checkHeader(name, h, s); err != nil {
		return nil, err
	}

	var sc Scorer
	switch h.Kind {
	case KindLogisticRegression:
		lr := new(LogisticRegression)
		if err := json.Unmarshal(raw, lr); err != nil {
			return nil, fmt.Errorf("decode model %s: %w", name, err)
		}
		if err := lr.validate(); err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		sc = lr
	case KindRandomForest:
		rf := new(RandomForest)
		if err := json.Unmarshal(raw, rf); err != nil {
			return nil, fmt.Errorf("decode model %s: %w", name, err)
		}
		if err := rf.validate(); err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		sc = rf
	case "":
		return nil, fmt.Errorf("model %s: kind is required", name)
	default:
		return nil, fmt.Errorf("model %s: unsupported kind %q", name, h.Kind)
	}

	if n := sc.NumFeatures(); n != s.Width() {
		return nil, &features.SchemaMismatchError{Model: name, Want: s.Width(), Got: n}
	}
	return sc, nil
}

func checkHeader(name string, h header, s *features.Schema) error {
	if s == nil {
		return errors.New("feature schema is required")
	}
	if len(h.FeatureNames) > 0 {
		return s.CheckColumns(name, h.FeatureNames)
	}
	return nil
}

func checkWidth(want int, v features.Vector) error {
	if len(v) != want {
		return &features.SchemaMismatchError{Want: want, Got: len(v)}
	}
	return nil
}
