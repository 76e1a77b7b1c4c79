package triage

import (
	"errors"
	"fmt"

	"github.com/linnemanlabs/vitaltriage/internal/features"
)

// ScoringError reports that a model failed to produce a probability.
type ScoringError struct {
	Model string
	Err   error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("model %s: scoring failed: %v", e.Model, e.Err)
}

func (e *ScoringError) Unwrap() error { return e.Err }

// Error kinds used for metrics labels and transport mapping.
const (
	KindValidation      = "validation"
	KindUnknownCategory = "unknown_category"
	KindSchemaMismatch  = "schema_mismatch"
	KindScoring         = "scoring"
	KindInternal        = "internal"
)

// ErrorKind classifies err into one of the Kind* constants. A schema
// mismatch wrapped in a ScoringError reports as schema_mismatch.
func ErrorKind(err error) string {
	var (
		ve  *features.ValidationError
		uce *features.UnknownCategoryError
		sme *features.SchemaMismatchError
		se  *ScoringError
	)
	switch {
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &uce):
		return KindUnknownCategory
	case errors.As(err, &sme):
		return KindSchemaMismatch
	case errors.As(err, &se):
		return KindScoring
	default:
		return KindInternal
	}
}

// IsInputError reports whether err was caused by the submitted record rather
// than by configuration or a model.
func IsInputError(err error) bool {
	switch ErrorKind(err) {
	case KindValidation, KindUnknownCategory:
		return true
	default:
		return false
	}
}
