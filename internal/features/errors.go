package features

import (
	"fmt"
	"strings"
)

// ValidationError reports a required field that is missing or cannot be
// coerced to its declared numeric type.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

// UnknownCategoryError reports a categorical value outside the fitted
// vocabulary of its encoding table.
type UnknownCategoryError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown %s category %q (allowed: %s)", e.Field, e.Value, strings.Join(e.Allowed, ", "))
}

// SchemaMismatchError reports a vector or model whose shape does not match
// the feature schema it is paired with.
type SchemaMismatchError struct {
	Model  string
	Want   int
	Got    int
	Column string // first differing column name, empty for length mismatches
}

func (e *SchemaMismatchError) Error() string {
	prefix := "schema mismatch"
	if e.Model != "" {
		prefix = fmt.Sprintf("schema mismatch for model %s", e.Model)
	}
	if e.Column != "" {
		return fmt.Sprintf("%s: column %q differs from feature schema", prefix, e.Column)
	}
	return fmt.Sprintf("%s: want %d features, got %d", prefix, e.Want, e.Got)
}
