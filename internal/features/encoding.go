package features

import (
	"slices"
)

// Encoding is a closed mapping from categorical values to integer codes.
// Codes are assigned in sorted order of the vocabulary, the same assignment
// a label encoder fit on that vocabulary produces.
type Encoding struct {
	field  string
	values []string
	codes  map[string]int
}

// NewEncoding fits an encoding over the given vocabulary. Duplicates are
// collapsed.
func NewEncoding(field string, vocabulary ...string) *Encoding {
	values := slices.Clone(vocabulary)
	slices.Sort(values)
	values = slices.Compact(values)

	codes := make(map[string]int, len(values))
	for i, v := range values {
		codes[v] = i
	}
	return &Encoding{field: field, values: values, codes: codes}
}

// Values returns the fitted vocabulary in code order.
func (e *Encoding) Values() []string { return slices.Clone(e.values) }

// Code returns the integer code for value, or an UnknownCategoryError if the
// value was not part of the fitted vocabulary.
func (e *Encoding) Code(value string) (int, error) {
	c, ok := e.codes[value]
	if !ok {
		return 0, &UnknownCategoryError{Field: e.field, Value: value, Allowed: e.Values()}
	}
	return c, nil
}
