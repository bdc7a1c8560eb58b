// Package enums holds the string enums shared by the models, the API and the
// Postgres enum types created by the migrations.
package enums

import (
	"fmt"
	"slices"
)

// valueSet is the closed list of values one enum type accepts.
type valueSet[T ~string] struct {
	kind   string
	values []T
}

func newValueSet[T ~string](kind string, values ...T) valueSet[T] {
	return valueSet[T]{kind: kind, values: values}
}

func (s valueSet[T]) has(v T) bool { return slices.Contains(s.values, v) }

func (s valueSet[T]) parse(raw string) (T, error) {
	if v := T(raw); s.has(v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", s.kind, raw)
}
