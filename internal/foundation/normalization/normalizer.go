// Package normalization maps loosely written configuration strings onto
// typed enumeration values.
package normalization

import (
	"fmt"
	"slices"
	"strings"
)

// Normalizer resolves case- and whitespace-insensitive aliases to values of T.
type Normalizer[T comparable] struct {
	values   map[string]T
	fallback T
	keys     []string
}

// NewNormalizer builds a Normalizer from alias → value pairs. Unknown input
// resolves to fallback in Normalize.
func NewNormalizer[T comparable](values map[string]T, fallback T) *Normalizer[T] {
	n := &Normalizer[T]{
		values:   make(map[string]T, len(values)),
		fallback: fallback,
		keys:     make([]string, 0, len(values)),
	}
	for alias, v := range values {
		key := clean(alias)
		n.values[key] = v
		n.keys = append(n.keys, key)
	}
	slices.Sort(n.keys)
	return n
}

// Normalize returns the value for raw, or the fallback when raw is unknown.
func (n *Normalizer[T]) Normalize(raw string) T {
	if v, ok := n.values[clean(raw)]; ok {
		return v
	}
	return n.fallback
}

// NormalizeWithError is Normalize without the fallback.
func (n *Normalizer[T]) NormalizeWithError(raw string) (T, error) {
	if v, ok := n.values[clean(raw)]; ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid value %q, valid options: %s", raw, strings.Join(n.keys, ", "))
}

// Contains reports whether value is one of the known values.
func (n *Normalizer[T]) Contains(value T) bool {
	for _, v := range n.values {
		if v == value {
			return true
		}
	}
	return false
}

// ValidKeys returns the accepted aliases, sorted.
func (n *Normalizer[T]) ValidKeys() []string {
	return slices.Clone(n.keys)
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
