package normalization

import "fmt"

// EnumNormalizer is a Normalizer that names its enumeration in errors and
// warnings.
type EnumNormalizer[T comparable] struct {
	*Normalizer[T]
	name string
}

// NewEnumNormalizer creates an EnumNormalizer for the enumeration called name.
func NewEnumNormalizer[T comparable](name string, values map[string]T, fallback T) *EnumNormalizer[T] {
	return &EnumNormalizer[T]{Normalizer: NewNormalizer(values, fallback), name: name}
}

// NormalizeWithValidation resolves raw or returns an error naming the enumeration.
func (e *EnumNormalizer[T]) NormalizeWithValidation(raw string) (T, error) {
	v, err := e.NormalizeWithError(raw)
	if err != nil {
		return v, fmt.Errorf("invalid %s: %w", e.name, err)
	}
	return v, nil
}

// IsValid reports whether raw names a known value.
func (e *EnumNormalizer[T]) IsValid(raw string) bool {
	_, err := e.NormalizeWithError(raw)
	return err == nil
}

// Result is a normalized value plus a warning when the input was not
// already in canonical form.
type Result[T comparable] struct {
	Value   T
	Changed bool
	Warning string
}

// NormalizeWithWarning resolves raw and records whether case or
// surrounding whitespace had to be adjusted.
func (e *EnumNormalizer[T]) NormalizeWithWarning(field, raw string) Result[T] {
	canonical := clean(raw)
	res := Result[T]{Value: e.Normalize(raw), Changed: canonical != raw}
	if res.Changed {
		res.Warning = fmt.Sprintf("normalized %s from %q to %q", field, raw, canonical)
	}
	return res
}
