package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type style string

const (
	styleExpanded   style = "expanded"
	styleCompressed style = "compressed"
)

func styles() map[string]style {
	return map[string]style{
		"expanded":   styleExpanded,
		"compressed": styleCompressed,
		"min":        styleCompressed,
	}
}

func TestNormalize(t *testing.T) {
	n := NewNormalizer(styles(), styleExpanded)

	tests := []struct {
		in   string
		want style
	}{
		{"expanded", styleExpanded},
		{"COMPRESSED", styleCompressed},
		{"  Min ", styleCompressed},
		{"nested", styleExpanded},
		{"", styleExpanded},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.in))
		})
	}
}

func TestNormalizeWithError(t *testing.T) {
	n := NewNormalizer(styles(), styleExpanded)

	v, err := n.NormalizeWithError("Compressed")
	require.NoError(t, err)
	assert.Equal(t, styleCompressed, v)

	_, err = n.NormalizeWithError("nested")
	require.Error(t, err)
	assert.Equal(t, `invalid value "nested", valid options: compressed, expanded, min`, err.Error())
}

func TestContainsAndKeys(t *testing.T) {
	n := NewNormalizer(styles(), styleExpanded)
	assert.True(t, n.Contains(styleCompressed))
	assert.False(t, n.Contains(style("nested")))

	keys := n.ValidKeys()
	assert.Equal(t, []string{"compressed", "expanded", "min"}, keys)
	keys[0] = "mutated"
	assert.Equal(t, "compressed", n.ValidKeys()[0])
}

func TestEnumNormalizer(t *testing.T) {
	e := NewEnumNormalizer("sass style", styles(), styleExpanded)

	_, err := e.NormalizeWithValidation("nested")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sass style")
	assert.False(t, e.IsValid("nested"))
	assert.True(t, e.IsValid(" MIN"))

	res := e.NormalizeWithWarning("sass.style", "Compressed")
	assert.Equal(t, styleCompressed, res.Value)
	assert.True(t, res.Changed)
	assert.Equal(t, `normalized sass.style from "Compressed" to "compressed"`, res.Warning)

	res = e.NormalizeWithWarning("sass.style", "expanded")
	assert.False(t, res.Changed)
	assert.Empty(t, res.Warning)
}
