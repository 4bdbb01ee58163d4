package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitesmith/internal/data"
	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
)

func constCompile(out string) CompileFunc {
	return func(context.Context, Source) (Template, error) {
		return TemplateFunc(func(context.Context, data.Data) ([]byte, error) {
			return []byte(out), nil
		}), nil
	}
}

type stubPlugin struct {
	format string
	out    string
}

func (p stubPlugin) Format() string { return p.format }
func (p stubPlugin) Options() ExtensionOptions {
	return ExtensionOptions{OutputFileExtension: p.out, Compile: constCompile(p.format)}
}

func TestRegisterFormatValidation(t *testing.T) {
	r := New()

	require.NoError(t, r.RegisterFormat("scss"))

	for _, bad := range []string{"", "  ", ".", "a/b", "*.scss", "x."} {
		err := r.RegisterFormat(bad)
		require.Error(t, err, "token %q", bad)
		assert.True(t, errors.HasCategory(err, errors.CategoryConfig), "token %q", bad)
	}

	err := r.RegisterFormat(".scss")
	require.Error(t, err, "leading dot is normalized, so this is a duplicate")
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestRegisterExtensionDuplicate(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterExtension("scss", ExtensionOptions{OutputFileExtension: "css", Compile: constCompile("a")}))

	err := r.RegisterExtension("scss", ExtensionOptions{OutputFileExtension: "css", Compile: constCompile("b")})
	require.Error(t, err)
	assert.True(t, errors.HasSeverity(err, errors.SeverityFatal))
}

func TestRegisterExtensionRequiresCompile(t *testing.T) {
	err := New().RegisterExtension("scss", ExtensionOptions{})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestDefaultOutputExtension(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterPlugin(stubPlugin{format: "njk"}))
	require.NoError(t, r.Seal())

	rule, ok := r.Match("pages/about.njk")
	require.True(t, ok)
	assert.Equal(t, "html", rule.OutputFileExtension)
	assert.Equal(t, "pages/about.html", OutputPath("pages/about.njk", rule))
}

func TestLongestSuffixMatch(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterPlugin(stubPlugin{format: "scss", out: "css"}))
	require.NoError(t, r.RegisterPlugin(stubPlugin{format: "module.scss", out: "module.css"}))
	require.NoError(t, r.Seal())

	tests := []struct {
		in, token, out string
	}{
		{"styles/main.scss", "scss", "styles/main.css"},
		{"styles/button.module.scss", "module.scss", "styles/button.module.css"},
		{"module.scss", "scss", "module.css"},
	}
	for _, tt := range tests {
		rule, ok := r.Match(tt.in)
		require.True(t, ok, tt.in)
		assert.Equal(t, tt.token, rule.Token, tt.in)
		assert.Equal(t, tt.out, OutputPath(tt.in, rule), tt.in)
	}

	_, ok := r.Match("styles/main.css")
	assert.False(t, ok)
	_, ok = r.Match(".scss")
	assert.False(t, ok, "a bare suffix has no stem")
}

func TestExtensionWithoutFormatIsInactive(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterExtension("scss", ExtensionOptions{OutputFileExtension: "css", Compile: constCompile("x")}))
	require.NoError(t, r.Seal())

	_, ok := r.Match("a.scss")
	assert.False(t, ok)
}

func TestSealRejectsFormatWithoutCompiler(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterFormat("scss"))

	err := r.Seal()
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	assert.False(t, r.Sealed())
}

func TestRegistrationAfterSeal(t *testing.T) {
	r := New()
	require.NoError(t, r.Seal())

	assert.Error(t, r.RegisterFormat("md"))
	assert.Error(t, r.RegisterExtension("md", ExtensionOptions{Compile: constCompile("")}))
	assert.Error(t, r.RegisterPassthroughCopy("**/*.png"))
}

func TestPassthrough(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterPassthroughCopy("**/*.jpg"))
	require.NoError(t, r.RegisterPassthroughCopy("./fonts/*"))

	assert.Error(t, r.RegisterPassthroughCopy("**/*.jpg"))
	assert.Error(t, r.RegisterPassthroughCopy("[unclosed"))

	assert.True(t, r.IsPassthrough("photo.jpg"))
	assert.True(t, r.IsPassthrough("img/deep/photo.jpg"))
	assert.True(t, r.IsPassthrough("fonts/a.woff2"))
	assert.False(t, r.IsPassthrough("fonts/sub/a.woff2"))
	assert.False(t, r.IsPassthrough("photo.png"))
	assert.Equal(t, []string{"**/*.jpg", "fonts/*"}, r.Passthrough())
}

func TestFormatsListing(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterPlugin(stubPlugin{format: "scss", out: ".css"}))
	require.NoError(t, r.RegisterExtension("sass", ExtensionOptions{Compile: constCompile("")}))

	got := r.Formats()
	require.Len(t, got, 2)
	assert.Equal(t, FormatInfo{Token: "sass", OutputFileExtension: "html", HasCompiler: true}, got[0])
	assert.Equal(t, FormatInfo{Token: "scss", OutputFileExtension: "css", Declared: true, HasCompiler: true}, got[1])
}

func TestOutputPathIsPure(t *testing.T) {
	rule := Rule{Token: "scssx", OutputFileExtension: "css"}
	assert.Equal(t, OutputPath("styles/main.scssx", rule), OutputPath("styles/main.scssx", rule))
	assert.Equal(t, "styles/main.css", OutputPath("styles/main.scssx", rule))
}
