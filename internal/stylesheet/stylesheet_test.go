package stylesheet

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitesmith/internal/data"
	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesmith/internal/registry"
)

func TestIsPartial(t *testing.T) {
	assert.True(t, IsPartial("_sass/_base.scss"))
	assert.True(t, IsPartial("_base.scss"))
	assert.False(t, IsPartial("_sass/base.scss"))
	assert.False(t, IsPartial("styles/main.scssx"))
}

func TestPluginRegistersAndCompiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"_sass/_base.scss":  "$brand: #c00;",
		"styles/main.scssx": "@import \"base\";\n.page { color: $brand; }",
	})
	p := NewPlugin("scssx", NewBuiltin(Options{BaseDir: dir, LoadPaths: []string{"_sass/"}}))

	r := registry.New()
	require.NoError(t, r.RegisterPlugin(p))
	require.NoError(t, r.Seal())

	rule, ok := r.Match("styles/main.scssx")
	require.True(t, ok)
	assert.Equal(t, "styles/main.css", registry.OutputPath("styles/main.scssx", rule))
	assert.True(t, rule.Skip("styles/_partial.scssx"))

	abs := filepath.Join(dir, "styles", "main.scssx")
	content, err := os.ReadFile(abs)
	require.NoError(t, err)
	tmpl, err := rule.Compile(context.Background(), registry.Source{Path: "styles/main.scssx", AbsPath: abs, Content: content})
	require.NoError(t, err)

	first, err := tmpl.Render(context.Background(), data.Data{"title": "ignored"})
	require.NoError(t, err)
	second, err := tmpl.Render(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, ".page {\n  color: #c00;\n}\n", string(first))
	assert.Equal(t, first, second)
}

func TestPluginCompileError(t *testing.T) {
	dir := t.TempDir()
	p := NewPlugin("scss", NewBuiltin(Options{BaseDir: dir}))
	abs := filepath.Join(dir, "styles", "main.scss")

	_, err := p.Options().Compile(context.Background(), registry.Source{
		Path:    "styles/main.scss",
		AbsPath: abs,
		Content: []byte("@import \"base\";"),
	})
	require.Error(t, err)
	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryCompile, ce.Category())
	file, _ := ce.Context().GetString(errors.KeyFile)
	assert.Equal(t, "styles/main.scss", file)
}

func TestDartSassAvailable(t *testing.T) {
	assert.False(t, DartSassAvailable("sitesmith-no-such-sass-binary"))
}

func TestDartSassCloseWithoutStart(t *testing.T) {
	d := NewDartSass("sass", Options{})
	require.NoError(t, d.Close())
}
