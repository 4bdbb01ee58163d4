package page

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitesmith/internal/data"
	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesmith/internal/layout"
	"git.home.luguber.info/inful/sitesmith/internal/registry"
)

func TestHTMLPluginExecutesWithCascade(t *testing.T) {
	dir := t.TempDir()
	writeLayout(t, dir, "base.html", "<body>{{ .content }}</body>")
	p := NewHTMLPlugin("html", layout.NewEngine(dir, "_layouts"))

	tmpl, err := p.Options().Compile(context.Background(), registry.Source{
		Path:    "index.html",
		Content: []byte("---\nlayout: base\ntitle: Home\n---\n<h1>{{ .title }}</h1><p>{{ .page.url }}</p>"),
	})
	require.NoError(t, err)

	out, err := tmpl.Render(context.Background(), data.Data{"page": data.Data{"url": "/"}})
	require.NoError(t, err)
	assert.Equal(t, "<body><h1>Home</h1><p>/</p></body>", string(out))
}

func TestHTMLPluginParseError(t *testing.T) {
	p := NewHTMLPlugin("html", nil)
	_, err := p.Options().Compile(context.Background(), registry.Source{
		Path:    "bad.html",
		Content: []byte("{{ if }}"),
	})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryCompile))
}

func TestAttributeKeepsExistingFile(t *testing.T) {
	layoutErr := errors.CompileError("broken").WithFile("_layouts/base.html").Build()
	err := Attribute(layoutErr, "index.md")
	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	file, _ := ce.Context().GetString(errors.KeyFile)
	pg, _ := ce.Context().GetString("page")
	assert.Equal(t, "_layouts/base.html", file)
	assert.Equal(t, "index.md", pg)
}
