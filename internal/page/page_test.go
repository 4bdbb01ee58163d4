package page

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitesmith/internal/data"
	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesmith/internal/layout"
)

func writeLayout(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, "_layouts", name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

func staticBody(s string) BodyFunc {
	return func(data.Data) ([]byte, error) { return []byte(s), nil }
}

func TestRenderAppliesLayoutChain(t *testing.T) {
	dir := t.TempDir()
	writeLayout(t, dir, "base.html", "---\nsiteTitle: Base\n---\n<html><title>{{ .title }} | {{ .siteTitle }}</title>{{ .content }}</html>")
	writeLayout(t, dir, "post.html", "---\nlayout: base\ntitle: Untitled\n---\n<article>{{ .content }}</article>")
	engine := layout.NewEngine(dir, "_layouts")

	tmpl, err := New(data.Data{"layout": "post", "title": "Hello"}, staticBody("<p>hi</p>"), engine)
	require.NoError(t, err)
	assert.Equal(t, []string{"post", "base"}, tmpl.Layouts())

	out, err := tmpl.Render(context.Background(), data.Data{"siteTitle": "Config"})
	require.NoError(t, err)
	assert.Equal(t, "<html><title>Hello | Base</title><article><p>hi</p></article></html>", string(out))
}

func TestDataPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeLayout(t, dir, "base.html", "---\nlevel: layout\nfromLayout: ok\n---\n{{ .content }}")
	engine := layout.NewEngine(dir, "_layouts")

	tmpl, err := New(data.Data{"layout": "base", "level": "page", "page": "front"}, staticBody(""), engine)
	require.NoError(t, err)

	got := tmpl.Data(data.Data{"level": "global", "page": data.Data{"url": "/x/"}})
	assert.Equal(t, "page", got["level"])
	assert.Equal(t, "ok", got["fromLayout"])
	assert.Equal(t, map[string]any{"url": "/x/"}, got["page"])
}

func TestNewFailsOnMissingOrCyclicLayout(t *testing.T) {
	dir := t.TempDir()
	writeLayout(t, dir, "a.html", "---\nlayout: b\n---\nA")
	writeLayout(t, dir, "b.html", "---\nlayout: a\n---\nB")
	engine := layout.NewEngine(dir, "_layouts")

	_, err := New(data.Data{"layout": "missing"}, staticBody(""), engine)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryCompile))

	_, err = New(data.Data{"layout": "a"}, staticBody(""), engine)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryCompile))
	assert.Contains(t, err.Error(), "layout cycle: a -> b -> a")
}

func TestRenderWithoutLayout(t *testing.T) {
	tmpl, err := New(nil, staticBody("plain"), nil)
	require.NoError(t, err)
	out, err := tmpl.Render(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", string(out))
}
