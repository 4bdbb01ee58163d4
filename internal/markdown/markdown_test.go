package markdown

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitesmith/internal/data"
	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesmith/internal/layout"
	"git.home.luguber.info/inful/sitesmith/internal/registry"
)

func convert(t *testing.T, opts Options, src string) string {
	t.Helper()
	out, err := New(opts).Convert([]byte(src))
	require.NoError(t, err)
	return string(out)
}

func TestRawHTML(t *testing.T) {
	src := "<div class=\"note\">Hi</div>\n\nText\n"

	opts := DefaultOptions()
	opts.HTML = true
	assert.Contains(t, convert(t, opts, src), `<div class="note">Hi</div>`)

	opts.HTML = false
	out := convert(t, opts, src)
	assert.NotContains(t, out, "<div")
	assert.Contains(t, out, "raw HTML omitted")
	assert.Contains(t, out, "<p>Text</p>")
}

func TestHeadingAnchors(t *testing.T) {
	src := "# Hello World\n\n## Hello World\n"

	out := convert(t, DefaultOptions(), src)
	assert.Contains(t, out, `<h1 id="hello-world">Hello World <a class="header-anchor" href="#hello-world">#</a></h1>`)
	assert.Contains(t, out, `<h2 id="hello-world-1">Hello World <a class="header-anchor" href="#hello-world-1">#</a></h2>`)

	opts := DefaultOptions()
	opts.Anchors.Permalink = false
	out = convert(t, opts, src)
	assert.Contains(t, out, `<h1 id="hello-world">Hello World</h1>`)
	assert.NotContains(t, out, "header-anchor")
}

func TestHeadingIDsResetPerDocument(t *testing.T) {
	r := New(DefaultOptions())
	for range 2 {
		out, err := r.Convert([]byte("# Intro\n"))
		require.NoError(t, err)
		assert.Contains(t, string(out), `id="intro"`)
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Héllo, Wörld!":      "hello-world",
		"  Go 1.24 release ": "go-1-24-release",
		"Ünïcödé":            "unicode",
		"C++ & Go":           "c-go",
		"!!!":                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), in)
	}
}

func TestMermaidFence(t *testing.T) {
	out := convert(t, DefaultOptions(), "```mermaid\ngraph TD\n  A --> B\n```\n")
	assert.Equal(t, "<pre class=\"mermaid\">graph TD\n  A --&gt; B\n</pre>\n", out)
}

func TestHighlightAndLinkify(t *testing.T) {
	out := convert(t, DefaultOptions(), "Visit https://example.com now\n\n```go\nfunc main() {}\n```\n")
	assert.Contains(t, out, `<a href="https://example.com">https://example.com</a>`)
	assert.Contains(t, out, "chroma")

	opts := DefaultOptions()
	opts.Linkify = false
	assert.NotContains(t, convert(t, opts, "Visit https://example.com now\n"), "<a ")
}

func TestWriteHighlightCSS(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(DefaultOptions()).WriteHighlightCSS(&buf))
	assert.Contains(t, buf.String(), ".chroma")
}

func TestPluginRendersThroughLayout(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "_layouts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_layouts", "base.html"),
		[]byte("<title>{{ .title }}</title><main>{{ .content }}</main>"), 0o600))

	p := NewPlugin("md", New(DefaultOptions()), layout.NewEngine(dir, "_layouts"))
	assert.Equal(t, "md", p.Format())
	assert.Equal(t, "html", p.Options().OutputFileExtension)

	tmpl, err := p.Options().Compile(context.Background(), registry.Source{
		Path:    "posts/hello.md",
		Content: []byte("---\nlayout: base\ntitle: Hello\n---\nSome *text*.\n"),
	})
	require.NoError(t, err)
	out, err := tmpl.Render(context.Background(), data.Data{})
	require.NoError(t, err)
	assert.Equal(t, "<title>Hello</title><main><p>Some <em>text</em>.</p>\n</main>", string(out))
}

func TestPluginCompileErrors(t *testing.T) {
	p := NewPlugin("md", New(DefaultOptions()), layout.NewEngine(t.TempDir(), "_layouts"))

	_, err := p.Options().Compile(context.Background(), registry.Source{
		Path:    "broken.md",
		Content: []byte("---\ntitle: [unterminated\n---\nbody\n"),
	})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryCompile))

	_, err = p.Options().Compile(context.Background(), registry.Source{
		Path:    "missing-layout.md",
		Content: []byte("---\nlayout: nope\n---\nbody\n"),
	})
	require.Error(t, err)
	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	file, _ := ce.Context().GetString(errors.KeyFile)
	assert.Equal(t, "missing-layout.md", file)
}
