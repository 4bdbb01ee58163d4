package linkverify

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSite(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	}
	return root
}

func TestExtract(t *testing.T) {
	doc, err := Extract(strings.NewReader(`<html><head><link rel="stylesheet" href="/css/site.css"></head>
<body><h1 id="intro">Hi</h1><a name="old"></a><a href="about.html">About</a><img src=" logo.png "><a>no href</a></body></html>`))
	require.NoError(t, err)

	assert.Equal(t, []Link{
		{URL: "/css/site.css", Tag: "link", Attribute: "href"},
		{URL: "about.html", Tag: "a", Attribute: "href"},
		{URL: "logo.png", Tag: "img", Attribute: "src"},
	}, doc.Links)
	assert.Contains(t, doc.IDs, "intro")
	assert.Contains(t, doc.IDs, "old")
}

func TestIsInternal(t *testing.T) {
	site, _ := url.Parse("https://example.com/docs/")
	assert.True(t, IsInternal("about.html", site))
	assert.True(t, IsInternal("/about/", site))
	assert.True(t, IsInternal("https://EXAMPLE.com/docs/a.html", site))
	assert.False(t, IsInternal("https://other.org/", site))
	assert.False(t, IsInternal("https://example.com/", nil))
}

func TestCheckFindsBrokenLinks(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html": `<a href="about/">about</a><a href="posts/first.html#setup">first</a>
<a href="missing.html">gone</a><a href="#top">top</a><a href="https://example.org/x">ext</a>
<a href="mailto:me@example.com">mail</a><img src="img/logo.png">`,
		"about/index.html":  `<a href="../index.html">home</a><a href="/posts/first">first</a>`,
		"posts/first.html":  `<h2 id="setup">Setup</h2><a href="first.html#nope">self</a><a href="../../up.html">up</a>`,
		"img/logo.png":      "png",
	})

	c, err := NewChecker(root, "")
	require.NoError(t, err)
	broken, err := c.Check(context.Background(), []string{"index.html", "about/index.html", "posts/first.html"})
	require.NoError(t, err)

	assert.Equal(t, []BrokenLink{
		{Page: "index.html", URL: "#top", Reason: "missing anchor #top"},
		{Page: "index.html", URL: "missing.html", Reason: "target not found"},
		{Page: "posts/first.html", URL: "../../up.html", Reason: "points outside the site"},
		{Page: "posts/first.html", URL: "first.html#nope", Reason: "missing anchor #nope"},
	}, broken)
}

func TestCheckSiteURLPrefix(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html": `<a href="https://example.com/docs/guide.html">g</a><a href="https://example.com/docs/nope.html">n</a>`,
		"guide.html": `ok`,
	})
	c, err := NewChecker(root, "https://example.com/docs/")
	require.NoError(t, err)

	broken, err := c.Check(context.Background(), []string{"index.html"})
	require.NoError(t, err)
	require.Len(t, broken, 1)
	assert.Equal(t, "https://example.com/docs/nope.html", broken[0].URL)
}

func TestCheckRootRelativeLinksUnderSubpath(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html":       `<a href="/docs/a.html">a</a><a href="/docs/">home</a><a href="/docs">bare</a><a href="/a.html">unprefixed</a><a href="/docs/b.html">b</a><a href="/docsearch/a.html">other</a>`,
		"a.html":           `ok`,
		"docsearch/a.html": `ok`,
	})
	c, err := NewChecker(root, "https://example.com/docs/")
	require.NoError(t, err)

	broken, err := c.Check(context.Background(), []string{"index.html"})
	require.NoError(t, err)
	assert.Equal(t, []BrokenLink{
		{Page: "index.html", URL: "/docs/b.html", Reason: "target not found"},
	}, broken)
}

func TestCheckCanceled(t *testing.T) {
	c, err := NewChecker(t.TempDir(), "")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Check(ctx, []string{"index.html"})
	require.ErrorIs(t, err, context.Canceled)
}
