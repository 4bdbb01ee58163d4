package layout

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitesmith/internal/data"
	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
)

func TestLoadResolvesNameWithAndWithoutExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "_layouts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_layouts", "base.html"), []byte("<main>{{ .content }}</main>"), 0o600))
	e := NewEngine(dir, "_layouts")

	byName, err := e.Load("base")
	require.NoError(t, err)
	require.Equal(t, "_layouts/base.html", byName.Path)

	byFile, err := e.Load("base.html")
	require.NoError(t, err)
	require.Equal(t, byName.Path, byFile.Path)

	out, err := byName.Execute(data.Data{}, []byte("<p>x</p>"))
	require.NoError(t, err)
	require.Equal(t, "<main><p>x</p></main>", string(out))
}

func TestLoadIsSharedAcrossGoroutines(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "_layouts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_layouts", "base.html"), []byte("{{ .content }}"), 0o600))
	e := NewEngine(dir, "_layouts")

	var wg sync.WaitGroup
	results := make([]*Layout, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := e.Load("base")
			require.NoError(t, err)
			results[i] = l
		}()
	}
	wg.Wait()
	for _, l := range results {
		require.Same(t, results[0], l)
	}
}

func TestParseErrorIsCompileError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "_layouts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_layouts", "bad.html"), []byte("{{ .content "), 0o600))
	_, err := NewEngine(dir, "_layouts").Load("bad")
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryCompile))
}

func TestFuncs(t *testing.T) {
	f := Funcs()
	date := f["date"].(func(string, any) string)
	require.Equal(t, "2024-03-01", date("2006-01-02", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "2024", date("2006", "2024-03-01T10:00:00Z"))

	def := f["default"].(func(any, any) any)
	require.Equal(t, "x", def("x", ""))
	require.Equal(t, "y", def("x", "y"))
}
