package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
)

func TestMergePrecedence(t *testing.T) {
	global := Data{"title": "Site", "nav": map[string]any{"home": "/", "docs": "/docs/"}}
	page := Data{"title": "Page", "nav": map[string]any{"docs": "/guide/"}}

	got := Merge(global, page)

	assert.Equal(t, "Page", got["title"])
	assert.Equal(t, map[string]any{"home": "/", "docs": "/guide/"}, got["nav"])
	// Inputs untouched.
	assert.Equal(t, "/docs/", global["nav"].(map[string]any)["docs"])
}

func TestMergeScalarReplacesMap(t *testing.T) {
	got := Merge(Data{"k": map[string]any{"a": 1}}, Data{"k": "flat"})
	assert.Equal(t, "flat", got["k"])
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "site.yaml"), []byte("name: Demo\nauthor:\n  name: Ada\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "links.json"), []byte(`["a","b"]`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	d, err := LoadDir(dir)
	require.NoError(t, err)

	assert.Len(t, d, 2)
	assert.Equal(t, "Demo", d["site"].(map[string]any)["name"])
	assert.Equal(t, []any{"a", "b"}, d["links"])
}

func TestLoadDirMissing(t *testing.T) {
	d, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, d)
}

func TestLoadDirDuplicateStem(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "site.yaml"), []byte("a: 1\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "site.json"), []byte(`{"a":2}`), 0o600))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}
