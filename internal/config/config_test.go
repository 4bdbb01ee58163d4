package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "site.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"md", "html", "scss"}, cfg.Formats)
	assert.Equal(t, []string{"**/*.jpg", "**/*.png"}, cfg.Passthrough)
	assert.Equal(t, "_layouts", cfg.Dir.Layouts)
	assert.Equal(t, []string{"_sass/"}, cfg.Sass.LoadPaths)
	assert.True(t, cfg.Markdown.HTML)
	assert.True(t, cfg.Markdown.Linkify)
	assert.True(t, cfg.Markdown.Anchors.Permalink)
	assert.Equal(t, SassStyleExpanded, cfg.Sass.Style)
	assert.Equal(t, DefaultDebounce, cfg.Watch.DebounceDuration())
	assert.Zero(t, cfg.Watch.PollDuration())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load("nope.yaml")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	p := writeConfig(t, dir, `version: "1"
dir:
  output: public
formats: [md, " .scss "]
extensions:
  - extension: scssx
    compiler: scss
markdown:
  html: false
sass:
  style: COMPRESSED
log:
  level: Debug
data:
  site_name: Example
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "public", cfg.Dir.Output)
	assert.Equal(t, "_layouts", cfg.Dir.Layouts, "unset keys keep defaults")
	assert.Equal(t, []string{"md", "scss"}, cfg.Formats)
	require.Len(t, cfg.Extensions, 1)
	assert.Equal(t, "scssx", cfg.Extensions[0].Extension)
	assert.False(t, cfg.Markdown.HTML)
	assert.True(t, cfg.Markdown.Linkify)
	assert.Equal(t, SassStyleCompressed, cfg.Sass.Style)
	assert.Equal(t, LogLevelDebug, cfg.Log.Level)
	assert.Equal(t, "Example", cfg.Data["site_name"])
}

func TestLoadExpandsEnvAndOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("SITE_TITLE", "From Env")
	t.Setenv("SITESMITH_OUTPUT_DIR", "dist")
	t.Setenv("SITESMITH_BUILD_STRICT", "true")
	t.Setenv("SITESMITH_SERVER_PORT", "9090")

	p := writeConfig(t, dir, `version: "1"
site:
  title: ${SITE_TITLE}
dir:
  output: public
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "From Env", cfg.Site.Title)
	assert.Equal(t, "dist", cfg.Dir.Output)
	assert.True(t, cfg.Build.Strict)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadDotEnvDoesNotOverrideProcessEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("SITESMITH_LOG_LEVEL", "warn")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SITESMITH_LOG_LEVEL=error\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarn, cfg.Log.Level)
}

func TestLoadRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"version", `version: "9"`, "unsupported configuration version"},
		{"yaml", "version: \"1\"\nformats: [", "failed to parse configuration"},
		{"enum", "version: \"1\"\nsass:\n  style: nested\n", "invalid sass style"},
		{"same dirs", "version: \"1\"\ndir:\n  output: .\n", "must differ from dir.input"},
		{"input in output", "version: \"1\"\ndir:\n  input: public/src\n  output: public\n", "is inside dir.output"},
		{"passthrough", "version: \"1\"\npassthrough: [\"[a\"]\n", "invalid passthrough pattern"},
		{"alias", "version: \"1\"\nextensions:\n  - extension: scssx\n", "compiler must not be empty"},
		{"poll", "version: \"1\"\nwatch:\n  poll_interval: 10ms\n", "watch.poll_interval"},
		{"concurrency", "version: \"1\"\nbuild:\n  concurrency: -1\n", "build.concurrency"},
		{"layouts", "version: \"1\"\ndir:\n  layouts: ../x\n", "dir.layouts must be relative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			_, err := Load(writeConfig(t, dir, tt.content))
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryConfig), "got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInitWritesLoadableConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, Init(DefaultPath, false))

	err := Init(DefaultPath, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use --force to overwrite")
	require.NoError(t, Init(DefaultPath, true))

	cfg, err := Load(DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, "My Site", cfg.Site.Title)
	assert.Equal(t, "css/highlight.css", cfg.Markdown.Highlight.CSSFile)
	require.Len(t, cfg.Extensions, 1)
	assert.Equal(t, "scss", cfg.Extensions[0].Compiler)
}

func TestNormalizeWarnsOnCaseChanges(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = " INFO "

	res, err := Normalize(cfg)
	require.NoError(t, err)
	assert.Equal(t, LogLevelInfo, cfg.Log.Level)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "log.level")
}

func TestServerAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", Default().Server.Addr())
}
