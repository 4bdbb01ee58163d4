package commands

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitesmith/internal/config"
	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// run parses args like the binary does and executes the selected command.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cli := &CLI{}
	g := &Global{Stdout: &out}
	parser, err := kong.New(cli, kong.Bind(g), kong.Name("sitesmith"), kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	err = kctx.Run(cli)
	return out.String(), err
}

func TestBuildCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, filepath.Join(dir, "index.md"), "# Home\n")
	writeFile(t, filepath.Join(dir, "styles", "main.scss"), "$c: red;\nbody { color: $c; }\n")

	metricsFile := filepath.Join(t.TempDir(), "build.prom")
	out, err := run(t, "build", "--metrics-file", metricsFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Built _site: 2 compiled")

	assert.FileExists(t, filepath.Join(dir, "_site", "index.html"))
	assert.FileExists(t, filepath.Join(dir, "_site", "styles", "main.css"))

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `sitesmith_build_outcomes_total{outcome="success"} 1`)
}

func TestBuildCommandReportsFailedFiles(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, filepath.Join(dir, "index.md"), "# Home\n")
	writeFile(t, filepath.Join(dir, "broken.scss"), "@use 'missing';\n")

	out, err := run(t, "build", "-o", "public")
	require.Error(t, err)
	assert.Contains(t, out, "1 failed")
	assert.True(t, errors.HasCategory(err, errors.CategoryBuild))
	assert.Contains(t, err.Error(), "broken.scss")
	assert.Equal(t, 11, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
	assert.FileExists(t, filepath.Join(dir, "public", "index.html"))
}

func TestBuildCommandRejectsOutputOverInput(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := run(t, "build", "-o", ".")
	require.Error(t, err)
	assert.Equal(t, 7, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestInitAndFormatsCommands(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := run(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote sitesmith.yaml")

	_, err = run(t, "init")
	require.Error(t, err)

	out, err = run(t, "formats")
	require.NoError(t, err)
	assert.Contains(t, out, "FORMAT")
	assert.Regexp(t, `(?m)^md\s+html\s+compiled$`, out)
	assert.Regexp(t, `(?m)^scss\s+css\s+compiled$`, out)
	assert.Regexp(t, `(?m)^scssx\s+css\s+compiled$`, out)
	assert.Contains(t, out, "**/*.png")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sitesmith ")
}

func TestServeApplyValidates(t *testing.T) {
	cfg := config.Default()
	s := &ServeCmd{Port: 9000, NoLiveReload: true, Poll: "5s"}
	require.NoError(t, s.apply(cfg))
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.False(t, cfg.Server.LiveReload)
	assert.Equal(t, "5s", cfg.Watch.PollInterval)

	err := (&ServeCmd{Poll: "1ms"}).apply(config.Default())
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, config.LogConfig{Level: config.LogLevelWarn, Format: config.LogFormatJSON}, false)
	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	l = newLogger(&buf, config.LogConfig{Level: config.LogLevelError}, true)
	l.Debug("debug")
	assert.Contains(t, buf.String(), "msg=debug")

	assert.Equal(t, slog.LevelInfo, slogLevel(""))
}
