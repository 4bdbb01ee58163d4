package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
)

// Validate checks cross-field constraints. Enumerations are expected to
// be normalized already.
func Validate(cfg *Config) error {
	v := &validator{cfg: cfg}
	for _, check := range []func() error{
		v.validateDirs,
		v.validatePatterns,
		v.validateExtensions,
		v.validateBuild,
		v.validateWatch,
		v.validateServer,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

type validator struct {
	cfg *Config
}

func (v *validator) fail(field, format string, args ...any) error {
	return errors.ConfigError(fmt.Sprintf(format, args...)).
		WithContext("field", field).Fatal().Build()
}

func (v *validator) validateDirs() error {
	d := v.cfg.Dir
	if strings.TrimSpace(d.Input) == "" {
		return v.fail("dir.input", "dir.input must not be empty")
	}
	if strings.TrimSpace(d.Output) == "" {
		return v.fail("dir.output", "dir.output must not be empty")
	}
	in, out := v.cfg.InputDir(), v.cfg.OutputDir()
	if in == out {
		return v.fail("dir.output", "dir.output must differ from dir.input (%s)", d.Output)
	}
	if rel, err := filepath.Rel(out, in); err == nil && !strings.HasPrefix(rel, "..") {
		return v.fail("dir.output", "dir.input %s is inside dir.output %s", d.Input, d.Output)
	}
	for field, p := range map[string]string{"dir.layouts": d.Layouts, "dir.data": d.Data} {
		if filepath.IsAbs(p) || strings.HasPrefix(filepath.Clean(filepath.FromSlash(p)), "..") {
			return v.fail(field, "%s must be relative to dir.input, got %q", field, p)
		}
	}
	return nil
}

func (v *validator) validatePatterns() error {
	for _, p := range v.cfg.Passthrough {
		if !doublestar.ValidatePattern(p) {
			return v.fail("passthrough", "invalid passthrough pattern %q", p)
		}
	}
	for _, p := range v.cfg.Ignores {
		if !doublestar.ValidatePattern(p) {
			return v.fail("ignores", "invalid ignore pattern %q", p)
		}
	}
	return nil
}

func (v *validator) validateExtensions() error {
	for i, e := range v.cfg.Extensions {
		field := fmt.Sprintf("extensions[%d]", i)
		if e.Extension == "" {
			return v.fail(field, "%s: extension must not be empty", field)
		}
		if e.Compiler == "" {
			return v.fail(field, "%s: compiler must not be empty for %q", field, e.Extension)
		}
		if e.Compiler == e.Extension {
			return v.fail(field, "%s: extension %q cannot alias itself", field, e.Extension)
		}
	}
	return nil
}

func (v *validator) validateBuild() error {
	if v.cfg.Build.Concurrency < 0 {
		return v.fail("build.concurrency", "build.concurrency must be >= 0, got %d", v.cfg.Build.Concurrency)
	}
	return nil
}

func (v *validator) validateWatch() error {
	w := v.cfg.Watch
	if w.Debounce != "" {
		if d, err := time.ParseDuration(w.Debounce); err != nil || d <= 0 {
			return v.fail("watch.debounce", "watch.debounce must be a positive duration, got %q", w.Debounce)
		}
	}
	if w.PollInterval != "" {
		d, err := time.ParseDuration(w.PollInterval)
		if err != nil || d < time.Second {
			return v.fail("watch.poll_interval", "watch.poll_interval must be a duration of at least 1s, got %q", w.PollInterval)
		}
	}
	return nil
}

func (v *validator) validateServer() error {
	if p := v.cfg.Server.Port; p < 0 || p > 65535 {
		return v.fail("server.port", "server.port out of range: %d", p)
	}
	return nil
}
