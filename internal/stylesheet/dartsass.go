package stylesheet

import (
	"context"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/bep/godartsass/v2"

	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
)

// DartSass transpiles through an embedded-protocol Dart Sass process. The
// process starts on first use and is shared by concurrent callers.
type DartSass struct {
	binary string
	opts   Options

	once      sync.Once
	startErr  error
	transpile *godartsass.Transpiler
}

// NewDartSass returns a Transpiler using the Dart Sass binary at binary
// (looked up on PATH when relative).
func NewDartSass(binary string, opts Options) *DartSass {
	return &DartSass{binary: binary, opts: opts}
}

func (d *DartSass) start() error {
	d.once.Do(func() {
		t, err := godartsass.Start(godartsass.Options{
			DartSassEmbeddedFilename: d.binary,
			LogEventHandler: func(e godartsass.LogEvent) {
				if d.opts.Logger != nil {
					d.opts.Logger.Warn("dart sass: " + e.Message)
				}
			},
		})
		if err != nil {
			d.startErr = errors.WrapError(err, errors.CategoryConfig, "start dart sass").
				WithContext("binary", d.binary).
				Fatal().
				Build()
			return
		}
		d.transpile = t
	})
	return d.startErr
}

func (d *DartSass) Transpile(_ context.Context, src []byte, absPath string) (string, error) {
	if err := d.start(); err != nil {
		return "", err
	}
	style := godartsass.OutputStyleExpanded
	if d.opts.Style == StyleCompressed {
		style = godartsass.OutputStyleCompressed
	}
	include := append([]string{filepath.Dir(absPath)}, absLoadPaths(d.opts.BaseDir, d.opts.LoadPaths)...)
	res, err := d.transpile.Execute(godartsass.Args{
		Source:       string(src),
		URL:          "file://" + filepath.ToSlash(absPath),
		OutputStyle:  style,
		SourceSyntax: godartsass.SourceSyntaxSCSS,
		IncludePaths: include,
	})
	if err != nil {
		rel := absPath
		if r, relErr := filepath.Rel(d.opts.BaseDir, absPath); relErr == nil {
			rel = filepath.ToSlash(r)
		}
		return "", errors.WrapError(err, errors.CategoryCompile, "dart sass").
			WithFile(rel).
			UserAction().
			Build()
	}
	return res.CSS, nil
}

// Close stops the Dart Sass process if it was started.
func (d *DartSass) Close() error {
	if d.transpile == nil {
		return nil
	}
	return d.transpile.Close()
}

// DartSassAvailable reports whether binary can be found.
func DartSassAvailable(binary string) bool {
	_, err := exec.LookPath(binary)
	return err == nil
}
