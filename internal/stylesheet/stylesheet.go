// Package stylesheet compiles SCSS-dialect stylesheets to CSS.
//
// The built-in compiler covers the commonly used subset of SCSS: variables,
// interpolation, nesting with parent references, @import/@use against load
// paths, mixins with @content, and unit-aware arithmetic. Sites that need
// the full language can switch to the Dart Sass backend.
package stylesheet

import (
	"context"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitesmith/internal/data"
	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesmith/internal/registry"
)

// Style selects the output formatting.
type Style string

const (
	StyleExpanded   Style = "expanded"
	StyleCompressed Style = "compressed"
)

// Options configures a compile.
type Options struct {
	// BaseDir anchors relative load paths and shortens paths in messages.
	BaseDir   string
	LoadPaths []string
	Style     Style
	Logger    *slog.Logger
}

// Transpiler turns stylesheet source into CSS. Implementations are safe for
// concurrent use.
type Transpiler interface {
	Transpile(ctx context.Context, src []byte, absPath string) (string, error)
	Close() error
}

// Compile compiles src, read from absPath, with the built-in compiler.
// Identical input and options always produce identical output.
func Compile(src []byte, absPath string, opts Options) (string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &compiler{
		baseDir:    opts.BaseDir,
		loadPaths:  absLoadPaths(opts.BaseDir, opts.LoadPaths),
		compressed: opts.Style == StyleCompressed,
		logger:     logger,
		parsed:     map[string]*sheet{},
		modules:    map[string]*module{},
	}
	return c.run(src, absPath)
}

func absLoadPaths(base string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = filepath.FromSlash(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		out = append(out, filepath.Clean(p))
	}
	return out
}

// Builtin is the pure Go Transpiler.
type Builtin struct{ opts Options }

// NewBuiltin returns a Transpiler backed by Compile.
func NewBuiltin(opts Options) *Builtin { return &Builtin{opts: opts} }

func (b *Builtin) Transpile(_ context.Context, src []byte, absPath string) (string, error) {
	return Compile(src, absPath, b.opts)
}

func (b *Builtin) Close() error { return nil }

// IsPartial reports whether relPath names a partial, a file that is only
// meant to be imported.
func IsPartial(relPath string) bool {
	return strings.HasPrefix(path.Base(relPath), "_")
}

// Plugin registers a stylesheet format with the extension registry.
type Plugin struct {
	format     string
	transpiler Transpiler
}

// NewPlugin returns a plugin compiling files ending in "."+format to CSS.
func NewPlugin(format string, t Transpiler) *Plugin {
	return &Plugin{format: format, transpiler: t}
}

func (p *Plugin) Format() string { return p.format }

func (p *Plugin) Options() registry.ExtensionOptions {
	return registry.ExtensionOptions{
		OutputFileExtension: "css",
		Compile:             p.compile,
		Skip:                IsPartial,
	}
}

func (p *Plugin) compile(ctx context.Context, src registry.Source) (registry.Template, error) {
	css, err := p.transpiler.Transpile(ctx, src.Content, src.AbsPath)
	if err != nil {
		if _, ok := errors.AsClassified(err); ok {
			return nil, err
		}
		return nil, errors.WrapError(err, errors.CategoryCompile, "stylesheet compile failed").
			WithFile(src.Path).
			UserAction().
			Build()
	}
	out := []byte(css)
	// Stylesheet output never depends on page data.
	return registry.TemplateFunc(func(context.Context, data.Data) ([]byte, error) {
		return out, nil
	}), nil
}
