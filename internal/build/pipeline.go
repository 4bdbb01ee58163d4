package build

import (
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/sitesmith/internal/config"
	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesmith/internal/layout"
	"git.home.luguber.info/inful/sitesmith/internal/markdown"
	"git.home.luguber.info/inful/sitesmith/internal/page"
	"git.home.luguber.info/inful/sitesmith/internal/registry"
	"git.home.luguber.info/inful/sitesmith/internal/stylesheet"
)

// Built-in compiler names usable in formats and extensions[].compiler.
const (
	CompilerMarkdown   = "md"
	CompilerHTML       = "html"
	CompilerStylesheet = "scss"
)

// Compilers lists the built-in compiler names.
func Compilers() []string {
	return []string{CompilerHTML, CompilerMarkdown, CompilerStylesheet}
}

// Pipeline is the set of compilers wired for one build. Layouts are parsed
// at most once per Pipeline, and the stylesheet backend is shared by every
// stylesheet it compiles.
type Pipeline struct {
	Registry *registry.Registry
	Markdown *markdown.Renderer
	Layouts  *layout.Engine
	styles   stylesheet.Transpiler
}

// NewPipeline registers the configured formats, extension aliases and
// passthrough patterns, then seals the registry. Every registration
// problem is a configuration error.
func NewPipeline(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		Registry: registry.New(),
		Markdown: markdown.New(markdownOptions(cfg.Markdown)),
		Layouts:  layout.NewEngine(cfg.InputDir(), cfg.Dir.Layouts),
	}

	sassOpts := stylesheet.Options{
		BaseDir:   cfg.InputDir(),
		LoadPaths: cfg.Sass.LoadPaths,
		Style:     stylesheet.Style(cfg.Sass.Style),
		Logger:    logger,
	}
	if cfg.Sass.Implementation == config.SassImplementationDart {
		if !stylesheet.DartSassAvailable(cfg.Sass.Binary) {
			return nil, errors.ConfigError(fmt.Sprintf("dart sass binary %q not found; install it or set sass.implementation to builtin", cfg.Sass.Binary)).
				WithContext("binary", cfg.Sass.Binary).
				Build()
		}
		p.styles = stylesheet.NewDartSass(cfg.Sass.Binary, sassOpts)
	} else {
		p.styles = stylesheet.NewBuiltin(sassOpts)
	}

	if err := p.register(cfg); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) register(cfg *config.Config) error {
	for _, format := range cfg.Formats {
		plugin, ok := p.plugin(format, format)
		if !ok {
			return errors.ConfigError(fmt.Sprintf("no built-in compiler for format %q (available: %v)", format, Compilers())).
				WithContext("token", format).Fatal().Build()
		}
		if err := p.Registry.RegisterPlugin(plugin); err != nil {
			return err
		}
	}
	for _, ext := range cfg.Extensions {
		plugin, ok := p.plugin(ext.Compiler, ext.Extension)
		if !ok {
			return errors.ConfigError(fmt.Sprintf("unknown compiler %q for extension %q (available: %v)", ext.Compiler, ext.Extension, Compilers())).
				WithContext("token", ext.Extension).Fatal().Build()
		}
		if ext.OutputExtension != "" {
			plugin = aliasPlugin{Plugin: plugin, output: ext.OutputExtension}
		}
		if err := p.Registry.RegisterPlugin(plugin); err != nil {
			return err
		}
	}
	for _, pattern := range cfg.Passthrough {
		if err := p.Registry.RegisterPassthroughCopy(pattern); err != nil {
			return err
		}
	}
	return p.Registry.Seal()
}

func (p *Pipeline) plugin(compiler, format string) (registry.Plugin, bool) {
	switch compiler {
	case CompilerMarkdown, "markdown":
		return markdown.NewPlugin(format, p.Markdown, p.Layouts), true
	case CompilerHTML:
		return page.NewHTMLPlugin(format, p.Layouts), true
	case CompilerStylesheet:
		return stylesheet.NewPlugin(format, p.styles), true
	default:
		return nil, false
	}
}

// Close releases the stylesheet backend.
func (p *Pipeline) Close() error {
	if p.styles == nil {
		return nil
	}
	return p.styles.Close()
}

// aliasPlugin overrides the output extension of a built-in compiler.
type aliasPlugin struct {
	registry.Plugin
	output string
}

func (a aliasPlugin) Options() registry.ExtensionOptions {
	opts := a.Plugin.Options()
	opts.OutputFileExtension = a.output
	return opts
}

func markdownOptions(c config.MarkdownConfig) markdown.Options {
	return markdown.Options{
		HTML:        c.HTML,
		Linkify:     c.Linkify,
		Typographer: c.Typographer,
		Anchors: markdown.AnchorOptions{
			Permalink: c.Anchors.Permalink,
			Symbol:    c.Anchors.Symbol,
			Class:     c.Anchors.Class,
		},
		Highlight: markdown.HighlightOptions{
			Enabled:     c.Highlight.Enabled,
			Style:       c.Highlight.Style,
			Classes:     c.Highlight.Classes,
			LineNumbers: c.Highlight.LineNumbers,
		},
		Diagrams: c.Diagrams.Enabled,
	}
}
