// Package markdown renders Markdown pages with goldmark.
package markdown

import (
	"bytes"
	"fmt"
	"io"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// Options controls Markdown rendering.
type Options struct {
	// HTML passes raw HTML through; otherwise it is omitted.
	HTML    bool
	Linkify bool
	// Typographer converts quotes and dashes to typographic entities.
	Typographer bool
	Anchors     AnchorOptions
	Highlight   HighlightOptions
	Diagrams    bool
}

// AnchorOptions controls heading permalinks.
type AnchorOptions struct {
	Permalink bool
	Symbol    string
	Class     string
}

// HighlightOptions controls fenced code highlighting.
type HighlightOptions struct {
	Enabled     bool
	Style       string
	Classes     bool
	LineNumbers bool
}

// DefaultOptions mirrors a stock site configuration.
func DefaultOptions() Options {
	return Options{
		HTML:    true,
		Linkify: true,
		Anchors: AnchorOptions{Permalink: true, Symbol: "#", Class: "header-anchor"},
		Highlight: HighlightOptions{
			Enabled: true,
			Style:   "github",
			Classes: true,
		},
		Diagrams: true,
	}
}

// Renderer converts Markdown to HTML. It is safe for concurrent use.
type Renderer struct {
	md   goldmark.Markdown
	opts Options
}

// New builds a Renderer for opts.
func New(opts Options) *Renderer {
	if opts.Anchors.Symbol == "" {
		opts.Anchors.Symbol = "#"
	}
	if opts.Anchors.Class == "" {
		opts.Anchors.Class = "header-anchor"
	}
	if opts.Highlight.Style == "" {
		opts.Highlight.Style = "github"
	}

	exts := []goldmark.Extender{extension.Table, extension.Strikethrough, extension.TaskList}
	if opts.Linkify {
		exts = append(exts, extension.Linkify)
	}
	if opts.Typographer {
		exts = append(exts, extension.Typographer)
	}
	if opts.Highlight.Enabled {
		exts = append(exts, highlighting.NewHighlighting(
			highlighting.WithStyle(opts.Highlight.Style),
			highlighting.WithFormatOptions(
				chromahtml.WithClasses(opts.Highlight.Classes),
				chromahtml.WithLineNumbers(opts.Highlight.LineNumbers),
			),
			highlighting.WithWrapperRenderer(codeWrapper()),
		))
	}

	transformers := []util.PrioritizedValue{}
	renderers := []util.PrioritizedValue{}
	if opts.Diagrams {
		transformers = append(transformers, util.Prioritized(diagramTransformer{}, 100))
		renderers = append(renderers, util.Prioritized(diagramRenderer{}, 100))
	}
	if opts.Anchors.Permalink {
		transformers = append(transformers, util.Prioritized(permalinkTransformer{}, 200))
		renderers = append(renderers, util.Prioritized(permalinkRenderer{symbol: opts.Anchors.Symbol, class: opts.Anchors.Class}, 100))
	}

	rendererOpts := []renderer.Option{renderer.WithNodeRenderers(renderers...)}
	if opts.HTML {
		rendererOpts = append(rendererOpts, html.WithUnsafe())
	}

	md := goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithAttribute(),
			parser.WithASTTransformers(transformers...),
		),
		goldmark.WithRendererOptions(rendererOpts...),
	)
	return &Renderer{md: md, opts: opts}
}

// Convert renders src. Heading IDs are unique within one call.
func (r *Renderer) Convert(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	ctx := parser.NewContext(parser.WithIDs(newHeadingIDs()))
	if err := r.md.Convert(src, &buf, parser.WithContext(ctx)); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteHighlightCSS writes the stylesheet for class-based highlighting.
func (r *Renderer) WriteHighlightCSS(w io.Writer) error {
	style := styles.Get(r.opts.Highlight.Style)
	formatter := chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.WithLineNumbers(r.opts.Highlight.LineNumbers),
	)
	if err := formatter.WriteCSS(w, style); err != nil {
		return fmt.Errorf("write highlight css: %w", err)
	}
	return nil
}
