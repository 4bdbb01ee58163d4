package markdown

import (
	"context"

	"git.home.luguber.info/inful/sitesmith/internal/data"
	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesmith/internal/frontmatter"
	"git.home.luguber.info/inful/sitesmith/internal/layout"
	"git.home.luguber.info/inful/sitesmith/internal/page"
	"git.home.luguber.info/inful/sitesmith/internal/registry"
)

// Plugin registers Markdown pages with the extension registry. Compile
// converts the body once; Render applies the data cascade and layouts.
type Plugin struct {
	format   string
	renderer *Renderer
	layouts  *layout.Engine
}

func NewPlugin(format string, r *Renderer, layouts *layout.Engine) *Plugin {
	return &Plugin{format: format, renderer: r, layouts: layouts}
}

func (p *Plugin) Format() string { return p.format }

func (p *Plugin) Options() registry.ExtensionOptions {
	return registry.ExtensionOptions{
		OutputFileExtension: registry.DefaultOutputFileExtension,
		Compile:             p.compile,
	}
}

func (p *Plugin) compile(_ context.Context, src registry.Source) (registry.Template, error) {
	doc, err := frontmatter.Split(src.Content)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryCompile, "front matter").
			WithFile(src.Path).
			UserAction().
			Build()
	}
	html, err := p.renderer.Convert(doc.Body)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryCompile, "markdown").
			WithFile(src.Path).
			Build()
	}
	tmpl, err := page.New(doc.Data, func(data.Data) ([]byte, error) { return html, nil }, p.layouts)
	if err != nil {
		return nil, page.Attribute(err, src.Path)
	}
	return tmpl, nil
}
