package page

import (
	"bytes"
	"context"
	"html/template"

	"git.home.luguber.info/inful/sitesmith/internal/data"
	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesmith/internal/frontmatter"
	"git.home.luguber.info/inful/sitesmith/internal/layout"
	"git.home.luguber.info/inful/sitesmith/internal/registry"
)

// HTMLPlugin treats matching files as html/template pages.
type HTMLPlugin struct {
	format  string
	layouts *layout.Engine
}

func NewHTMLPlugin(format string, layouts *layout.Engine) *HTMLPlugin {
	return &HTMLPlugin{format: format, layouts: layouts}
}

func (p *HTMLPlugin) Format() string { return p.format }

func (p *HTMLPlugin) Options() registry.ExtensionOptions {
	return registry.ExtensionOptions{
		OutputFileExtension: registry.DefaultOutputFileExtension,
		Compile:             p.compile,
	}
}

func (p *HTMLPlugin) compile(_ context.Context, src registry.Source) (registry.Template, error) {
	doc, err := frontmatter.Split(src.Content)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryCompile, "front matter").
			WithFile(src.Path).
			UserAction().
			Build()
	}
	body, err := template.New(src.Path).Funcs(layout.Funcs()).Parse(string(doc.Body))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryCompile, "parse template").
			WithFile(src.Path).
			UserAction().
			Build()
	}
	render := func(d data.Data) ([]byte, error) {
		var buf bytes.Buffer
		if err := body.Execute(&buf, map[string]any(d)); err != nil {
			return nil, errors.WrapError(err, errors.CategoryRender, "execute template").
				WithFile(src.Path).
				Build()
		}
		return buf.Bytes(), nil
	}
	tmpl, err := New(doc.Data, render, p.layouts)
	if err != nil {
		return nil, Attribute(err, src.Path)
	}
	return tmpl, nil
}

// Attribute records path as the failing input unless err already names a
// file, such as a broken layout.
func Attribute(err error, path string) error {
	ce, ok := errors.AsClassified(err)
	if !ok {
		return errors.WrapError(err, errors.CategoryCompile, "compile").WithFile(path).Build()
	}
	if _, has := ce.Context().GetString(errors.KeyFile); has {
		return ce.WithContext("page", path)
	}
	return ce.WithContext(errors.KeyFile, path)
}
