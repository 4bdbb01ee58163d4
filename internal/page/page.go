// Package page implements the render stage shared by page formats:
// front matter, the data cascade and the layout chain.
package page

import (
	"context"

	"git.home.luguber.info/inful/sitesmith/internal/data"
	"git.home.luguber.info/inful/sitesmith/internal/layout"
)

// Computed keys are set by the build and override front matter.
var computedKeys = []string{"page", "site"}

// BodyFunc produces the page body from the merged data.
type BodyFunc func(d data.Data) ([]byte, error)

// Template is a compiled page. It implements registry.Template.
type Template struct {
	Front  data.Data
	chain  []*layout.Layout
	render BodyFunc
}

// New resolves the layout chain named by front's "layout" key. Layout
// errors surface here, at compile time.
func New(front data.Data, body BodyFunc, layouts *layout.Engine) (*Template, error) {
	if front == nil {
		front = data.Data{}
	}
	t := &Template{Front: front, render: body}
	if name := front.String("layout"); name != "" && layouts != nil {
		chain, err := layouts.Chain(name)
		if err != nil {
			return nil, err
		}
		t.chain = chain
	}
	return t, nil
}

// Data merges the cascade for one render: d (config and global data plus
// computed values), layout front matter from outermost to innermost, page
// front matter, then computed values again so they cannot be overridden.
func (t *Template) Data(d data.Data) data.Data {
	layers := make([]data.Data, 0, len(t.chain)+3)
	layers = append(layers, d)
	for i := len(t.chain) - 1; i >= 0; i-- {
		layers = append(layers, t.chain[i].Data)
	}
	layers = append(layers, t.Front)
	computed := data.Data{}
	for _, k := range computedKeys {
		if v, ok := d[k]; ok {
			computed[k] = v
		}
	}
	layers = append(layers, computed)
	return data.Merge(layers...)
}

// Render produces the body and wraps it in the layout chain.
func (t *Template) Render(_ context.Context, d data.Data) ([]byte, error) {
	merged := t.Data(d)
	out, err := t.render(merged)
	if err != nil {
		return nil, err
	}
	for _, l := range t.chain {
		if out, err = l.Execute(merged, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Layouts returns the resolved layout names, innermost first.
func (t *Template) Layouts() []string {
	names := make([]string, len(t.chain))
	for i, l := range t.chain {
		names[i] = l.Name
	}
	return names
}
