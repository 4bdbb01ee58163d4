package markdown

import (
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// KindPermalink is the node kind of heading permalinks.
var KindPermalink = ast.NewNodeKind("Permalink")

// Permalink is an inline link to its enclosing heading.
type Permalink struct {
	ast.BaseInline
	ID []byte
}

func (n *Permalink) Kind() ast.NodeKind { return KindPermalink }

func (n *Permalink) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"ID": string(n.ID)}, nil)
}

type permalinkTransformer struct{}

func (permalinkTransformer) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	var headings []*ast.Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if h, ok := n.(*ast.Heading); ok && entering {
			headings = append(headings, h)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	for _, h := range headings {
		id, ok := h.AttributeString("id")
		if !ok {
			continue
		}
		b, ok := id.([]byte)
		if !ok || len(b) == 0 {
			continue
		}
		h.AppendChild(h, &Permalink{ID: b})
	}
}

type permalinkRenderer struct {
	symbol string
	class  string
}

func (r permalinkRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindPermalink, r.render)
}

func (r permalinkRenderer) render(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*Permalink)
	_, _ = w.WriteString(` <a class="`)
	_, _ = w.Write(util.EscapeHTML([]byte(r.class)))
	_, _ = w.WriteString(`" href="#`)
	_, _ = w.Write(util.EscapeHTML(n.ID))
	_, _ = w.WriteString(`">`)
	_, _ = w.Write(util.EscapeHTML([]byte(r.symbol)))
	_, _ = w.WriteString(`</a>`)
	return ast.WalkSkipChildren, nil
}
