package markdown

import (
	"bytes"
	"strings"

	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const mermaidLanguage = "mermaid"

// KindDiagram is the node kind of client-rendered diagram blocks.
var KindDiagram = ast.NewNodeKind("Diagram")

// Diagram holds the source of a ```mermaid fence.
type Diagram struct {
	ast.BaseBlock
}

func (n *Diagram) Kind() ast.NodeKind { return KindDiagram }

func (n *Diagram) IsRaw() bool { return true }

func (n *Diagram) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, nil, nil)
}

type diagramTransformer struct{}

func (diagramTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	source := reader.Source()
	var fences []*ast.FencedCodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if f, ok := n.(*ast.FencedCodeBlock); ok && entering {
			if strings.EqualFold(strings.TrimSpace(string(f.Language(source))), mermaidLanguage) {
				fences = append(fences, f)
			}
		}
		return ast.WalkContinue, nil
	})
	for _, f := range fences {
		d := &Diagram{}
		d.SetLines(f.Lines())
		f.Parent().ReplaceChild(f.Parent(), f, d)
	}
}

type diagramRenderer struct{}

func (diagramRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindDiagram, renderDiagram)
}

func renderDiagram(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString(`<pre class="mermaid">`)
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		_, _ = w.Write(util.EscapeHTML(seg.Value(source)))
	}
	_, _ = w.WriteString("</pre>\n")
	return ast.WalkSkipChildren, nil
}

// codeWrapper renders fences that chroma does not highlight as plain
// <pre><code> with a language class.
func codeWrapper() highlighting.WrapperRenderer {
	return func(w util.BufWriter, ctx highlighting.CodeBlockContext, entering bool) {
		if ctx.Highlighted() {
			return
		}
		lang, _ := ctx.Language()
		if entering {
			_, _ = w.WriteString("<pre><code")
			if len(bytes.TrimSpace(lang)) > 0 {
				_, _ = w.WriteString(` class="language-`)
				_, _ = w.Write(util.EscapeHTML(lang))
				_, _ = w.WriteString(`"`)
			}
			_, _ = w.WriteString(">")
			return
		}
		_, _ = w.WriteString("</code></pre>\n")
	}
}
