package stylesheet

import (
	"strings"
)

type cssNode interface{ empty() bool }

type cssDecl struct {
	prop    string
	value   string
	comment string // set instead of prop/value for comments
}

type cssRule struct {
	selectors []string
	items     []cssDecl
}

func (r *cssRule) empty() bool {
	if len(r.selectors) == 0 {
		return true
	}
	for _, it := range r.items {
		if it.comment == "" {
			return false
		}
	}
	return true
}

type cssAtRule struct {
	name     string
	params   string
	hasBlock bool
	items    []cssDecl
	children []cssNode
}

func (a *cssAtRule) empty() bool {
	if !a.hasBlock {
		return false
	}
	if len(a.items) > 0 {
		return false
	}
	for _, c := range a.children {
		if !c.empty() {
			return false
		}
	}
	return true
}

type cssComment struct{ text string }

func (*cssComment) empty() bool { return false }

type emitter struct {
	b          strings.Builder
	compressed bool
}

func emit(hoisted []string, nodes []cssNode, compressed bool) string {
	e := &emitter{compressed: compressed}
	first := true
	for _, h := range hoisted {
		if !first {
			e.newline()
		}
		e.b.WriteString(h)
		first = false
	}
	afterComment := false
	for _, n := range nodes {
		if !e.visible(n) {
			continue
		}
		if !first {
			e.newline()
			if !afterComment {
				e.newline()
			}
		}
		e.node(n, 0)
		_, afterComment = n.(*cssComment)
		first = false
	}
	if !compressed && e.b.Len() > 0 {
		e.b.WriteByte('\n')
	}
	return e.b.String()
}

func (e *emitter) visible(n cssNode) bool {
	if n.empty() {
		return false
	}
	if c, ok := n.(*cssComment); ok && e.compressed {
		return strings.HasPrefix(c.text, "/*!")
	}
	return true
}

func (e *emitter) indent(depth int) {
	if !e.compressed {
		e.b.WriteString(strings.Repeat("  ", depth))
	}
}

func (e *emitter) newline() {
	if !e.compressed {
		e.b.WriteByte('\n')
	}
}

func (e *emitter) node(n cssNode, depth int) {
	switch n := n.(type) {
	case *cssComment:
		e.indent(depth)
		e.b.WriteString(n.text)
	case *cssRule:
		e.indent(depth)
		sels := make([]string, len(n.selectors))
		for i, s := range n.selectors {
			sels[i] = formatSelector(s, e.compressed)
		}
		if e.compressed {
			e.b.WriteString(strings.Join(sels, ","))
			e.b.WriteByte('{')
		} else {
			e.b.WriteString(strings.Join(sels, ",\n"+strings.Repeat("  ", depth)))
			e.b.WriteString(" {\n")
		}
		e.decls(n.items, depth+1)
		e.indent(depth)
		e.b.WriteByte('}')
	case *cssAtRule:
		e.indent(depth)
		e.b.WriteByte('@')
		e.b.WriteString(n.name)
		if n.params != "" {
			e.b.WriteByte(' ')
			e.b.WriteString(e.params(n.params))
		}
		if !n.hasBlock {
			e.b.WriteByte(';')
			return
		}
		if e.compressed {
			e.b.WriteByte('{')
		} else {
			e.b.WriteString(" {\n")
		}
		e.decls(n.items, depth+1)
		for _, c := range n.children {
			if !e.visible(c) {
				continue
			}
			e.node(c, depth+1)
			e.newline()
		}
		e.indent(depth)
		e.b.WriteByte('}')
	}
}

func (e *emitter) decls(items []cssDecl, depth int) {
	visible := items[:0:0]
	for _, it := range items {
		if it.comment != "" && e.compressed && !strings.HasPrefix(it.comment, "/*!") {
			continue
		}
		visible = append(visible, it)
	}
	for i, it := range visible {
		e.indent(depth)
		if it.comment != "" {
			e.b.WriteString(it.comment)
			e.newline()
			continue
		}
		e.b.WriteString(it.prop)
		if e.compressed {
			e.b.WriteByte(':')
			e.b.WriteString(strings.ReplaceAll(it.value, " !important", "!important"))
			if i < len(visible)-1 {
				e.b.WriteByte(';')
			}
			continue
		}
		e.b.WriteString(": ")
		e.b.WriteString(it.value)
		e.b.WriteString(";\n")
	}
}

// params compacts at-rule parameters in compressed output.
func (e *emitter) params(p string) string {
	p = collapseSpace(p)
	if !e.compressed {
		return p
	}
	return strings.NewReplacer(": ", ":", ", ", ",").Replace(p)
}
