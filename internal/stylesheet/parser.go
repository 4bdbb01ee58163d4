package stylesheet

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
)

type parser struct {
	src        string
	i          int
	path       string
	lineStarts []int
}

func parse(src, displayPath string) ([]node, error) {
	p := &parser{src: src, path: displayPath}
	p.lineStarts = append(p.lineStarts, 0)
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			p.lineStarts = append(p.lineStarts, i+1)
		}
	}
	// BOM
	if strings.HasPrefix(p.src, "\uFEFF") {
		p.i = len("\uFEFF")
	}
	return p.block(true)
}

func (p *parser) posAt(off int) Pos {
	line := sort.Search(len(p.lineStarts), func(k int) bool { return p.lineStarts[k] > off }) - 1
	if line < 0 {
		line = 0
	}
	return Pos{Line: line + 1, Column: off - p.lineStarts[line] + 1}
}

func (p *parser) errorf(off int, format string, args ...any) error {
	at := p.posAt(off)
	return errors.CompileError(fmt.Sprintf(format, args...)).
		WithFile(p.path).
		WithPosition(at.Line, at.Column).
		Build()
}

func (p *parser) eof() bool { return p.i >= len(p.src) }

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.src[p.i] {
		case ' ', '\t', '\n', '\r', '\f':
			p.i++
		default:
			return
		}
	}
}

func (p *parser) skipLineComment() {
	for !p.eof() && p.src[p.i] != '\n' {
		p.i++
	}
}

func (p *parser) block(top bool) ([]node, error) {
	var out []node
	for {
		p.skipSpace()
		if p.eof() {
			if !top {
				return nil, p.errorf(p.i, "expected \"}\"")
			}
			return out, nil
		}
		start := p.i
		switch {
		case p.src[p.i] == '}':
			if top {
				return nil, p.errorf(p.i, "unexpected \"}\"")
			}
			p.i++
			return out, nil
		case strings.HasPrefix(p.src[p.i:], "//"):
			p.skipLineComment()
		case strings.HasPrefix(p.src[p.i:], "/*"):
			end := strings.Index(p.src[p.i+2:], "*/")
			if end < 0 {
				return nil, p.errorf(start, "unterminated comment")
			}
			p.i += 2 + end + 2
			out = append(out, &commentNode{base: base{p.posAt(start)}, text: p.src[start:p.i]})
		case p.src[p.i] == ';':
			p.i++
		case p.src[p.i] == '@':
			n, err := p.atRule()
			if err != nil {
				return nil, err
			}
			if n != nil {
				out = append(out, n)
			}
		case p.src[p.i] == '$':
			n, err := p.variable()
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		default:
			n, err := p.ruleOrDecl()
			if err != nil {
				return nil, err
			}
			out = append(out, n...)
		}
	}
}

// chunk reads until an unnested '{', ';' or '}' and returns the text with
// comments removed plus the terminator (0 at end of input). The terminator
// is not consumed.
func (p *parser) chunk() (string, byte, error) {
	var b strings.Builder
	var quote byte
	parens, brackets, interp := 0, 0, 0
	start := p.i
	for !p.eof() {
		c := p.src[p.i]
		if quote != 0 {
			b.WriteByte(c)
			p.i++
			if c == '\\' && !p.eof() {
				b.WriteByte(p.src[p.i])
				p.i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '"' || c == '\'':
			quote = c
		case c == '#' && p.i+1 < len(p.src) && p.src[p.i+1] == '{':
			interp++
			b.WriteString("#{")
			p.i += 2
			continue
		case c == '}' && interp > 0:
			interp--
		case c == '(':
			parens++
		case c == ')':
			if parens > 0 {
				parens--
			}
		case c == '[':
			brackets++
		case c == ']':
			if brackets > 0 {
				brackets--
			}
		case c == '/' && p.i+1 < len(p.src) && p.src[p.i+1] == '*':
			end := strings.Index(p.src[p.i+2:], "*/")
			if end < 0 {
				return "", 0, p.errorf(p.i, "unterminated comment")
			}
			p.i += 2 + end + 2
			continue
		case c == '/' && p.i+1 < len(p.src) && p.src[p.i+1] == '/' && parens == 0 && !p.afterScheme():
			p.skipLineComment()
			continue
		case (c == '{' || c == ';' || c == '}') && parens == 0 && brackets == 0 && interp == 0:
			return b.String(), c, nil
		}
		b.WriteByte(c)
		p.i++
	}
	if quote != 0 {
		return "", 0, p.errorf(start, "unterminated string")
	}
	if interp > 0 {
		return "", 0, p.errorf(start, "unterminated interpolation")
	}
	return b.String(), 0, nil
}

// afterScheme reports whether "//" directly follows a URL scheme such as
// "http:", so that unquoted URLs are not truncated.
func (p *parser) afterScheme() bool {
	j := p.i - 1
	if j < 0 || p.src[j] != ':' {
		return false
	}
	k := j - 1
	for k >= 0 && isIdentByte(p.src[k]) {
		k--
	}
	return k < j-1 && (k < 0 || p.src[k] == ' ' || p.src[k] == '(' || p.src[k] == ',')
}

func isIdentByte(c byte) bool {
	return c == '-' || c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 0x80
}

func (p *parser) ident() string {
	start := p.i
	for !p.eof() && isIdentByte(p.src[p.i]) {
		p.i++
	}
	return p.src[start:p.i]
}

func (p *parser) expectEnd(term byte, what string, at int) error {
	switch term {
	case ';':
		p.i++
		return nil
	case '}', 0:
		return nil
	default:
		return p.errorf(at, "%s does not take a block", what)
	}
}

func (p *parser) variable() (node, error) {
	start := p.i
	p.i++ // $
	name := p.ident()
	if name == "" {
		return nil, p.errorf(start, "expected variable name")
	}
	p.skipSpace()
	if p.eof() || p.src[p.i] != ':' {
		return nil, p.errorf(p.i, "expected \":\" after $%s", name)
	}
	p.i++
	value, term, err := p.chunk()
	if err != nil {
		return nil, err
	}
	if err := p.expectEnd(term, "variable declaration", start); err != nil {
		return nil, err
	}
	n := &varNode{base: base{p.posAt(start)}, name: name}
	value = strings.TrimSpace(value)
	for {
		switch {
		case strings.HasSuffix(value, "!default"):
			n.isDefault = true
			value = strings.TrimSpace(strings.TrimSuffix(value, "!default"))
			continue
		case strings.HasSuffix(value, "!global"):
			n.isGlobal = true
			value = strings.TrimSpace(strings.TrimSuffix(value, "!global"))
			continue
		}
		break
	}
	if value == "" {
		return nil, p.errorf(start, "expected value for $%s", name)
	}
	n.value = value
	return n, nil
}

func (p *parser) ruleOrDecl() ([]node, error) {
	start := p.i
	text, term, err := p.chunk()
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	at := p.posAt(start)

	if term == '{' {
		p.i++
		children, err := p.block(false)
		if err != nil {
			return nil, err
		}
		if text == "" {
			return nil, p.errorf(start, "expected selector")
		}
		if prefix, ok := strings.CutSuffix(text, ":"); ok && !strings.ContainsAny(prefix, " :&.#>+~[") {
			return nestedProperties(prefix, children, p, start)
		}
		return []node{&ruleNode{base: base{at}, selector: text, children: children}}, nil
	}
	if term == ';' {
		p.i++
	}
	if text == "" {
		return nil, nil
	}
	colon := topLevelIndex(text, ':')
	if colon <= 0 {
		return nil, p.errorf(start, "expected \"{\" or \":\" after %q", text)
	}
	prop := strings.TrimSpace(text[:colon])
	value := strings.TrimSpace(text[colon+1:])
	if value == "" {
		return nil, p.errorf(start, "expected value for property %q", prop)
	}
	return []node{&declNode{base: base{at}, prop: prop, value: value}}, nil
}

func nestedProperties(prefix string, children []node, p *parser, start int) ([]node, error) {
	out := make([]node, 0, len(children))
	for _, c := range children {
		d, ok := c.(*declNode)
		if !ok {
			return nil, p.errorf(start, "only properties may be nested under %q", prefix+":")
		}
		out = append(out, &declNode{base: d.base, prop: prefix + "-" + d.prop, value: d.value})
	}
	return out, nil
}

func (p *parser) atRule() (node, error) {
	start := p.i
	at := p.posAt(start)
	p.i++ // @
	name := p.ident()
	if name == "" {
		return nil, p.errorf(start, "expected at-rule name")
	}
	params, term, err := p.chunk()
	if err != nil {
		return nil, err
	}
	params = strings.TrimSpace(params)

	switch name {
	case "import":
		if err := p.expectEnd(term, "@import", start); err != nil {
			return nil, err
		}
		return p.importRule(params, at, start)
	case "use", "forward":
		if err := p.expectEnd(term, "@"+name, start); err != nil {
			return nil, err
		}
		return p.useRule(name, params, at, start)
	case "mixin":
		if term != '{' {
			return nil, p.errorf(start, "@mixin requires a block")
		}
		p.i++
		body, err := p.block(false)
		if err != nil {
			return nil, err
		}
		return p.mixinRule(params, body, at, start)
	case "include":
		n, err := p.includeRule(params, at, start)
		if err != nil {
			return nil, err
		}
		if term == '{' {
			p.i++
			content, err := p.block(false)
			if err != nil {
				return nil, err
			}
			n.content = content
			n.hasBlock = true
			return n, nil
		}
		if err := p.expectEnd(term, "@include", start); err != nil {
			return nil, err
		}
		return n, nil
	case "content":
		if err := p.expectEnd(term, "@content", start); err != nil {
			return nil, err
		}
		return &contentNode{base: base{at}}, nil
	case "debug", "warn", "error":
		if err := p.expectEnd(term, "@"+name, start); err != nil {
			return nil, err
		}
		return &messageNode{base: base{at}, kind: name, value: params}, nil
	case "if", "else", "each", "for", "while", "function", "return", "extend", "at-root":
		return nil, p.errorf(start, "@%s is not supported", name)
	}

	n := &atRuleNode{base: base{at}, name: name, params: params}
	if term == '{' {
		p.i++
		children, err := p.block(false)
		if err != nil {
			return nil, err
		}
		n.children = children
		n.hasBlock = true
		return n, nil
	}
	if err := p.expectEnd(term, "@"+name, start); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *parser) importRule(params string, at Pos, start int) (node, error) {
	parts := splitTopLevel(params, ',')
	targets := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if isPlainCSSImport(part) {
			return &importNode{base: base{at}, raw: params}, nil
		}
		t, ok := unquote(part)
		if !ok {
			return nil, p.errorf(start, "expected quoted import target, got %q", part)
		}
		targets = append(targets, t)
	}
	if len(targets) == 0 {
		return nil, p.errorf(start, "expected import target")
	}
	return &importNode{base: base{at}, targets: targets}, nil
}

// isPlainCSSImport follows Sass: url(), remote URLs, .css files and
// imports carrying media queries stay in the output as CSS imports.
func isPlainCSSImport(part string) bool {
	if strings.HasPrefix(part, "url(") {
		return true
	}
	t, ok := unquote(part)
	if !ok {
		// quoted target followed by a media query
		if q := strings.IndexAny(part[1:], `"'`); q >= 0 && (part[0] == '"' || part[0] == '\'') {
			return true
		}
		return false
	}
	return strings.HasSuffix(t, ".css") || strings.HasPrefix(t, "http://") ||
		strings.HasPrefix(t, "https://") || strings.HasPrefix(t, "//")
}

func (p *parser) useRule(kind, params string, at Pos, start int) (node, error) {
	fields := strings.Fields(params)
	if len(fields) == 0 {
		return nil, p.errorf(start, "expected @%s target", kind)
	}
	target, ok := unquote(fields[0])
	if !ok {
		return nil, p.errorf(start, "expected quoted @%s target", kind)
	}
	n := &useNode{base: base{at}, target: target, namespace: defaultNamespace(target)}
	rest := fields[1:]
	if kind == "forward" {
		n.namespace = "*"
		rest = nil
	}
	if len(rest) >= 2 && rest[0] == "as" {
		n.namespace = rest[1]
		rest = rest[2:]
	}
	if len(rest) > 0 {
		return nil, p.errorf(start, "@%s %s is not supported", kind, strings.Join(rest, " "))
	}
	return n, nil
}

func defaultNamespace(target string) string {
	if mod, ok := strings.CutPrefix(target, "sass:"); ok {
		return mod
	}
	name := path.Base(target)
	name = strings.TrimPrefix(name, "_")
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}

func (p *parser) mixinRule(params string, body []node, at Pos, start int) (node, error) {
	name, args, err := splitCall(params)
	if err != nil {
		return nil, p.errorf(start, "%v", err)
	}
	n := &mixinNode{base: base{at}, name: name, body: body}
	for _, a := range args {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if !strings.HasPrefix(a, "$") {
			return nil, p.errorf(start, "mixin parameter %q must be a variable", a)
		}
		prm := param{name: a[1:]}
		if c := strings.IndexByte(a, ':'); c > 0 {
			prm.name = strings.TrimSpace(a[1:c])
			prm.defaultVal = strings.TrimSpace(a[c+1:])
			prm.hasDefault = true
		}
		n.params = append(n.params, prm)
	}
	return n, nil
}

func (p *parser) includeRule(params string, at Pos, start int) (*includeNode, error) {
	name, args, err := splitCall(params)
	if err != nil {
		return nil, p.errorf(start, "%v", err)
	}
	n := &includeNode{base: base{at}, name: name}
	if dot := strings.IndexByte(name, '.'); dot > 0 {
		n.namespace, n.name = name[:dot], name[dot+1:]
	}
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			n.args = append(n.args, a)
		}
	}
	return n, nil
}

// splitCall splits "name(a, b)" into name and top-level arguments.
func splitCall(s string) (string, []string, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open < 0 {
		if s == "" {
			return "", nil, fmt.Errorf("expected name")
		}
		return s, nil, nil
	}
	if !strings.HasSuffix(s, ")") {
		return "", nil, fmt.Errorf("expected \")\" in %q", s)
	}
	name := strings.TrimSpace(s[:open])
	if name == "" {
		return "", nil, fmt.Errorf("expected name before \"(\"")
	}
	return name, splitTopLevel(s[open+1:len(s)-1], ','), nil
}

// splitTopLevel splits s on sep outside of quotes, parentheses, brackets and interpolation.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	var quote byte
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}

// topLevelIndex finds the first c outside of quotes, parentheses, brackets and interpolation.
func topLevelIndex(s string, c byte) int {
	var quote byte
	depth := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		default:
			if ch == c && depth == 0 {
				return i
			}
		}
	}
	return -1
}

func unquote(s string) (string, bool) {
	if len(s) < 2 {
		return "", false
	}
	q := s[0]
	if (q != '"' && q != '\'') || s[len(s)-1] != q {
		return "", false
	}
	inner := s[1 : len(s)-1]
	if strings.IndexByte(inner, q) >= 0 && !strings.Contains(inner, `\`+string(q)) {
		return "", false
	}
	return strings.ReplaceAll(inner, `\`+string(q), string(q)), true
}
