package stylesheet

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesmith/internal/logfields"
)

const maxIncludeDepth = 100

type compiler struct {
	baseDir    string
	loadPaths  []string
	compressed bool
	logger     *slog.Logger

	parsed  map[string]*sheet
	modules map[string]*module
	stack   []string
	charset string
	hoisted []string
	depth   int
}

type scope struct {
	parent     *scope
	vars       map[string]value
	mixins     map[string]*mixinDef
	namespaces map[string]*module
	star       []*module
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, vars: map[string]value{}, mixins: map[string]*mixinDef{}}
}

type module struct {
	scope   *scope
	builtin string // "math" for sass:math
}

type mixinDef struct {
	node    *mixinNode
	closure *scope
	file    *sheet
}

type contentBlock struct {
	nodes []node
	scope *scope
	file  *sheet
	outer *contentBlock
}

type evalCtx struct {
	file        *sheet
	scope       *scope
	selectors   []string
	container   *[]cssNode
	rule        *cssRule
	atRule      *cssAtRule
	media       string
	mediaParent *[]cssNode
	keyframes   bool
	content     *contentBlock
	nested      bool
}

func normName(s string) string { return strings.ReplaceAll(s, "_", "-") }

func (s *scope) lookupVar(name string) (value, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v, true
		}
	}
	for sc := s; sc != nil; sc = sc.parent {
		for _, m := range sc.star {
			if v, ok := m.member(name); ok {
				return v, true
			}
		}
	}
	return value{}, false
}

func (s *scope) root() *scope {
	for s.parent != nil {
		s = s.parent
	}
	return s
}

// setVar assigns to the innermost local scope that already declares name,
// or declares it in s. Globals are only assigned from the root scope or
// with !global.
func (s *scope) setVar(name string, v value, global, isDefault bool) {
	if isDefault {
		if _, ok := s.lookupVar(name); ok {
			return
		}
	}
	if global {
		s.root().vars[name] = v
		return
	}
	for sc := s; sc != nil && sc.parent != nil; sc = sc.parent {
		if _, ok := sc.vars[name]; ok {
			sc.vars[name] = v
			return
		}
	}
	s.vars[name] = v
}

func (s *scope) lookupMixin(name string) (*mixinDef, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if m, ok := sc.mixins[name]; ok {
			return m, true
		}
	}
	for sc := s; sc != nil; sc = sc.parent {
		for _, mod := range sc.star {
			if m, ok := mod.mixin(name); ok {
				return m, true
			}
		}
	}
	return nil, false
}

func (s *scope) namespace(ns string) (*module, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if m, ok := sc.namespaces[ns]; ok {
			return m, true
		}
	}
	return nil, false
}

func (m *module) member(name string) (value, bool) {
	if m.scope == nil {
		return value{}, false
	}
	if v, ok := m.scope.vars[name]; ok {
		return v, true
	}
	for _, f := range m.scope.star {
		if v, ok := f.member(name); ok {
			return v, true
		}
	}
	return value{}, false
}

func (m *module) mixin(name string) (*mixinDef, bool) {
	if m.scope == nil {
		return nil, false
	}
	if d, ok := m.scope.mixins[name]; ok {
		return d, true
	}
	for _, f := range m.scope.star {
		if d, ok := f.mixin(name); ok {
			return d, true
		}
	}
	return nil, false
}

func isPrivate(name string) bool {
	return strings.HasPrefix(name, "-") || strings.HasPrefix(name, "_")
}

func (c *compiler) run(src []byte, absPath string) (string, error) {
	sh, err := c.parseSource(absPath, src)
	if err != nil {
		return "", err
	}
	var out []cssNode
	ctx := &evalCtx{file: sh, scope: newScope(nil), container: &out}
	c.stack = []string{absPath}
	if err := c.evalNodes(ctx, sh.nodes); err != nil {
		return "", err
	}
	hoisted := c.hoisted
	if c.charset != "" {
		hoisted = append([]string{c.charset}, hoisted...)
	}
	return emit(hoisted, out, c.compressed), nil
}

func (c *compiler) parseSource(absPath string, src []byte) (*sheet, error) {
	if sh, ok := c.parsed[absPath]; ok {
		return sh, nil
	}
	display := c.display(absPath)
	nodes, err := parse(string(src), display)
	if err != nil {
		return nil, err
	}
	sh := &sheet{path: display, dir: filepath.Dir(absPath), nodes: nodes}
	c.parsed[absPath] = sh
	return sh, nil
}

func (c *compiler) load(absPath string) (*sheet, error) {
	if sh, ok := c.parsed[absPath]; ok {
		return sh, nil
	}
	b, err := os.ReadFile(absPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "read stylesheet").
			WithFile(c.display(absPath)).
			Build()
	}
	return c.parseSource(absPath, b)
}

func (c *compiler) errAt(file *sheet, at Pos, err error) error {
	if _, ok := errors.AsClassified(err); ok {
		return err
	}
	return errors.CompileError(err.Error()).
		WithFile(file.path).
		WithPosition(at.Line, at.Column).
		Build()
}

func (c *compiler) lookup(ctx *evalCtx) lookupFunc {
	return func(ns, name string) (value, error) {
		name = normName(name)
		if ns == "" {
			v, ok := ctx.scope.lookupVar(name)
			if !ok {
				return value{}, fmt.Errorf("undefined variable $%s", name)
			}
			return v, nil
		}
		m, ok := ctx.scope.namespace(ns)
		if !ok {
			return value{}, fmt.Errorf("there is no module with the namespace %q", ns)
		}
		if m.builtin == "math" && name == "pi" {
			return numberValue(math.Pi, ""), nil
		}
		if isPrivate(name) {
			return value{}, fmt.Errorf("private member $%s can't be accessed from outside its module", name)
		}
		v, ok := m.member(name)
		if !ok {
			return value{}, fmt.Errorf("undefined variable %s.$%s", ns, name)
		}
		return v, nil
	}
}

// interpolate replaces every #{...} in s with the unquoted result of its expression.
func (c *compiler) interpolate(ctx *evalCtx, s string) (string, error) {
	if !strings.Contains(s, "#{") {
		return s, nil
	}
	var b strings.Builder
	for {
		start := strings.Index(s, "#{")
		if start < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		depth := 0
		end := -1
		for k := start + 1; k < len(s); k++ {
			if s[k] == '{' {
				depth++
			} else if s[k] == '}' {
				depth--
				if depth == 0 {
					end = k
					break
				}
			}
		}
		if end < 0 {
			return "", fmt.Errorf("unterminated interpolation in %q", s)
		}
		v, err := c.evalValue(ctx, s[start+2:end])
		if err != nil {
			return "", err
		}
		b.WriteString(s[:start])
		if v.kind == kindString {
			b.WriteString(v.text)
		} else {
			b.WriteString(v.css(c.compressed))
		}
		s = s[end+1:]
	}
}

func (c *compiler) evalValue(ctx *evalCtx, raw string) (value, error) {
	text, err := c.interpolate(ctx, raw)
	if err != nil {
		return value{}, err
	}
	return evalExpr(text, c.lookup(ctx), c.compressed)
}

func (c *compiler) evalNodes(ctx *evalCtx, nodes []node) error {
	for _, n := range nodes {
		if err := c.evalNode(ctx, n); err != nil {
			return c.errAt(ctx.file, n.pos(), err)
		}
	}
	return nil
}

func (c *compiler) evalNode(ctx *evalCtx, n node) error {
	switch n := n.(type) {
	case *commentNode:
		return c.comment(ctx, n)
	case *varNode:
		v, err := c.evalValue(ctx, n.value)
		if err != nil {
			return err
		}
		ctx.scope.setVar(normName(n.name), v, n.isGlobal, n.isDefault)
		return nil
	case *declNode:
		return c.decl(ctx, n)
	case *ruleNode:
		return c.rule(ctx, n)
	case *atRuleNode:
		return c.atRule(ctx, n)
	case *importNode:
		return c.importRule(ctx, n)
	case *useNode:
		return c.use(ctx, n)
	case *mixinNode:
		ctx.scope.mixins[normName(n.name)] = &mixinDef{node: n, closure: ctx.scope, file: ctx.file}
		return nil
	case *includeNode:
		return c.include(ctx, n)
	case *contentNode:
		return c.content(ctx)
	case *messageNode:
		return c.message(ctx, n)
	default:
		return fmt.Errorf("unexpected node %T", n)
	}
}

func (c *compiler) comment(ctx *evalCtx, n *commentNode) error {
	text, err := c.interpolate(ctx, n.text)
	if err != nil {
		return err
	}
	switch {
	case ctx.rule != nil:
		ctx.rule.items = append(ctx.rule.items, cssDecl{comment: text})
	case ctx.atRule != nil:
		ctx.atRule.items = append(ctx.atRule.items, cssDecl{comment: text})
	default:
		*ctx.container = append(*ctx.container, &cssComment{text: text})
	}
	return nil
}

func (c *compiler) decl(ctx *evalCtx, n *declNode) error {
	prop, err := c.interpolate(ctx, n.prop)
	if err != nil {
		return err
	}
	var val string
	if strings.HasPrefix(prop, "--") {
		if val, err = c.interpolate(ctx, n.value); err != nil {
			return err
		}
		val = strings.TrimSpace(val)
	} else {
		v, err := c.evalValue(ctx, n.value)
		if err != nil {
			return err
		}
		val = v.css(c.compressed)
	}
	if val == "" || val == "()" {
		return nil
	}
	d := cssDecl{prop: prop, value: val}
	switch {
	case ctx.rule != nil:
		ctx.rule.items = append(ctx.rule.items, d)
	case ctx.atRule != nil:
		ctx.atRule.items = append(ctx.atRule.items, d)
	default:
		return fmt.Errorf("declarations may only be used within style rules")
	}
	return nil
}

func visibleSelectors(sels []string) []string {
	out := make([]string, 0, len(sels))
	for _, s := range sels {
		if !isPlaceholder(s) {
			out = append(out, s)
		}
	}
	return out
}

func (c *compiler) rule(ctx *evalCtx, n *ruleNode) error {
	text, err := c.interpolate(ctx, n.selector)
	if err != nil {
		return err
	}
	var sels []string
	if ctx.keyframes {
		for _, s := range splitTopLevel(text, ',') {
			sels = append(sels, collapseSpace(s))
		}
	} else if sels, err = resolveSelectors(ctx.selectors, text); err != nil {
		return err
	}
	r := &cssRule{selectors: visibleSelectors(sels)}
	*ctx.container = append(*ctx.container, r)

	child := *ctx
	child.scope = newScope(ctx.scope)
	child.selectors = sels
	child.rule = r
	child.atRule = nil
	child.nested = true
	return c.evalNodes(&child, n.children)
}

func (c *compiler) atRuleParams(ctx *evalCtx, raw string) (string, error) {
	s, err := c.interpolate(ctx, raw)
	if err != nil {
		return "", err
	}
	e := &expr{lookup: c.lookup(ctx), compressed: c.compressed}
	if s, err = e.substitute(s); err != nil {
		return "", err
	}
	return collapseSpace(s), nil
}

func (c *compiler) atRule(ctx *evalCtx, n *atRuleNode) error {
	params, err := c.atRuleParams(ctx, n.params)
	if err != nil {
		return err
	}
	if !n.hasBlock {
		if n.name == "charset" {
			if c.charset == "" {
				c.charset = "@charset " + params + ";"
			}
			return nil
		}
		*ctx.container = append(*ctx.container, &cssAtRule{name: n.name, params: params})
		return nil
	}

	child := *ctx
	child.scope = newScope(ctx.scope)
	child.nested = true
	at := &cssAtRule{name: n.name, params: params, hasBlock: true}

	switch {
	case n.name == "media":
		container := ctx.container
		if ctx.media != "" {
			at.params = ctx.media + " and " + params
			container = ctx.mediaParent
		}
		*container = append(*container, at)
		child.media = at.params
		child.mediaParent = container
		child.container = &at.children
		child.atRule = nil
		child.rule = nil
		if len(ctx.selectors) > 0 {
			r := &cssRule{selectors: visibleSelectors(ctx.selectors)}
			at.children = append(at.children, r)
			child.rule = r
		}
	case strings.HasSuffix(n.name, "keyframes"):
		*ctx.container = append(*ctx.container, at)
		child.container = &at.children
		child.selectors = nil
		child.rule = nil
		child.atRule = nil
		child.keyframes = true
	default:
		*ctx.container = append(*ctx.container, at)
		child.container = &at.children
		child.media = ""
		child.mediaParent = nil
		if len(ctx.selectors) > 0 {
			r := &cssRule{selectors: visibleSelectors(ctx.selectors)}
			at.children = append(at.children, r)
			child.rule = r
			child.atRule = nil
		} else {
			child.rule = nil
			child.atRule = at
		}
	}
	return c.evalNodes(&child, n.children)
}

func (c *compiler) enter(absPath string) error {
	for i, p := range c.stack {
		if p == absPath {
			chain := make([]string, 0, len(c.stack)-i+1)
			for _, q := range c.stack[i:] {
				chain = append(chain, c.display(q))
			}
			chain = append(chain, c.display(absPath))
			return fmt.Errorf("import cycle: %s", strings.Join(chain, " -> "))
		}
	}
	c.stack = append(c.stack, absPath)
	return nil
}

func (c *compiler) leave() { c.stack = c.stack[:len(c.stack)-1] }

func (c *compiler) importRule(ctx *evalCtx, n *importNode) error {
	if n.raw != "" {
		raw, err := c.interpolate(ctx, n.raw)
		if err != nil {
			return err
		}
		stmt := "@import " + collapseSpace(raw) + ";"
		for _, h := range c.hoisted {
			if h == stmt {
				return nil
			}
		}
		c.hoisted = append(c.hoisted, stmt)
		return nil
	}
	for _, target := range n.targets {
		abs, err := c.resolveImport(target, ctx.file.dir)
		if err != nil {
			return err
		}
		sh, err := c.load(abs)
		if err != nil {
			return err
		}
		if err := c.enter(abs); err != nil {
			return err
		}
		imported := *ctx
		imported.file = sh
		err = c.evalNodes(&imported, sh.nodes)
		c.leave()
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) use(ctx *evalCtx, n *useNode) error {
	if ctx.nested {
		return fmt.Errorf("@use rules must be written at the top level")
	}
	if ctx.scope.namespaces == nil {
		ctx.scope.namespaces = map[string]*module{}
	}
	register := func(m *module) error {
		if n.namespace == "*" {
			ctx.scope.star = append(ctx.scope.star, m)
			return nil
		}
		if _, dup := ctx.scope.namespaces[n.namespace]; dup {
			return fmt.Errorf("there's already a module with namespace %q", n.namespace)
		}
		ctx.scope.namespaces[n.namespace] = m
		return nil
	}

	if builtin, ok := strings.CutPrefix(n.target, "sass:"); ok {
		switch builtin {
		case "math", "string", "color", "list", "map", "meta", "selector":
			return register(&module{builtin: builtin})
		}
		return fmt.Errorf("unknown built-in module %q", n.target)
	}

	abs, err := c.resolveImport(n.target, ctx.file.dir)
	if err != nil {
		return err
	}
	m, ok := c.modules[abs]
	if !ok {
		sh, err := c.load(abs)
		if err != nil {
			return err
		}
		if err := c.enter(abs); err != nil {
			return err
		}
		m = &module{scope: newScope(nil)}
		modCtx := &evalCtx{file: sh, scope: m.scope, container: ctx.container}
		err = c.evalNodes(modCtx, sh.nodes)
		c.leave()
		if err != nil {
			return err
		}
		c.modules[abs] = m
	}
	return register(m)
}

var keywordArg = regexp.MustCompile(`^\$([A-Za-z_][\w-]*)\s*:`)

func (c *compiler) include(ctx *evalCtx, n *includeNode) error {
	name := normName(n.name)
	var def *mixinDef
	if n.namespace != "" {
		m, ok := ctx.scope.namespace(n.namespace)
		if !ok {
			return fmt.Errorf("there is no module with the namespace %q", n.namespace)
		}
		if isPrivate(name) {
			return fmt.Errorf("private mixin %s can't be used from outside its module", n.name)
		}
		if def, ok = m.mixin(name); !ok {
			return fmt.Errorf("undefined mixin %s.%s", n.namespace, n.name)
		}
	} else {
		var ok bool
		if def, ok = ctx.scope.lookupMixin(name); !ok {
			return fmt.Errorf("undefined mixin %s", n.name)
		}
	}
	if c.depth >= maxIncludeDepth {
		return fmt.Errorf("maximum mixin nesting depth exceeded in %s", n.name)
	}

	var positional []value
	keyword := map[string]value{}
	for _, raw := range n.args {
		if m := keywordArg.FindStringSubmatch(raw); m != nil {
			v, err := c.evalValue(ctx, raw[len(m[0]):])
			if err != nil {
				return err
			}
			keyword[normName(m[1])] = v
			continue
		}
		if len(keyword) > 0 {
			return fmt.Errorf("positional arguments must come before keyword arguments")
		}
		v, err := c.evalValue(ctx, raw)
		if err != nil {
			return err
		}
		positional = append(positional, v)
	}
	params := def.node.params
	if len(positional) > len(params) {
		return fmt.Errorf("mixin %s takes %d arguments but %d were passed", n.name, len(params), len(positional))
	}

	body := *ctx
	body.scope = newScope(def.closure)
	body.file = def.file
	body.nested = true
	body.content = nil
	if n.hasBlock {
		body.content = &contentBlock{nodes: n.content, scope: ctx.scope, file: ctx.file, outer: ctx.content}
	}
	for i, p := range params {
		pname := normName(p.name)
		switch v, kw := keyword[pname]; {
		case i < len(positional):
			body.scope.vars[pname] = positional[i]
		case kw:
			body.scope.vars[pname] = v
			delete(keyword, pname)
		case p.hasDefault:
			dv, err := c.evalValue(&body, p.defaultVal)
			if err != nil {
				return err
			}
			body.scope.vars[pname] = dv
		default:
			return fmt.Errorf("missing argument $%s for mixin %s", p.name, n.name)
		}
	}
	for k := range keyword {
		return fmt.Errorf("mixin %s has no argument named $%s", n.name, k)
	}

	c.depth++
	defer func() { c.depth-- }()
	return c.evalNodes(&body, def.node.body)
}

func (c *compiler) content(ctx *evalCtx) error {
	if ctx.content == nil {
		return nil
	}
	child := *ctx
	child.scope = newScope(ctx.content.scope)
	child.file = ctx.content.file
	child.content = ctx.content.outer
	return c.evalNodes(&child, ctx.content.nodes)
}

func (c *compiler) message(ctx *evalCtx, n *messageNode) error {
	v, err := c.evalValue(ctx, n.value)
	if err != nil {
		return err
	}
	msg := v.css(false)
	if v.kind == kindString {
		msg = v.text
	}
	attrs := []any{logfields.File(ctx.file.path), slog.Int("line", n.at.Line)}
	switch n.kind {
	case "debug":
		c.logger.Debug("@debug: "+msg, attrs...)
	case "warn":
		c.logger.Warn("@warn: "+msg, attrs...)
	default:
		return stderrors.New(msg)
	}
	return nil
}
