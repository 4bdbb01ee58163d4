package stylesheet

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

type valueKind int

const (
	kindString valueKind = iota
	kindNumber
	kindList
)

// value is an evaluated SassScript value.
type value struct {
	kind   valueKind
	num    float64
	unit   string
	text   string
	quoted bool
	items  []value
	seps   []string // len(items)-1 separators: " ", "", ",", "/"
}

func numberValue(n float64, unit string) value {
	return value{kind: kindNumber, num: n, unit: unit}
}

func stringValue(text string, quoted bool) value {
	return value{kind: kindString, text: text, quoted: quoted}
}

func listValue(items []value, seps []string) value {
	if len(items) == 1 {
		return items[0]
	}
	return value{kind: kindList, items: items, seps: seps}
}

func (v value) isNumber() bool { return v.kind == kindNumber }

func (v value) truthy() bool {
	if v.kind == kindString && !v.quoted {
		return v.text != "false" && v.text != "null"
	}
	return true
}

func (v value) css(compressed bool) string {
	switch v.kind {
	case kindNumber:
		return formatNumber(v.num, compressed) + v.unit
	case kindList:
		var b strings.Builder
		for i, it := range v.items {
			if i > 0 {
				sep := v.seps[i-1]
				if sep == "," && !compressed {
					sep = ", "
				}
				b.WriteString(sep)
			}
			b.WriteString(it.css(compressed))
		}
		return b.String()
	default:
		if v.quoted {
			return quoteString(v.text)
		}
		return v.text
	}
}

func formatNumber(n float64, compressed bool) string {
	r := math.Round(n*1e10) / 1e10
	if r == 0 {
		r = 0
	}
	s := strconv.FormatFloat(r, 'f', -1, 64)
	if compressed {
		if rest, ok := strings.CutPrefix(s, "0."); ok {
			s = "." + rest
		} else if rest, ok := strings.CutPrefix(s, "-0."); ok {
			s = "-." + rest
		}
	}
	return s
}

func quoteString(s string) string {
	if strings.Contains(s, `"`) && !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

type tokKind int

const (
	tNumber tokKind = iota
	tString
	tWord
	tVar
	tOp
	tComma
	tLParen
	tRParen
	tFunc
)

type token struct {
	kind   tokKind
	text   string
	num    float64
	unit   string
	ns     string
	args   string // raw arguments of a function call
	space  bool   // whitespace precedes the token
	quoted bool
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func tokenize(s string) ([]token, error) {
	var toks []token
	space := false
	i := 0
	operandBefore := func() bool {
		if len(toks) == 0 {
			return false
		}
		switch toks[len(toks)-1].kind {
		case tOp, tComma, tLParen:
			return false
		}
		return true
	}
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			space = true
			i++
			continue
		case c == '"' || c == '\'':
			j := i + 1
			var b strings.Builder
			for j < len(s) && s[j] != c {
				if s[j] == '\\' && j+1 < len(s) && s[j+1] == c {
					j++
				}
				b.WriteByte(s[j])
				j++
			}
			if j >= len(s) {
				return nil, fmt.Errorf("unterminated string in %q", s)
			}
			toks = append(toks, token{kind: tString, text: b.String(), quoted: true, space: space})
			i = j + 1
		case c == ',':
			toks = append(toks, token{kind: tComma, text: ",", space: space})
			i++
		case c == '(':
			toks = append(toks, token{kind: tLParen, text: "(", space: space})
			i++
		case c == ')':
			toks = append(toks, token{kind: tRParen, text: ")", space: space})
			i++
		case c == '$':
			j := i + 1
			for j < len(s) && isIdentByte(s[j]) {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("expected variable name in %q", s)
			}
			toks = append(toks, token{kind: tVar, text: s[i+1 : j], space: space})
			i = j
		case isDigit(c) || c == '.' && i+1 < len(s) && isDigit(s[i+1]):
			t, n := scanNumber(s[i:])
			t.space = space
			toks = append(toks, t)
			i += n
		case c == '-' && i+1 < len(s) && (isDigit(s[i+1]) || s[i+1] == '.' && i+2 < len(s) && isDigit(s[i+2])) &&
			(!operandBefore() || space):
			t, n := scanNumber(s[i+1:])
			t.num = -t.num
			t.space = space
			toks = append(toks, t)
			i += n + 1
		case c == '-' && i+1 < len(s) && (isIdentStart(s[i+1]) || s[i+1] == '-') && (!operandBefore() || space):
			t, n, err := scanWord(s, i)
			if err != nil {
				return nil, err
			}
			t.space = space
			toks = append(toks, t)
			i += n
		case c == '+' || c == '-' || c == '*' || c == '/':
			toks = append(toks, token{kind: tOp, text: string(c), space: space})
			i++
		default:
			t, n, err := scanWord(s, i)
			if err != nil {
				return nil, err
			}
			t.space = space
			toks = append(toks, t)
			i += n
		}
		space = false
	}
	return toks, nil
}

func scanNumber(s string) (token, int) {
	j := 0
	for j < len(s) && isDigit(s[j]) {
		j++
	}
	if j+1 < len(s) && s[j] == '.' && isDigit(s[j+1]) {
		j++
		for j < len(s) && isDigit(s[j]) {
			j++
		}
	}
	n, _ := strconv.ParseFloat(s[:j], 64)
	k := j
	if k < len(s) && s[k] == '%' {
		k++
	} else {
		for k < len(s) && (isIdentStart(s[k]) || k > j && (isDigit(s[k]) || s[k] == '-' && k+1 < len(s) && isIdentStart(s[k+1]))) {
			k++
		}
	}
	return token{kind: tNumber, num: n, unit: s[j:k], text: s[:k]}, k
}

func isWordStop(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '"', '\'', ',', '(', ')', '$', '*', '/':
		return true
	}
	return false
}

// scanWord reads an identifier-like word starting at s[i]. A word directly
// followed by "(" becomes a function call; "ns.$name" becomes a namespaced
// variable reference.
func scanWord(s string, i int) (token, int, error) {
	j := i + 1
	for j < len(s) && !isWordStop(s[j]) {
		if s[j] == '.' && j+1 < len(s) && s[j+1] == '$' {
			break
		}
		if s[j] == '+' && isIdentWord(s[i:j]) {
			break
		}
		j++
	}
	word := s[i:j]
	if j+1 < len(s) && s[j] == '.' && s[j+1] == '$' {
		k := j + 2
		for k < len(s) && isIdentByte(s[k]) {
			k++
		}
		return token{kind: tVar, ns: word, text: s[j+2 : k]}, k - i, nil
	}
	if j < len(s) && s[j] == '(' {
		end, err := matchParen(s, j)
		if err != nil {
			return token{}, 0, err
		}
		name, ns := word, ""
		if dot := strings.IndexByte(word, '.'); dot > 0 {
			ns, name = word[:dot], word[dot+1:]
		}
		return token{kind: tFunc, text: name, ns: ns, args: s[j+1 : end]}, end + 1 - i, nil
	}
	return token{kind: tWord, text: word}, j - i, nil
}

func isIdentWord(w string) bool {
	for i := 0; i < len(w); i++ {
		if !isIdentByte(w[i]) {
			return false
		}
	}
	return w != ""
}

func matchParen(s string, open int) (int, error) {
	depth := 0
	var quote byte
	for k := open; k < len(s); k++ {
		c := s[k]
		if quote != 0 {
			if c == '\\' {
				k++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return k, nil
			}
		}
	}
	return 0, fmt.Errorf("expected \")\" in %q", s)
}

// lookupFunc resolves a variable, optionally in a module namespace.
type lookupFunc func(ns, name string) (value, error)

type expr struct {
	toks       []token
	pos        int
	strict     bool
	lookup     lookupFunc
	compressed bool
}

// evalExpr evaluates a SassScript expression. Arithmetic outside of
// parentheses is lenient: operands that cannot be combined are kept as
// written.
func evalExpr(src string, lookup lookupFunc, compressed bool) (value, error) {
	toks, err := tokenize(src)
	if err != nil {
		return value{}, err
	}
	if len(toks) == 0 {
		return stringValue("", false), nil
	}
	e := &expr{toks: toks, lookup: lookup, compressed: compressed}
	v, err := e.commaList()
	if err != nil {
		return value{}, err
	}
	if e.pos < len(e.toks) {
		return value{}, fmt.Errorf("unexpected %q in %q", e.toks[e.pos].text, src)
	}
	return v, nil
}

func (e *expr) peek() (token, bool) {
	if e.pos >= len(e.toks) {
		return token{}, false
	}
	return e.toks[e.pos], true
}

func (e *expr) commaList() (value, error) {
	var items []value
	var seps []string
	for {
		v, err := e.spaceList()
		if err != nil {
			return value{}, err
		}
		items = append(items, v)
		t, ok := e.peek()
		if !ok || t.kind != tComma {
			break
		}
		e.pos++
		seps = append(seps, ",")
		if t, ok := e.peek(); !ok || t.kind == tRParen {
			break
		}
	}
	return listValue(items, seps), nil
}

func (e *expr) spaceList() (value, error) {
	var items []value
	var seps []string
	for {
		t, ok := e.peek()
		if !ok || t.kind == tComma || t.kind == tRParen {
			break
		}
		if len(items) > 0 {
			if t.space {
				seps = append(seps, " ")
			} else {
				seps = append(seps, "")
			}
		}
		v, err := e.sum()
		if err != nil {
			return value{}, err
		}
		items = append(items, v)
	}
	if len(items) == 0 {
		return value{}, fmt.Errorf("expected expression")
	}
	return listValue(items, seps), nil
}

// binaryMinus reports whether the "-" at the current position is a
// subtraction rather than the sign of the next list element.
func (e *expr) binaryMinus() bool {
	t := e.toks[e.pos]
	if e.pos+1 >= len(e.toks) {
		return false
	}
	next := e.toks[e.pos+1]
	return !(t.space && !next.space)
}

func (e *expr) sum() (value, error) {
	left, err := e.product()
	if err != nil {
		return value{}, err
	}
	for {
		t, ok := e.peek()
		if !ok || t.kind != tOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		if t.text == "-" && !e.binaryMinus() {
			return left, nil
		}
		e.pos++
		right, err := e.product()
		if err != nil {
			return value{}, err
		}
		if left, err = e.add(left, right, t.text); err != nil {
			return value{}, err
		}
	}
}

// product evaluates "*" and "/". Outside of parentheses "/" only divides
// when an operand is a variable, a function result, a parenthesized
// expression or the result of another operation; "12px/1.5" stays a
// slash-separated value.
func (e *expr) product() (value, error) {
	computed := e.computedOperand()
	left, err := e.unary()
	if err != nil {
		return value{}, err
	}
	for {
		t, ok := e.peek()
		if !ok || t.kind != tOp || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		e.pos++
		rightComputed := e.computedOperand()
		right, err := e.unary()
		if err != nil {
			return value{}, err
		}
		if t.text == "*" {
			left, err = e.mul(left, right)
			computed = true
		} else {
			computed = computed || rightComputed
			left, err = e.div(left, right, computed)
		}
		if err != nil {
			return value{}, err
		}
	}
}

// computedOperand reports whether the operand starting at the current
// position is something other than a plain literal.
func (e *expr) computedOperand() bool {
	for i := e.pos; i < len(e.toks); i++ {
		switch t := e.toks[i]; t.kind {
		case tOp:
			if t.text != "-" && t.text != "+" {
				return false
			}
		case tVar, tFunc, tLParen:
			return true
		default:
			return false
		}
	}
	return false
}

func (e *expr) unary() (value, error) {
	t, ok := e.peek()
	if !ok {
		return value{}, fmt.Errorf("expected expression")
	}
	if t.kind == tOp && (t.text == "-" || t.text == "+") {
		e.pos++
		v, err := e.unary()
		if err != nil {
			return value{}, err
		}
		if t.text == "+" {
			return v, nil
		}
		if v.isNumber() {
			v.num = -v.num
			return v, nil
		}
		return stringValue("-"+v.css(e.compressed), false), nil
	}
	return e.primary()
}

func (e *expr) primary() (value, error) {
	t, ok := e.peek()
	if !ok {
		return value{}, fmt.Errorf("expected expression")
	}
	e.pos++
	switch t.kind {
	case tNumber:
		return numberValue(t.num, t.unit), nil
	case tString:
		return stringValue(t.text, true), nil
	case tWord:
		return stringValue(t.text, false), nil
	case tVar:
		return e.lookup(t.ns, t.text)
	case tFunc:
		return e.call(t)
	case tLParen:
		if n, ok := e.peek(); ok && n.kind == tRParen {
			e.pos++
			return stringValue("()", false), nil
		}
		outer := e.strict
		e.strict = true
		v, err := e.commaList()
		e.strict = outer
		if err != nil {
			return value{}, err
		}
		if n, ok := e.peek(); !ok || n.kind != tRParen {
			return value{}, fmt.Errorf("expected \")\"")
		}
		e.pos++
		return v, nil
	default:
		return value{}, fmt.Errorf("unexpected %q", t.text)
	}
}

func compatible(a, b value) bool {
	return a.unit == b.unit || a.unit == "" || b.unit == ""
}

func pickUnit(a, b value) string {
	if a.unit != "" {
		return a.unit
	}
	return b.unit
}

func (e *expr) literal(a value, op string, b value) value {
	return stringValue(a.css(e.compressed)+" "+op+" "+b.css(e.compressed), false)
}

func (e *expr) add(a, b value, op string) (value, error) {
	if a.isNumber() && b.isNumber() {
		if !compatible(a, b) {
			if e.strict {
				return value{}, fmt.Errorf("incompatible units %s and %s", a.unit, b.unit)
			}
			return e.literal(a, op, b), nil
		}
		if op == "+" {
			return numberValue(a.num+b.num, pickUnit(a, b)), nil
		}
		return numberValue(a.num-b.num, pickUnit(a, b)), nil
	}
	if op == "-" {
		return stringValue(a.css(e.compressed)+"-"+b.css(e.compressed), false), nil
	}
	text := func(v value) string {
		if v.kind == kindString {
			return v.text
		}
		return v.css(e.compressed)
	}
	quoted := a.quoted || a.kind != kindString && b.quoted
	return stringValue(text(a)+text(b), quoted), nil
}

func (e *expr) mul(a, b value) (value, error) {
	if a.isNumber() && b.isNumber() && (a.unit == "" || b.unit == "") {
		return numberValue(a.num*b.num, pickUnit(a, b)), nil
	}
	if e.strict {
		return value{}, fmt.Errorf("undefined operation %s * %s", a.css(false), b.css(false))
	}
	return e.literal(a, "*", b), nil
}

func (e *expr) div(a, b value, computed bool) (value, error) {
	if !e.strict && !computed {
		return value{kind: kindList, items: []value{a, b}, seps: []string{"/"}}, nil
	}
	return divide(a, b)
}

func divide(a, b value) (value, error) {
	if !a.isNumber() || !b.isNumber() {
		return value{kind: kindList, items: []value{a, b}, seps: []string{"/"}}, nil
	}
	if b.num == 0 {
		return value{}, fmt.Errorf("division by zero")
	}
	switch {
	case a.unit == b.unit:
		return numberValue(a.num/b.num, ""), nil
	case b.unit == "":
		return numberValue(a.num/b.num, a.unit), nil
	default:
		return value{}, fmt.Errorf("incompatible units %s and %s", a.unit, b.unit)
	}
}

// rawFunctions keep their arguments as written apart from variable substitution.
var rawFunctions = map[string]bool{
	"calc": true, "var": true, "env": true, "clamp": true, "format": true,
	"local": true, "attr": true, "counter": true, "counters": true,
	"element": true, "expression": true,
}

var varRef = regexp.MustCompile(`(?:([A-Za-z_][\w-]*)\.)?\$([A-Za-z_][\w-]*)`)

func (e *expr) substitute(raw string) (string, error) {
	var firstErr error
	out := varRef.ReplaceAllStringFunc(raw, func(m string) string {
		sub := varRef.FindStringSubmatch(m)
		v, err := e.lookup(sub[1], sub[2])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return m
		}
		return v.css(e.compressed)
	})
	return out, firstErr
}

func (e *expr) rawCall(name, args string) (value, error) {
	s, err := e.substitute(args)
	if err != nil {
		return value{}, err
	}
	return stringValue(name+"("+s+")", false), nil
}

func (e *expr) call(t token) (value, error) {
	name := t.text
	if t.ns != "" {
		name = t.ns + "." + t.text
	}
	lower := strings.ToLower(name)
	if rawFunctions[lower] {
		return e.rawCall(name, t.args)
	}
	if lower == "url" {
		a := strings.TrimSpace(t.args)
		if !strings.HasPrefix(a, "$") && !strings.HasPrefix(a, `"`) && !strings.HasPrefix(a, "'") {
			return e.rawCall(name, t.args)
		}
	}

	var args []value
	if strings.TrimSpace(t.args) != "" {
		for _, raw := range splitTopLevel(t.args, ',') {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			v, err := evalExpr(raw, e.lookup, e.compressed)
			if err != nil {
				return value{}, err
			}
			args = append(args, v)
		}
	}

	if v, ok, err := builtin(lower, args, e.compressed); ok || err != nil {
		return v, err
	}
	if lower == "min" || lower == "max" {
		return e.rawCall(name, t.args)
	}
	if t.ns != "" {
		return value{}, fmt.Errorf("undefined function %s()", name)
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.css(e.compressed)
	}
	sep := ", "
	if e.compressed {
		sep = ","
	}
	return stringValue(name+"("+strings.Join(parts, sep)+")", false), nil
}

func oneNumber(name string, args []value) (value, error) {
	if len(args) != 1 || !args[0].isNumber() {
		return value{}, fmt.Errorf("%s() expects a single number", name)
	}
	return args[0], nil
}

// builtin evaluates the supported Sass functions. ok is false when name is
// not a Sass function and should be emitted as a CSS function call.
func builtin(name string, args []value, compressed bool) (value, bool, error) {
	short := name
	if i := strings.IndexByte(name, '.'); i > 0 {
		short = name[i+1:]
	}
	switch name {
	case "math.div":
		if len(args) != 2 {
			return value{}, true, fmt.Errorf("math.div() expects 2 arguments")
		}
		v, err := divide(args[0], args[1])
		return v, true, err
	case "percentage", "math.percentage":
		n, err := oneNumber(short, args)
		if err != nil {
			return value{}, true, err
		}
		if n.unit != "" {
			return value{}, true, fmt.Errorf("percentage() expects a unitless number, got %s", n.css(false))
		}
		return numberValue(n.num*100, "%"), true, nil
	case "round", "ceil", "floor", "abs", "math.round", "math.ceil", "math.floor", "math.abs":
		n, err := oneNumber(short, args)
		if err != nil {
			return value{}, true, err
		}
		fn := map[string]func(float64) float64{"round": math.Round, "ceil": math.Ceil, "floor": math.Floor, "abs": math.Abs}[short]
		return numberValue(fn(n.num), n.unit), true, nil
	case "min", "max", "math.min", "math.max":
		if len(args) == 0 {
			return value{}, true, fmt.Errorf("%s() expects at least one argument", short)
		}
		best := args[0]
		for _, a := range args {
			if !a.isNumber() || !compatible(a, best) {
				return value{}, false, nil
			}
			if short == "min" && a.num < best.num || short == "max" && a.num > best.num {
				best = numberValue(a.num, pickUnit(a, best))
			}
		}
		return best, true, nil
	case "unquote", "string.unquote":
		if len(args) != 1 {
			return value{}, true, fmt.Errorf("unquote() expects 1 argument")
		}
		v := args[0]
		if v.kind == kindString {
			v.quoted = false
		}
		return v, true, nil
	case "quote", "string.quote":
		if len(args) != 1 {
			return value{}, true, fmt.Errorf("quote() expects 1 argument")
		}
		if args[0].kind == kindString {
			return stringValue(args[0].text, true), true, nil
		}
		return stringValue(args[0].css(compressed), true), true, nil
	case "if":
		if len(args) != 3 {
			return value{}, true, fmt.Errorf("if() expects 3 arguments")
		}
		if args[0].truthy() {
			return args[1], true, nil
		}
		return args[2], true, nil
	case "lighten", "darken":
		if len(args) != 2 || !args[1].isNumber() {
			return value{}, true, fmt.Errorf("%s() expects a color and an amount", name)
		}
		c, ok := parseHexColor(args[0])
		if !ok {
			return value{}, true, fmt.Errorf("%s() expects a hex color, got %s", name, args[0].css(false))
		}
		amount := args[1].num
		if name == "darken" {
			amount = -amount
		}
		return stringValue(c.adjustLightness(amount).hex(), false), true, nil
	case "rgba":
		if len(args) != 2 {
			return value{}, false, nil
		}
		c, ok := parseHexColor(args[0])
		if !ok || !args[1].isNumber() {
			return value{}, false, nil
		}
		sep := ", "
		if compressed {
			sep = ","
		}
		return stringValue(fmt.Sprintf("rgba(%d%s%d%s%d%s%s)", c.r, sep, c.g, sep, c.b, sep, args[1].css(compressed)), false), true, nil
	}
	if strings.Contains(name, ".") {
		return value{}, true, fmt.Errorf("undefined function %s()", name)
	}
	return value{}, false, nil
}

type rgb struct{ r, g, b int }

func parseHexColor(v value) (rgb, bool) {
	if v.kind != kindString || v.quoted || !strings.HasPrefix(v.text, "#") {
		return rgb{}, false
	}
	h := v.text[1:]
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return rgb{}, false
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return rgb{}, false
	}
	return rgb{int(n >> 16 & 0xff), int(n >> 8 & 0xff), int(n & 0xff)}, true
}

func (c rgb) hex() string { return fmt.Sprintf("#%02x%02x%02x", c.r, c.g, c.b) }

// adjustLightness shifts HSL lightness by amount percentage points.
func (c rgb) adjustLightness(amount float64) rgb {
	r, g, b := float64(c.r)/255, float64(c.g)/255, float64(c.b)/255
	mx, mn := math.Max(r, math.Max(g, b)), math.Min(r, math.Min(g, b))
	l := (mx + mn) / 2
	var h, s float64
	if d := mx - mn; d != 0 {
		if l > 0.5 {
			s = d / (2 - mx - mn)
		} else {
			s = d / (mx + mn)
		}
		switch mx {
		case r:
			h = (g - b) / d
			if g < b {
				h += 6
			}
		case g:
			h = (b-r)/d + 2
		default:
			h = (r-g)/d + 4
		}
		h /= 6
	}
	l = math.Min(1, math.Max(0, l+amount/100))
	if s == 0 {
		v := int(math.Round(l * 255))
		return rgb{v, v, v}
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	conv := func(t float64) int {
		if t < 0 {
			t++
		}
		if t > 1 {
			t--
		}
		var v float64
		switch {
		case t < 1.0/6:
			v = p + (q-p)*6*t
		case t < 0.5:
			v = q
		case t < 2.0/3:
			v = p + (q-p)*(2.0/3-t)*6
		default:
			v = p
		}
		return int(math.Round(v * 255))
	}
	return rgb{conv(h + 1.0/3), conv(h), conv(h - 1.0/3)}
}
