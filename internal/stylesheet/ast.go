package stylesheet

// Pos is a 1-based source position.
type Pos struct {
	Line   int
	Column int
}

type node interface {
	pos() Pos
}

type base struct{ at Pos }

func (b base) pos() Pos { return b.at }

// sheet is a parsed source file.
type sheet struct {
	path  string // display path used in error messages
	dir   string // directory used to resolve relative imports
	nodes []node
}

type declNode struct {
	base
	prop  string
	value string
}

type varNode struct {
	base
	name      string // without "$"
	value     string
	isDefault bool
	isGlobal  bool
}

type ruleNode struct {
	base
	selector string
	children []node
}

type atRuleNode struct {
	base
	name     string // without "@"
	params   string
	children []node // nil when the at-rule has no block
	hasBlock bool
}

type commentNode struct {
	base
	text string // including /* */
}

type importNode struct {
	base
	targets []string // unquoted
	raw     string   // original params, for plain CSS imports
}

type useNode struct {
	base
	target    string
	namespace string // "*" merges members into the current scope
}

type mixinNode struct {
	base
	name   string
	params []param
	body   []node
}

type param struct {
	name       string
	defaultVal string
	hasDefault bool
}

type includeNode struct {
	base
	namespace string
	name      string
	args      []string
	content   []node
	hasBlock  bool
}

type contentNode struct {
	base
}

type messageNode struct {
	base
	kind  string // debug, warn, error
	value string
}
