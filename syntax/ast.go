// Package syntax adapts the tree-sitter JavaScript/TypeScript grammars to a
// small closed set of shapes the key extractor understands.
//
// The extractor never sees tree-sitter nodes. It receives Shapes from
// File.Walk and switches over them exhaustively; expressions inside those
// shapes are converted to the Expr variants below.
package syntax

// Position is a 1-based line and column.
type Position struct {
	Line   int
	Column int
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Expr is one of the expression variants defined in this file.
type Expr interface {
	Pos() Position
	exprNode()
}

type exprBase struct{ P Position }

func (b exprBase) Pos() Position { return b.P }
func (exprBase) exprNode()       {}

// StringLit is a quoted string literal with escapes resolved.
type StringLit struct {
	exprBase
	Value string
}

// TemplateLit is a backtick template. Parts holds the static chunks around
// each ${} substitution; a static template has exactly one part.
type TemplateLit struct {
	exprBase
	Parts   []string
	Dynamic bool
}

// Value returns the template text; only meaningful when !Dynamic.
func (t *TemplateLit) Value() string {
	if len(t.Parts) == 0 {
		return ""
	}
	return t.Parts[0]
}

// Property is one entry of an object literal.
type Property struct {
	Key       string
	Value     Expr
	Shorthand bool
}

// ObjectLit is an object literal. Spreads and methods are dropped.
type ObjectLit struct {
	exprBase
	Props []Property
}

// Get returns the value of the last property named key.
func (o *ObjectLit) Get(key string) (Expr, bool) {
	var (
		v     Expr
		found bool
	)
	for _, p := range o.Props {
		if p.Key == key {
			v, found = p.Value, true
		}
	}
	return v, found
}

// ArrayLit is an array literal.
type ArrayLit struct {
	exprBase
	Elems []Expr
}

// Conditional is a ternary expression.
type Conditional struct {
	exprBase
	Then Expr
	Else Expr
}

// Ident is a bare identifier.
type Ident struct {
	exprBase
	Name string
}

// Member is a property access. Computed accesses with a string index are
// represented the same way.
type Member struct {
	exprBase
	Object   Expr
	Property string
}

// Arrow is an arrow function. A block body with a single return statement
// is reduced to the returned expression.
type Arrow struct {
	exprBase
	Params []string
	Body   Expr
}

// BoolLit is true or false.
type BoolLit struct {
	exprBase
	Value bool
}

// NumberLit keeps the literal text.
type NumberLit struct {
	exprBase
	Text string
}

// CallExpr is a call used as a value, for example the initializer of a
// declarator.
type CallExpr struct {
	exprBase
	Callee string
	Args   []Expr
}

// Unknown is any other expression. Text is the source text.
type Unknown struct {
	exprBase
	Kind string
	Text string
}

// ---------------------------------------------------------------------------
// Binding patterns
// ---------------------------------------------------------------------------

// Pattern is the left-hand side of a declarator.
type Pattern interface{ patternNode() }

// IdentPattern binds a single name.
type IdentPattern struct{ Name string }

// PatternProp is one `key: name` entry of an object pattern. For the
// shorthand form Key and Name are equal.
type PatternProp struct {
	Key  string
	Name string
}

// ObjectPattern is a destructuring object pattern.
type ObjectPattern struct{ Props []PatternProp }

// ArrayPattern is a destructuring array pattern; holes are empty names.
type ArrayPattern struct{ Names []string }

func (IdentPattern) patternNode()  {}
func (ObjectPattern) patternNode() {}
func (ArrayPattern) patternNode()  {}

// ---------------------------------------------------------------------------
// Shapes
// ---------------------------------------------------------------------------

// Shape is one of the shapes emitted by File.Walk.
type Shape interface{ shapeNode() }

// ScopeEnter is emitted before the contents of a block or function.
type ScopeEnter struct{ Pos Position }

// ScopeExit matches the preceding ScopeEnter.
type ScopeExit struct{}

// Declarator is a variable declaration with an initializer. It is emitted
// after the initializer has been walked.
type Declarator struct {
	Pos     Position
	Pattern Pattern
	Init    Expr
}

// Call is a call expression statement or sub-expression.
type Call struct {
	Pos    Position
	Callee string
	Args   []Expr
}

// JSXAttr is an attribute; Value is nil for a bare boolean attribute.
type JSXAttr struct {
	Name  string
	Value Expr
}

// JSXChild is JSXText, JSXExpr or *JSXElement.
type JSXChild interface{ jsxChild() }

// JSXText is raw text between tags.
type JSXText struct{ Text string }

// JSXExpr is a {...} child. Expr is nil for empty or comment-only braces.
type JSXExpr struct{ Expr Expr }

// JSXElement is an element with its attributes and children.
type JSXElement struct {
	Pos         Position
	Name        string
	Attrs       []JSXAttr
	Children    []JSXChild
	SelfClosing bool
}

// Attr returns the named attribute.
func (e *JSXElement) Attr(name string) (JSXAttr, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a, true
		}
	}
	return JSXAttr{}, false
}

// Comment is a line or block comment including its delimiters.
type Comment struct {
	Pos     Position
	EndLine int
	Text    string
}

func (JSXText) jsxChild()     {}
func (JSXExpr) jsxChild()     {}
func (*JSXElement) jsxChild() {}

func (ScopeEnter) shapeNode()  {}
func (ScopeExit) shapeNode()   {}
func (Declarator) shapeNode()  {}
func (Call) shapeNode()        {}
func (*JSXElement) shapeNode() {}
func (Comment) shapeNode()     {}
