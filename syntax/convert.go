package syntax

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// converter turns tree-sitter nodes into Expr, Pattern and JSX values.
type converter struct {
	src []byte
}

func (c *converter) text(n *sitter.Node) string {
	return n.Content(c.src)
}

// namedChildren skips comments, which tree-sitter attaches anywhere.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		ch := n.NamedChild(i)
		if ch == nil || ch.Type() == "comment" {
			continue
		}
		out = append(out, ch)
	}
	return out
}

func (c *converter) expr(n *sitter.Node) Expr {
	if n == nil {
		return &Unknown{Kind: "empty"}
	}
	b := exprBase{P: pos(n)}

	switch n.Type() {
	case "string":
		return &StringLit{exprBase: b, Value: unquote(c.text(n))}

	case "template_string":
		return c.template(n)

	case "object":
		return c.object(n)

	case "array":
		arr := &ArrayLit{exprBase: b}
		for _, ch := range namedChildren(n) {
			arr.Elems = append(arr.Elems, c.expr(ch))
		}
		return arr

	case "ternary_expression":
		return &Conditional{
			exprBase: b,
			Then:     c.expr(n.ChildByFieldName("consequence")),
			Else:     c.expr(n.ChildByFieldName("alternative")),
		}

	case "identifier", "shorthand_property_identifier", "property_identifier", "this":
		return &Ident{exprBase: b, Name: c.text(n)}

	case "member_expression":
		return &Member{
			exprBase: b,
			Object:   c.expr(n.ChildByFieldName("object")),
			Property: c.text(n.ChildByFieldName("property")),
		}

	case "subscript_expression":
		idx := c.expr(n.ChildByFieldName("index"))
		if s, ok := idx.(*StringLit); ok {
			return &Member{exprBase: b, Object: c.expr(n.ChildByFieldName("object")), Property: s.Value}
		}
		return &Unknown{exprBase: b, Kind: n.Type(), Text: c.text(n)}

	case "arrow_function":
		return c.arrow(n)

	case "true":
		return &BoolLit{exprBase: b, Value: true}
	case "false":
		return &BoolLit{exprBase: b, Value: false}

	case "number":
		return &NumberLit{exprBase: b, Text: c.text(n)}

	case "call_expression":
		fn := n.ChildByFieldName("function")
		if fn == nil {
			break
		}
		return &CallExpr{exprBase: b, Callee: c.calleeName(fn), Args: c.args(n.ChildByFieldName("arguments"))}

	case "parenthesized_expression", "await_expression", "as_expression",
		"satisfies_expression", "non_null_expression":
		if kids := namedChildren(n); len(kids) > 0 {
			return c.expr(kids[0])
		}

	case "type_assertion":
		if kids := namedChildren(n); len(kids) > 0 {
			return c.expr(kids[len(kids)-1])
		}
	}

	return &Unknown{exprBase: b, Kind: n.Type(), Text: c.text(n)}
}

func (c *converter) template(n *sitter.Node) Expr {
	t := &TemplateLit{exprBase: exprBase{P: pos(n)}}
	start := n.StartByte() + 1 // opening backtick
	end := n.EndByte() - 1
	if end < start {
		end = start
	}

	cursor := start
	for i := 0; i < int(n.NamedChildCount()); i++ {
		ch := n.NamedChild(i)
		if ch == nil || ch.Type() != "template_substitution" {
			continue
		}
		t.Dynamic = true
		t.Parts = append(t.Parts, unescape(string(c.src[cursor:ch.StartByte()])))
		cursor = ch.EndByte()
	}
	t.Parts = append(t.Parts, unescape(string(c.src[cursor:end])))
	return t
}

func (c *converter) object(n *sitter.Node) Expr {
	obj := &ObjectLit{exprBase: exprBase{P: pos(n)}}
	for _, ch := range namedChildren(n) {
		switch ch.Type() {
		case "pair":
			key := c.propertyKey(ch.ChildByFieldName("key"))
			if key == "" {
				continue
			}
			obj.Props = append(obj.Props, Property{Key: key, Value: c.expr(ch.ChildByFieldName("value"))})
		case "shorthand_property_identifier":
			name := c.text(ch)
			obj.Props = append(obj.Props, Property{
				Key:       name,
				Value:     &Ident{exprBase: exprBase{P: pos(ch)}, Name: name},
				Shorthand: true,
			})
		}
	}
	return obj
}

func (c *converter) propertyKey(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "property_identifier", "number", "private_property_identifier":
		return c.text(n)
	case "string":
		return unquote(c.text(n))
	case "computed_property_name":
		if kids := namedChildren(n); len(kids) == 1 {
			switch v := c.expr(kids[0]).(type) {
			case *StringLit:
				return v.Value
			case *TemplateLit:
				if !v.Dynamic {
					return v.Value()
				}
			}
		}
	}
	return ""
}

func (c *converter) arrow(n *sitter.Node) Expr {
	a := &Arrow{exprBase: exprBase{P: pos(n)}}
	if p := n.ChildByFieldName("parameter"); p != nil {
		a.Params = []string{c.text(p)}
	} else if ps := n.ChildByFieldName("parameters"); ps != nil {
		for _, p := range namedChildren(ps) {
			a.Params = append(a.Params, c.paramName(p))
		}
	}

	body := n.ChildByFieldName("body")
	if body != nil && body.Type() == "statement_block" {
		stmts := namedChildren(body)
		if len(stmts) == 1 && stmts[0].Type() == "return_statement" {
			if kids := namedChildren(stmts[0]); len(kids) == 1 {
				body = kids[0]
			}
		}
	}
	a.Body = c.expr(body)
	return a
}

// paramName handles both plain identifiers and TypeScript parameters.
func (c *converter) paramName(n *sitter.Node) string {
	switch n.Type() {
	case "identifier":
		return c.text(n)
	case "required_parameter", "optional_parameter":
		if p := n.ChildByFieldName("pattern"); p != nil && p.Type() == "identifier" {
			return c.text(p)
		}
	}
	return ""
}

func (c *converter) args(n *sitter.Node) []Expr {
	if n == nil || n.Type() != "arguments" {
		return nil
	}
	kids := namedChildren(n)
	out := make([]Expr, 0, len(kids))
	for _, ch := range kids {
		out = append(out, c.expr(ch))
	}
	return out
}

// calleeName renders identifiers and member chains as dotted names
// ("t", "i18n.t", "this.props.t"). Anything else renders empty.
func (c *converter) calleeName(n *sitter.Node) string {
	switch n.Type() {
	case "identifier", "property_identifier", "this", "private_property_identifier":
		return c.text(n)
	case "member_expression":
		obj := c.calleeName(n.ChildByFieldName("object"))
		prop := n.ChildByFieldName("property")
		if obj == "" || prop == nil {
			return ""
		}
		return obj + "." + c.text(prop)
	case "parenthesized_expression", "non_null_expression":
		if kids := namedChildren(n); len(kids) == 1 {
			return c.calleeName(kids[0])
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// Declarators
// ---------------------------------------------------------------------------

func (c *converter) declarator(n *sitter.Node) (Declarator, bool) {
	name := n.ChildByFieldName("name")
	value := n.ChildByFieldName("value")
	if name == nil || value == nil {
		return Declarator{}, false
	}
	p := c.pattern(name)
	if p == nil {
		return Declarator{}, false
	}
	return Declarator{Pos: pos(n), Pattern: p, Init: c.expr(value)}, true
}

func (c *converter) pattern(n *sitter.Node) Pattern {
	switch n.Type() {
	case "identifier":
		return IdentPattern{Name: c.text(n)}

	case "object_pattern":
		var op ObjectPattern
		for _, ch := range namedChildren(n) {
			switch ch.Type() {
			case "shorthand_property_identifier_pattern":
				name := c.text(ch)
				op.Props = append(op.Props, PatternProp{Key: name, Name: name})
			case "pair_pattern":
				key := c.propertyKey(ch.ChildByFieldName("key"))
				val := ch.ChildByFieldName("value")
				if key == "" || val == nil {
					continue
				}
				if val.Type() == "assignment_pattern" {
					val = val.ChildByFieldName("left")
				}
				if val != nil && val.Type() == "identifier" {
					op.Props = append(op.Props, PatternProp{Key: key, Name: c.text(val)})
				}
			case "object_assignment_pattern":
				left := ch.ChildByFieldName("left")
				if left != nil && left.Type() == "shorthand_property_identifier_pattern" {
					name := c.text(left)
					op.Props = append(op.Props, PatternProp{Key: name, Name: name})
				}
			}
		}
		return op

	case "array_pattern":
		var ap ArrayPattern
		for i := 0; i < int(n.ChildCount()); i++ {
			ch := n.Child(i)
			if ch == nil || !ch.IsNamed() {
				continue
			}
			if ch.Type() == "identifier" {
				ap.Names = append(ap.Names, c.text(ch))
			} else if ch.Type() != "comment" {
				ap.Names = append(ap.Names, "")
			}
		}
		return ap
	}
	return nil
}

// ---------------------------------------------------------------------------
// JSX
// ---------------------------------------------------------------------------

func (c *converter) openingElement(n *sitter.Node) *sitter.Node {
	if n.Type() == "jsx_self_closing_element" {
		return n
	}
	if open := n.ChildByFieldName("open_tag"); open != nil {
		return open
	}
	for _, ch := range namedChildren(n) {
		if ch.Type() == "jsx_opening_element" {
			return ch
		}
	}
	return nil
}

func (c *converter) jsxName(n *sitter.Node) string {
	open := c.openingElement(n)
	if open == nil {
		return ""
	}
	if name := open.ChildByFieldName("name"); name != nil {
		return c.text(name)
	}
	return ""
}

func (c *converter) jsxElement(n *sitter.Node) *JSXElement {
	el := &JSXElement{
		Pos:         pos(n),
		Name:        c.jsxName(n),
		SelfClosing: n.Type() == "jsx_self_closing_element",
	}

	if open := c.openingElement(n); open != nil {
		for _, ch := range namedChildren(open) {
			if ch.Type() != "jsx_attribute" {
				continue
			}
			el.Attrs = append(el.Attrs, c.jsxAttr(ch))
		}
	}

	if el.SelfClosing {
		return el
	}
	for _, ch := range namedChildren(n) {
		switch ch.Type() {
		case "jsx_opening_element", "jsx_closing_element":
			continue
		case "jsx_text", "html_character_reference":
			el.Children = append(el.Children, JSXText{Text: c.text(ch)})
		case "jsx_expression":
			if kids := namedChildren(ch); len(kids) > 0 {
				el.Children = append(el.Children, JSXExpr{Expr: c.expr(kids[0])})
			} else {
				el.Children = append(el.Children, JSXExpr{})
			}
		case "jsx_element", "jsx_self_closing_element":
			el.Children = append(el.Children, c.jsxElement(ch))
		}
	}
	return el
}

func (c *converter) jsxAttr(n *sitter.Node) JSXAttr {
	kids := namedChildren(n)
	if len(kids) == 0 {
		return JSXAttr{}
	}
	attr := JSXAttr{Name: c.text(kids[0])}
	if len(kids) < 2 {
		return attr
	}
	v := kids[1]
	switch v.Type() {
	case "string":
		raw := c.text(v)
		if len(raw) >= 2 {
			raw = raw[1 : len(raw)-1]
		}
		attr.Value = &StringLit{exprBase: exprBase{P: pos(v)}, Value: raw}
	case "jsx_expression":
		if inner := namedChildren(v); len(inner) > 0 {
			attr.Value = c.expr(inner[0])
		}
	default:
		attr.Value = &Unknown{exprBase: exprBase{P: pos(v)}, Kind: v.Type(), Text: strings.TrimSpace(c.text(v))}
	}
	return attr
}
