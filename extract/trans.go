package extract

import (
	"regexp"
	"strings"

	"github.com/minios-linux/i18nsync/keys"
	"github.com/minios-linux/i18nsync/scope"
	"github.com/minios-linux/i18nsync/syntax"
)

// trans extracts the key of a <Trans> element.
func (v *visitor) trans(el *syntax.JSXElement) {
	loc := v.loc(el.Pos)

	rec := scope.Record{}
	if a, ok := el.Attr("t"); ok {
		if name := memberName(a.Value); name != "" {
			if r, ok := v.scopes.Lookup(name); ok {
				rec = r
			}
		}
	}

	var co callOptions
	if a, ok := el.Attr("ns"); ok && a.Value != nil {
		co.ns = namespaceValue(a.Value)
	}
	if _, ok := el.Attr("count"); ok {
		co.count = true
	}
	if a, ok := el.Attr("ordinal"); ok {
		if b, isBool := a.Value.(*syntax.BoolLit); a.Value == nil || isBool && b.Value {
			co.ordinal = true
		}
	}
	if a, ok := el.Attr("context"); ok && a.Value != nil {
		v.context(a.Value, &co, loc)
	}

	text := transText(el.Children, v.e.keepHTML)
	if a, ok := el.Attr("defaults"); ok {
		if s, isStr := stringValue(a.Value); isStr {
			co.def, co.hasDef = s, true
		}
	}
	if !co.hasDef && text != "" {
		co.def, co.hasDef = text, true
	}

	key := text
	if a, ok := el.Attr("i18nKey"); ok {
		s, isStr := stringValue(a.Value)
		if !isStr {
			if t, isTpl := a.Value.(*syntax.TemplateLit); isTpl {
				v.dynamic(t, rec, co, loc)
				return
			}
			v.diag(keys.UnresolvableKey, loc, "i18nKey %s is not a static string", describeAttr(a))
			return
		}
		key = s
	}
	if key == "" {
		return
	}
	v.emit(key, rec, co, loc, 0)
}

func describeAttr(a syntax.JSXAttr) string {
	if a.Value == nil {
		return "(empty)"
	}
	return describe(a.Value)
}

var spaces = regexp.MustCompile(`\s+`)

// transText renders Trans children the way react-i18next builds its
// default key: interpolations as {{name}}, kept tags as plain HTML, other
// tags reduced to their text, whitespace collapsed.
func transText(children []syntax.JSXChild, keep map[string]bool) string {
	return strings.TrimSpace(spaces.ReplaceAllString(renderChildren(children, keep), " "))
}

func renderChildren(children []syntax.JSXChild, keep map[string]bool) string {
	var b strings.Builder
	for _, ch := range children {
		switch c := ch.(type) {
		case syntax.JSXText:
			b.WriteString(cleanJSXText(c.Text))
		case syntax.JSXExpr:
			b.WriteString(renderExpr(c.Expr))
		case *syntax.JSXElement:
			inner := renderChildren(c.Children, keep)
			if keep[c.Name] && len(c.Attrs) == 0 {
				if c.SelfClosing || len(c.Children) == 0 {
					b.WriteString("<" + c.Name + "/>")
				} else {
					b.WriteString("<" + c.Name + ">" + inner + "</" + c.Name + ">")
				}
				continue
			}
			b.WriteString(inner)
		}
	}
	return b.String()
}

func renderExpr(e syntax.Expr) string {
	switch e := e.(type) {
	case nil:
		return ""
	case *syntax.Ident:
		return "{{" + e.Name + "}}"
	case *syntax.ObjectLit:
		// {{ name }} in JSX is an object literal with one shorthand property.
		if len(e.Props) > 0 {
			return "{{" + e.Props[0].Key + "}}"
		}
	case *syntax.StringLit, *syntax.TemplateLit:
		s, _ := stringValue(e)
		return s
	case *syntax.NumberLit:
		return e.Text
	}
	return ""
}

// cleanJSXText applies JSX whitespace rules: lines are trimmed where they
// meet a line break, blank lines vanish, and the rest are joined by a space.
func cleanJSXText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	lastNonEmpty := -1
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			lastNonEmpty = i
		}
	}

	var b strings.Builder
	for i, l := range lines {
		l = strings.ReplaceAll(l, "\t", " ")
		if i > 0 {
			l = strings.TrimLeft(l, " ")
		}
		if i < len(lines)-1 {
			l = strings.TrimRight(l, " ")
		}
		if l == "" {
			continue
		}
		b.WriteString(l)
		if i != lastNonEmpty {
			b.WriteByte(' ')
		}
	}
	return b.String()
}
