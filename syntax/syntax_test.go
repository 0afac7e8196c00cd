package syntax

import (
	"context"
	"testing"
)

func parse(t *testing.T, lang Language, src string) *File {
	t.Helper()
	p := NewParser()
	t.Cleanup(p.Close)
	f, err := p.Parse(context.Background(), lang, []byte(src))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	t.Cleanup(f.Close)
	return f
}

func collect(f *File, filter func(string) bool) []Shape {
	var out []Shape
	f.Walk(WalkOptions{JSXFilter: filter}, func(s Shape) { out = append(out, s) })
	return out
}

func calls(shapes []Shape) []Call {
	var out []Call
	for _, s := range shapes {
		if c, ok := s.(Call); ok {
			out = append(out, c)
		}
	}
	return out
}

func TestLanguageFor(t *testing.T) {
	tests := map[string]Language{
		"a.ts":      TypeScript,
		"a.mts":     TypeScript,
		"b.tsx":     TSX,
		"c.js":      JavaScript,
		"d.jsx":     JavaScript,
		"e.MJS":     JavaScript,
		"no-ext":    JavaScript,
		"Page.TSX":  TSX,
		"types.cts": TypeScript,
	}
	for path, want := range tests {
		if got := LanguageFor(path); got != want {
			t.Fatalf("LanguageFor(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestUnquote(t *testing.T) {
	tests := []struct{ in, want string }{
		{`'plain'`, "plain"},
		{`"it\'s"`, "it's"},
		{`'a\nb'`, "a\nb"},
		{`'été'`, "été"},
		{`'\u{1F600}'`, "😀"},
		{`'\x41'`, "A"},
		{`'😀'`, "😀"},
		{`'back\\slash'`, `back\slash`},
	}
	for _, tc := range tests {
		if got := unquote(tc.in); got != tc.want {
			t.Fatalf("unquote(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWalkCallsAndDeclarators(t *testing.T) {
	f := parse(t, JavaScript, `
const { t } = useTranslation('common', { keyPrefix: 'page' });
t('title', { count: n, context: male ? 'm' : 'f' });
i18n.t("other");
`)
	shapes := collect(f, nil)

	var decl *Declarator
	for _, s := range shapes {
		if d, ok := s.(Declarator); ok {
			decl = &d
		}
	}
	if decl == nil {
		t.Fatal("no declarator emitted")
	}
	op, ok := decl.Pattern.(ObjectPattern)
	if !ok || len(op.Props) != 1 || op.Props[0].Name != "t" {
		t.Fatalf("pattern = %#v, want object pattern binding t", decl.Pattern)
	}
	init, ok := decl.Init.(*CallExpr)
	if !ok || init.Callee != "useTranslation" || len(init.Args) != 2 {
		t.Fatalf("init = %#v, want useTranslation call with 2 args", decl.Init)
	}

	cs := calls(shapes)
	var names []string
	for _, c := range cs {
		names = append(names, c.Callee)
	}
	if len(cs) != 3 {
		t.Fatalf("calls = %v, want useTranslation, t, i18n.t", names)
	}

	tc := cs[1]
	if tc.Callee != "t" || tc.Pos.Line != 3 || tc.Pos.Column != 1 {
		t.Fatalf("t call = %+v", tc)
	}
	key, ok := tc.Args[0].(*StringLit)
	if !ok || key.Value != "title" {
		t.Fatalf("key arg = %#v", tc.Args[0])
	}
	opts, ok := tc.Args[1].(*ObjectLit)
	if !ok {
		t.Fatalf("options arg = %#v", tc.Args[1])
	}
	if v, ok := opts.Get("count"); !ok {
		t.Fatal("count option missing")
	} else if _, isIdent := v.(*Ident); !isIdent {
		t.Fatalf("count = %#v, want identifier", v)
	}
	ctx, _ := opts.Get("context")
	cond, ok := ctx.(*Conditional)
	if !ok {
		t.Fatalf("context = %#v, want conditional", ctx)
	}
	if s, ok := cond.Then.(*StringLit); !ok || s.Value != "m" {
		t.Fatalf("then = %#v", cond.Then)
	}
	if cs[2].Callee != "i18n.t" {
		t.Fatalf("member callee = %q, want i18n.t", cs[2].Callee)
	}
}

func TestTemplateLiterals(t *testing.T) {
	f := parse(t, JavaScript, "t(`static.key`); t(`dyn.${x}.end`);")
	cs := calls(collect(f, nil))
	if len(cs) != 2 {
		t.Fatalf("got %d calls, want 2", len(cs))
	}
	st := cs[0].Args[0].(*TemplateLit)
	if st.Dynamic || st.Value() != "static.key" {
		t.Fatalf("static template = %+v", st)
	}
	dt := cs[1].Args[0].(*TemplateLit)
	if !dt.Dynamic || len(dt.Parts) != 2 || dt.Parts[0] != "dyn." || dt.Parts[1] != ".end" {
		t.Fatalf("dynamic template = %+v", dt)
	}
}

func TestSelectorArrow(t *testing.T) {
	f := parse(t, TypeScript, "t(($) => $.menu['file'].open);")
	cs := calls(collect(f, nil))
	if len(cs) != 1 {
		t.Fatalf("got %d calls, want 1", len(cs))
	}
	a, ok := cs[0].Args[0].(*Arrow)
	if !ok || len(a.Params) != 1 || a.Params[0] != "$" {
		t.Fatalf("arrow = %#v", cs[0].Args[0])
	}
	m, ok := a.Body.(*Member)
	if !ok || m.Property != "open" {
		t.Fatalf("body = %#v", a.Body)
	}
	inner, ok := m.Object.(*Member)
	if !ok || inner.Property != "file" {
		t.Fatalf("inner = %#v", m.Object)
	}
}

func TestScopesAreBalanced(t *testing.T) {
	f := parse(t, JavaScript, `
function A() { const t = 1; if (x) { t('a'); } }
const B = () => t('b');
`)
	depth := 0
	for _, s := range collect(f, nil) {
		switch s.(type) {
		case ScopeEnter:
			depth++
		case ScopeExit:
			depth--
			if depth < 0 {
				t.Fatal("scope exit without enter")
			}
		}
	}
	if depth != 0 {
		t.Fatalf("unbalanced scopes, depth = %d", depth)
	}
}

func TestJSXElements(t *testing.T) {
	f := parse(t, TSX, `
const C = () => (
  <div>
    <Trans i18nKey="welcome" ns="home" count={n}>
      Hello <strong>{name}</strong>, you have <br/> mail
    </Trans>
    <Other />
  </div>
);
`)
	var els []*JSXElement
	for _, s := range collect(f, func(name string) bool { return name == "Trans" }) {
		if el, ok := s.(*JSXElement); ok {
			els = append(els, el)
		}
	}
	if len(els) != 1 {
		t.Fatalf("got %d Trans elements, want 1", len(els))
	}
	el := els[0]
	if a, ok := el.Attr("i18nKey"); !ok || a.Value.(*StringLit).Value != "welcome" {
		t.Fatalf("i18nKey attr = %#v", a)
	}
	if a, ok := el.Attr("count"); !ok {
		t.Fatal("count attr missing")
	} else if _, isIdent := a.Value.(*Ident); !isIdent {
		t.Fatalf("count value = %#v", a.Value)
	}

	var sawStrong, sawBr bool
	for _, ch := range el.Children {
		if inner, ok := ch.(*JSXElement); ok {
			switch inner.Name {
			case "strong":
				sawStrong = len(inner.Children) == 1
			case "br":
				sawBr = inner.SelfClosing
			}
		}
	}
	if !sawStrong || !sawBr {
		t.Fatalf("children = %#v", el.Children)
	}
}

func TestComments(t *testing.T) {
	f := parse(t, JavaScript, "// t('from.comment')\nconst a = 1; /* block\n t('b') */\n")
	cs := f.Comments()
	if len(cs) != 2 {
		t.Fatalf("got %d comments, want 2", len(cs))
	}
	if cs[0].Pos.Line != 1 || cs[1].Pos.Line != 2 || cs[1].EndLine != 3 {
		t.Fatalf("comment positions = %+v", cs)
	}
}

func TestParseExpression(t *testing.T) {
	p := NewParser()
	defer p.Close()

	e, err := p.ParseExpression(context.Background(), `t('k', { count: 1, ns: "x" })`)
	if err != nil {
		t.Fatalf("ParseExpression error: %v", err)
	}
	call, ok := e.(*CallExpr)
	if !ok || call.Callee != "t" || len(call.Args) != 2 {
		t.Fatalf("expr = %#v", e)
	}

	if _, err := p.ParseExpression(context.Background(), `t('unterminated`); err == nil {
		t.Fatal("expected error for broken expression")
	}
}

func TestParseRejectsInvalidUTF8(t *testing.T) {
	p := NewParser()
	defer p.Close()
	if _, err := p.Parse(context.Background(), JavaScript, []byte{0xff, 0xfe, 0x00}); err == nil {
		t.Fatal("expected error for invalid UTF-8")
	}
}
