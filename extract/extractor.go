package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog"

	"github.com/minios-linux/i18nsync/keys"
	"github.com/minios-linux/i18nsync/scope"
	"github.com/minios-linux/i18nsync/syntax"
)

// MaxNestingDepth bounds recursion into $t(...) references inside default
// values.
const MaxNestingDepth = 5

// Options configures recognition. Zero-valued lists fall back to the
// i18next defaults in Defaults.
type Options struct {
	Functions           []string
	UseTranslationNames []string
	TransComponents     []string
	TransKeepBasicHTML  []string

	Separators       keys.Separators
	DefaultNamespace string

	ExtractFromComments bool

	NestingPrefix           string
	NestingSuffix           string
	NestingOptionsSeparator string

	// PreservePatterns are the raw preserve globs. Dynamic keys whose glob
	// form one of them matches are kept as patterns.
	PreservePatterns []string

	Logger zerolog.Logger
}

// Defaults returns the i18next-compatible recognition defaults.
func Defaults() Options {
	return Options{
		Functions:               []string{"t"},
		UseTranslationNames:     []string{"useTranslation"},
		TransComponents:         []string{"Trans"},
		TransKeepBasicHTML:      []string{"br", "strong", "i", "p"},
		Separators:              keys.Separators{Key: ".", Namespace: ":", Context: "_", Plural: "_"},
		DefaultNamespace:        "translation",
		ExtractFromComments:     true,
		NestingPrefix:           "$t(",
		NestingSuffix:           ")",
		NestingOptionsSeparator: ",",
	}
}

// Result is what one file yields.
type Result struct {
	File        string
	Keys        []keys.ExtractedKey
	Diagnostics []keys.Diagnostic
}

// Extractor recognizes translation references. It owns a parser and must
// not be shared between goroutines; create one per worker.
type Extractor struct {
	opts      Options
	parser    *syntax.Parser
	functions []glob.Glob
	plainFns  []string
	hooks     map[string]bool
	trans     map[string]bool
	keepHTML  map[string]bool
	preserve  []preservePattern
}

type preservePattern struct {
	g      glob.Glob
	withNS bool
}

// New compiles opts into an Extractor.
func New(opts Options) (*Extractor, error) {
	d := Defaults()
	if len(opts.Functions) == 0 {
		opts.Functions = d.Functions
	}
	if len(opts.UseTranslationNames) == 0 {
		opts.UseTranslationNames = d.UseTranslationNames
	}
	if len(opts.TransComponents) == 0 {
		opts.TransComponents = d.TransComponents
	}
	if opts.TransKeepBasicHTML == nil {
		opts.TransKeepBasicHTML = d.TransKeepBasicHTML
	}
	if opts.DefaultNamespace == "" {
		opts.DefaultNamespace = d.DefaultNamespace
	}
	if opts.NestingPrefix == "" {
		opts.NestingPrefix = d.NestingPrefix
	}
	if opts.NestingSuffix == "" {
		opts.NestingSuffix = d.NestingSuffix
	}
	if opts.NestingOptionsSeparator == "" {
		opts.NestingOptionsSeparator = d.NestingOptionsSeparator
	}

	e := &Extractor{
		opts:     opts,
		hooks:    toSet(opts.UseTranslationNames),
		trans:    toSet(opts.TransComponents),
		keepHTML: toSet(opts.TransKeepBasicHTML),
	}
	for _, fn := range opts.Functions {
		g, err := glob.Compile(fn)
		if err != nil {
			return nil, fmt.Errorf("function pattern %q: %w", fn, err)
		}
		e.functions = append(e.functions, g)
		if !strings.ContainsAny(fn, "*?[{") {
			e.plainFns = append(e.plainFns, fn)
		}
	}
	for _, p := range opts.PreservePatterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("preserve pattern %q: %w", p, err)
		}
		withNS := opts.Separators.Namespace != "" && strings.Contains(p, opts.Separators.Namespace)
		e.preserve = append(e.preserve, preservePattern{g: g, withNS: withNS})
	}
	e.parser = syntax.NewParser()
	return e, nil
}

// Close releases the parser.
func (e *Extractor) Close() {
	if e.parser != nil {
		e.parser.Close()
		e.parser = nil
	}
}

func toSet(xs []string) map[string]bool {
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}

// isFunction reports whether callee is a configured translation function.
func (e *Extractor) isFunction(callee string) bool {
	if callee == "" {
		return false
	}
	for _, g := range e.functions {
		if g.Match(callee) {
			return true
		}
	}
	return false
}

// Extract parses src and returns every key it references. file is the
// project-relative path used in locations. A file that cannot be parsed
// at all returns an error wrapping syntax.ErrUnparseable.
func (e *Extractor) Extract(ctx context.Context, file string, src []byte) (*Result, error) {
	f, err := e.parser.Parse(ctx, syntax.LanguageFor(file), src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}
	defer f.Close()

	v := &visitor{
		ctx:      ctx,
		e:        e,
		res:      &Result{File: file},
		scopes:   scope.New(),
		disabled: disabledLines(f.Comments()),
	}
	f.Walk(syntax.WalkOptions{JSXFilter: func(name string) bool { return e.trans[name] }}, v.visit)

	e.opts.Logger.Debug().
		Str("file", file).
		Int("keys", len(v.res.Keys)).
		Int("diagnostics", len(v.res.Diagnostics)).
		Msg("extracted")
	return v.res, nil
}

// ---------------------------------------------------------------------------
// Visitor
// ---------------------------------------------------------------------------

type visitor struct {
	ctx      context.Context
	e        *Extractor
	res      *Result
	scopes   *scope.Stack
	disabled lineSet
}

func (v *visitor) loc(p syntax.Position) keys.Location {
	return keys.Location{File: v.res.File, Line: p.Line, Column: p.Column}
}

func (v *visitor) diag(kind keys.DiagnosticKind, loc keys.Location, format string, args ...any) {
	v.res.Diagnostics = append(v.res.Diagnostics, keys.Diagnostic{
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	})
}

func (v *visitor) visit(s syntax.Shape) {
	switch s := s.(type) {
	case syntax.ScopeEnter:
		v.scopes.Push()
	case syntax.ScopeExit:
		v.scopes.Pop()
	case syntax.Declarator:
		v.declarator(s)
	case syntax.Call:
		if v.disabled.has(s.Pos.Line) {
			return
		}
		rec, ok := v.translator(s.Callee)
		if !ok {
			return
		}
		v.call(s.Args, rec, v.loc(s.Pos), 0)
	case *syntax.JSXElement:
		if v.disabled.has(s.Pos.Line) {
			return
		}
		v.trans(s)
	case syntax.Comment:
		if v.e.opts.ExtractFromComments {
			v.comment(s)
		}
	}
}

// translator resolves a callee to its scope record. Configured functions
// that are not bound in scope resolve to the unscoped record.
func (v *visitor) translator(callee string) (scope.Record, bool) {
	if callee == "" {
		return scope.Record{}, false
	}
	if r, ok := v.scopes.Lookup(callee); ok {
		return r, true
	}
	return scope.Record{}, v.e.isFunction(callee)
}

// ---------------------------------------------------------------------------
// Bindings
// ---------------------------------------------------------------------------

func lastMember(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func (v *visitor) declarator(d syntax.Declarator) {
	switch init := d.Init.(type) {
	case *syntax.CallExpr:
		switch {
		case v.e.hooks[init.Callee] || v.e.hooks[lastMember(init.Callee)]:
			rec := scope.Record{}
			if len(init.Args) > 0 {
				rec.Namespace = namespaceValue(init.Args[0])
			}
			if len(init.Args) > 1 {
				if obj, ok := init.Args[1].(*syntax.ObjectLit); ok {
					if p, ok := obj.Get("keyPrefix"); ok {
						rec.KeyPrefix = v.prefix(staticString(p))
					}
				}
			}
			v.bindHook(d.Pattern, rec)

		case lastMember(init.Callee) == "getFixedT":
			rec := scope.Record{}
			if len(init.Args) > 1 {
				rec.Namespace = namespaceValue(init.Args[1])
			}
			if len(init.Args) > 2 {
				rec.KeyPrefix = v.prefix(staticString(init.Args[2]))
			}
			if p, ok := d.Pattern.(syntax.IdentPattern); ok {
				v.scopes.Bind(p.Name, rec)
			}
		}

	case *syntax.Ident:
		p, ok := d.Pattern.(syntax.IdentPattern)
		if !ok {
			return
		}
		if !v.scopes.Alias(p.Name, init.Name) && v.e.isFunction(init.Name) {
			v.scopes.Bind(p.Name, scope.Record{})
		}

	case *syntax.Member:
		p, ok := d.Pattern.(syntax.IdentPattern)
		if !ok {
			return
		}
		name := memberName(init)
		if !v.scopes.Alias(p.Name, name) && v.e.isFunction(name) {
			v.scopes.Bind(p.Name, scope.Record{})
		}
	}
}

// bindHook binds the t function produced by a useTranslation-style hook.
func (v *visitor) bindHook(p syntax.Pattern, rec scope.Record) {
	switch p := p.(type) {
	case syntax.ObjectPattern:
		for _, prop := range p.Props {
			if prop.Key == "t" {
				v.scopes.Bind(prop.Name, rec)
			}
		}
	case syntax.ArrayPattern:
		if len(p.Names) > 0 && p.Names[0] != "" {
			v.scopes.Bind(p.Names[0], rec)
		}
	case syntax.IdentPattern:
		v.scopes.Bind(p.Name+".t", rec)
	}
}

func (v *visitor) prefix(s string) []string {
	if s == "" {
		return nil
	}
	if v.e.opts.Separators.Key == "" {
		return []string{s}
	}
	return v.e.opts.Separators.SplitKey(s)
}

// memberName renders a member chain of identifiers as a dotted name.
func memberName(e syntax.Expr) string {
	switch e := e.(type) {
	case *syntax.Ident:
		return e.Name
	case *syntax.Member:
		obj := memberName(e.Object)
		if obj == "" {
			return ""
		}
		return obj + "." + e.Property
	}
	return ""
}

// staticString returns the value of a string literal or static template.
func staticString(e syntax.Expr) string {
	s, _ := stringValue(e)
	return s
}

func stringValue(e syntax.Expr) (string, bool) {
	switch e := e.(type) {
	case *syntax.StringLit:
		return e.Value, true
	case *syntax.TemplateLit:
		if !e.Dynamic {
			return e.Value(), true
		}
	}
	return "", false
}

// namespaceValue reads a namespace argument: a string, or an array whose
// first string element wins.
func namespaceValue(e syntax.Expr) string {
	if arr, ok := e.(*syntax.ArrayLit); ok {
		for _, el := range arr.Elems {
			if s, ok := stringValue(el); ok {
				return s
			}
		}
		return ""
	}
	return staticString(e)
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// callOptions is the recognized subset of i18next t() options. Trans
// attributes are read into the same shape.
type callOptions struct {
	ns         string
	count      bool
	ordinal    bool
	returnObjs bool
	hasContext bool
	contexts   []string
	def        string
	hasDef     bool
}

func (v *visitor) call(args []syntax.Expr, rec scope.Record, loc keys.Location, depth int) {
	if len(args) == 0 {
		return
	}

	var co callOptions
	var obj *syntax.ObjectLit
	if len(args) > 1 {
		switch a := args[1].(type) {
		case *syntax.ObjectLit:
			obj = a
		default:
			if s, ok := stringValue(a); ok {
				co.def, co.hasDef = s, true
			}
		}
	}
	if obj == nil && len(args) > 2 {
		obj, _ = args[2].(*syntax.ObjectLit)
	}
	if obj != nil {
		v.options(obj, &co, loc)
	}

	switch k := args[0].(type) {
	case *syntax.StringLit:
		v.emit(k.Value, rec, co, loc, depth)
	case *syntax.TemplateLit:
		if !k.Dynamic {
			v.emit(k.Value(), rec, co, loc, depth)
			return
		}
		v.dynamic(k, rec, co, loc)
	case *syntax.ArrayLit:
		for _, el := range k.Elems {
			s, ok := stringValue(el)
			if !ok {
				v.diag(keys.UnresolvableKey, loc, "fallback key %s is not a static string", describe(el))
				continue
			}
			v.emit(s, rec, co, loc, depth)
		}
	case *syntax.Arrow:
		path, ok := selectorPath(k)
		if !ok {
			v.diag(keys.UnresolvableKey, loc, "selector %s is not a static property chain", describe(k))
			return
		}
		sep := v.e.opts.Separators.Key
		if sep == "" {
			sep = "."
		}
		v.emit(strings.Join(path, sep), rec, co, loc, depth)
	default:
		v.diag(keys.UnresolvableKey, loc, "key %s is not a static string", describe(k))
	}
}

func (v *visitor) options(obj *syntax.ObjectLit, co *callOptions, loc keys.Location) {
	if e, ok := obj.Get("ns"); ok {
		co.ns = namespaceValue(e)
	}
	if _, ok := obj.Get("count"); ok {
		co.count = true
	}
	if e, ok := obj.Get("ordinal"); ok {
		if b, isBool := e.(*syntax.BoolLit); isBool && b.Value {
			co.ordinal = true
		}
	}
	if e, ok := obj.Get("returnObjects"); ok {
		if b, isBool := e.(*syntax.BoolLit); isBool && b.Value {
			co.returnObjs = true
		}
	}
	if e, ok := obj.Get("defaultValue"); ok {
		if s, isStr := stringValue(e); isStr {
			co.def, co.hasDef = s, true
		}
	}
	if e, ok := obj.Get("context"); ok {
		v.context(e, co, loc)
	}
}

// context resolves a context option. Conditionals contribute every
// branch; anything not made of literals is reported and ignored.
func (v *visitor) context(e syntax.Expr, co *callOptions, loc keys.Location) {
	values, ok := contextValues(e)
	if !ok {
		v.diag(keys.UnresolvableContext, loc, "context %s is not a literal", describe(e))
		return
	}
	seen := make(map[string]bool, len(values))
	var uniq []string
	for _, s := range values {
		if !seen[s] {
			seen[s] = true
			uniq = append(uniq, s)
		}
	}
	if len(uniq) == 1 && uniq[0] == "" {
		return
	}
	co.hasContext = true
	co.contexts = uniq
}

func contextValues(e syntax.Expr) ([]string, bool) {
	if c, ok := e.(*syntax.Conditional); ok {
		a, okA := contextValues(c.Then)
		b, okB := contextValues(c.Else)
		if !okA || !okB {
			return nil, false
		}
		return append(a, b...), true
	}
	if s, ok := stringValue(e); ok {
		return []string{s}, true
	}
	return nil, false
}

// selectorPath turns `$ => $.a['b'].c` into [a b c].
func selectorPath(a *syntax.Arrow) ([]string, bool) {
	if len(a.Params) != 1 || a.Params[0] == "" {
		return nil, false
	}
	var path []string
	cur := a.Body
	for {
		switch m := cur.(type) {
		case *syntax.Member:
			path = append(path, m.Property)
			cur = m.Object
			continue
		case *syntax.Ident:
			if m.Name != a.Params[0] || len(path) == 0 {
				return nil, false
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path, true
		}
		return nil, false
	}
}

// dynamic handles a template key with substitutions: it is either kept as
// a preserve pattern or reported.
func (v *visitor) dynamic(t *syntax.TemplateLit, rec scope.Record, co callOptions, loc keys.Location) {
	form := strings.Join(t.Parts, "*")
	ns, key := v.e.opts.Separators.SplitNamespace(form)
	ns = v.namespace(ns, rec, co)
	if len(rec.KeyPrefix) > 0 {
		key = v.joinPrefix(rec.KeyPrefix, key)
	}
	if v.e.preserved(ns, key) {
		v.res.Keys = append(v.res.Keys, keys.ExtractedKey{
			Namespace:         ns,
			PreserveAsPattern: true,
			Pattern:           key,
			Location:          loc,
		})
		return
	}
	v.diag(keys.UnresolvableKey, loc, "dynamic key %s cannot be extracted", describe(t))
}

func (e *Extractor) preserved(ns, key string) bool {
	for _, p := range e.preserve {
		subject := key
		if p.withNS {
			subject = ns + e.opts.Separators.Namespace + key
		}
		if p.g.Match(subject) {
			return true
		}
	}
	return false
}

func (v *visitor) joinPrefix(prefix []string, key string) string {
	sep := v.e.opts.Separators.Key
	if sep == "" {
		sep = "."
	}
	return strings.Join(append(append([]string(nil), prefix...), key), sep)
}

// namespace applies the precedence: key prefix, options, scope, default.
func (v *visitor) namespace(fromKey string, rec scope.Record, co callOptions) string {
	switch {
	case fromKey != "":
		return fromKey
	case co.ns != "":
		return co.ns
	case rec.Namespace != "":
		return rec.Namespace
	}
	return v.e.opts.DefaultNamespace
}

// emit builds one ExtractedKey and scans its default value for nested
// references.
func (v *visitor) emit(raw string, rec scope.Record, co callOptions, loc keys.Location, depth int) {
	if raw == "" {
		return
	}
	seps := v.e.opts.Separators
	nsFromKey, key := seps.SplitNamespace(raw)
	if key == "" {
		return
	}

	var path []string
	if seps.Key == "" {
		if len(rec.KeyPrefix) > 0 {
			key = v.joinPrefix(rec.KeyPrefix, key)
		}
		path = []string{key}
	} else {
		path = append(append([]string(nil), rec.KeyPrefix...), seps.SplitKey(key)...)
	}

	k := keys.ExtractedKey{
		Namespace:     v.namespace(nsFromKey, rec, co),
		Path:          path,
		DefaultValue:  co.def,
		HasDefault:    co.hasDef,
		HasCount:      co.count,
		Ordinal:       co.count && co.ordinal,
		ReturnObjects: co.returnObjs,
		Location:      loc,
	}
	if co.hasContext {
		k.HasContext = true
		if len(co.contexts) == 1 {
			k.Context = co.contexts[0]
		} else {
			k.ContextCandidates = append([]string(nil), co.contexts...)
		}
	}
	v.res.Keys = append(v.res.Keys, k)

	if co.hasDef {
		v.nested(co.def, loc, depth+1)
	}
}

// describe renders an expression for diagnostics.
func describe(e syntax.Expr) string {
	switch e := e.(type) {
	case *syntax.StringLit:
		return fmt.Sprintf("%q", e.Value)
	case *syntax.TemplateLit:
		return "`" + strings.Join(e.Parts, "${…}") + "`"
	case *syntax.Ident:
		return e.Name
	case *syntax.Member:
		if n := memberName(e); n != "" {
			return n
		}
		return "member expression"
	case *syntax.Conditional:
		return "conditional expression"
	case *syntax.CallExpr:
		return e.Callee + "(…)"
	case *syntax.Arrow:
		return "arrow function"
	case *syntax.Unknown:
		if e.Text != "" {
			return e.Text
		}
		return e.Kind
	}
	return fmt.Sprintf("%T", e)
}
