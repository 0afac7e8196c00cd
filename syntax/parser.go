package syntax

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ErrUnparseable is returned for input the grammar cannot make sense of.
var ErrUnparseable = errors.New("source cannot be parsed")

// Language selects a grammar.
type Language int

const (
	JavaScript Language = iota
	TypeScript
	TSX
)

func (l Language) String() string {
	switch l {
	case TypeScript:
		return "typescript"
	case TSX:
		return "tsx"
	default:
		return "javascript"
	}
}

// LanguageFor picks the grammar for a file name. The JavaScript grammar
// covers JSX, so .js/.jsx/.mjs/.cjs all map to it.
func LanguageFor(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsx":
		return TSX
	case ".ts", ".mts", ".cts":
		return TypeScript
	default:
		return JavaScript
	}
}

func (l Language) grammar() *sitter.Language {
	switch l {
	case TypeScript:
		return typescript.GetLanguage()
	case TSX:
		return tsx.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

// Parser wraps a tree-sitter parser. It is not safe for concurrent use;
// give each worker its own.
type Parser struct {
	p *sitter.Parser
}

// NewParser returns a Parser. Call Close when done.
func NewParser() *Parser {
	return &Parser{p: sitter.NewParser()}
}

// Close releases the underlying parser.
func (p *Parser) Close() {
	p.p.Close()
}

// File is a parsed source file.
type File struct {
	tree *sitter.Tree
	src  []byte
}

// Close releases the syntax tree.
func (f *File) Close() {
	f.tree.Close()
}

// Parse parses src with the grammar for lang.
func (p *Parser) Parse(ctx context.Context, lang Language, src []byte) (*File, error) {
	if !utf8.Valid(src) {
		return nil, fmt.Errorf("%w: not valid UTF-8", ErrUnparseable)
	}
	p.p.SetLanguage(lang.grammar())
	tree, err := p.p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", lang, err)
	}
	if tree == nil {
		return nil, ErrUnparseable
	}
	root := tree.RootNode()
	if root.HasError() && !hasValidChild(root) {
		tree.Close()
		return nil, fmt.Errorf("%w: no recoverable statements", ErrUnparseable)
	}
	return &File{tree: tree, src: src}, nil
}

// hasValidChild reports whether a damaged tree still contains at least one
// top-level node that is not an ERROR node.
func hasValidChild(root *sitter.Node) bool {
	n := int(root.NamedChildCount())
	for i := 0; i < n; i++ {
		c := root.NamedChild(i)
		if c != nil && c.Type() != "ERROR" && c.Type() != "comment" {
			return true
		}
	}
	return false
}

// ParseExpression parses a standalone JavaScript expression such as the
// text of a call found in a comment.
func (p *Parser) ParseExpression(ctx context.Context, text string) (Expr, error) {
	src := []byte("(" + text + "\n)")
	p.p.SetLanguage(JavaScript.grammar())
	tree, err := p.p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing expression: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w: %q", ErrUnparseable, text)
	}
	stmt := root.NamedChild(0)
	if stmt == nil || stmt.Type() != "expression_statement" {
		return nil, fmt.Errorf("%w: %q is not an expression", ErrUnparseable, text)
	}
	c := &converter{src: src}
	return c.expr(stmt.NamedChild(0)), nil
}

// ---------------------------------------------------------------------------
// Walking
// ---------------------------------------------------------------------------

// WalkOptions tunes File.Walk.
type WalkOptions struct {
	// JSXFilter limits which JSX elements are converted and emitted.
	// Elements are still descended into. Nil emits nothing for JSX.
	JSXFilter func(name string) bool
}

var scopeTypes = map[string]bool{
	"statement_block":                true,
	"arrow_function":                 true,
	"function":                       true,
	"function_expression":            true,
	"function_declaration":           true,
	"generator_function":             true,
	"generator_function_declaration": true,
	"method_definition":              true,
	"class_body":                     true,
	"for_statement":                  true,
	"for_in_statement":               true,
	"catch_clause":                   true,
	"switch_body":                    true,
}

// Walk visits the tree depth-first and calls visit for every shape.
func (f *File) Walk(opts WalkOptions, visit func(Shape)) {
	c := &converter{src: f.src}
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		typ := n.Type()
		scoped := scopeTypes[typ]
		if scoped {
			visit(ScopeEnter{Pos: pos(n)})
		}

		switch typ {
		case "comment":
			visit(Comment{Pos: pos(n), EndLine: int(n.EndPoint().Row) + 1, Text: n.Content(f.src)})
		case "call_expression":
			if fn := n.ChildByFieldName("function"); fn != nil {
				visit(Call{Pos: pos(n), Callee: c.calleeName(fn), Args: c.args(n.ChildByFieldName("arguments"))})
			}
		case "jsx_element", "jsx_self_closing_element":
			if opts.JSXFilter != nil {
				if name := c.jsxName(n); opts.JSXFilter(name) {
					visit(c.jsxElement(n))
				}
			}
		}

		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}

		if typ == "variable_declarator" {
			if d, ok := c.declarator(n); ok {
				visit(d)
			}
		}
		if scoped {
			visit(ScopeExit{})
		}
	}
	walk(f.tree.RootNode())
}

// Comments returns every comment in source order.
func (f *File) Comments() []Comment {
	var out []Comment
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "comment" {
			out = append(out, Comment{Pos: pos(n), EndLine: int(n.EndPoint().Row) + 1, Text: n.Content(f.src)})
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if c := n.Child(i); c != nil {
				walk(c)
			}
		}
	}
	walk(f.tree.RootNode())
	return out
}

func pos(n *sitter.Node) Position {
	p := n.StartPoint()
	return Position{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}
