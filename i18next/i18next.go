// Package i18next reads and writes i18next JSON resource files.
//
// A resource file is a tree of JSON objects whose leaves are translated
// strings:
//
//	{
//	  "home": {
//	    "title": "Welcome",
//	    "items_one": "{{count}} item",
//	    "items_other": "{{count}} items"
//	  }
//	}
//
// Documents keep the key order of the file, carry non-string values
// (numbers, arrays, booleans, null) through unchanged, and remember the
// formatting they were read with so a rewrite produces a minimal diff.
package i18next

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Kind tells the variant of a Node.
type Kind int

const (
	StringNode Kind = iota
	ObjectNode
	RawNode
)

// Node is a value in a resource tree.
type Node struct {
	Kind Kind
	Str  string
	Obj  *Object
	// Raw holds the JSON text of values other than strings and objects.
	Raw json.RawMessage
}

// String returns a string leaf.
func String(s string) *Node { return &Node{Kind: StringNode, Str: s} }

// IsLeaf reports whether n is not an object.
func (n *Node) IsLeaf() bool { return n.Kind != ObjectNode }

// Object is a JSON object that keeps insertion order.
type Object struct {
	keys []string
	vals map[string]*Node
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{vals: make(map[string]*Node)}
}

// Len returns the number of entries.
func (o *Object) Len() int { return len(o.keys) }

// Keys returns the keys in order. The slice must not be modified.
func (o *Object) Keys() []string { return o.keys }

// Get returns the value under key.
func (o *Object) Get(key string) (*Node, bool) {
	n, ok := o.vals[key]
	return n, ok
}

// Set stores n under key, appending the key when it is new.
func (o *Object) Set(key string, n *Node) {
	if o.vals == nil {
		o.vals = make(map[string]*Node)
	}
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = n
}

// Delete removes key.
func (o *Object) Delete(key string) bool {
	if _, ok := o.vals[key]; !ok {
		return false
	}
	delete(o.vals, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	return true
}

// Sort orders keys alphabetically, recursing into nested objects up to
// depth levels.
func (o *Object) Sort(depth int) {
	if depth <= 0 {
		return
	}
	sort.Strings(o.keys)
	for _, k := range o.keys {
		if n := o.vals[k]; n.Kind == ObjectNode {
			n.Obj.Sort(depth - 1)
		}
	}
}

// ---------------------------------------------------------------------------
// Document
// ---------------------------------------------------------------------------

// Style is the formatting detected on read and reproduced on write.
type Style struct {
	// Indent is one indentation unit: a tab or a run of spaces.
	Indent          string
	CRLF            bool
	TrailingNewline bool
}

// DefaultStyle is used for new files: two spaces, LF, final newline.
var DefaultStyle = Style{Indent: "  ", TrailingNewline: true}

// Document is one resource file.
type Document struct {
	Root  *Object
	Style Style
}

// New returns an empty document with the default style.
func New() *Document {
	return &Document{Root: NewObject(), Style: DefaultStyle}
}

// Parse decodes a resource file. Empty input gives an empty document.
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return New(), nil
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	root, err := parseObject(data)
	if err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return &Document{Root: root, Style: DetectStyle(data)}, nil
}

func parseObject(data []byte) (*Object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	t, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := t.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected {, got %v", t)
	}

	obj := NewObject()
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := kt.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %T", kt)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("value of %q: %w", key, err)
		}
		n, err := parseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("value of %q: %w", key, err)
		}
		obj.Set(key, n)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after top-level object")
	}
	return obj, nil
}

func parseValue(raw json.RawMessage) (*Node, error) {
	switch raw[0] {
	case '{':
		obj, err := parseObject(raw)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: ObjectNode, Obj: obj}, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return String(s), nil
	}
	return &Node{Kind: RawNode, Raw: append(json.RawMessage(nil), raw...)}, nil
}

// DetectStyle inspects raw file content. The indent unit comes from the
// first indented line.
func DetectStyle(data []byte) Style {
	if len(bytes.TrimSpace(data)) == 0 {
		return DefaultStyle
	}
	st := Style{
		Indent:          DefaultStyle.Indent,
		CRLF:            bytes.Contains(data, []byte("\r\n")),
		TrailingNewline: bytes.HasSuffix(data, []byte("\n")),
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" || len(trimmed) == len(line) {
			continue
		}
		ws := line[:len(line)-len(trimmed)]
		if ws[0] == '\t' {
			st.Indent = "\t"
		} else {
			st.Indent = strings.Repeat(" ", len(ws)-len(strings.TrimLeft(ws, " ")))
		}
		break
	}
	return st
}

// Marshal serializes the document with its style. HTML characters are not
// escaped.
func (d *Document) Marshal() ([]byte, error) {
	var b bytes.Buffer
	if err := writeObject(&b, d.Root, d.Style.Indent, 0); err != nil {
		return nil, err
	}
	if d.Style.TrailingNewline {
		b.WriteByte('\n')
	}
	out := b.Bytes()
	if d.Style.CRLF {
		out = bytes.ReplaceAll(out, []byte("\n"), []byte("\r\n"))
	}
	return out, nil
}

func writeObject(b *bytes.Buffer, o *Object, indent string, level int) error {
	if o == nil || o.Len() == 0 {
		b.WriteString("{}")
		return nil
	}
	b.WriteString("{\n")
	for i, k := range o.keys {
		b.WriteString(strings.Repeat(indent, level+1))
		if err := writeString(b, k); err != nil {
			return err
		}
		b.WriteString(": ")
		if err := writeNode(b, o.vals[k], indent, level+1); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		if i < len(o.keys)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat(indent, level))
	b.WriteByte('}')
	return nil
}

func writeNode(b *bytes.Buffer, n *Node, indent string, level int) error {
	switch n.Kind {
	case StringNode:
		return writeString(b, n.Str)
	case ObjectNode:
		return writeObject(b, n.Obj, indent, level)
	}
	if len(n.Raw) == 0 {
		b.WriteString("null")
		return nil
	}
	if n.Raw[0] != '[' {
		b.Write(n.Raw)
		return nil
	}
	return json.Indent(b, n.Raw, strings.Repeat(indent, level), indent)
}

func writeString(b *bytes.Buffer, s string) error {
	var sb bytes.Buffer
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	b.Write(bytes.TrimSuffix(sb.Bytes(), []byte("\n")))
	return nil
}

// ---------------------------------------------------------------------------
// Path operations
// ---------------------------------------------------------------------------

// StructureError reports that a key needs an object where a leaf is stored
// (or the reverse).
type StructureError struct {
	Path []string
	// At is the length of the conflicting prefix of Path.
	At int
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("%q is a string, cannot add %q below it",
		strings.Join(e.Path[:e.At], "."), strings.Join(e.Path, "."))
}

// Lookup returns the node at path.
func (d *Document) Lookup(path []string) (*Node, bool) {
	if len(path) == 0 {
		return nil, false
	}
	obj := d.Root
	for i, seg := range path {
		n, ok := obj.Get(seg)
		if !ok {
			return nil, false
		}
		if i == len(path)-1 {
			return n, true
		}
		if n.Kind != ObjectNode {
			return nil, false
		}
		obj = n.Obj
	}
	return nil, false
}

// Set stores a string leaf at path, creating parents as needed. An
// existing leaf is never replaced; Set reports whether it added one.
func (d *Document) Set(path []string, value string) (bool, error) {
	if len(path) == 0 {
		return false, fmt.Errorf("empty key path")
	}
	obj := d.Root
	for i, seg := range path[:len(path)-1] {
		n, ok := obj.Get(seg)
		if !ok {
			n = &Node{Kind: ObjectNode, Obj: NewObject()}
			obj.Set(seg, n)
		}
		if n.Kind != ObjectNode {
			return false, &StructureError{Path: path, At: i + 1}
		}
		obj = n.Obj
	}
	last := path[len(path)-1]
	if n, ok := obj.Get(last); ok {
		if n.Kind == ObjectNode {
			return false, &StructureError{Path: path, At: len(path)}
		}
		return false, nil
	}
	obj.Set(last, String(value))
	return true, nil
}

// Delete removes the leaf at path and prunes parents left empty.
func (d *Document) Delete(path []string) bool {
	return deletePath(d.Root, path)
}

func deletePath(obj *Object, path []string) bool {
	if len(path) == 0 {
		return false
	}
	if len(path) == 1 {
		return obj.Delete(path[0])
	}
	n, ok := obj.Get(path[0])
	if !ok || n.Kind != ObjectNode {
		return false
	}
	if !deletePath(n.Obj, path[1:]) {
		return false
	}
	if n.Obj.Len() == 0 {
		obj.Delete(path[0])
	}
	return true
}

// Walk calls fn for every leaf in document order. Empty objects are
// reported as leaves too so callers can see them.
func (d *Document) Walk(fn func(path []string, n *Node)) {
	walk(d.Root, nil, fn)
}

func walk(obj *Object, prefix []string, fn func([]string, *Node)) {
	for _, k := range obj.keys {
		n := obj.vals[k]
		path := append(append([]string(nil), prefix...), k)
		if n.Kind == ObjectNode && n.Obj.Len() > 0 {
			walk(n.Obj, path, fn)
			continue
		}
		fn(path, n)
	}
}

// Stats returns (total, translated, untranslated) counts over string
// leaves.
func (d *Document) Stats() (total, translated, untranslated int) {
	d.Walk(func(_ []string, n *Node) {
		if n.Kind != StringNode {
			return
		}
		total++
		if n.Str != "" {
			translated++
		} else {
			untranslated++
		}
	})
	return
}

// UntranslatedKeys returns the paths of empty string leaves, joined with
// sep.
func (d *Document) UntranslatedKeys(sep string) []string {
	var out []string
	d.Walk(func(p []string, n *Node) {
		if n.Kind == StringNode && n.Str == "" {
			out = append(out, strings.Join(p, sep))
		}
	})
	return out
}

// Sort orders keys alphabetically up to depth levels.
func (d *Document) Sort(depth int) {
	d.Root.Sort(depth)
}
