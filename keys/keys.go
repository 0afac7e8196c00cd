// Package keys holds the translation key model shared by the extractor,
// the plural expander, the aggregator and the reconciler.
//
// An ExtractedKey is what a single call site says. An ExpandedKey is one
// concrete string that ends up in a locale file after plural and context
// suffixes have been applied for a specific locale.
package keys

import (
	"fmt"
	"strings"
)

// MarkerSuffix is appended to a key that was requested with returnObjects.
// The reconciler keeps the whole subtree under such a key.
const MarkerSuffix = ".*"

// Location points at a call site in a source file.
type Location struct {
	File   string `json:"file" yaml:"file"`
	Line   int    `json:"line" yaml:"line"`
	Column int    `json:"column" yaml:"column"`
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// ExtractedKey is one recognized translation reference.
type ExtractedKey struct {
	Namespace string   `yaml:"ns"`
	Path      []string `yaml:"path"`

	DefaultValue string `yaml:"default,omitempty"`
	HasDefault   bool   `yaml:"hasDefault,omitempty"`

	HasCount bool `yaml:"count,omitempty"`
	Ordinal  bool `yaml:"ordinal,omitempty"`

	HasContext        bool     `yaml:"hasContext,omitempty"`
	Context           string   `yaml:"context,omitempty"`
	ContextCandidates []string `yaml:"contexts,omitempty"`

	ReturnObjects bool `yaml:"returnObjects,omitempty"`

	// PreserveAsPattern marks a dynamic key whose glob form matched a
	// configured preserve pattern. Pattern holds that glob form.
	PreserveAsPattern bool   `yaml:"preserve,omitempty"`
	Pattern           string `yaml:"pattern,omitempty"`

	Location Location `yaml:"loc"`
}

// Key joins the path with sep. An empty sep means the path has a single
// flat segment.
func (k ExtractedKey) Key(sep string) string {
	return strings.Join(k.Path, sep)
}

// Contexts returns the context values to expand. A nil entry in the
// result is represented by the empty string.
func (k ExtractedKey) Contexts() []string {
	if !k.HasContext {
		return []string{""}
	}
	if len(k.ContextCandidates) > 0 {
		return k.ContextCandidates
	}
	return []string{k.Context}
}

// ExpandedKey is a final (locale, namespace, key) triple plus its default.
type ExpandedKey struct {
	Locale    string
	Namespace string
	// Path is the key split on the key separator; plural and context
	// suffixes live on the last segment.
	Path []string
	// Stem is Path without the plural suffix (context kept). Conflicts are
	// reported per stem, so one call site yields one conflict.
	Stem         []string
	DefaultValue string
	HasDefault   bool
	// Marker is set for returnObjects keys; Path then names the subtree.
	Marker   bool
	Location Location
}

// Key joins the path with sep and appends MarkerSuffix for markers.
func (k ExpandedKey) Key(sep string) string {
	s := strings.Join(k.Path, sep)
	if k.Marker {
		return s + MarkerSuffix
	}
	return s
}

// ConflictValue is one of the competing defaults of a KeyConflict.
type ConflictValue struct {
	Value    string   `json:"value"`
	Location Location `json:"location"`
}

// KeyConflict records a final key that was given different non-empty
// default values at different call sites.
type KeyConflict struct {
	Namespace string          `json:"namespace"`
	Key       string          `json:"key"`
	Values    []ConflictValue `json:"values"`
}

func (c KeyConflict) String() string {
	vals := make([]string, 0, len(c.Values))
	for _, v := range c.Values {
		vals = append(vals, fmt.Sprintf("%q (%s)", v.Value, v.Location))
	}
	return fmt.Sprintf("%s:%s has conflicting defaults %s", c.Namespace, c.Key, strings.Join(vals, " vs "))
}

// DiagnosticKind classifies a Diagnostic.
type DiagnosticKind string

const (
	ParseFailure         DiagnosticKind = "parse-failure"
	UnresolvableKey      DiagnosticKind = "unresolvable-key"
	UnresolvableContext  DiagnosticKind = "unresolvable-context"
	NestingDepthExceeded DiagnosticKind = "nesting-depth"
	StructureConflict    DiagnosticKind = "structure-conflict"
	HookFailure          DiagnosticKind = "hook-failure"
	IOFailure            DiagnosticKind = "io-failure"
)

// Diagnostic is a non-fatal problem found while extracting or reconciling.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind" yaml:"kind"`
	Message  string         `json:"message" yaml:"message"`
	Location Location       `json:"location" yaml:"loc"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s [%s]", d.Location, d.Message, d.Kind)
}

// IsWarning reports whether the diagnostic is promoted to an error under
// fail-on-warnings.
func (d Diagnostic) IsWarning() bool {
	switch d.Kind {
	case UnresolvableKey, UnresolvableContext, NestingDepthExceeded, StructureConflict:
		return true
	}
	return false
}

// Separators bundles the separator settings every stage needs.
type Separators struct {
	Key       string
	Namespace string
	Context   string
	Plural    string
}

// SplitNamespace splits "ns:key" into its parts. Without a namespace
// separator in s (or with namespace splitting disabled) ns is empty.
func (s Separators) SplitNamespace(key string) (ns, rest string) {
	if s.Namespace == "" {
		return "", key
	}
	i := strings.Index(key, s.Namespace)
	if i <= 0 {
		return "", key
	}
	return key[:i], key[i+len(s.Namespace):]
}

// SplitKey splits a key into path segments.
func (s Separators) SplitKey(key string) []string {
	if s.Key == "" {
		return []string{key}
	}
	return strings.Split(key, s.Key)
}
