// Package merge reconciles extracted keys with i18next resource documents.
//
// Reconcile adds the keys a target is missing, never touches values that
// already exist, and drops leaves no source references any more unless
// they are preserved. Sync copies the key structure of the primary locale
// into the other locales.
package merge

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/minios-linux/i18nsync/i18next"
	"github.com/minios-linux/i18nsync/keys"
)

// DefaultSortDepth bounds recursive sorting.
const DefaultSortDepth = 100

// State is the reconciliation state of one target file.
type State string

const (
	Loaded  State = "loaded"
	Diffed  State = "diffed"
	Written State = "written"
	Skipped State = "skipped"
	Failed  State = "failed"
)

// Section is one namespace inside a target file. Prefix is the path under
// which the namespace lives: empty for a file per namespace, [ns] when
// namespaces are merged into one file.
type Section struct {
	Namespace string
	Prefix    []string
	Keys      []keys.ExpandedKey
}

// Options controls reconciliation of one target.
type Options struct {
	Locale     string
	Separators keys.Separators

	// RemoveUnused drops leaves that no extracted key references.
	RemoveUnused bool
	Sort         bool
	SortDepth    int

	// DefaultValue is the value for new keys without an extracted
	// default. {{key}}, {{ns}} and {{lng}} are substituted.
	DefaultValue string

	Preserve *Preserver
}

// Result describes what reconciliation did to one target.
type Result struct {
	State     State
	Added     []string
	Removed   []string
	Conflicts []keys.Diagnostic
}

// Changed reports whether the document was modified.
func (r *Result) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

// ---------------------------------------------------------------------------
// Preserve patterns
// ---------------------------------------------------------------------------

// Preserver matches keys against preserve globs. Patterns containing the
// namespace separator match "ns:key", the others match "key".
type Preserver struct {
	nsSep    string
	patterns []preservePattern
}

type preservePattern struct {
	g      glob.Glob
	withNS bool
}

// NewPreserver compiles patterns.
func NewPreserver(patterns []string, nsSep string) (*Preserver, error) {
	p := &Preserver{nsSep: nsSep}
	for _, raw := range patterns {
		g, err := glob.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("preserve pattern %q: %w", raw, err)
		}
		p.patterns = append(p.patterns, preservePattern{
			g:      g,
			withNS: nsSep != "" && strings.Contains(raw, nsSep),
		})
	}
	return p, nil
}

// Add registers the glob form of a dynamic key found in namespace ns.
func (p *Preserver) Add(ns, pattern string) error {
	if p.nsSep == "" {
		p.nsSep = ":"
	}
	g, err := glob.Compile(ns + p.nsSep + pattern)
	if err != nil {
		return fmt.Errorf("preserve pattern %q: %w", pattern, err)
	}
	p.patterns = append(p.patterns, preservePattern{g: g, withNS: true})
	return nil
}

// Match reports whether key of namespace ns is preserved.
func (p *Preserver) Match(ns, key string) bool {
	if p == nil {
		return false
	}
	for _, pp := range p.patterns {
		subject := key
		if pp.withNS {
			subject = ns + p.nsSep + key
		}
		if pp.g.Match(subject) {
			return true
		}
	}
	return false
}

// Len returns the number of patterns.
func (p *Preserver) Len() int {
	if p == nil {
		return 0
	}
	return len(p.patterns)
}

// ---------------------------------------------------------------------------
// Reconcile
// ---------------------------------------------------------------------------

// DefaultFor renders the default-value policy for a key.
func DefaultFor(policy, key, ns, lng string) string {
	if policy == "" || !strings.Contains(policy, "{{") {
		return policy
	}
	return strings.NewReplacer("{{key}}", key, "{{ns}}", ns, "{{lng}}", lng).Replace(policy)
}

func (o Options) keySep() string {
	if o.Separators.Key == "" {
		return "."
	}
	return o.Separators.Key
}

// Reconcile applies sections to doc. It only mutates doc; writing is up to
// the caller, which should skip the write when nothing changed.
func Reconcile(doc *i18next.Document, sections []Section, opts Options) *Result {
	res := &Result{State: Loaded}
	sep := opts.keySep()

	for _, sec := range sections {
		for _, k := range sec.Keys {
			if k.Marker {
				continue
			}
			path := append(append([]string(nil), sec.Prefix...), k.Path...)
			key := strings.Join(k.Path, sep)

			value := DefaultFor(opts.DefaultValue, key, sec.Namespace, opts.Locale)
			if k.HasDefault && k.DefaultValue != "" {
				value = k.DefaultValue
			}
			added, err := doc.Set(path, value)
			if err != nil {
				res.Conflicts = append(res.Conflicts, keys.Diagnostic{
					Kind:     keys.StructureConflict,
					Message:  fmt.Sprintf("%s/%s: %v", opts.Locale, sec.Namespace, err),
					Location: k.Location,
				})
				continue
			}
			if added {
				res.Added = append(res.Added, qualify(sec.Namespace, key))
			}
		}
	}

	if opts.RemoveUnused {
		for _, dead := range deadLeaves(doc, sections, opts) {
			if doc.Delete(dead.path) {
				res.Removed = append(res.Removed, dead.name)
			}
		}
	}

	if res.Changed() && opts.Sort {
		depth := opts.SortDepth
		if depth <= 0 {
			depth = DefaultSortDepth
		}
		doc.Sort(depth)
	}
	res.State = Diffed
	return res
}

func qualify(ns, key string) string {
	return ns + ":" + key
}

type leaf struct {
	path []string
	name string
}

// liveSet indexes what one section references.
type liveSet struct {
	keys    map[string]bool
	markers [][]string
}

func newLiveSet(sec Section) liveSet {
	ls := liveSet{keys: make(map[string]bool, len(sec.Keys))}
	for _, k := range sec.Keys {
		if k.Marker {
			ls.markers = append(ls.markers, k.Path)
			continue
		}
		ls.keys[strings.Join(k.Path, "\x00")] = true
	}
	return ls
}

func (ls liveSet) has(path []string) bool {
	if ls.keys[strings.Join(path, "\x00")] {
		return true
	}
	for _, m := range ls.markers {
		if hasPrefix(path, m) {
			return true
		}
	}
	return false
}

func hasPrefix(path, prefix []string) bool {
	if len(prefix) > len(path) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}

// deadLeaves lists the leaves of doc that belong to one of sections and
// are neither referenced nor preserved. Leaves outside every section are
// left alone.
func deadLeaves(doc *i18next.Document, sections []Section, opts Options) []leaf {
	live := make([]liveSet, len(sections))
	for i, sec := range sections {
		live[i] = newLiveSet(sec)
	}
	sep := opts.keySep()

	var out []leaf
	doc.Walk(func(path []string, _ *i18next.Node) {
		for i, sec := range sections {
			if !hasPrefix(path, sec.Prefix) || len(path) == len(sec.Prefix) {
				continue
			}
			rel := path[len(sec.Prefix):]
			if live[i].has(rel) {
				return
			}
			key := strings.Join(rel, sep)
			if opts.Preserve.Match(sec.Namespace, key) {
				return
			}
			out = append(out, leaf{path: path, name: qualify(sec.Namespace, key)})
			return
		}
	})
	return out
}

// Inspect reports, without modifying doc, which referenced keys are
// missing and which leaves are dead.
func Inspect(doc *i18next.Document, sections []Section, opts Options) (missing, dead []string) {
	sep := opts.keySep()
	for _, sec := range sections {
		for _, k := range sec.Keys {
			if k.Marker {
				continue
			}
			path := append(append([]string(nil), sec.Prefix...), k.Path...)
			if n, ok := doc.Lookup(path); !ok || !n.IsLeaf() {
				missing = append(missing, qualify(sec.Namespace, strings.Join(k.Path, sep)))
			}
		}
	}
	for _, l := range deadLeaves(doc, sections, opts) {
		dead = append(dead, l.name)
	}
	return missing, dead
}

// Prune removes the dead leaves of doc without adding missing keys.
// Preserve patterns and markers are honoured as in Reconcile.
func Prune(doc *i18next.Document, sections []Section, opts Options) *Result {
	res := &Result{State: Loaded}
	for _, dead := range deadLeaves(doc, sections, opts) {
		if doc.Delete(dead.path) {
			res.Removed = append(res.Removed, dead.name)
		}
	}
	if res.Changed() && opts.Sort {
		depth := opts.SortDepth
		if depth <= 0 {
			depth = DefaultSortDepth
		}
		doc.Sort(depth)
	}
	res.State = Diffed
	return res
}
