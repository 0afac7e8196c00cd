package keys

import (
	"sort"
)

// Bucket holds the expanded keys of one (locale, namespace) pair in the
// order they were first seen.
type Bucket struct {
	Locale    string
	Namespace string
	Keys      []ExpandedKey

	index map[string]int
}

// Len returns the number of distinct keys in the bucket.
func (b *Bucket) Len() int { return len(b.Keys) }

// Has reports whether the bucket contains path (not as a marker).
func (b *Bucket) Has(path []string) bool {
	_, ok := b.index[joinPath(path)]
	return ok
}

type bucketID struct{ locale, namespace string }

// Aggregator folds expanded keys from every file into buckets and records
// default value conflicts. It is not safe for concurrent use; workers hand
// their results back and the caller folds them.
type Aggregator struct {
	keySep string

	buckets map[bucketID]*Bucket
	// patterns are the glob forms of dynamic keys per namespace.
	patterns map[string][]string

	conflicts     map[string]*KeyConflict
	conflictOrder []string
}

// NewAggregator returns an empty Aggregator. keySep is only used to render
// keys in conflict reports.
func NewAggregator(keySep string) *Aggregator {
	return &Aggregator{
		keySep:    keySep,
		buckets:   make(map[bucketID]*Bucket),
		patterns:  make(map[string][]string),
		conflicts: make(map[string]*KeyConflict),
	}
}

// AddExtracted expands k with e and adds the result.
func (a *Aggregator) AddExtracted(e *Expander, k ExtractedKey) {
	if k.PreserveAsPattern {
		a.addPattern(k.Namespace, k.Pattern)
		return
	}
	for _, x := range e.Expand(k) {
		a.Add(x)
	}
}

func (a *Aggregator) addPattern(ns, pattern string) {
	for _, p := range a.patterns[ns] {
		if p == pattern {
			return
		}
	}
	a.patterns[ns] = append(a.patterns[ns], pattern)
}

// Add inserts k into its bucket. Identical keys are merged; the first
// non-empty default wins and any other non-empty default is recorded as a
// conflict on the key's stem.
func (a *Aggregator) Add(k ExpandedKey) {
	id := bucketID{k.Locale, k.Namespace}
	b, ok := a.buckets[id]
	if !ok {
		b = &Bucket{Locale: k.Locale, Namespace: k.Namespace, index: make(map[string]int)}
		a.buckets[id] = b
	}

	ik := joinPath(k.Path)
	if k.Marker {
		ik += "\x00*"
	}
	i, ok := b.index[ik]
	if !ok {
		b.index[ik] = len(b.Keys)
		b.Keys = append(b.Keys, k)
		return
	}

	if !k.HasDefault || k.DefaultValue == "" {
		return
	}
	existing := &b.Keys[i]
	if existing.DefaultValue == "" {
		existing.DefaultValue = k.DefaultValue
		existing.HasDefault = true
		existing.Location = k.Location
		return
	}
	if existing.DefaultValue != k.DefaultValue {
		a.conflict(*existing, k)
	}
}

func (a *Aggregator) conflict(first, other ExpandedKey) {
	stem := first.Stem
	if stem == nil {
		stem = first.Path
	}
	key := ExpandedKey{Path: stem, Marker: first.Marker}.Key(a.keySep)
	ck := first.Namespace + "\x00" + key
	c, ok := a.conflicts[ck]
	if !ok {
		c = &KeyConflict{
			Namespace: first.Namespace,
			Key:       key,
			Values:    []ConflictValue{{Value: first.DefaultValue, Location: first.Location}},
		}
		a.conflicts[ck] = c
		a.conflictOrder = append(a.conflictOrder, ck)
	}
	for _, v := range c.Values {
		if v.Value == other.DefaultValue {
			return
		}
	}
	c.Values = append(c.Values, ConflictValue{Value: other.DefaultValue, Location: other.Location})
}

// Bucket returns the bucket for (locale, ns), or nil.
func (a *Aggregator) Bucket(locale, ns string) *Bucket {
	return a.buckets[bucketID{locale, ns}]
}

// Buckets returns all buckets sorted by locale then namespace.
func (a *Aggregator) Buckets() []*Bucket {
	out := make([]*Bucket, 0, len(a.buckets))
	for _, b := range a.buckets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Locale != out[j].Locale {
			return out[i].Locale < out[j].Locale
		}
		return out[i].Namespace < out[j].Namespace
	})
	return out
}

// Namespaces returns the sorted set of namespaces that received keys or
// patterns.
func (a *Aggregator) Namespaces() []string {
	set := make(map[string]bool)
	for id := range a.buckets {
		set[id.namespace] = true
	}
	for ns := range a.patterns {
		set[ns] = true
	}
	out := make([]string, 0, len(set))
	for ns := range set {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Patterns returns the dynamic key globs seen for ns.
func (a *Aggregator) Patterns(ns string) []string {
	return a.patterns[ns]
}

// Conflicts returns every conflict in first-seen order.
func (a *Aggregator) Conflicts() []KeyConflict {
	out := make([]KeyConflict, 0, len(a.conflictOrder))
	for _, ck := range a.conflictOrder {
		out = append(out, *a.conflicts[ck])
	}
	return out
}
