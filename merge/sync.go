package merge

import (
	"fmt"
	"strings"

	"github.com/minios-linux/i18nsync/i18next"
	"github.com/minios-linux/i18nsync/keys"
)

// SyncOptions controls copying the primary locale's structure.
type SyncOptions struct {
	// Plural separator used in keys.
	PluralSeparator string
	// PrimaryCategories returns the primary locale's categories. The flag
	// selects ordinal rules.
	PrimaryCategories func(ordinal bool) []string
	// Secondary expands plural bases for the target locale, with the same
	// rules extraction uses. Nil copies plural keys unchanged.
	Secondary    *keys.Expander
	RemoveUnused bool
	Sort         bool
	Preserve     *Preserver
	Namespace    string
}

// pluralForm splits "items_ordinal_one" or "items_one" into its base and
// whether it is ordinal. A suffix only counts when the primary locale has
// a single category or a sibling with another category exists, so a plain
// key such as "status_other" stays as it is.
func (o SyncOptions) pluralForm(last string, has func(name string) bool) (base string, ordinal, ok bool) {
	sep := o.PluralSeparator
	if sep == "" || o.PrimaryCategories == nil {
		return "", false, false
	}
	try := func(ordinal bool, infix string) (string, bool) {
		cats := o.PrimaryCategories(ordinal)
		for _, cat := range cats {
			suffix := infix + cat
			if !strings.HasSuffix(last, suffix) || len(last) == len(suffix) {
				continue
			}
			base := strings.TrimSuffix(last, suffix)
			if len(cats) == 1 {
				return base, true
			}
			for _, other := range cats {
				if other != cat && has(base+infix+other) {
					return base, true
				}
			}
		}
		return "", false
	}
	if base, ok := try(true, sep+"ordinal"+sep); ok {
		return base, true, true
	}
	if base, ok := try(false, sep); ok {
		return base, false, true
	}
	return "", false, false
}

// secondaryPaths maps one primary leaf to the paths the secondary locale
// needs for it.
func (o SyncOptions) secondaryPaths(path []string, has func(name string) bool) [][]string {
	last := path[len(path)-1]
	base, ordinal, ok := o.pluralForm(last, has)
	if !ok || o.Secondary == nil {
		return [][]string{path}
	}
	k := keys.ExtractedKey{
		Namespace: o.Namespace,
		Path:      append(append([]string(nil), path[:len(path)-1]...), base),
		HasCount:  true,
		Ordinal:   ordinal,
	}
	var out [][]string
	for _, ek := range o.Secondary.Expand(k) {
		out = append(out, ek.Path)
	}
	return out
}

// Sync adds every key of primary missing from secondary with an empty
// value. Plural keys are re-expanded with the secondary locale's
// categories. Existing values are never changed.
func Sync(primary, secondary *i18next.Document, opts SyncOptions) *Result {
	res := &Result{State: Loaded}
	wanted := make(map[string]bool)

	primary.Walk(func(path []string, n *i18next.Node) {
		if n.Kind == i18next.ObjectNode {
			return
		}
		parent := path[:len(path)-1]
		has := func(name string) bool {
			_, ok := primary.Lookup(append(append([]string(nil), parent...), name))
			return ok
		}
		for _, p := range opts.secondaryPaths(path, has) {
			wanted[strings.Join(p, "\x00")] = true
			added, err := secondary.Set(p, "")
			if err != nil {
				res.Conflicts = append(res.Conflicts, keys.Diagnostic{
					Kind:    keys.StructureConflict,
					Message: fmt.Sprintf("%s: %v", opts.Namespace, err),
				})
				continue
			}
			if added {
				res.Added = append(res.Added, qualify(opts.Namespace, strings.Join(p, ".")))
			}
		}
	})

	if opts.RemoveUnused {
		var dead [][]string
		secondary.Walk(func(path []string, _ *i18next.Node) {
			if wanted[strings.Join(path, "\x00")] {
				return
			}
			if opts.Preserve.Match(opts.Namespace, strings.Join(path, ".")) {
				return
			}
			dead = append(dead, path)
		})
		for _, p := range dead {
			if secondary.Delete(p) {
				res.Removed = append(res.Removed, qualify(opts.Namespace, strings.Join(p, ".")))
			}
		}
	}

	if res.Changed() && opts.Sort {
		secondary.Sort(DefaultSortDepth)
	}
	res.State = Diffed
	return res
}
