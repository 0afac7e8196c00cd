package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/minios-linux/i18nsync/i18next"
	"github.com/minios-linux/i18nsync/keys"
	"github.com/minios-linux/i18nsync/merge"
	"github.com/minios-linux/i18nsync/plural"
)

// ---------------------------------------------------------------------------
// Check
// ---------------------------------------------------------------------------

// CheckResult lists the dead keys of one target.
type CheckResult struct {
	Path       string   `json:"path"`
	Locale     string   `json:"locale"`
	Namespaces []string `json:"namespaces"`
	Exists     bool     `json:"exists"`
	Dead       []string `json:"dead,omitempty"`
	Missing    []string `json:"missing,omitempty"`
	// Removed is set when removal was requested and performed.
	Removed []string `json:"removed,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func filterTargets(targets []Target, locales []string) []Target {
	if len(locales) == 0 {
		return targets
	}
	return lo.Filter(targets, func(t Target, _ int) bool { return lo.Contains(locales, t.Locale) })
}

// Check extracts every source and compares the result with the locale
// files. With remove set (and not a dry run) dead keys are deleted.
func (r *Runner) Check(ctx context.Context, locales []string, remove bool) ([]CheckResult, *Collection, error) {
	rc := r.runContext(NewRunID())
	col, err := r.Collect(ctx, rc)
	if err != nil {
		return nil, nil, err
	}
	pres, err := r.preserver(col)
	if err != nil {
		return nil, nil, err
	}
	targets := filterTargets(r.Plan(col, nil), locales)

	results := make([]CheckResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, t := range targets {
		g.Go(func() error {
			results[i] = r.checkOne(gctx, t, pres, remove)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return results, col, nil
}

func (r *Runner) checkOne(ctx context.Context, t Target, pres *merge.Preserver, remove bool) CheckResult {
	cr := CheckResult{Path: r.rel(t.Path), Locale: t.Locale, Namespaces: t.Namespaces()}
	opts := r.mergeOptions(t.Locale, pres)
	opts.RemoveUnused = true

	if remove && !r.dryRun {
		err := r.store.Update(ctx, t.Path, func(doc *i18next.Document, exists bool) (bool, error) {
			cr.Exists = exists
			cr.Missing, cr.Dead = merge.Inspect(doc, t.Sections, opts)
			if !exists {
				return false, nil
			}
			res := merge.Prune(doc, t.Sections, opts)
			cr.Removed = res.Removed
			r.applyStyle(doc)
			return res.Changed(), nil
		})
		if err != nil {
			cr.Error = err.Error()
		}
		return cr
	}

	doc, exists, err := r.store.Load(t.Path)
	if err != nil {
		cr.Error = err.Error()
		return cr
	}
	cr.Exists = exists
	cr.Missing, cr.Dead = merge.Inspect(doc, t.Sections, opts)
	return cr
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// StatusRow is the translation state of one locale and namespace. Total
// counts the keys sources reference; dead leaves are reported apart.
type StatusRow struct {
	Locale     string `json:"locale"`
	Namespace  string `json:"namespace"`
	Path       string `json:"path"`
	Exists     bool   `json:"exists"`
	Total      int    `json:"total"`
	Translated int    `json:"translated"`
	Missing    int    `json:"missing"`
	Dead       int    `json:"dead"`

	// Strings and Empty count the string leaves of the file section,
	// referenced or not. Untranslated lists the empty ones.
	Strings      int      `json:"strings"`
	Empty        int      `json:"empty"`
	Untranslated []string `json:"untranslated,omitempty"`
}

// Percent returns the translated share of the referenced keys.
func (s StatusRow) Percent() float64 {
	if s.Total == 0 {
		return 100
	}
	return float64(s.Translated) * 100 / float64(s.Total)
}

// Complete reports whether every referenced key has a translation.
func (s StatusRow) Complete() bool {
	return s.Translated == s.Total
}

// Status reports per locale and namespace how many keys are translated.
// Empty filters select everything.
func (r *Runner) Status(ctx context.Context, locales, namespaces []string) ([]StatusRow, error) {
	rc := r.runContext(NewRunID())
	col, err := r.Collect(ctx, rc)
	if err != nil {
		return nil, err
	}
	pres, err := r.preserver(col)
	if err != nil {
		return nil, err
	}

	var rows []StatusRow
	for _, t := range filterTargets(r.Plan(col, nil), locales) {
		doc, exists, err := r.store.Load(t.Path)
		if err != nil {
			return nil, err
		}
		opts := r.mergeOptions(t.Locale, pres)
		opts.RemoveUnused = true
		for _, sec := range t.Sections {
			if len(namespaces) > 0 && !lo.Contains(namespaces, sec.Namespace) {
				continue
			}
			row := StatusRow{Locale: t.Locale, Namespace: sec.Namespace, Path: r.rel(t.Path), Exists: exists}
			for _, k := range sec.Keys {
				if k.Marker {
					continue
				}
				row.Total++
				n, ok := doc.Lookup(append(append([]string(nil), sec.Prefix...), k.Path...))
				switch {
				case !ok || !n.IsLeaf():
					row.Missing++
				case n.Kind != i18next.StringNode || n.Str != "":
					row.Translated++
				}
			}
			_, dead := merge.Inspect(doc, []merge.Section{sec}, opts)
			row.Dead = len(dead)
			if sub := sectionDoc(doc, sec.Prefix); sub != nil {
				row.Strings, _, row.Empty = sub.Stats()
				row.Untranslated = sub.UntranslatedKeys(r.seps.Key)
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// sectionDoc returns the part of doc under prefix, or nil when there is
// no object there.
func sectionDoc(doc *i18next.Document, prefix []string) *i18next.Document {
	if len(prefix) == 0 {
		return doc
	}
	n, ok := doc.Lookup(prefix)
	if !ok || n.Kind != i18next.ObjectNode {
		return nil
	}
	return &i18next.Document{Root: n.Obj, Style: doc.Style}
}

// ---------------------------------------------------------------------------
// Sync
// ---------------------------------------------------------------------------

// SyncLocales copies the key structure of the primary locale into the
// other locales (or only into locales, when given). Missing keys get empty
// values; plural keys are re-expanded with each locale's categories.
func (r *Runner) SyncLocales(ctx context.Context, locales []string, removeUnused bool) ([]TargetReport, []keys.Diagnostic, error) {
	primary := r.cfg.Primary()
	pres, err := merge.NewPreserver(r.cfg.PreservePatterns, r.seps.Namespace)
	if err != nil {
		return nil, nil, err
	}

	namespaces := []string{r.cfg.DefaultNamespace}
	if !r.layout.Merged() {
		namespaces = lo.Uniq(append(r.layout.Namespaces(primary), r.cfg.DefaultNamespace))
	}

	type pair struct{ locale, ns, from, to string }
	var pairs []pair
	for _, locale := range r.cfg.Locales {
		if locale == primary || (len(locales) > 0 && !lo.Contains(locales, locale)) {
			continue
		}
		for _, ns := range namespaces {
			pairs = append(pairs, pair{locale, ns, r.layout.Path(primary, ns), r.layout.Path(locale, ns)})
		}
	}

	reports := make([]TargetReport, len(pairs))
	diags := make([][]keys.Diagnostic, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, p := range pairs {
		g.Go(func() error {
			label := p.ns
			if r.layout.Merged() {
				label = strings.TrimSuffix(filepath.Base(p.to), ".json")
			}
			reports[i], diags[i] = r.syncOne(gctx, primary, p.locale, label, p.from, p.to, removeUnused, pres)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var out []TargetReport
	var all []keys.Diagnostic
	for i, rep := range reports {
		if rep.Path == "" {
			continue
		}
		out = append(out, rep)
		all = append(all, diags[i]...)
	}
	return out, all, nil
}

func (r *Runner) syncOne(ctx context.Context, primary, locale, ns, from, to string, removeUnused bool, pres *merge.Preserver) (TargetReport, []keys.Diagnostic) {
	src, exists, err := r.store.Load(from)
	if err != nil {
		return TargetReport{
			Path: r.rel(to), Locale: locale, Namespaces: []string{ns}, State: merge.Failed, Error: err.Error(),
		}, []keys.Diagnostic{{Kind: keys.IOFailure, Message: err.Error(), Location: keys.Location{File: r.rel(from)}}}
	}
	if !exists {
		return TargetReport{}, nil
	}

	opts := merge.SyncOptions{
		PluralSeparator: r.seps.Plural,
		RemoveUnused:    removeUnused,
		Sort:            r.cfg.Sort,
		Preserve:        pres,
		Namespace:       ns,
	}
	if !r.cfg.DisablePlurals {
		opts.PrimaryCategories = func(ordinal bool) []string { return plural.Categories(primary, ordinal) }
		opts.Secondary = r.expander.ForLocale(locale)
	}

	rep := TargetReport{Path: r.rel(to), Locale: locale, Namespaces: []string{ns}, State: merge.Loaded}
	var diags []keys.Diagnostic
	err = r.store.Update(ctx, to, func(doc *i18next.Document, exists bool) (bool, error) {
		res := merge.Sync(src, doc, opts)
		rep.Added, rep.Removed, rep.Created = res.Added, res.Removed, !exists
		diags = res.Conflicts
		if r.dryRun || (!res.Changed() && exists) {
			rep.State = merge.Skipped
			return false, nil
		}
		r.applyStyle(doc)
		rep.State = merge.Written
		return true, nil
	})
	if err != nil {
		rep.State = merge.Failed
		rep.Error = err.Error()
		diags = append(diags, keys.Diagnostic{Kind: keys.IOFailure, Message: err.Error(), Location: keys.Location{File: rep.Path}})
	}
	return rep, diags
}
