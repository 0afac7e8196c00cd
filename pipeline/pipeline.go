// Package pipeline orchestrates a run: source discovery, extraction on a
// worker pool, aggregation on the caller, and reconciliation of every
// target file.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/minios-linux/i18nsync/config"
	"github.com/minios-linux/i18nsync/extract"
	"github.com/minios-linux/i18nsync/hooks"
	"github.com/minios-linux/i18nsync/i18next"
	"github.com/minios-linux/i18nsync/keys"
	"github.com/minios-linux/i18nsync/lockfile"
	"github.com/minios-linux/i18nsync/merge"
	"github.com/minios-linux/i18nsync/syntax"
)

// Progress receives extraction progress.
type Progress interface {
	Start(total int)
	Advance()
	Finish()
}

// Options configures a Runner.
type Options struct {
	Config *config.Config
	// Root is the project directory; input globs and output are relative
	// to it.
	Root string
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// Store defaults to an i18next.Store on Fs.
	Store  *i18next.Store
	Logger zerolog.Logger
	Hooks  *hooks.Runner
	// Cache, when set, skips sources whose content hash is unchanged.
	Cache    *lockfile.LockFile
	Progress Progress

	// DryRun computes every change without writing.
	DryRun bool
	// FailFast aborts the run on the first unparseable source.
	FailFast bool
}

// Runner executes pipeline runs for one configuration. Its methods may be
// called repeatedly, as watch mode does.
type Runner struct {
	cfg      *config.Config
	root     string
	fs       afero.Fs
	store    *i18next.Store
	log      zerolog.Logger
	hooks    *hooks.Runner
	cache    *lockfile.LockFile
	progress Progress
	dryRun   bool
	failFast bool

	seps     keys.Separators
	matcher  *extract.Matcher
	xopts    extract.Options
	expander *keys.Expander
	layout   Layout
}

// New validates opts and prepares a Runner.
func New(opts Options) (*Runner, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Defaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	store := opts.Store
	if store == nil {
		store = i18next.NewStore(fs, nil)
	}
	matcher, err := extract.NewMatcher(cfg.Input, cfg.Ignore)
	if err != nil {
		return nil, err
	}

	seps := cfg.Separators()
	r := &Runner{
		cfg:      cfg,
		root:     opts.Root,
		fs:       fs,
		store:    store,
		log:      opts.Logger,
		hooks:    opts.Hooks,
		cache:    opts.Cache,
		progress: opts.Progress,
		dryRun:   opts.DryRun,
		failFast: opts.FailFast,
		seps:     seps,
		matcher:  matcher,
		xopts: extract.Options{
			Functions:               cfg.Functions,
			UseTranslationNames:     cfg.UseTranslationNames,
			TransComponents:         cfg.TransComponents,
			TransKeepBasicHTML:      cfg.TransKeepBasicHtmlNodesFor,
			Separators:              seps,
			DefaultNamespace:        cfg.DefaultNamespace,
			ExtractFromComments:     cfg.ExtractFromComments,
			NestingPrefix:           cfg.NestingPrefix,
			NestingSuffix:           cfg.NestingSuffix,
			NestingOptionsSeparator: cfg.NestingOptionsSeparator,
			PreservePatterns:        cfg.PreservePatterns,
			Logger:                  opts.Logger,
		},
		expander: &keys.Expander{
			Locales:                 cfg.Locales,
			Separators:              seps,
			DisablePlurals:          cfg.DisablePlurals,
			GenerateBasePluralForms: cfg.GenerateBasePluralForms,
		},
		layout: NewLayout(fs, opts.Root, cfg),
	}
	if r.cache != nil && !r.cache.UseFingerprint(r.Fingerprint()) {
		r.log.Debug().Msg("extraction settings changed, cache reset")
	}
	return r, nil
}

// Config returns the configuration the runner was built with.
func (r *Runner) Config() *config.Config { return r.cfg }

// Layout returns the target file layout.
func (r *Runner) Layout() Layout { return r.layout }

// Matcher returns the source matcher.
func (r *Runner) Matcher() *extract.Matcher { return r.matcher }

// Fingerprint identifies the settings that influence extraction results.
func (r *Runner) Fingerprint() string {
	var onLoad []string
	for _, p := range r.cfg.Plugins {
		onLoad = append(onLoad, p.OnLoad)
	}
	data, _ := json.Marshal(struct {
		X      extract.Options
		OnLoad []string
	}{r.xopts, onLoad})
	return lockfile.Hash(data)
}

func (r *Runner) runContext(runID string) hooks.RunContext {
	return hooks.RunContext{
		RunID:            runID,
		Root:             r.root,
		Locales:          r.cfg.Locales,
		DefaultNamespace: r.cfg.DefaultNamespace,
		DryRun:           r.dryRun,
	}
}

// NewRunID returns a short id for log correlation.
func NewRunID() string {
	return uuid.NewString()[:8]
}

// ---------------------------------------------------------------------------
// Discovery and extraction
// ---------------------------------------------------------------------------

// Discover lists the matching sources, relative to the root.
func (r *Runner) Discover() ([]string, error) {
	return extract.FindSources(r.fs, r.root, r.matcher)
}

// Forget drops a deleted source from the extraction cache.
func (r *Runner) Forget(file string) {
	if r.cache != nil {
		r.cache.Remove(file)
	}
}

// FileResult is the extraction outcome of one source.
type FileResult struct {
	File        string
	Hash        string
	Keys        []keys.ExtractedKey
	Diagnostics []keys.Diagnostic
	// Err is set when the source could not be read or parsed.
	Err    error
	Cached bool
}

// Unparseable reports whether the source failed to parse.
func (f FileResult) Unparseable() bool {
	return errors.Is(f.Err, syntax.ErrUnparseable)
}

// ErrFailFast is returned when FailFast stopped a run.
var ErrFailFast = errors.New("aborted on unparseable source")

// ExtractFiles extracts files on the worker pool. Results come back in
// input order.
func (r *Runner) ExtractFiles(ctx context.Context, rc hooks.RunContext, files []string) ([]FileResult, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	pool := NewPool[string, FileResult](r.cfg.Concurrency, func() (WorkerFunc[string, FileResult], func(), error) {
		ex, err := extract.New(r.xopts)
		if err != nil {
			return nil, nil, err
		}
		fn := func(ctx context.Context, file string) (FileResult, error) {
			res := r.extractOne(ctx, ex, rc, file)
			if r.failFast && res.Unparseable() {
				cancel(fmt.Errorf("%w: %s", ErrFailFast, file))
			}
			return res, nil
		}
		return fn, ex.Close, nil
	})
	if r.progress != nil {
		r.progress.Start(len(files))
		defer r.progress.Finish()
		pool.OnDone(r.progress.Advance)
	}

	tasks, err := pool.Execute(ctx, files)
	if err != nil {
		return nil, err
	}
	if cause := context.Cause(ctx); cause != nil {
		return nil, cause
	}
	out := make([]FileResult, len(tasks))
	for i, t := range tasks {
		out[i] = t.Result
	}
	return out, nil
}

func (r *Runner) extractOne(ctx context.Context, ex *extract.Extractor, rc hooks.RunContext, file string) FileResult {
	res := FileResult{File: file}
	data, err := afero.ReadFile(r.fs, filepath.Join(r.root, filepath.FromSlash(file)))
	if err != nil {
		res.Err = fmt.Errorf("reading %s: %w", file, err)
		res.Diagnostics = []keys.Diagnostic{{Kind: keys.IOFailure, Message: res.Err.Error(), Location: keys.Location{File: file}}}
		return res
	}
	res.Hash = lockfile.Hash(data)

	if r.cache != nil {
		if e, ok := r.cache.Get(file, res.Hash); ok {
			res.Keys, res.Diagnostics, res.Cached = e.Keys, e.Diagnostics, true
			return res
		}
	}

	src, hookDiags := r.hooks.OnLoad(ctx, rc, file, data)
	xr, err := ex.Extract(ctx, file, src)
	if err != nil {
		res.Err = err
		res.Diagnostics = append(hookDiags, keys.Diagnostic{
			Kind:     keys.ParseFailure,
			Message:  err.Error(),
			Location: keys.Location{File: file},
		})
		return res
	}
	res.Keys = xr.Keys
	res.Diagnostics = append(hookDiags, xr.Diagnostics...)

	if r.cache != nil {
		r.cache.Update(file, res.Hash, res.Keys, res.Diagnostics)
	}
	return res
}

// ---------------------------------------------------------------------------
// Aggregation
// ---------------------------------------------------------------------------

// Collection is the folded result of an extraction.
type Collection struct {
	Agg           *keys.Aggregator
	Files         int
	Cached        int
	Keys          int
	Diagnostics   []keys.Diagnostic
	ParseFailures []ParseFailure
}

// ParseFailure is a source that was skipped.
type ParseFailure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Fold aggregates results in order on the calling goroutine.
func (r *Runner) Fold(ctx context.Context, rc hooks.RunContext, results []FileResult) *Collection {
	col := &Collection{Agg: keys.NewAggregator(r.seps.Key), Files: len(results)}
	visit := r.hooks.VisitsKeys()
	for _, fr := range results {
		if fr.Cached {
			col.Cached++
		}
		col.Diagnostics = append(col.Diagnostics, fr.Diagnostics...)
		if fr.Err != nil {
			col.ParseFailures = append(col.ParseFailures, ParseFailure{File: fr.File, Error: fr.Err.Error()})
			continue
		}
		for _, k := range fr.Keys {
			if visit {
				col.Diagnostics = append(col.Diagnostics, r.hooks.OnVisitKey(ctx, rc, k)...)
			}
			col.Agg.AddExtracted(r.expander, k)
			col.Keys++
		}
	}
	return col
}

// Namespaces returns the namespaces to reconcile. The default namespace is
// always included so its file exists for every locale.
func (r *Runner) Namespaces(col *Collection) []string {
	set := map[string]bool{r.cfg.DefaultNamespace: true}
	for _, ns := range col.Agg.Namespaces() {
		set[ns] = true
	}
	out := make([]string, 0, len(set))
	for ns := range set {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Collect discovers, extracts and folds every source.
func (r *Runner) Collect(ctx context.Context, rc hooks.RunContext) (*Collection, error) {
	files, err := r.Discover()
	if err != nil {
		return nil, err
	}
	results, err := r.ExtractFiles(ctx, rc, files)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Clean(files)
	}
	return r.Fold(ctx, rc, results), nil
}

// ---------------------------------------------------------------------------
// Targets
// ---------------------------------------------------------------------------

// Target is one resource file and the namespaces it holds.
type Target struct {
	Path     string
	Locale   string
	Sections []merge.Section
}

// Namespaces lists the namespaces of t.
func (t Target) Namespaces() []string {
	out := make([]string, len(t.Sections))
	for i, s := range t.Sections {
		out[i] = s.Namespace
	}
	return out
}

// Plan builds one target per locale and namespace, or one per locale with
// merged namespaces. A non-nil only limits the plan to those namespaces.
func (r *Runner) Plan(col *Collection, only map[string]bool) []Target {
	var targets []Target
	for _, locale := range r.cfg.Locales {
		var merged *Target
		for _, ns := range r.Namespaces(col) {
			if only != nil && !only[ns] {
				continue
			}
			sec := merge.Section{Namespace: ns}
			if b := col.Agg.Bucket(locale, ns); b != nil {
				sec.Keys = b.Keys
			}
			if r.layout.Merged() {
				sec.Prefix = []string{ns}
				if merged == nil {
					merged = &Target{Path: r.layout.Path(locale, ns), Locale: locale}
				}
				merged.Sections = append(merged.Sections, sec)
				continue
			}
			targets = append(targets, Target{
				Path:     r.layout.Path(locale, ns),
				Locale:   locale,
				Sections: []merge.Section{sec},
			})
		}
		if merged != nil {
			targets = append(targets, *merged)
		}
	}
	return targets
}

// preserver combines the configured preserve patterns with the dynamic
// key patterns found in sources.
func (r *Runner) preserver(col *Collection) (*merge.Preserver, error) {
	p, err := merge.NewPreserver(r.cfg.PreservePatterns, r.seps.Namespace)
	if err != nil {
		return nil, err
	}
	for _, ns := range col.Agg.Namespaces() {
		for _, pat := range col.Agg.Patterns(ns) {
			if err := p.Add(ns, pat); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func (r *Runner) mergeOptions(locale string, pres *merge.Preserver) merge.Options {
	return merge.Options{
		Locale:       locale,
		Separators:   r.seps,
		RemoveUnused: r.cfg.RemoveUnusedKeys,
		Sort:         r.cfg.Sort,
		DefaultValue: r.cfg.DefaultValue,
		Preserve:     pres,
	}
}

func (r *Runner) applyStyle(doc *i18next.Document) {
	if r.cfg.Indentation != "" {
		doc.Style.Indent = string(r.cfg.Indentation)
	}
}

// TargetReport describes what happened to one target file.
type TargetReport struct {
	Path       string      `json:"path"`
	Locale     string      `json:"locale"`
	Namespaces []string    `json:"namespaces"`
	State      merge.State `json:"state"`
	Created    bool        `json:"created,omitempty"`
	Added      []string    `json:"added,omitempty"`
	Removed    []string    `json:"removed,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Changed reports whether the target was, or in a dry run would be,
// modified.
func (t TargetReport) Changed() bool {
	return t.Created || len(t.Added) > 0 || len(t.Removed) > 0
}

// Apply reconciles targets concurrently. Each target is serialized by the
// store lock; a failing target does not stop the others.
func (r *Runner) Apply(ctx context.Context, col *Collection, targets []Target) ([]TargetReport, []keys.Diagnostic, error) {
	pres, err := r.preserver(col)
	if err != nil {
		return nil, nil, err
	}

	reports := make([]TargetReport, len(targets))
	diags := make([][]keys.Diagnostic, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, t := range targets {
		g.Go(func() error {
			reports[i], diags[i] = r.applyOne(gctx, t, pres)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var all []keys.Diagnostic
	for _, d := range diags {
		all = append(all, d...)
	}
	return reports, all, nil
}

func (r *Runner) applyOne(ctx context.Context, t Target, pres *merge.Preserver) (TargetReport, []keys.Diagnostic) {
	rep := TargetReport{Path: r.rel(t.Path), Locale: t.Locale, Namespaces: t.Namespaces(), State: merge.Loaded}
	var diags []keys.Diagnostic

	err := r.store.Update(ctx, t.Path, func(doc *i18next.Document, exists bool) (bool, error) {
		res := merge.Reconcile(doc, t.Sections, r.mergeOptions(t.Locale, pres))
		rep.State = res.State
		rep.Added, rep.Removed = res.Added, res.Removed
		rep.Created = !exists
		diags = res.Conflicts
		if !res.Changed() && exists {
			rep.State = merge.Skipped
			return false, nil
		}
		if r.dryRun {
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
		r.log.Error().Err(err).Str("target", rep.Path).Msg("reconcile failed")
		return rep, diags
	}

	r.log.Debug().
		Str("target", rep.Path).
		Str("state", string(rep.State)).
		Int("added", len(rep.Added)).
		Int("removed", len(rep.Removed)).
		Msg("reconciled")
	return rep, diags
}

func (r *Runner) rel(path string) string {
	if rel, err := filepath.Rel(r.root, path); err == nil && r.root != "" {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

// ---------------------------------------------------------------------------
// Full run
// ---------------------------------------------------------------------------

// Report summarizes a run.
type Report struct {
	RunID         string             `json:"runId"`
	DryRun        bool               `json:"dryRun"`
	Files         int                `json:"files"`
	Cached        int                `json:"cached"`
	Keys          int                `json:"keys"`
	Targets       []TargetReport     `json:"targets"`
	Conflicts     []keys.KeyConflict `json:"conflicts,omitempty"`
	Diagnostics   []keys.Diagnostic  `json:"diagnostics,omitempty"`
	ParseFailures []ParseFailure     `json:"parseFailures,omitempty"`
	Duration      time.Duration      `json:"duration"`
}

// Changed reports whether any target was (or would be) modified.
func (rep *Report) Changed() bool {
	for _, t := range rep.Targets {
		if t.Changed() {
			return true
		}
	}
	return false
}

// Counts returns the total number of added and removed keys.
func (rep *Report) Counts() (added, removed int) {
	for _, t := range rep.Targets {
		added += len(t.Added)
		removed += len(t.Removed)
	}
	return added, removed
}

// Warnings returns the diagnostics promoted by fail-on-warnings.
func (rep *Report) Warnings() []keys.Diagnostic {
	var out []keys.Diagnostic
	for _, d := range rep.Diagnostics {
		if d.IsWarning() {
			out = append(out, d)
		}
	}
	return out
}

// Failed returns the targets that could not be reconciled.
func (rep *Report) Failed() []TargetReport {
	var out []TargetReport
	for _, t := range rep.Targets {
		if t.State == merge.Failed {
			out = append(out, t)
		}
	}
	return out
}

// Run performs a complete extraction and reconciliation.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	return r.RunOnly(ctx, NewRunID(), nil, nil)
}

// RunOnly runs the pipeline from already extracted results when results
// is non-nil, and reconciles only the namespaces in only when that is
// non-nil.
func (r *Runner) RunOnly(ctx context.Context, runID string, results []FileResult, only map[string]bool) (*Report, error) {
	start := time.Now()
	log := r.log.With().Str("run", runID).Logger()
	rc := r.runContext(runID)
	rep := &Report{RunID: runID, DryRun: r.dryRun}

	rep.Diagnostics = append(rep.Diagnostics, r.hooks.Setup(ctx, rc)...)

	var col *Collection
	if results == nil {
		var err error
		if col, err = r.Collect(ctx, rc); err != nil {
			return nil, err
		}
	} else {
		col = r.Fold(ctx, rc, results)
	}
	rep.Files, rep.Cached, rep.Keys = col.Files, col.Cached, col.Keys
	rep.Diagnostics = append(rep.Diagnostics, col.Diagnostics...)
	rep.ParseFailures = col.ParseFailures
	rep.Conflicts = col.Agg.Conflicts()
	log.Debug().Int("files", col.Files).Int("cached", col.Cached).Int("keys", col.Keys).Msg("extraction done")

	rep.Diagnostics = append(rep.Diagnostics, r.hooks.OnEnd(ctx, rc, hooks.EndSummary{
		Files:      col.Files,
		Keys:       col.Keys,
		Namespaces: r.Namespaces(col),
	})...)

	targets, diags, err := r.Apply(ctx, col, r.Plan(col, only))
	if err != nil {
		return nil, err
	}
	rep.Targets = targets
	rep.Diagnostics = append(rep.Diagnostics, diags...)

	if r.hooks.Len() > 0 {
		summaries := make([]hooks.TargetSummary, len(targets))
		for i, t := range targets {
			summaries[i] = hooks.TargetSummary{
				Path: t.Path, Locale: t.Locale, Namespaces: t.Namespaces,
				Added: len(t.Added), Removed: len(t.Removed), State: string(t.State),
			}
		}
		rep.Diagnostics = append(rep.Diagnostics, r.hooks.AfterSync(ctx, rc, summaries)...)
	}

	rep.Duration = time.Since(start)
	added, removed := rep.Counts()
	log.Info().
		Int("files", rep.Files).
		Int("keys", rep.Keys).
		Int("added", added).
		Int("removed", removed).
		Dur("took", rep.Duration).
		Msg("run complete")
	return rep, nil
}
