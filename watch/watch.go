// Package watch keeps locale files in sync while sources change.
//
// The watcher extracts everything once, then listens for file system
// events below the static prefixes of the input globs. Events are
// debounced; changed sources are re-extracted and only the namespaces they
// touched are reconciled again.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/minios-linux/i18nsync/extract"
	"github.com/minios-linux/i18nsync/hooks"
	"github.com/minios-linux/i18nsync/pipeline"
)

// DefaultDebounce is the quiet period before a batch of events is handled.
const DefaultDebounce = 300 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	Runner *pipeline.Runner
	// Root is the project directory on the OS filesystem.
	Root     string
	Debounce time.Duration
	Logger   zerolog.Logger
	// OnReport is called after every reconciliation, from the goroutine
	// that ran it.
	OnReport func(*pipeline.Report)
	// OnError is called for run errors that do not stop the watcher.
	OnError func(error)
}

// Watcher runs the incremental loop.
type Watcher struct {
	opts Options
	log  zerolog.Logger

	mu      sync.Mutex
	results map[string]pipeline.FileResult

	co *coalescer
}

// New prepares a Watcher.
func New(opts Options) (*Watcher, error) {
	if opts.Runner == nil {
		return nil, errors.New("watch: no runner")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	w := &Watcher{
		opts:    opts,
		log:     opts.Logger,
		results: make(map[string]pipeline.FileResult),
	}
	w.co = newCoalescer(w.reconcile)
	return w, nil
}

// Run performs the initial sync and then watches until ctx is done. It
// waits for in-flight reconciliations before returning.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.co.wait()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	for _, dir := range w.roots() {
		if err := w.addRecursive(fsw, dir); err != nil {
			return err
		}
	}

	if err := w.initial(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	pending := false
	pendingPaths := map[string]bool{}

	resetDebounce := func(rel string) {
		pendingPaths[rel] = true
		if pending && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.opts.Debounce)
		pending = true
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			path := filepath.Clean(event.Name)
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(path); err == nil && info.IsDir() {
					if err := w.addRecursive(fsw, path); err != nil {
						w.log.Warn().Err(err).Str("dir", path).Msg("cannot watch directory")
					}
					continue
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			rel, ok := w.relSource(path)
			if !ok {
				continue
			}
			resetDebounce(rel)

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			changed := make([]string, 0, len(pendingPaths))
			for p := range pendingPaths {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pendingPaths = map[string]bool{}
			w.changed(ctx, changed)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// ---------------------------------------------------------------------------
// Directories
// ---------------------------------------------------------------------------

// roots returns the existing static prefixes of the input globs.
func (w *Watcher) roots() []string {
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range w.opts.Runner.Config().Input {
		dir := filepath.Join(w.opts.Root, filepath.FromSlash(extract.StaticPrefix(pattern)))
		for {
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir || !strings.HasPrefix(parent, filepath.Clean(w.opts.Root)) {
				break
			}
			dir = parent
		}
		if !seen[dir] {
			seen[dir] = true
			out = append(out, dir)
		}
	}
	sort.Strings(out)
	return out
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && extract.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func (w *Watcher) relSource(path string) (string, bool) {
	rel, err := filepath.Rel(w.opts.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(rel)
	if strings.HasPrefix(base, ".#") || strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, "~") {
		return "", false
	}
	return rel, w.opts.Runner.Matcher().Match(rel)
}

// ---------------------------------------------------------------------------
// Extraction state
// ---------------------------------------------------------------------------

func (w *Watcher) initial(ctx context.Context) error {
	files, err := w.opts.Runner.Discover()
	if err != nil {
		return err
	}
	rc := hooks.RunContext{RunID: pipeline.NewRunID(), Root: w.opts.Root}
	results, err := w.opts.Runner.ExtractFiles(ctx, rc, files)
	if err != nil {
		return err
	}
	w.mu.Lock()
	for _, r := range results {
		w.results[r.File] = r
	}
	w.mu.Unlock()

	w.log.Info().Int("files", len(files)).Msg("watching for changes")
	w.co.trigger(ctx, nil)
	return nil
}

// changed re-extracts files and schedules reconciliation of the
// namespaces whose keys changed.
func (w *Watcher) changed(ctx context.Context, files []string) {
	var existing []string
	touched := make(map[string]bool)

	w.mu.Lock()
	for _, f := range files {
		if _, err := os.Stat(filepath.Join(w.opts.Root, filepath.FromSlash(f))); err == nil {
			existing = append(existing, f)
			continue
		}
		w.opts.Runner.Forget(f)
		if old, ok := w.results[f]; ok {
			addNamespaces(touched, old)
			delete(w.results, f)
			w.log.Debug().Str("file", f).Msg("source removed")
		}
	}
	w.mu.Unlock()

	if len(existing) > 0 {
		rc := hooks.RunContext{RunID: pipeline.NewRunID(), Root: w.opts.Root}
		results, err := w.opts.Runner.ExtractFiles(ctx, rc, existing)
		if err != nil {
			w.fail(err)
			return
		}
		w.mu.Lock()
		for _, r := range results {
			old, had := w.results[r.File]
			if had && old.Hash == r.Hash && old.Err == nil && r.Err == nil {
				continue
			}
			if had {
				addNamespaces(touched, old)
			}
			addNamespaces(touched, r)
			w.results[r.File] = r
			w.log.Debug().Str("file", r.File).Int("keys", len(r.Keys)).Msg("source changed")
		}
		w.mu.Unlock()
	}

	if len(touched) == 0 {
		return
	}
	w.co.trigger(ctx, touched)
}

func addNamespaces(set map[string]bool, r pipeline.FileResult) {
	for _, k := range r.Keys {
		set[k.Namespace] = true
	}
}

// snapshot returns the current results in file order.
func (w *Watcher) snapshot() []pipeline.FileResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]pipeline.FileResult, 0, len(w.results))
	for _, r := range w.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out
}

func (w *Watcher) reconcile(ctx context.Context, only map[string]bool) {
	rep, err := w.opts.Runner.RunOnly(ctx, pipeline.NewRunID(), w.snapshot(), only)
	if err != nil {
		w.fail(err)
		return
	}
	if w.opts.OnReport != nil {
		w.opts.OnReport(rep)
	}
}

func (w *Watcher) fail(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	w.log.Error().Err(err).Msg("watch run failed")
	if w.opts.OnError != nil {
		w.opts.OnError(err)
	}
}
