// Package hooks defines the plugin hook contract of a pipeline run.
//
// A plugin implements Plugin plus any subset of the hook interfaces. The
// Runner invokes them in registration order. A failing hook is logged as a
// warning and reported as a hook-failure diagnostic; it never aborts the
// run.
package hooks

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/minios-linux/i18nsync/keys"
)

// RunContext describes the run every hook belongs to.
type RunContext struct {
	RunID            string   `json:"runId"`
	Root             string   `json:"root"`
	Locales          []string `json:"locales"`
	DefaultNamespace string   `json:"defaultNS"`
	DryRun           bool     `json:"dryRun"`
}

// EndSummary is passed to OnEnd once extraction and aggregation are done.
type EndSummary struct {
	Files      int      `json:"files"`
	Keys       int      `json:"keys"`
	Namespaces []string `json:"namespaces"`
}

// TargetSummary describes one reconciled locale file for AfterSync.
type TargetSummary struct {
	Path       string   `json:"path"`
	Locale     string   `json:"locale"`
	Namespaces []string `json:"namespaces"`
	Added      int      `json:"added"`
	Removed    int      `json:"removed"`
	State      string   `json:"state"`
}

// Plugin is the base interface of every plugin.
type Plugin interface {
	Name() string
}

// Setuper runs before any source is read.
type Setuper interface {
	Setup(ctx context.Context, rc RunContext) error
}

// Loader may replace the content of a source before it is parsed. It is
// called from extraction workers concurrently.
type Loader interface {
	OnLoad(ctx context.Context, rc RunContext, file string, src []byte) ([]byte, error)
}

// KeyVisitor sees every extracted key. Calls happen on the folding
// goroutine, in file order.
type KeyVisitor interface {
	OnVisitKey(ctx context.Context, rc RunContext, k keys.ExtractedKey) error
}

// Ender runs after aggregation, before reconciliation.
type Ender interface {
	OnEnd(ctx context.Context, rc RunContext, s EndSummary) error
}

// AfterSyncer runs once every target has been reconciled.
type AfterSyncer interface {
	AfterSync(ctx context.Context, rc RunContext, targets []TargetSummary) error
}

// Runner dispatches hooks to a set of plugins.
type Runner struct {
	plugins []Plugin
	log     zerolog.Logger
}

// NewRunner returns a Runner for plugins. A nil Runner is valid and has no
// plugins.
func NewRunner(log zerolog.Logger, plugins ...Plugin) *Runner {
	return &Runner{plugins: plugins, log: log}
}

// Len returns the number of plugins.
func (r *Runner) Len() int {
	if r == nil {
		return 0
	}
	return len(r.plugins)
}

// VisitsKeys reports whether any plugin implements KeyVisitor.
func (r *Runner) VisitsKeys() bool {
	if r == nil {
		return false
	}
	for _, p := range r.plugins {
		if _, ok := p.(KeyVisitor); !ok {
			continue
		}
		if v, ok := p.(interface{ VisitsKeys() bool }); ok && !v.VisitsKeys() {
			continue
		}
		return true
	}
	return false
}

func (r *Runner) fail(p Plugin, hook string, loc keys.Location, err error) keys.Diagnostic {
	r.log.Warn().Err(err).Str("plugin", p.Name()).Str("hook", hook).Msg("plugin hook failed")
	return keys.Diagnostic{
		Kind:     keys.HookFailure,
		Message:  fmt.Sprintf("plugin %s: %s: %v", p.Name(), hook, err),
		Location: loc,
	}
}

// Setup calls every Setuper.
func (r *Runner) Setup(ctx context.Context, rc RunContext) []keys.Diagnostic {
	if r == nil {
		return nil
	}
	var diags []keys.Diagnostic
	for _, p := range r.plugins {
		if h, ok := p.(Setuper); ok {
			if err := h.Setup(ctx, rc); err != nil {
				diags = append(diags, r.fail(p, "setup", keys.Location{}, err))
			}
		}
	}
	return diags
}

// OnLoad pipes src through every Loader. A failing Loader leaves the
// content as it was before that plugin.
func (r *Runner) OnLoad(ctx context.Context, rc RunContext, file string, src []byte) ([]byte, []keys.Diagnostic) {
	if r == nil {
		return src, nil
	}
	var diags []keys.Diagnostic
	for _, p := range r.plugins {
		h, ok := p.(Loader)
		if !ok {
			continue
		}
		out, err := h.OnLoad(ctx, rc, file, src)
		if err != nil {
			diags = append(diags, r.fail(p, "onLoad", keys.Location{File: file}, err))
			continue
		}
		if out != nil {
			src = out
		}
	}
	return src, diags
}

// OnVisitKey calls every KeyVisitor for k.
func (r *Runner) OnVisitKey(ctx context.Context, rc RunContext, k keys.ExtractedKey) []keys.Diagnostic {
	if r == nil {
		return nil
	}
	var diags []keys.Diagnostic
	for _, p := range r.plugins {
		if h, ok := p.(KeyVisitor); ok {
			if err := h.OnVisitKey(ctx, rc, k); err != nil {
				diags = append(diags, r.fail(p, "onVisitKey", k.Location, err))
			}
		}
	}
	return diags
}

// OnEnd calls every Ender.
func (r *Runner) OnEnd(ctx context.Context, rc RunContext, s EndSummary) []keys.Diagnostic {
	if r == nil {
		return nil
	}
	var diags []keys.Diagnostic
	for _, p := range r.plugins {
		if h, ok := p.(Ender); ok {
			if err := h.OnEnd(ctx, rc, s); err != nil {
				diags = append(diags, r.fail(p, "onEnd", keys.Location{}, err))
			}
		}
	}
	return diags
}

// AfterSync calls every AfterSyncer.
func (r *Runner) AfterSync(ctx context.Context, rc RunContext, targets []TargetSummary) []keys.Diagnostic {
	if r == nil {
		return nil
	}
	var diags []keys.Diagnostic
	for _, p := range r.plugins {
		if h, ok := p.(AfterSyncer); ok {
			if err := h.AfterSync(ctx, rc, targets); err != nil {
				diags = append(diags, r.fail(p, "afterSync", keys.Location{}, err))
			}
		}
	}
	return diags
}
