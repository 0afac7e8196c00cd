package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/minios-linux/i18nsync/i18n"
	"github.com/minios-linux/i18nsync/keys"
	"github.com/minios-linux/i18nsync/langmeta"
	"github.com/minios-linux/i18nsync/merge"
	"github.com/minios-linux/i18nsync/pipeline"
	"github.com/minios-linux/i18nsync/watch"
)

// ---------------------------------------------------------------------------
// extract
// ---------------------------------------------------------------------------

func newExtractCmd() *cobra.Command {
	var (
		f       runFlags
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: i18n.T("Extract keys and update locale files"),
		Long: i18n.T(`Extract translation keys from every source matching the input globs and
reconcile them with the locale files of every configured locale.

Missing keys are added (with their default value for new keys), keys no
source references are removed unless preserved, existing values are never
changed. Files are only written when something changed.

Exit status is non-zero only with --ci, --fail-on-warnings or
--fail-on-conflict (and for configuration or I/O errors).`),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			runner, save, err := p.newRunner(f)
			if err != nil {
				return err
			}

			rep, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			save()

			if f.syncPrimary {
				targets, diags, err := runner.SyncLocales(cmd.Context(), nil, p.cfg.RemoveUnusedKeys)
				if err != nil {
					return err
				}
				rep.Targets = append(rep.Targets, targets...)
				rep.Diagnostics = append(rep.Diagnostics, diags...)
			}

			if jsonOut {
				if err := writeJSON(os.Stdout, rep); err != nil {
					return err
				}
			} else {
				printReport(rep)
			}
			if err := f.strict.Check(rep); err != nil {
				return err
			}
			if failed := rep.Failed(); len(failed) > 0 {
				return fmt.Errorf(i18n.T("%d locale file(s) could not be updated"), len(failed))
			}
			return nil
		},
	}

	addRunFlags(cmd.Flags(), &f, true)
	cmd.Flags().BoolVar(&jsonOut, "json", false, i18n.T("Print the report as JSON on stdout"))
	return cmd
}

// ---------------------------------------------------------------------------
// watch
// ---------------------------------------------------------------------------

func newWatchCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: i18n.T("Keep locale files in sync while sources change"),
		Long: i18n.T(`Run a full extraction, then watch the source directories and reconcile
the namespaces touched by every change. Stops on SIGINT or SIGTERM after
in-flight writes have finished.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			runner, save, err := p.newRunner(f)
			if err != nil {
				return err
			}
			defer save()

			ctx := cmd.Context()
			w, err := watch.New(watch.Options{
				Runner: runner,
				Root:   p.root,
				Logger: p.log,
				OnReport: func(rep *pipeline.Report) {
					if f.syncPrimary {
						targets, diags, err := runner.SyncLocales(ctx, nil, p.cfg.RemoveUnusedKeys)
						if err != nil {
							logError("%v", err)
						}
						rep.Targets = append(rep.Targets, targets...)
						rep.Diagnostics = append(rep.Diagnostics, diags...)
					}
					printReport(rep)
					if err := f.strict.Check(rep); err != nil {
						logError("%v", err)
					}
				},
				OnError: func(err error) { logError("%v", err) },
			})
			if err != nil {
				return err
			}

			logInfo(i18n.T("Watching %s (press Ctrl+C to stop)"), p.root)
			if err := w.Run(ctx); err != nil {
				return err
			}
			logInfo(i18n.T("Stopped"))
			return nil
		},
	}

	addRunFlags(cmd.Flags(), &f, false)
	return cmd
}

// ---------------------------------------------------------------------------
// check
// ---------------------------------------------------------------------------

func newCheckCmd() *cobra.Command {
	var (
		remove  bool
		dryRun  bool
		ci      bool
		jsonOut bool
		locales []string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: i18n.T("Report (and optionally remove) dead keys"),
		Long: i18n.T(`List keys present in locale files that no source references, per locale
and namespace. Preserve patterns and dynamic key patterns are honoured.
With --remove the dead keys are deleted; nothing else is changed.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			runner, _, err := p.newRunner(runFlags{dryRun: dryRun})
			if err != nil {
				return err
			}

			results, _, err := runner.Check(cmd.Context(), trimAll(locales), remove)
			if err != nil {
				return err
			}
			if jsonOut {
				if err := writeJSON(os.Stdout, results); err != nil {
					return err
				}
			} else {
				printCheck(results, remove && !dryRun)
			}

			dead := lo.SumBy(results, func(r pipeline.CheckResult) int {
				if len(r.Removed) > 0 {
					return 0
				}
				return len(r.Dead)
			})
			if ci && dead > 0 {
				return fmt.Errorf(i18n.T("%d dead key(s) found"), dead)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remove, "remove", false, i18n.T("Delete dead keys from the locale files"))
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, i18n.T("Only report what --remove would delete"))
	cmd.Flags().BoolVar(&ci, "ci", false, i18n.T("Fail when dead keys remain"))
	cmd.Flags().BoolVar(&jsonOut, "json", false, i18n.T("Print the result as JSON on stdout"))
	cmd.Flags().StringSliceVarP(&locales, "locale", "l", nil, i18n.T("Only check these locales"))
	return cmd
}

func printCheck(results []pipeline.CheckResult, removed bool) {
	total := 0
	for _, r := range results {
		if r.Error != "" {
			logError("%s: %s", r.Path, r.Error)
			continue
		}
		names := r.Dead
		if removed {
			names = r.Removed
		}
		if len(names) == 0 {
			continue
		}
		total += len(names)
		if removed {
			logSuccess(i18n.N("%s: removed %d dead key", "%s: removed %d dead keys", len(names)), r.Path, len(names))
		} else {
			logWarning(i18n.N("%s: %d dead key", "%s: %d dead keys", len(names)), r.Path, len(names))
		}
		for _, name := range names {
			fmt.Fprintf(os.Stderr, "    %s\n", name)
		}
	}
	if total == 0 {
		logSuccess(i18n.T("No dead keys"))
	}
}

// ---------------------------------------------------------------------------
// sync
// ---------------------------------------------------------------------------

func newSyncCmd() *cobra.Command {
	var (
		removeUnused bool
		dryRun       bool
		locales      []string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: i18n.T("Copy the primary locale's keys into the other locales"),
		Long: i18n.T(`Copy the key structure of the primary locale (primaryLocale, or the first
configured locale) into every other locale. Missing keys get empty values;
plural keys are expanded with each locale's own plural categories.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			runner, _, err := p.newRunner(runFlags{dryRun: dryRun})
			if err != nil {
				return err
			}

			logInfo(i18n.T("Primary locale: %s"), p.cfg.Primary())
			targets, diags, err := runner.SyncLocales(cmd.Context(), trimAll(locales), removeUnused)
			if err != nil {
				return err
			}
			rep := &pipeline.Report{DryRun: dryRun, Targets: targets, Diagnostics: diags}
			printReport(rep)
			if failed := rep.Failed(); len(failed) > 0 {
				return fmt.Errorf(i18n.T("%d locale file(s) could not be updated"), len(failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&removeUnused, "remove-unused", false, i18n.T("Remove keys the primary locale does not have"))
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, i18n.T("Compute changes without writing files"))
	cmd.Flags().StringSliceVarP(&locales, "locale", "l", nil, i18n.T("Only sync these locales"))
	return cmd
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	var (
		locales          []string
		namespaces       []string
		failOnIncomplete bool
		jsonOut          bool
		listEmpty        bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: i18n.T("Show translation progress per locale and namespace"),
		Long: i18n.T(`Show how many of the keys referenced by sources are translated in every
locale and namespace, with missing and dead key counts. Does not modify
any files.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			runner, _, err := p.newRunner(runFlags{})
			if err != nil {
				return err
			}

			rows, err := runner.Status(cmd.Context(), trimAll(locales), trimAll(namespaces))
			if err != nil {
				return err
			}
			if jsonOut {
				if err := writeJSON(os.Stdout, rows); err != nil {
					return err
				}
			} else {
				printStatus(os.Stderr, rows, listEmpty)
			}

			incomplete := lo.CountBy(rows, func(r pipeline.StatusRow) bool { return !r.Complete() })
			if failOnIncomplete && incomplete > 0 {
				return fmt.Errorf(i18n.T("%d locale file(s) incomplete"), incomplete)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&locales, "locale", "l", nil, i18n.T("Only show these locales"))
	cmd.Flags().StringSliceVarP(&namespaces, "namespace", "n", nil, i18n.T("Only show these namespaces"))
	cmd.Flags().BoolVar(&failOnIncomplete, "fail-on-incomplete", false, i18n.T("Fail when any translation is missing"))
	cmd.Flags().BoolVar(&jsonOut, "json", false, i18n.T("Print the table as JSON on stdout"))
	cmd.Flags().BoolVar(&listEmpty, "untranslated", false, i18n.T("List keys with empty values"))
	return cmd
}

func printStatus(w io.Writer, rows []pipeline.StatusRow, listEmpty bool) {
	if len(rows) == 0 {
		fmt.Fprintln(w, i18n.T("No locale files."))
		return
	}

	langWidth := lo.Max(lo.Map(rows, func(r pipeline.StatusRow, _ int) int { return len(r.Locale) }))
	nsWidth := lo.Max(lo.Map(rows, func(r pipeline.StatusRow, _ int) int { return len(r.Namespace) }))

	fmt.Fprintln(w)
	for _, r := range rows {
		meta := langmeta.Resolve(r.Locale)
		name := meta.Name
		if meta.Flag != "" {
			name = meta.Flag + " " + name
		}
		extra := ""
		if r.Missing > 0 {
			extra += fmt.Sprintf("  %s", fmt.Sprintf(i18n.T("%d missing"), r.Missing))
		}
		if r.Dead > 0 {
			extra += fmt.Sprintf("  %s", fmt.Sprintf(i18n.T("%d dead"), r.Dead))
		}
		if r.Empty > 0 {
			extra += fmt.Sprintf("  %s", fmt.Sprintf(i18n.T("%d of %d empty"), r.Empty, r.Strings))
		}
		if !r.Exists {
			extra += "  " + i18n.T("(no file)")
		}
		fmt.Fprintf(w, "  %-*s  %-*s  %s  %d/%d  %s%s\n",
			langWidth, r.Locale, nsWidth, r.Namespace,
			progressBar(int(r.Percent()), 20), r.Translated, r.Total, name, extra)
		if listEmpty {
			for _, k := range r.Untranslated {
				fmt.Fprintf(w, "      %s\n", k)
			}
		}
	}
	fmt.Fprintln(w)
}

// progressBar renders percent as a colored bar of width cells followed by
// the number.
func progressBar(percent, width int) string {
	percent = max(0, min(100, percent))
	filled := percent * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	c := color.New(color.FgYellow)
	switch {
	case percent >= 100:
		c = color.New(color.FgGreen)
	case percent < 30:
		c = color.New(color.FgRed)
	}
	return fmt.Sprintf("%s %3d%%", c.Sprint(bar), percent)
}

// ---------------------------------------------------------------------------
// Report output
// ---------------------------------------------------------------------------

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func printReport(rep *pipeline.Report) {
	for _, pf := range rep.ParseFailures {
		logWarning(i18n.T("Skipped %s: %s"), pf.File, pf.Error)
	}
	for _, d := range rep.Diagnostics {
		if d.Kind == keys.ParseFailure {
			continue
		}
		logWarning("%s", d)
	}
	for _, c := range rep.Conflicts {
		logWarning("%s", c)
	}

	for _, t := range rep.Targets {
		switch {
		case t.State == merge.Failed:
			logError("%s: %s", t.Path, t.Error)
		case !t.Changed():
			continue
		case rep.DryRun:
			logInfo(i18n.T("%s: would add %d, remove %d"), t.Path, len(t.Added), len(t.Removed))
		case t.Created:
			logSuccess(i18n.T("%s: created with %d keys"), t.Path, len(t.Added))
		default:
			logSuccess(i18n.T("%s: +%d -%d"), t.Path, len(t.Added), len(t.Removed))
		}
	}

	added, removed := rep.Counts()
	changed := lo.CountBy(rep.Targets, func(t pipeline.TargetReport) bool { return t.Changed() })
	if rep.Files > 0 || rep.Keys > 0 {
		logInfo(i18n.T("%d files, %d keys (%d cached)"), rep.Files, rep.Keys, rep.Cached)
	}
	if changed == 0 {
		logSuccess(i18n.T("Locale files are up to date"))
		return
	}
	logInfo(i18n.N("%d file changed: %d added, %d removed", "%d files changed: %d added, %d removed", changed), changed, added, removed)
}

func trimAll(values []string) []string {
	return lo.Compact(lo.Map(values, func(s string, _ int) string { return strings.TrimSpace(s) }))
}
