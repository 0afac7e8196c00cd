// Command i18nsync keeps i18next JSON resources in sync with the keys used in
// JavaScript and TypeScript sources.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/minios-linux/i18nsync/config"
	"github.com/minios-linux/i18nsync/hooks"
	"github.com/minios-linux/i18nsync/i18n"
	"github.com/minios-linux/i18nsync/lockfile"
	"github.com/minios-linux/i18nsync/pipeline"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	infoTag    = color.New(color.FgBlue).SprintFunc()
	successTag = color.New(color.FgGreen).SprintFunc()
	warnTag    = color.New(color.Bold, color.FgYellow).SprintFunc()
	errorTag   = color.New(color.FgRed).SprintFunc()
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, infoTag("[INFO]")+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, successTag("[OK]")+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, warnTag("[WARN]")+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, errorTag("[ERROR]")+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir    string
	configPath string
	logLevel   string
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "i18nsync",
		Short: i18n.T("Extract i18next keys from JS/TS sources and sync locale files"),
		Long: i18n.T(`i18nsync finds translation keys in JavaScript and TypeScript sources
(t() calls, useTranslation, <Trans>, comments) and reconciles them with
i18next JSON resource files: missing keys are added, keys no source uses
any more are removed, existing translations are never touched.

Commands:
  extract   Extract keys and update locale files
  watch     Keep locale files in sync while sources change
  check     Report (and optionally remove) dead keys
  sync      Copy the primary locale's keys into the other locales
  status    Show translation progress per locale and namespace
  init      Write a default configuration file
  migrate   Convert the configuration file to another format`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flags, inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", i18n.T("Project root directory"))
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", i18n.T("Configuration file (default: looked up in the root)"))
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", i18n.T("Log level: error, warn, info, debug (default from config)"))

	root.AddCommand(
		newExtractCmd(),
		newWatchCmd(),
		newCheckCmd(),
		newSyncCmd(),
		newStatusCmd(),
		newInitCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: i18n.T("Show version information"),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("i18nsync version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// init
// ---------------------------------------------------------------------------

func newInitCmd() *cobra.Command {
	var (
		force  bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: i18n.T("Write a default configuration file"),
		Long: i18n.T(`Write a default configuration file to the project root.

Locales already present under the output directory are detected and put
into the file. An existing configuration is only replaced with --force.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(format, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, i18n.T("Overwrite an existing configuration file"))
	cmd.Flags().StringVar(&format, "format", "yaml", i18n.T("File format: yaml, json, toml"))
	return cmd
}

func runInit(format string, force bool) error {
	name, ok := config.FileNameFor(format)
	if !ok {
		return fmt.Errorf(i18n.T("unknown format %q (use yaml, json or toml)"), format)
	}

	if existing := config.Find(rootDir); existing != "" && !force {
		return fmt.Errorf(i18n.T("%s already exists (use --force to overwrite)"), existing)
	}

	cfg := config.Defaults()
	if langs := config.DetectLocales(filepath.Join(rootDir, cfg.Output)); len(langs) > 0 {
		cfg.Locales = langs
		logInfo(i18n.T("Detected locales: %s"), strings.Join(langs, ", "))
	}

	path := filepath.Join(rootDir, name)
	if err := cfg.Write(path); err != nil {
		return err
	}
	logSuccess(i18n.T("Wrote %s"), path)
	return nil
}

// ---------------------------------------------------------------------------
// migrate
// ---------------------------------------------------------------------------

func newMigrateCmd() *cobra.Command {
	var (
		to     string
		output string
		dryRun bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: i18n.T("Convert the configuration file to another format"),
		Long: i18n.T(`Read the project's configuration file (or --config), fill in the
defaults and write it in another format. The converted file is printed
first; --dry-run stops there. An existing target is only replaced with
--force.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.OutOrStdout(), to, output, dryRun, force)
		},
	}

	cmd.Flags().StringVar(&to, "to", "yaml", i18n.T("Target format: yaml, json, toml"))
	cmd.Flags().StringVarP(&output, "output", "o", "", i18n.T("Target file (default: the standard name for the format)"))
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, i18n.T("Only print the converted configuration"))
	cmd.Flags().BoolVar(&force, "force", false, i18n.T("Overwrite an existing target file"))
	return cmd
}

func runMigrate(w io.Writer, to, output string, dryRun, force bool) error {
	source := configPath
	if source != "" && !filepath.IsAbs(source) {
		source = filepath.Join(rootDir, source)
	}
	if source == "" {
		source = config.Find(rootDir)
	}
	if source == "" {
		return errors.New(i18n.T("no configuration file found (use --config or run init)"))
	}

	name, ok := config.FileNameFor(to)
	if !ok {
		return fmt.Errorf(i18n.T("unknown format %q (use yaml, json or toml)"), to)
	}
	target := filepath.Join(rootDir, name)
	if output != "" {
		target = output
		if !filepath.IsAbs(target) {
			target = filepath.Join(rootDir, target)
		}
	}
	if filepath.Clean(target) == filepath.Clean(source) {
		return fmt.Errorf(i18n.T("%s is already the target file (use --output)"), source)
	}

	cfg, err := config.LoadFile(source)
	if err != nil {
		return err
	}
	data, err := cfg.Encode(strings.TrimPrefix(filepath.Ext(target), "."))
	if err != nil {
		return err
	}

	logInfo(i18n.T("Source: %s"), source)
	logInfo(i18n.T("Target: %s"), target)
	if _, err := w.Write(data); err != nil {
		return err
	}
	if dryRun {
		logInfo(i18n.T("Dry run, nothing written"))
		return nil
	}

	if _, err := os.Stat(target); err == nil && !force {
		return fmt.Errorf(i18n.T("%s already exists (use --force to overwrite)"), target)
	}
	if err := cfg.Write(target); err != nil {
		return err
	}
	logSuccess(i18n.T("Wrote %s"), target)
	if found := config.Find(rootDir); found != "" && filepath.Clean(found) != filepath.Clean(target) {
		logWarning(i18n.T("%s is found before %s; remove it to use the new file"), found, target)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Shared setup
// ---------------------------------------------------------------------------

// runFlags are the options shared by extract and watch.
type runFlags struct {
	dryRun      bool
	failFast    bool
	syncPrimary bool
	progress    bool
	cache       bool
	strict      pipeline.Strictness
}

func addRunFlags(fs *pflag.FlagSet, f *runFlags, withCI bool) {
	fs.BoolVar(&f.dryRun, "dry-run", false, i18n.T("Compute changes without writing files"))
	fs.BoolVar(&f.failFast, "fail-fast", false, i18n.T("Abort on the first unparseable source"))
	fs.BoolVar(&f.syncPrimary, "sync-primary", false, i18n.T("Sync the primary locale into the others afterwards"))
	fs.BoolVar(&f.progress, "progress", false, i18n.T("Show a progress bar while extracting"))
	fs.BoolVar(&f.cache, "cache", false, i18n.T("Skip unchanged sources using the lock file"))
	fs.BoolVar(&f.strict.FailOnWarnings, "fail-on-warnings", false, i18n.T("Fail on warnings, unparseable files and conflicts"))
	fs.BoolVar(&f.strict.FailOnConflict, "fail-on-conflict", false, i18n.T("Fail when a key has conflicting default values"))
	if withCI {
		fs.BoolVar(&f.strict.CI, "ci", false, i18n.T("Fail when locale files are out of date"))
	}
}

// project is the loaded configuration with its logger.
type project struct {
	root string
	cfg  *config.Config
	log  zerolog.Logger
}

func loadProject() (*project, error) {
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root, configPath)
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			return nil, fmt.Errorf(i18n.T("invalid configuration: %w"), err)
		}
		return nil, err
	}
	if cfg.UILanguage != "" {
		i18n.Init(cfg.UILanguage)
	}
	return &project{root: root, cfg: cfg, log: newLogger(cfg)}, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level := cfg.Level()
	if logLevel != "" {
		if l, err := zerolog.ParseLevel(strings.ToLower(logLevel)); err == nil {
			level = l
		}
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: color.NoColor, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// newRunner builds a pipeline runner. The returned save function writes
// the lock file when the cache is enabled.
func (p *project) newRunner(f runFlags) (*pipeline.Runner, func(), error) {
	fs := afero.NewOsFs()
	opts := pipeline.Options{
		Config:   p.cfg,
		Root:     p.root,
		Fs:       fs,
		Logger:   p.log,
		Hooks:    hooks.NewRunner(p.log, hooks.FromConfig(p.cfg.Plugins)...),
		DryRun:   f.dryRun,
		FailFast: f.failFast,
	}
	if f.progress {
		opts.Progress = &progressReporter{}
	}

	save := func() {}
	if f.cache {
		lf, err := lockfile.Load(fs, p.root)
		if err != nil {
			return nil, nil, err
		}
		opts.Cache = lf
		save = func() {
			if err := lf.Save(); err != nil {
				logWarning(i18n.T("Could not save %s: %v"), lf.Path(), err)
				return
			}
			p.log.Debug().Str("cache", lf.Summary()).Msg("lock file saved")
		}
	}

	r, err := pipeline.New(opts)
	if err != nil {
		return nil, nil, err
	}
	return r, save, nil
}

// progressReporter shows extraction progress on stderr.
type progressReporter struct {
	bar *progressbar.ProgressBar
}

func (p *progressReporter) Start(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(!color.NoColor),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetDescription(i18n.T("Extracting")),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

func (p *progressReporter) Advance() {
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

func (p *progressReporter) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
