// Package config loads .i18nsync.yaml configuration files.
//
// The configuration is looked up in the project root. YAML, JSON and TOML
// files are accepted; option names follow i18next (keySeparator, nsSeparator,
// defaultNS, ...). Without a file the defaults describe a typical React
// project: sources under src/, resources under locales/<lng>/<ns>.json.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/minios-linux/i18nsync/keys"
)

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

// Config is the top-level configuration.
type Config struct {
	// Locales lists the target locales. The first one is the primary
	// locale unless PrimaryLocale says otherwise.
	Locales       []string `yaml:"locales" json:"locales" toml:"locales"`
	PrimaryLocale string   `yaml:"primaryLocale,omitempty" json:"primaryLocale,omitempty" toml:"primaryLocale,omitempty"`

	// Input holds source globs relative to the project root; Ignore
	// excludes matches.
	Input  []string `yaml:"input" json:"input" toml:"input"`
	Ignore []string `yaml:"ignore,omitempty" json:"ignore,omitempty" toml:"ignore,omitempty"`

	// Output is the resource directory, or a path template using {{lng}}
	// and {{ns}}.
	Output string `yaml:"output" json:"output" toml:"output"`

	DefaultNamespace string `yaml:"defaultNS" json:"defaultNS" toml:"defaultNS"`

	KeySeparator     Separator `yaml:"keySeparator" json:"keySeparator" toml:"keySeparator"`
	NsSeparator      Separator `yaml:"nsSeparator" json:"nsSeparator" toml:"nsSeparator"`
	ContextSeparator string    `yaml:"contextSeparator" json:"contextSeparator" toml:"contextSeparator"`
	PluralSeparator  string    `yaml:"pluralSeparator" json:"pluralSeparator" toml:"pluralSeparator"`

	Functions                  []string `yaml:"functions" json:"functions" toml:"functions"`
	UseTranslationNames        []string `yaml:"useTranslationNames" json:"useTranslationNames" toml:"useTranslationNames"`
	TransComponents            []string `yaml:"transComponents" json:"transComponents" toml:"transComponents"`
	TransKeepBasicHtmlNodesFor []string `yaml:"transKeepBasicHtmlNodesFor" json:"transKeepBasicHtmlNodesFor" toml:"transKeepBasicHtmlNodesFor"`

	NestingPrefix           string `yaml:"nestingPrefix" json:"nestingPrefix" toml:"nestingPrefix"`
	NestingSuffix           string `yaml:"nestingSuffix" json:"nestingSuffix" toml:"nestingSuffix"`
	NestingOptionsSeparator string `yaml:"nestingOptionsSeparator" json:"nestingOptionsSeparator" toml:"nestingOptionsSeparator"`

	ExtractFromComments bool `yaml:"extractFromComments" json:"extractFromComments" toml:"extractFromComments"`

	// DefaultValue is written for new keys without an extracted default.
	// {{key}}, {{ns}} and {{lng}} are substituted.
	DefaultValue string `yaml:"defaultValue" json:"defaultValue" toml:"defaultValue"`

	DisablePlurals          bool `yaml:"disablePlurals" json:"disablePlurals" toml:"disablePlurals"`
	GenerateBasePluralForms bool `yaml:"generateBasePluralForms" json:"generateBasePluralForms" toml:"generateBasePluralForms"`

	RemoveUnusedKeys bool     `yaml:"removeUnusedKeys" json:"removeUnusedKeys" toml:"removeUnusedKeys"`
	PreservePatterns []string `yaml:"preservePatterns,omitempty" json:"preservePatterns,omitempty" toml:"preservePatterns,omitempty"`
	Sort             bool     `yaml:"sort" json:"sort" toml:"sort"`

	// Indentation overrides the indentation detected in existing files.
	Indentation Indentation `yaml:"indentation,omitempty" json:"indentation,omitempty" toml:"indentation,omitempty"`

	MergeNamespaces         bool   `yaml:"mergeNamespaces" json:"mergeNamespaces" toml:"mergeNamespaces"`
	MergedNamespaceFilename string `yaml:"mergedNamespaceFilename,omitempty" json:"mergedNamespaceFilename,omitempty" toml:"mergedNamespaceFilename,omitempty"`

	Concurrency int    `yaml:"concurrency,omitempty" json:"concurrency,omitempty" toml:"concurrency,omitempty"`
	LogLevel    string `yaml:"logLevel,omitempty" json:"logLevel,omitempty" toml:"logLevel,omitempty"`
	// UILanguage selects the language of i18nsync's own messages.
	UILanguage string `yaml:"uiLanguage,omitempty" json:"uiLanguage,omitempty" toml:"uiLanguage,omitempty"`

	Plugins []Plugin `yaml:"plugins,omitempty" json:"plugins,omitempty" toml:"plugins,omitempty"`

	// path is where the config was loaded from; empty for defaults.
	path string
}

// Plugin configures shell commands run at pipeline hooks. OnLoad receives
// the source on stdin and prints the replacement on stdout.
type Plugin struct {
	Name       string `yaml:"name" json:"name" toml:"name"`
	Setup      string `yaml:"setup,omitempty" json:"setup,omitempty" toml:"setup,omitempty"`
	OnLoad     string `yaml:"onLoad,omitempty" json:"onLoad,omitempty" toml:"onLoad,omitempty"`
	OnVisitKey string `yaml:"onVisitKey,omitempty" json:"onVisitKey,omitempty" toml:"onVisitKey,omitempty"`
	OnEnd      string `yaml:"onEnd,omitempty" json:"onEnd,omitempty" toml:"onEnd,omitempty"`
	AfterSync  string `yaml:"afterSync,omitempty" json:"afterSync,omitempty" toml:"afterSync,omitempty"`
	// Timeout bounds each command, for example "30s". Empty means 1m.
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty" toml:"timeout,omitempty"`
}

// CommandTimeout parses Timeout.
func (p Plugin) CommandTimeout() time.Duration {
	if d, err := time.ParseDuration(p.Timeout); err == nil && d > 0 {
		return d
	}
	return time.Minute
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Locales:                    []string{"en"},
		Input:                      []string{"src/**/*.{ts,tsx,js,jsx}"},
		Output:                     "locales",
		DefaultNamespace:           "translation",
		KeySeparator:               Sep("."),
		NsSeparator:                Sep(":"),
		ContextSeparator:           "_",
		PluralSeparator:            "_",
		Functions:                  []string{"t"},
		UseTranslationNames:        []string{"useTranslation"},
		TransComponents:            []string{"Trans"},
		TransKeepBasicHtmlNodesFor: []string{"br", "strong", "i", "p"},
		NestingPrefix:              "$t(",
		NestingSuffix:              ")",
		NestingOptionsSeparator:    ",",
		ExtractFromComments:        true,
		GenerateBasePluralForms:    true,
		RemoveUnusedKeys:           true,
		Sort:                       true,
		Concurrency:                runtime.NumCPU(),
		LogLevel:                   "info",
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// FileNames lists the config files looked up in the project root, in
// order.
var FileNames = []string{".i18nsync.yaml", ".i18nsync.yml", "i18nsync.json", ".i18nsync.toml"}

// Find returns the first config file present in rootDir, or "".
func Find(rootDir string) string {
	for _, name := range FileNames {
		p := filepath.Join(rootDir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load reads the configuration for rootDir. explicit, when set, names the
// file to use; otherwise the FileNames are tried. Missing files give the
// defaults. Environment overrides are applied and the result validated.
func Load(rootDir, explicit string) (*Config, error) {
	cfg := Defaults()

	path := explicit
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(rootDir, path)
	}
	if path == "" {
		path = Find(rootDir)
	}
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
		cfg.path = path
	}

	if err := cfg.applyEnv(rootDir); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads one config file over the defaults and validates it.
// Environment overrides are not applied.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if err := cfg.decodeFile(path); err != nil {
		return nil, err
	}
	cfg.path = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, c)
	case ".toml":
		_, err = toml.Decode(string(data), c)
	default:
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// Path returns the file the configuration came from, or "" for defaults.
func (c *Config) Path() string {
	return c.path
}

// ---------------------------------------------------------------------------
// Derived settings
// ---------------------------------------------------------------------------

// Separators returns the separators in the form the extractor uses.
func (c *Config) Separators() keys.Separators {
	return keys.Separators{
		Key:       c.KeySeparator.String(),
		Namespace: c.NsSeparator.String(),
		Context:   c.ContextSeparator,
		Plural:    c.PluralSeparator,
	}
}

// Primary returns the primary locale.
func (c *Config) Primary() string {
	if c.PrimaryLocale != "" {
		return c.PrimaryLocale
	}
	if len(c.Locales) > 0 {
		return c.Locales[0]
	}
	return ""
}

// IsTemplate reports whether Output is a path template.
func (c *Config) IsTemplate() bool {
	return strings.Contains(c.Output, "{{lng}}") || strings.Contains(c.Output, "{{ns}}")
}

// Level returns the configured log level.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// Write saves c to path in the format implied by its extension.
func (c *Config) Write(path string) error {
	data, err := c.Encode(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Encode renders the configuration as json, toml or yaml (the default
// for any other format name).
func (c *Config) Encode(format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "toml":
		var b strings.Builder
		if err := toml.NewEncoder(&b).Encode(c); err != nil {
			return nil, err
		}
		return []byte(b.String()), nil
	default:
		return yaml.Marshal(c)
	}
}

// FileNameFor returns the default config file name for a format: yaml,
// yml, json or toml.
func FileNameFor(format string) (string, bool) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return FileNames[0], true
	case "json":
		return FileNames[2], true
	case "toml":
		return FileNames[3], true
	}
	return "", false
}
