package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/minios-linux/i18nsync/plural"
)

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Source, strings.Join(e.Problems, "; "))
}

// Validate checks c and returns a *ValidationError describing every
// problem, or nil.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.Locales) == 0 {
		add("locales must not be empty")
	}
	for _, l := range c.Locales {
		if _, err := plural.ParseTag(l); err != nil {
			add("locale %q is not a valid language tag", l)
		}
	}
	if dups := lo.FindDuplicates(c.Locales); len(dups) > 0 {
		add("duplicate locales %v", dups)
	}
	if c.PrimaryLocale != "" && !lo.Contains(c.Locales, c.PrimaryLocale) {
		add("primaryLocale %q is not listed in locales", c.PrimaryLocale)
	}

	if len(c.Input) == 0 {
		add("input must not be empty")
	}
	if c.Output == "" {
		add("output must not be empty")
	}
	if c.MergeNamespaces && strings.Contains(c.Output, "{{ns}}") {
		add("output %q uses {{ns}} but mergeNamespaces is set", c.Output)
	}
	if c.DefaultNamespace == "" {
		add("defaultNS must not be empty")
	}

	checkGlobs := func(field string, patterns []string) {
		for _, p := range patterns {
			if _, err := glob.Compile(p, '/'); err != nil {
				add("%s: bad pattern %q: %v", field, p, err)
			}
		}
	}
	checkGlobs("input", c.Input)
	checkGlobs("ignore", c.Ignore)
	checkGlobs("preservePatterns", c.PreservePatterns)
	checkGlobs("functions", c.Functions)

	if len(c.Functions) == 0 && len(c.TransComponents) == 0 {
		add("functions and transComponents are both empty, nothing would be extracted")
	}
	ks, ns := c.KeySeparator.String(), c.NsSeparator.String()
	if ks != "" && ks == ns {
		add("keySeparator and nsSeparator are both %q", ks)
	}
	if c.PluralSeparator == "" && !c.DisablePlurals {
		add("pluralSeparator must not be empty")
	}
	if c.NestingPrefix == "" || c.NestingSuffix == "" {
		add("nestingPrefix and nestingSuffix must not be empty")
	}

	if c.Concurrency < 1 {
		add("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
			add("unknown logLevel %q", c.LogLevel)
		}
	}

	for i, p := range c.Plugins {
		if p.Name == "" {
			add("plugin #%d has no name", i+1)
		}
		if p.Setup == "" && p.OnLoad == "" && p.OnVisitKey == "" && p.OnEnd == "" && p.AfterSync == "" {
			add("plugin %q has no commands", p.Name)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	src := c.path
	if src == "" {
		src = "config"
	}
	return &ValidationError{Source: src, Problems: problems}
}
