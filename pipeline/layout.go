package pipeline

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/minios-linux/i18nsync/config"
)

const (
	lngPlaceholder = "{{lng}}"
	nsPlaceholder  = "{{ns}}"
)

// Layout maps (locale, namespace) pairs to resource files.
//
// The default layout is <output>/<lng>/<ns>.json. An output containing
// {{lng}} or {{ns}} is used as a path template instead. With merged
// namespaces every locale has a single file and each namespace is a
// top-level key in it.
type Layout struct {
	fs         afero.Fs
	output     string
	template   bool
	merged     bool
	mergedName string
	defaultNS  string
}

// NewLayout resolves cfg's output against root.
func NewLayout(fs afero.Fs, root string, cfg *config.Config) Layout {
	out := cfg.Output
	if !filepath.IsAbs(out) {
		out = filepath.Join(root, out)
	}
	return Layout{
		fs:         fs,
		output:     out,
		template:   cfg.IsTemplate(),
		merged:     cfg.MergeNamespaces,
		mergedName: strings.TrimSpace(cfg.MergedNamespaceFilename),
		defaultNS:  cfg.DefaultNamespace,
	}
}

// Merged reports whether namespaces share one file per locale.
func (l Layout) Merged() bool { return l.merged }

// Path returns the file holding ns for locale. In merged mode ns is
// ignored.
func (l Layout) Path(locale, ns string) string {
	if l.template {
		p := strings.ReplaceAll(l.output, lngPlaceholder, locale)
		if l.merged {
			return p
		}
		return strings.ReplaceAll(p, nsPlaceholder, ns)
	}
	if l.merged {
		ns = l.mergedStem(locale)
	}
	return filepath.Join(l.output, locale, ns+".json")
}

// mergedStem picks the merged file name: the configured one, else the
// only JSON file already present for the locale, else the default
// namespace.
func (l Layout) mergedStem(locale string) string {
	if l.mergedName != "" {
		return l.mergedName
	}
	if stems := l.jsonStems(filepath.Join(l.output, locale)); len(stems) == 1 {
		return stems[0]
	}
	return l.defaultNS
}

func (l Layout) jsonStems(dir string) []string {
	entries, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil
	}
	var stems []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		stems = append(stems, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(stems)
	return stems
}

// Namespaces lists the namespaces that have a file for locale on disk. In
// merged mode it returns nil.
func (l Layout) Namespaces(locale string) []string {
	if l.merged {
		return nil
	}
	if !l.template {
		return l.jsonStems(filepath.Join(l.output, locale))
	}
	p := strings.ReplaceAll(l.output, lngPlaceholder, locale)
	i := strings.Index(p, nsPlaceholder)
	if i < 0 {
		return nil
	}
	before, after := p[:i], p[i+len(nsPlaceholder):]
	matches, err := afero.Glob(l.fs, before+"*"+after)
	if err != nil {
		return nil
	}
	var out []string
	for _, m := range matches {
		ns := strings.TrimSuffix(strings.TrimPrefix(m, before), after)
		if ns != "" && !strings.ContainsRune(ns, filepath.Separator) {
			out = append(out, ns)
		}
	}
	sort.Strings(out)
	return out
}
