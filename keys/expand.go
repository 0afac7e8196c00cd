package keys

import (
	"github.com/minios-linux/i18nsync/plural"
)

// OrdinalSegment is inserted before the category of ordinal plural keys.
const OrdinalSegment = "ordinal"

// Expander turns ExtractedKeys into the per-locale ExpandedKeys that end up
// in locale files.
type Expander struct {
	Locales    []string
	Separators Separators

	// DisablePlurals ignores count options entirely.
	DisablePlurals bool
	// GenerateBasePluralForms emits the bare key for locales with a single
	// plural category. When false those locales get key_other.
	GenerateBasePluralForms bool

	// Categories overrides the CLDR lookup; used by tests.
	Categories func(locale string, ordinal bool) []string
}

// Expand returns every ExpandedKey for k across all locales, deduplicated
// per locale.
func (e *Expander) Expand(k ExtractedKey) []ExpandedKey {
	if k.PreserveAsPattern || len(k.Path) == 0 {
		return nil
	}

	var out []ExpandedKey
	for _, locale := range e.Locales {
		seen := make(map[string]bool)
		for _, x := range e.expandLocale(k, locale) {
			s := joinPath(x.path)
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, ExpandedKey{
				Locale:       locale,
				Namespace:    k.Namespace,
				Path:         x.path,
				Stem:         x.stem,
				DefaultValue: k.DefaultValue,
				HasDefault:   k.HasDefault,
				Marker:       k.ReturnObjects,
				Location:     k.Location,
			})
		}
	}
	return out
}

// ForLocale returns a copy of e that expands for locale only.
func (e *Expander) ForLocale(locale string) *Expander {
	c := *e
	c.Locales = []string{locale}
	return &c
}

type expansion struct {
	path, stem []string
}

func (e *Expander) expandLocale(k ExtractedKey, locale string) []expansion {
	if k.ReturnObjects {
		return []expansion{{path: clonePath(k.Path), stem: clonePath(k.Path)}}
	}

	// Each suffix is a context part followed by an optional plural part.
	type suffix struct{ ctx, plural string }
	var suffixes []suffix
	for _, ctx := range k.Contexts() {
		base := ""
		if ctx != "" {
			base = e.Separators.Context + ctx
		}
		if !k.HasCount || e.DisablePlurals {
			suffixes = append(suffixes, suffix{ctx: base})
			continue
		}

		cats := e.categories(locale, k.Ordinal)
		if len(cats) == 1 && e.GenerateBasePluralForms {
			suffixes = append(suffixes, suffix{ctx: base})
			continue
		}
		for _, cat := range cats {
			if k.Ordinal {
				suffixes = append(suffixes, suffix{base, e.Separators.Plural + OrdinalSegment + e.Separators.Plural + cat})
			} else {
				suffixes = append(suffixes, suffix{base, e.Separators.Plural + cat})
			}
		}
	}

	out := make([]expansion, 0, len(suffixes))
	for _, s := range suffixes {
		stem := clonePath(k.Path)
		stem[len(stem)-1] += s.ctx
		p := clonePath(stem)
		p[len(p)-1] += s.plural
		out = append(out, expansion{path: p, stem: stem})
	}
	return out
}

func (e *Expander) categories(locale string, ordinal bool) []string {
	if e.Categories != nil {
		return e.Categories(locale, ordinal)
	}
	return plural.Categories(locale, ordinal)
}

func clonePath(p []string) []string {
	out := make([]string, len(p))
	copy(out, p)
	return out
}

// joinPath builds a map key for a path; \x00 never appears in JSON keys
// written by hand.
func joinPath(p []string) string {
	n := 0
	for _, s := range p {
		n += len(s) + 1
	}
	b := make([]byte, 0, n)
	for i, s := range p {
		if i > 0 {
			b = append(b, 0)
		}
		b = append(b, s...)
	}
	return string(b)
}
