// Package plural resolves CLDR plural categories for locale codes.
//
// The category set of a locale is derived from the x/text plural rules by
// evaluating them over a spread of integer and decimal operands, which is
// how Intl.PluralRules reports pluralCategories to the i18next runtime.
package plural

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
)

// Category names in CLDR order.
const (
	Zero  = "zero"
	One   = "one"
	Two   = "two"
	Few   = "few"
	Many  = "many"
	Other = "other"
)

var order = []struct {
	form plural.Form
	name string
}{
	{plural.Zero, Zero},
	{plural.One, One},
	{plural.Two, Two},
	{plural.Few, Few},
	{plural.Many, Many},
	{plural.Other, Other},
}

// Fallback is used for locale codes that cannot be parsed.
var Fallback = []string{One, Other}

type cacheKey struct {
	locale  string
	ordinal bool
}

var cache sync.Map // cacheKey -> []string

// Categories returns the cardinal or ordinal category names of locale in
// CLDR order. Unparseable codes get Fallback.
func Categories(locale string, ordinal bool) []string {
	k := cacheKey{locale, ordinal}
	if v, ok := cache.Load(k); ok {
		return v.([]string)
	}
	cats, err := resolve(locale, ordinal)
	if err != nil {
		cats = Fallback
	}
	cache.Store(k, cats)
	return cats
}

// ParseTag accepts both "pt-BR" and "pt_BR".
func ParseTag(locale string) (language.Tag, error) {
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return language.Und, fmt.Errorf("parsing locale %q: %w", locale, err)
	}
	return tag, nil
}

func resolve(locale string, ordinal bool) ([]string, error) {
	tag, err := ParseTag(locale)
	if err != nil {
		return nil, err
	}

	rules := plural.Cardinal
	if ordinal {
		rules = plural.Ordinal
	}

	seen := make(map[plural.Form]bool)
	for _, op := range operands(ordinal) {
		seen[rules.MatchPlural(tag, op.i, op.v, op.w, op.f, op.t)] = true
	}

	var out []string
	for _, o := range order {
		if seen[o.form] {
			out = append(out, o.name)
		}
	}
	return out, nil
}

// operand mirrors the CLDR plural operands: i integer digits, v visible
// fraction digit count, w the same without trailing zeros, f visible
// fraction digits, t the same without trailing zeros.
type operand struct{ i, v, w, f, t int }

var (
	operandsOnce  sync.Once
	cardinalOps   []operand
	ordinalOps    []operand
	largeIntegers = []int{1000, 10000, 100000, 1000000, 2000000, 10000000}
)

func operands(ordinal bool) []operand {
	operandsOnce.Do(func() {
		for i := 0; i <= 200; i++ {
			ordinalOps = append(ordinalOps, operand{i: i})
		}
		for _, n := range largeIntegers {
			ordinalOps = append(ordinalOps, operand{i: n})
		}
		cardinalOps = append(cardinalOps, ordinalOps...)

		for i := 0; i <= 20; i++ {
			for f := 0; f <= 9; f++ {
				cardinalOps = append(cardinalOps, decimal(i, 1, f))
			}
			for f := 0; f <= 99; f += 7 {
				cardinalOps = append(cardinalOps, decimal(i, 2, f))
			}
		}
	})
	if ordinal {
		return ordinalOps
	}
	return cardinalOps
}

func decimal(i, v, f int) operand {
	t, w := f, v
	for w > 0 && t%10 == 0 {
		t /= 10
		w--
	}
	return operand{i: i, v: v, w: w, f: f, t: t}
}
