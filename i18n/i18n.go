// Package i18n provides internationalization support for i18nsync itself.
//
// It wraps the gotext library to provide simple T() and N() functions
// for translating the CLI's user-facing strings. Translations are embedded
// in the binary via //go:embed and loaded at startup via Init().
//
// The language comes from I18NSYNC_LANG, then the gettext variables, and
// can be switched later by the project's uiLanguage setting. A request for
// a regional variant without its own catalog ("ru_UA") uses the closest
// embedded one ("ru"); anything else falls back to the English source
// strings.
package i18n

import (
	"embed"
	"os"
	"sort"
	"strings"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/language"
)

// locales embeds the compiled .po/.mo translation files.
// Directory structure: locales/{lang}/LC_MESSAGES/i18nsync.po
//
//go:embed all:locales
var locales embed.FS

// domain is the gettext domain name of the CLI.
const domain = "i18nsync"

// po is the gotext locale object used for translations.
var po *gotext.Locale

// EnvLang overrides the language detected from the gettext variables.
const EnvLang = "I18NSYNC_LANG"

// Init selects the message catalog. An empty lang is detected from the
// environment. Calling it again switches the language.
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}
	if code, ok := match(lang); ok {
		lang = code
	} else {
		lang = "en"
	}

	po = gotext.NewLocaleFSWithPath(lang, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// Available returns the languages with an embedded catalog.
func Available() []string {
	entries, err := locales.ReadDir("locales")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out
}

// match returns the embedded catalog closest to lang. English, the
// language of the source strings, is the matcher's default and means no
// catalog.
func match(lang string) (string, bool) {
	avail := Available()
	tags := []language.Tag{language.English}
	for _, a := range avail {
		tags = append(tags, language.Make(strings.ReplaceAll(a, "_", "-")))
	}
	want, err := language.Parse(strings.ReplaceAll(lang, "_", "-"))
	if err != nil {
		return "", false
	}
	_, idx, conf := language.NewMatcher(tags).Match(want)
	if idx == 0 || conf == language.No {
		return "", false
	}
	return avail[idx-1], true
}

// T translates a string. If no translation is available, returns the
// original string unchanged (standard gettext passthrough behavior).
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// N translates a string with plural forms. The singular form is used
// when n == 1, the plural form otherwise (exact rules depend on the
// target language's plural formula).
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

// detectLanguage reads environment variables to determine the user's
// preferred language, following GNU gettext conventions.
func detectLanguage() string {
	if val := strings.TrimSpace(os.Getenv(EnvLang)); val != "" {
		return val
	}
	// GNU gettext priority: LANGUAGE > LC_ALL > LC_MESSAGES > LANG
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		if val := os.Getenv(env); val != "" {
			// LANGUAGE can be a colon-separated list; take the first
			if env == "LANGUAGE" {
				parts := strings.SplitN(val, ":", 2)
				val = parts[0]
			}
			// Strip encoding suffix (e.g. "ru_RU.UTF-8" -> "ru_RU")
			if idx := strings.IndexByte(val, '.'); idx >= 0 {
				val = val[:idx]
			}
			// Skip "C" and "POSIX": these mean no translation
			if val == "C" || val == "POSIX" || val == "" {
				continue
			}
			return val
		}
	}
	return "en"
}
