package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DetectLocales finds locales already present under an output directory:
// either subdirectories (locales/en/translation.json) or files named after
// a locale (locales/en.json).
func DetectLocales(outputDir string) []string {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var langs []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() {
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			name = strings.TrimSuffix(name, ".json")
		} else if !hasJSON(filepath.Join(outputDir, name)) {
			continue
		}
		if isLangCode(name) && !seen[name] {
			seen[name] = true
			langs = append(langs, name)
		}
	}
	sort.Strings(langs)
	return langs
}

func hasJSON(dir string) bool {
	matches, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	return len(matches) > 0
}

// isLangCode checks if a string looks like a language code.
// Supports: en, ru, de, pt-BR, zh-CN, zh-Hant-TW.
func isLangCode(s string) bool {
	parts := strings.Split(s, "-")
	primary := parts[0]
	if len(primary) < 2 || len(primary) > 3 {
		return false
	}
	for _, r := range primary {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	for _, p := range parts[1:] {
		if len(p) < 2 || len(p) > 8 {
			return false
		}
	}
	return true
}
