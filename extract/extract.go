// Package extract finds i18next translation references in JavaScript and
// TypeScript sources.
//
// Discovery walks the project tree with the configured input and ignore
// globs. Extraction runs one pass over a parsed file and produces the keys
// it references plus diagnostics for references it cannot resolve.
package extract

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"
)

// SupportedExtensions lists the source extensions the parser understands.
var SupportedExtensions = map[string]bool{
	".js":  true,
	".jsx": true,
	".mjs": true,
	".cjs": true,
	".ts":  true,
	".tsx": true,
	".mts": true,
	".cts": true,
}

// skipDirs contains directory names never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	".next":        true,
	".nuxt":        true,
	".turbo":       true,
	".cache":       true,
	"coverage":     true,
	"vendor":       true,
}

// Matcher decides whether a project-relative, slash-separated path is a
// source file.
type Matcher struct {
	include []glob.Glob
	ignore  []glob.Glob
}

// NewMatcher compiles input and ignore globs. Patterns use '/' as the
// separator, so '*' stays within one path segment and '**' crosses them.
func NewMatcher(input, ignore []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range input {
		g, err := compileGlob(p)
		if err != nil {
			return nil, fmt.Errorf("input pattern %q: %w", p, err)
		}
		m.include = append(m.include, g)
	}
	for _, p := range ignore {
		g, err := compileGlob(p)
		if err != nil {
			return nil, fmt.Errorf("ignore pattern %q: %w", p, err)
		}
		m.ignore = append(m.ignore, g)
	}
	return m, nil
}

// globSet matches when any of its variants does.
type globSet []glob.Glob

func (s globSet) Match(name string) bool {
	for _, g := range s {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// compileGlob compiles p with '/' as the separator. gobwas/glob's "**/"
// needs at least one directory, so every "**/" is compiled both as written
// and dropped, and the variants are OR-ed.
func compileGlob(p string) (glob.Glob, error) {
	p = strings.TrimPrefix(filepath.ToSlash(p), "./")
	var set globSet
	for _, v := range globVariants(p) {
		g, err := glob.Compile(v, '/')
		if err != nil {
			return nil, err
		}
		set = append(set, g)
	}
	return set, nil
}

// globVariants expands each "**/" at the start or after a '/' into the
// pattern with and without it.
func globVariants(p string) []string {
	i := strings.Index(p, "**/")
	for i > 0 && p[i-1] != '/' {
		next := strings.Index(p[i+3:], "**/")
		if next < 0 {
			return []string{p}
		}
		i += 3 + next
	}
	if i < 0 {
		return []string{p}
	}
	head, tail := p[:i], p[i+3:]
	var out []string
	for _, rest := range globVariants(tail) {
		out = append(out, head+"**/"+rest, head+rest)
	}
	return out
}

// Match reports whether rel is included and not ignored.
func (m *Matcher) Match(rel string) bool {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	if !SupportedExtensions[strings.ToLower(path.Ext(rel))] {
		return false
	}
	for _, g := range m.ignore {
		if g.Match(rel) {
			return false
		}
	}
	for _, g := range m.include {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// FindSources walks root and returns the project-relative, slash-separated
// paths of every matching source file, sorted. Common dependency and build
// directories are skipped. Unreadable entries are skipped too.
func FindSources(fs afero.Fs, root string, m *Matcher) ([]string, error) {
	var files []string
	err := afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if p != root && skipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if m.Match(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// StaticPrefix returns the directory part of a glob before its first
// meta character ("src/**/*.ts" gives "src"). An empty result means the
// project root.
func StaticPrefix(pattern string) string {
	pattern = strings.TrimPrefix(filepath.ToSlash(pattern), "./")
	i := strings.IndexAny(pattern, "*?[{\\")
	if i < 0 {
		if dir := path.Dir(pattern); dir != "." {
			return dir
		}
		return ""
	}
	dir := pattern[:i]
	if j := strings.LastIndexByte(dir, '/'); j >= 0 {
		return dir[:j]
	}
	return ""
}

// SkipDir reports whether a directory with this base name is never
// scanned.
func SkipDir(name string) bool {
	return skipDirs[name]
}
