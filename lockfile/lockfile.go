// Package lockfile implements .i18nsync.lock, a cache of extraction
// results keyed by source path and content hash. Unchanged sources are
// not parsed again on the next run, and watch mode starts from it.
//
// The lock file is stored in the project root next to the config file.
package lockfile

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"

	"github.com/minios-linux/i18nsync/keys"
)

// LockFileName is the default lock file name.
const LockFileName = ".i18nsync.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Entry is the cached extraction of one source file.
type Entry struct {
	Hash        string              `yaml:"hash"`
	Keys        []keys.ExtractedKey `yaml:"keys,omitempty"`
	Diagnostics []keys.Diagnostic   `yaml:"diagnostics,omitempty"`
}

// LockFile represents the .i18nsync.lock file structure.
type LockFile struct {
	Version int `yaml:"version"`
	// Fingerprint identifies the extraction settings the entries were
	// produced with. Entries from other settings are discarded.
	Fingerprint string            `yaml:"fingerprint,omitempty"`
	Sources     map[string]*Entry `yaml:"sources"`

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
	fs   afero.Fs   `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads a lock file from the given directory.
// Returns an empty lock file if the file doesn't exist.
func Load(fs afero.Fs, dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := &LockFile{
		Version: Version,
		Sources: make(map[string]*Entry),
		path:    path,
		fs:      fs,
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path
	lf.fs = fs

	if lf.Sources == nil || lf.Version != Version {
		lf.Version = Version
		lf.Sources = make(map[string]*Entry)
	}

	return lf, nil
}

// Save writes the lock file to disk.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" || lf.fs == nil {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}

	if err := afero.WriteFile(lf.fs, lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}

	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Hashing
// ---------------------------------------------------------------------------

// Hash computes the xxh3 hex digest of data.
func Hash(data []byte) string {
	sum := xxh3.Hash128(data).Bytes()
	return hex.EncodeToString(sum[:])
}

// ---------------------------------------------------------------------------
// Entry operations
// ---------------------------------------------------------------------------

// UseFingerprint binds the lock file to a settings fingerprint. Cached
// entries made with different settings are dropped. It reports whether
// the entries were kept.
func (lf *LockFile) UseFingerprint(fp string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Fingerprint == fp {
		return true
	}
	lf.Fingerprint = fp
	lf.Sources = make(map[string]*Entry)
	return false
}

// SourceKey normalizes a project-relative source path.
func SourceKey(path string) string {
	return filepath.ToSlash(path)
}

// Get returns the cached entry for source if its hash matches.
func (lf *LockFile) Get(source, hash string) (*Entry, bool) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	e, ok := lf.Sources[SourceKey(source)]
	if !ok || e.Hash != hash {
		return nil, false
	}
	return e, true
}

// Update records the extraction result of a source.
func (lf *LockFile) Update(source, hash string, ks []keys.ExtractedKey, diags []keys.Diagnostic) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	lf.Sources[SourceKey(source)] = &Entry{Hash: hash, Keys: ks, Diagnostics: diags}
}

// Remove drops a source.
func (lf *LockFile) Remove(source string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	delete(lf.Sources, SourceKey(source))
}

// Clean removes entries for sources that no longer exist. This prevents
// stale entries from accumulating.
func (lf *LockFile) Clean(current []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	valid := make(map[string]bool, len(current))
	for _, s := range current {
		valid[SourceKey(s)] = true
	}
	for s := range lf.Sources {
		if !valid[s] {
			delete(lf.Sources, s)
		}
	}
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of cached sources and keys.
func (lf *LockFile) Stats() (sources, keys int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	sources = len(lf.Sources)
	for _, e := range lf.Sources {
		keys += len(e.Keys)
	}
	return
}

// Files returns the sorted list of cached sources.
func (lf *LockFile) Files() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	files := make([]string, 0, len(lf.Sources))
	for s := range lf.Sources {
		files = append(files, s)
	}
	sort.Strings(files)
	return files
}

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	sources, keys := lf.Stats()
	if sources == 0 {
		return "empty"
	}
	var withKeys []string
	for _, s := range lf.Files() {
		lf.mu.Lock()
		n := len(lf.Sources[s].Keys)
		lf.mu.Unlock()
		if n > 0 {
			withKeys = append(withKeys, fmt.Sprintf("%s: %d", s, n))
		}
	}
	return fmt.Sprintf("%d sources, %d keys (%s)", sources, keys, strings.Join(withKeys, ", "))
}
