package lockfile

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/minios-linux/i18nsync/keys"
)

func newLockFile() *LockFile {
	return &LockFile{Version: Version, Sources: make(map[string]*Entry)}
}

func sampleKeys(names ...string) []keys.ExtractedKey {
	var out []keys.ExtractedKey
	for _, n := range names {
		out = append(out, keys.ExtractedKey{Namespace: "translation", Path: strings.Split(n, ".")})
	}
	return out
}

func TestHashDeterministic(t *testing.T) {
	h1 := Hash([]byte("hello world"))
	h2 := Hash([]byte("hello world"))
	if h1 != h2 {
		t.Errorf("Hash not deterministic: %s != %s", h1, h2)
	}
	h3 := Hash([]byte("different"))
	if h1 == h3 {
		t.Errorf("Hash collision: %s == %s", h1, h3)
	}
	if len(h1) != 32 {
		t.Errorf("Hash length = %d, want 32", len(h1))
	}
}

func TestLoadNonExistent(t *testing.T) {
	lf, err := Load(afero.NewMemMapFs(), "/project")
	if err != nil {
		t.Fatalf("Load returned error for non-existent file: %v", err)
	}
	if lf.Version != Version {
		t.Errorf("Version = %d, want %d", lf.Version, Version)
	}
	if len(lf.Sources) != 0 {
		t.Errorf("Sources not empty: %v", lf.Sources)
	}
}

func TestSaveAndLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/project"

	lf, err := Load(fs, dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	lf.UseFingerprint("fp1")
	lf.Update("src/a.ts", "h1", sampleKeys("a.one", "a.two"), nil)
	lf.Update("src/b.ts", "h2", sampleKeys("b"), []keys.Diagnostic{{Kind: keys.UnresolvableKey, Message: "dynamic"}})

	if err := lf.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(dir, LockFileName)
	if ok, _ := afero.Exists(fs, path); !ok {
		t.Fatalf("Lock file not created at %s", path)
	}

	lf2, err := Load(fs, dir)
	if err != nil {
		t.Fatalf("Load after save: %v", err)
	}
	if !lf2.UseFingerprint("fp1") {
		t.Fatal("fingerprint not persisted")
	}

	sources, n := lf2.Stats()
	if sources != 2 {
		t.Errorf("sources = %d, want 2", sources)
	}
	if n != 3 {
		t.Errorf("keys = %d, want 3", n)
	}
	e, ok := lf2.Get("src/a.ts", "h1")
	if !ok {
		t.Fatal("entry for src/a.ts missing")
	}
	if got := e.Keys[1].Key("."); got != "a.two" {
		t.Errorf("second key = %q, want a.two", got)
	}
	e, _ = lf2.Get("src/b.ts", "h2")
	if len(e.Diagnostics) != 1 || e.Diagnostics[0].Kind != keys.UnresolvableKey {
		t.Errorf("diagnostics = %+v", e.Diagnostics)
	}
}

func TestLoadCorrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/p/"+LockFileName, []byte("version: [\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(fs, "/p"); err == nil {
		t.Fatal("expected error for corrupt lock file")
	}
}

func TestGetMatchesHash(t *testing.T) {
	lf := newLockFile()

	if _, ok := lf.Get("src/a.ts", "h1"); ok {
		t.Error("new entry should miss")
	}

	lf.Update("src/a.ts", "h1", nil, nil)
	if _, ok := lf.Get("src/a.ts", "h1"); !ok {
		t.Error("unchanged entry should hit")
	}
	if _, ok := lf.Get("src/a.ts", "h2"); ok {
		t.Error("modified entry should miss")
	}
	if _, ok := lf.Get("src/b.ts", "h1"); ok {
		t.Error("different source should miss")
	}
}

func TestUseFingerprintResets(t *testing.T) {
	lf := newLockFile()
	lf.UseFingerprint("a")
	lf.Update("src/a.ts", "h1", sampleKeys("x"), nil)

	if !lf.UseFingerprint("a") {
		t.Error("same fingerprint should keep entries")
	}
	if lf.UseFingerprint("b") {
		t.Error("new fingerprint should drop entries")
	}
	if sources, _ := lf.Stats(); sources != 0 {
		t.Errorf("sources after reset = %d, want 0", sources)
	}
}

func TestClean(t *testing.T) {
	lf := newLockFile()
	lf.Update("src/a.ts", "1", nil, nil)
	lf.Update("src/b.ts", "2", nil, nil)
	lf.Update("src/deleted.ts", "3", nil, nil)

	lf.Clean([]string{"src/a.ts", "src/b.ts"})

	if _, ok := lf.Get("src/a.ts", "1"); !ok {
		t.Error("src/a.ts should still be tracked")
	}
	if _, ok := lf.Get("src/deleted.ts", "3"); ok {
		t.Error("src/deleted.ts should be removed by Clean")
	}
}

func TestRemove(t *testing.T) {
	lf := newLockFile()
	lf.Update("src/a.ts", "1", nil, nil)
	lf.Remove("src/a.ts")

	if sources, _ := lf.Stats(); sources != 0 {
		t.Errorf("sources after Remove = %d, want 0", sources)
	}
}

func TestFiles(t *testing.T) {
	lf := newLockFile()
	lf.Update("src/c.ts", "1", nil, nil)
	lf.Update("src/a.ts", "1", nil, nil)
	lf.Update("lib/b.js", "1", nil, nil)

	files := lf.Files()
	expected := []string{"lib/b.js", "src/a.ts", "src/c.ts"}
	if len(files) != len(expected) {
		t.Fatalf("files len = %d, want %d", len(files), len(expected))
	}
	for i, want := range expected {
		if files[i] != want {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want)
		}
	}
}

func TestSummary(t *testing.T) {
	lf := newLockFile()

	if lf.Summary() != "empty" {
		t.Errorf("empty summary = %q, want %q", lf.Summary(), "empty")
	}

	lf.Update("src/a.ts", "1", sampleKeys("x", "y"), nil)
	lf.Update("src/b.ts", "2", nil, nil)
	if got, want := lf.Summary(), "2 sources, 2 keys (src/a.ts: 2)"; got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
}

func TestConcurrentAccess(t *testing.T) {
	lf := newLockFile()

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(n int) {
			source := "src/f" + string(rune('0'+n)) + ".ts"
			lf.Update(source, "h", sampleKeys("k"), nil)
			lf.Get(source, "h")
			lf.Stats()
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	_, n := lf.Stats()
	if n != 10 {
		t.Errorf("keys after concurrent writes = %d, want 10", n)
	}
}
