package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/minios-linux/i18nsync/config"
	"github.com/minios-linux/i18nsync/i18next"
	"github.com/minios-linux/i18nsync/lockfile"
	"github.com/minios-linux/i18nsync/pipeline"
)

func TestCoalescerMergesPendingRequests(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var runs []map[string]bool

	c := newCoalescer(func(_ context.Context, only map[string]bool) {
		mu.Lock()
		runs = append(runs, only)
		first := len(runs) == 1
		mu.Unlock()
		if first {
			close(started)
			<-release
		}
	})

	ctx := context.Background()
	c.trigger(ctx, map[string]bool{"a": true})
	<-started
	c.trigger(ctx, map[string]bool{"b": true})
	c.trigger(ctx, map[string]bool{"c": true})
	close(release)
	c.wait()

	require.Len(t, runs, 2)
	assert.Equal(t, map[string]bool{"a": true}, runs[0])
	assert.Equal(t, map[string]bool{"b": true, "c": true}, runs[1])
}

func TestCoalescerAllWins(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var runs []map[string]bool
	var mu sync.Mutex

	c := newCoalescer(func(_ context.Context, only map[string]bool) {
		mu.Lock()
		runs = append(runs, only)
		first := len(runs) == 1
		mu.Unlock()
		if first {
			close(started)
			<-release
		}
	})

	ctx := context.Background()
	c.trigger(ctx, map[string]bool{"a": true})
	<-started
	c.trigger(ctx, map[string]bool{"b": true})
	c.trigger(ctx, nil)
	close(release)
	c.wait()

	require.Len(t, runs, 2)
	assert.Nil(t, runs[1])
}

func readKeys(t *testing.T, path string) *i18next.Document {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := i18next.Parse(data)
	require.NoError(t, err)
	return doc
}

func waitReport(t *testing.T, ch <-chan *pipeline.Report) *pipeline.Report {
	t.Helper()
	select {
	case rep := <-ch:
		return rep
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for a reconciliation")
		return nil
	}
}

func TestWatchReconcilesChangedSources(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	src := filepath.Join(root, "src", "app.ts")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0755))
	require.NoError(t, os.WriteFile(src, []byte("t('hello');\n"), 0644))

	cfg := config.Defaults()
	cfg.Concurrency = 2
	lf, err := lockfile.Load(afero.NewOsFs(), root)
	require.NoError(t, err)
	runner, err := pipeline.New(pipeline.Options{
		Config: cfg,
		Root:   root,
		Fs:     afero.NewOsFs(),
		Logger: zerolog.Nop(),
		Cache:  lf,
	})
	require.NoError(t, err)

	reports := make(chan *pipeline.Report, 16)
	w, err := New(Options{
		Runner:   runner,
		Root:     root,
		Debounce: 50 * time.Millisecond,
		Logger:   zerolog.Nop(),
		OnReport: func(rep *pipeline.Report) { reports <- rep },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	translation := filepath.Join(root, "locales", "en", "translation.json")
	common := filepath.Join(root, "locales", "en", "common.json")

	first := waitReport(t, reports)
	assert.Equal(t, 1, first.Files)
	_, ok := readKeys(t, translation).Lookup([]string{"hello"})
	assert.True(t, ok)

	require.NoError(t, os.WriteFile(src, []byte("t('hello');\nt('common:save');\n"), 0644))
	second := waitReport(t, reports)
	var paths []string
	for _, tr := range second.Targets {
		paths = append(paths, tr.Path)
	}
	assert.Contains(t, paths, "locales/en/common.json")
	_, ok = readKeys(t, common).Lookup([]string{"save"})
	assert.True(t, ok)

	assert.Equal(t, []string{"src/app.ts"}, lf.Files())

	require.NoError(t, os.Remove(src))
	waitReport(t, reports)
	_, ok = readKeys(t, translation).Lookup([]string{"hello"})
	assert.False(t, ok)
	assert.Empty(t, lf.Files(), "deleted source stays cached")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
