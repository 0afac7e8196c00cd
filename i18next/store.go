package i18next

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
)

// Locker serializes writers of one resource file.
type Locker interface {
	// Lock blocks until path is held or ctx is done. The returned function
	// releases it.
	Lock(ctx context.Context, path string) (unlock func(), err error)
}

// LockPath returns the advisory lock file used for path.
func LockPath(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".lock")
}

// FileLocker takes an advisory OS lock on a sibling lock file, so separate
// processes updating the same locale file do not interleave.
type FileLocker struct {
	// RetryDelay is the polling interval while waiting. Zero means 50ms.
	RetryDelay time.Duration
}

func (l FileLocker) Lock(ctx context.Context, path string) (func(), error) {
	lp := LockPath(path)
	if err := os.MkdirAll(filepath.Dir(lp), 0o755); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}
	delay := l.RetryDelay
	if delay <= 0 {
		delay = 50 * time.Millisecond
	}
	fl := flock.New(lp)
	ok, err := fl.TryLockContext(ctx, delay)
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("locking %s: %w", path, context.Cause(ctx))
	}
	return func() { _ = fl.Unlock() }, nil
}

// MemLocker locks paths within one process. It backs in-memory
// filesystems.
type MemLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func (l *MemLocker) Lock(ctx context.Context, path string) (func(), error) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]chan struct{})
	}
	ch, ok := l.locks[path]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[path] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("locking %s: %w", path, ctx.Err())
	}
}

// Store reads and writes resource files on a filesystem.
type Store struct {
	fs     afero.Fs
	locker Locker
}

// NewStore returns a Store. A nil locker picks FileLocker for the OS
// filesystem and a MemLocker otherwise.
func NewStore(fs afero.Fs, locker Locker) *Store {
	if locker == nil {
		if _, isOS := fs.(*afero.OsFs); isOS {
			locker = FileLocker{}
		} else {
			locker = &MemLocker{}
		}
	}
	return &Store{fs: fs, locker: locker}
}

// Fs returns the underlying filesystem.
func (s *Store) Fs() afero.Fs { return s.fs }

// Load reads path. A missing file yields an empty document and
// exists=false.
func (s *Store) Load(path string) (doc *Document, exists bool, err error) {
	data, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err = Parse(data)
	if err != nil {
		return nil, true, fmt.Errorf("%s: %w", path, err)
	}
	return doc, true, nil
}

// Write replaces path atomically: the document goes to a temporary file in
// the same directory, which is then renamed over path.
func (s *Store) Write(path string, doc *Document) error {
	data, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// UpdateFunc modifies doc and reports whether it must be written.
type UpdateFunc func(doc *Document, exists bool) (write bool, err error)

// Update holds the lock for path across read, modify and write. Waiting
// for the lock honours ctx; once fn has run the write is not interrupted.
func (s *Store) Update(ctx context.Context, path string, fn UpdateFunc) error {
	unlock, err := s.locker.Lock(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()

	doc, exists, err := s.Load(path)
	if err != nil {
		return err
	}
	write, err := fn(doc, exists)
	if err != nil || !write {
		return err
	}
	return s.Write(path, doc)
}
