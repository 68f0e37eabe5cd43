// Package tracking records which day keys and group keys have been fully
// processed so re-runs can skip them. Keys are only ever added.
package tracking

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tcgpricing/internal/store"
)

// Key kinds.
const (
	KindDays   = "days"
	KindGroups = "groups"
)

// Log is a durable, append-only set of processed keys.
type Log interface {
	// IsProcessed reports whether key has been marked.
	IsProcessed(key string) bool
	// MarkProcessed durably records key. Marking a known key is a no-op.
	MarkProcessed(key string) error
	// Keys returns the marked keys in the order they were first recorded.
	Keys() []string
	// Close releases the underlying resources.
	Close() error
}

// Compile-time interface checks.
var _ Log = (*FileLog)(nil)
var _ Log = (*KeyLogTracker)(nil)

// set keeps the in-memory membership and first-seen order shared by both
// backends.
type set struct {
	mu    sync.Mutex
	keys  map[string]struct{}
	order []string
}

func (s *set) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

func (s *set) add(key string) bool {
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	s.order = append(s.order, key)
	return true
}

func (s *set) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// ---------------------------------------------------------------------------
// FileLog: newline-delimited keys, appended and fsynced on every mark.
// ---------------------------------------------------------------------------

// FileLog tracks keys in a plain text file, one key per line.
type FileLog struct {
	set
	path   string
	file   *os.File
	writer *bufio.Writer
}

// OpenFile loads any keys already recorded at path and opens it for
// appending, creating it if absent.
func OpenFile(path string) (*FileLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating tracking dir: %w", err)
	}

	l := &FileLog{set: set{keys: make(map[string]struct{})}, path: path}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if key := strings.TrimSpace(line); key != "" {
			l.add(key)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	l.file = f
	l.writer = bufio.NewWriter(f)
	return l, nil
}

// IsProcessed reports whether key has been marked.
func (l *FileLog) IsProcessed(key string) bool { return l.has(key) }

// Keys returns the marked keys in file order.
func (l *FileLog) Keys() []string { return l.list() }

// MarkProcessed appends key to the file and syncs it to disk. The key only
// joins the in-memory set once the write succeeded.
func (l *FileLog) MarkProcessed(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.keys[key]; ok {
		return nil
	}
	if _, err := l.writer.WriteString(key + "\n"); err != nil {
		return fmt.Errorf("writing to %s: %w", filepath.Base(l.path), err)
	}
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", filepath.Base(l.path), err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", filepath.Base(l.path), err)
	}
	l.add(key)
	return nil
}

// Close flushes and closes the file.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer != nil {
		l.writer.Flush()
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// ---------------------------------------------------------------------------
// KeyLogTracker: keys stored in a store.KeyLog (the SQLite ledger).
// ---------------------------------------------------------------------------

// KeyLogTracker tracks keys of one kind in a store.KeyLog.
type KeyLogTracker struct {
	set
	ctx  context.Context
	kind string
	kl   store.KeyLog
}

// OpenKeyLog loads the keys of kind from kl.
func OpenKeyLog(ctx context.Context, kl store.KeyLog, kind string) (*KeyLogTracker, error) {
	keys, err := kl.LoadKeys(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("loading %s keys: %w", kind, err)
	}
	t := &KeyLogTracker{set: set{keys: make(map[string]struct{})}, ctx: ctx, kind: kind, kl: kl}
	for _, k := range keys {
		t.add(k)
	}
	return t, nil
}

// IsProcessed reports whether key has been marked.
func (t *KeyLogTracker) IsProcessed(key string) bool { return t.has(key) }

// Keys returns the marked keys in insertion order.
func (t *KeyLogTracker) Keys() []string { return t.list() }

// MarkProcessed records key in the key log.
func (t *KeyLogTracker) MarkProcessed(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.keys[key]; ok {
		return nil
	}
	if err := t.kl.AppendKey(t.ctx, t.kind, key); err != nil {
		return fmt.Errorf("recording %s key %s: %w", t.kind, key, err)
	}
	t.add(key)
	return nil
}

// Close is a no-op; the key log is owned by the caller.
func (t *KeyLogTracker) Close() error { return nil }
