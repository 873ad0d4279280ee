// Package cache stores extracted candidates keyed by file path and content
// fingerprint, with an optional on-disk JSON snapshot.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/phobologic/adaptive/internal/model"
)

// SchemaVersion is written into every snapshot. Snapshots with another
// version are discarded on load.
const SchemaVersion = 1

// Fingerprint returns the content hash used as the cache validity key.
func Fingerprint(content []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(content))
}

// Store is the cache contract used by the collector.
type Store interface {
	// Get returns the candidates stored for path when fingerprint matches.
	Get(path, fingerprint string) ([]model.Candidate, bool)
	// Put stores or overwrites the entry for path.
	Put(path, fingerprint string, cands []model.Candidate)
	// Lock serializes read-check-write for one path. Call the returned func to release.
	Lock(path string) func()
	// Clear empties memory and any persisted snapshot.
	Clear() error
	// Flush persists pending entries, if any.
	Flush() error
	// Stats returns counters since creation or the last Clear.
	Stats() Stats
}

// Stats are cumulative cache counters.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Puts    int64 `json:"puts"`
	Flushes int64 `json:"flushes"`
	Entries int   `json:"entries"`
}

// Entry is one cached file.
type Entry struct {
	Fingerprint string            `json:"fingerprint"`
	Candidates  []model.Candidate `json:"candidates"`
	ExtractedAt time.Time         `json:"extracted_at"`
}

type snapshot struct {
	SchemaVersion int              `json:"schema_version"`
	Entries       map[string]Entry `json:"entries"`
}

// FileStore keeps entries in memory and mirrors them to a single JSON file
// when a path is set. It is safe for concurrent use.
type FileStore struct {
	path string
	log  *slog.Logger

	loadOnce sync.Once
	mu       sync.RWMutex
	entries  map[string]Entry
	dirty    bool

	locks sync.Map // path → *sync.Mutex

	hits, misses, puts, flushes atomic.Int64
}

// NewFileStore returns a store persisted at path. The snapshot is read
// lazily on first use.
func NewFileStore(path string, log *slog.Logger) *FileStore {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &FileStore{path: path, log: log, entries: map[string]Entry{}}
}

// NewMemoryStore returns a store that never touches disk.
func NewMemoryStore() *FileStore {
	return NewFileStore("", nil)
}

// Path returns the snapshot location, or "" for memory-only stores.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) load() {
	s.loadOnce.Do(func() {
		if s.path == "" {
			return
		}
		data, err := os.ReadFile(s.path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.log.Warn("cache snapshot unreadable, starting empty", "path", s.path, "error", err)
			}
			return
		}
		var snap snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			s.log.Warn("cache snapshot corrupt, starting empty", "path", s.path, "error", err)
			return
		}
		if snap.SchemaVersion != SchemaVersion {
			s.log.Warn("cache snapshot version mismatch, starting empty",
				"path", s.path, "version", snap.SchemaVersion, "want", SchemaVersion)
			return
		}
		s.mu.Lock()
		for k, v := range snap.Entries {
			if _, ok := s.entries[k]; !ok {
				s.entries[k] = v
			}
		}
		s.mu.Unlock()
		s.log.Debug("cache snapshot loaded", "path", s.path, "entries", len(snap.Entries))
	})
}

// Get implements Store.
func (s *FileStore) Get(path, fingerprint string) ([]model.Candidate, bool) {
	s.load()
	s.mu.RLock()
	e, ok := s.entries[path]
	s.mu.RUnlock()
	if !ok || e.Fingerprint != fingerprint {
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return cloneCandidates(e.Candidates), true
}

// Put implements Store.
func (s *FileStore) Put(path, fingerprint string, cands []model.Candidate) {
	s.load()
	s.mu.Lock()
	s.entries[path] = Entry{
		Fingerprint: fingerprint,
		Candidates:  cloneCandidates(cands),
		ExtractedAt: time.Now().UTC(),
	}
	s.dirty = true
	s.mu.Unlock()
	s.puts.Add(1)
}

// Lock implements Store.
func (s *FileStore) Lock(path string) func() {
	v, _ := s.locks.LoadOrStore(path, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Clear implements Store.
func (s *FileStore) Clear() error {
	s.load()
	s.mu.Lock()
	s.entries = map[string]Entry{}
	s.dirty = false
	s.mu.Unlock()
	s.hits.Store(0)
	s.misses.Store(0)
	s.puts.Store(0)
	s.flushes.Store(0)

	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing cache snapshot: %w", err)
	}
	return nil
}

// Flush implements Store. The snapshot is written to a temporary file in
// the same directory and renamed into place.
func (s *FileStore) Flush() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	data, err := json.Marshal(snapshot{SchemaVersion: SchemaVersion, Entries: s.entries})
	if err != nil {
		return fmt.Errorf("encoding cache snapshot: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	s.dirty = false
	s.flushes.Add(1)
	return nil
}

// Stats implements Store.
func (s *FileStore) Stats() Stats {
	s.mu.RLock()
	n := len(s.entries)
	s.mu.RUnlock()
	return Stats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Puts:    s.puts.Load(),
		Flushes: s.flushes.Load(),
		Entries: n,
	}
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing cache snapshot: %w", err)
	}
	return nil
}

func cloneCandidates(in []model.Candidate) []model.Candidate {
	out := slices.Clone(in)
	for i := range out {
		out[i].Methods = slices.Clone(out[i].Methods)
		out[i].Annotations = slices.Clone(out[i].Annotations)
		out[i].Extends = slices.Clone(out[i].Extends)
		out[i].Implements = slices.Clone(out[i].Implements)
	}
	return out
}

// Nop is a Store that never holds anything; used when caching is disabled.
type Nop struct {
	misses atomic.Int64
}

func (n *Nop) Get(string, string) ([]model.Candidate, bool) {
	n.misses.Add(1)
	return nil, false
}

func (*Nop) Put(string, string, []model.Candidate) {}

func (*Nop) Lock(string) func() { return func() {} }

func (*Nop) Clear() error { return nil }

func (*Nop) Flush() error { return nil }

func (n *Nop) Stats() Stats { return Stats{Misses: n.misses.Load()} }
