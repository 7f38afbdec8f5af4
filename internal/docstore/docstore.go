// Package docstore keeps the raw uploaded document bytes on durable
// storage, keyed by document id. Blobs are written atomically and a small
// JSON manifest maps ids back to their original filenames so stored
// documents can be listed and served after a restart.
package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ErrNotFound indicates an unknown document id.
var ErrNotFound = errors.New("document not found")

const manifestName = "manifest.json"

// Entry describes one stored document.
type Entry struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Title    string    `json:"title,omitempty"`
	Size     int64     `json:"size"`
	StoredAt time.Time `json:"stored_at"`
}

// Store is a filesystem-backed blob store. All operations are safe for
// concurrent use.
type Store struct {
	mu      sync.RWMutex
	dir     string
	entries map[string]Entry
}

// Open prepares the storage directory and loads the manifest.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document directory: %w", err)
	}

	s := &Store{dir: dir, entries: make(map[string]Entry)}
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read document manifest: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode document manifest: %w", err)
	}
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	return s, nil
}

// Save writes the blob for the given document id and records it in the
// manifest. Saving an existing id overwrites its blob.
func (s *Store) Save(id, filename, title string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeAtomic(s.blobPath(id), data); err != nil {
		return fmt.Errorf("write document blob: %w", err)
	}
	s.entries[id] = Entry{
		ID:       id,
		Filename: filename,
		Title:    title,
		Size:     int64(len(data)),
		StoredAt: time.Now().UTC(),
	}
	if err := s.flushManifestLocked(); err != nil {
		delete(s.entries, id)
		return err
	}
	return nil
}

// Read returns the raw stored bytes for a document id.
func (s *Store) Read(id string) ([]byte, error) {
	s.mu.RLock()
	_, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	data, err := os.ReadFile(s.blobPath(id))
	if err != nil {
		return nil, fmt.Errorf("read document blob: %w", err)
	}
	return data, nil
}

// Meta returns the manifest entry for a document id.
func (s *Store) Meta(id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// List returns all entries ordered by storage time, oldest first.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].StoredAt.Equal(entries[j].StoredAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].StoredAt.Before(entries[j].StoredAt)
	})
	return entries
}

// Count returns the number of stored documents.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear deletes every stored blob and the manifest. Destructive and
// irreversible.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.entries {
		if err := os.Remove(s.blobPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove document blob: %w", err)
		}
	}
	s.entries = make(map[string]Entry)
	return s.flushManifestLocked()
}

func (s *Store) blobPath(id string) string {
	return filepath.Join(s.dir, id+".blob")
}

// flushManifestLocked persists the manifest atomically. Callers must hold
// the write lock.
func (s *Store) flushManifestLocked() error {
	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode document manifest: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.dir, manifestName), data); err != nil {
		return fmt.Errorf("write document manifest: %w", err)
	}
	return nil
}

// writeAtomic writes to a temp file and renames into place.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
