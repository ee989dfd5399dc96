package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore is the durable Store: pool histories held in memory and
// persisted to a JSON file with atomic tmp-then-rename writes. Put mutates
// memory only; Flush persists, so a pipeline run records all of its
// snapshots and pays the write once.
type FileStore struct {
	mu       sync.RWMutex
	pools    map[string][]Snapshot
	filePath string
}

// persistenceFile is the on-disk layout.
type persistenceFile struct {
	Version string                `json:"version"`
	SavedAt time.Time             `json:"saved_at"`
	Pools   map[string][]Snapshot `json:"pools"`
}

// NewFileStore opens (or creates) a file-backed store at path, restoring
// any previously persisted histories.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		pools:    make(map[string][]Snapshot),
		filePath: path,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get implements Store.
func (s *FileStore) Get(identity, date string) (Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, snap := range s.pools[identity] {
		if snap.Date == date {
			return snap, true, nil
		}
	}
	return Snapshot{}, false, nil
}

// Put implements Store.
func (s *FileStore) Put(identity string, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[identity] = upsert(s.pools[identity], snap)
	return nil
}

// Recent implements Store.
func (s *FileStore) Recent(identity string, n int) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snaps := s.pools[identity]
	if n > len(snaps) {
		n = len(snaps)
	}
	out := make([]Snapshot, n)
	copy(out, snaps[:n])
	return out, nil
}

// Flush persists the current state. The write goes to a temp file first and
// is renamed into place so a crash mid-write never corrupts the store.
func (s *FileStore) Flush() error {
	s.mu.RLock()
	data := persistenceFile{
		Version: "1.0",
		SavedAt: time.Now().UTC(),
		Pools:   s.pools,
	}
	encoded, err := json.MarshalIndent(data, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	tempPath := s.filePath + ".tmp"
	if err := os.WriteFile(tempPath, encoded, 0o644); err != nil {
		return fmt.Errorf("writing history file: %w", err)
	}
	if err := os.Rename(tempPath, s.filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming history file: %w", err)
	}
	return nil
}

// load restores state from disk; a missing file starts fresh.
func (s *FileStore) load() error {
	tempPath := s.filePath + ".tmp"
	if _, err := os.Stat(tempPath); err == nil {
		_ = os.Remove(tempPath)
	}

	raw, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading history file: %w", err)
	}

	var data persistenceFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("unmarshaling history file: %w", err)
	}
	if data.Pools != nil {
		s.pools = data.Pools
	}
	return nil
}
