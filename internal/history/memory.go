package history

import "sync"

// MemoryStore is the in-memory Store used in tests and as a degraded-mode
// fallback when the durable backend cannot be opened.
type MemoryStore struct {
	mu    sync.RWMutex
	pools map[string][]Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pools: make(map[string][]Snapshot)}
}

// Get implements Store.
func (s *MemoryStore) Get(identity, date string) (Snapshot, bool, error) {
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
func (s *MemoryStore) Put(identity string, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[identity] = upsert(s.pools[identity], snap)
	return nil
}

// Recent implements Store.
func (s *MemoryStore) Recent(identity string, n int) ([]Snapshot, error) {
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
