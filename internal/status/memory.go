package status

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local status store used when no Redis address is
// configured and by tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   func() time.Time
}

type memoryEntry struct {
	rec       Record
	expiresAt time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		clock:   time.Now,
	}
}

// Set stores the record with the given lifetime. A non-positive ttl keeps
// the record until overwritten.
func (s *MemoryStore) Set(_ context.Context, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := memoryEntry{rec: rec}
	if ttl > 0 {
		entry.expiresAt = s.clock().Add(ttl)
	}
	s.entries[key(rec.JobID)] = entry
	return nil
}

// Get returns the record for a job, expiring it lazily.
func (s *MemoryStore) Get(_ context.Context, jobID string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key(jobID)]
	if !ok {
		return Record{}, false, nil
	}
	if !entry.expiresAt.IsZero() && s.clock().After(entry.expiresAt) {
		delete(s.entries, key(jobID))
		return Record{}, false, nil
	}
	return entry.rec, true, nil
}
