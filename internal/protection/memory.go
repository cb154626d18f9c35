package protection

import (
	"context"
	"sync"

	"filehost/internal/filehost"
)

// MemoryStore keeps the table in memory only.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]string
	saves   int
}

// NewMemoryStore creates a store preloaded with entries (which may be nil).
func NewMemoryStore(entries map[string]string) *MemoryStore {
	return &MemoryStore{entries: copyTable(entries)}
}

func (s *MemoryStore) Load(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTable(s.entries), nil
}

func (s *MemoryStore) Save(ctx context.Context, entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = copyTable(entries)
	s.saves++
	return nil
}

// Saves returns how many times the table was saved.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func copyTable(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Compile-time check that MemoryStore implements filehost.ProtectionStore
var _ filehost.ProtectionStore = (*MemoryStore)(nil)
