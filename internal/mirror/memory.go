package mirror

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"filehost/internal/filehost"
)

// MemoryMirror keeps mirrored copies in memory. Useful for tests and for
// running without an external sink. Safe for concurrent use.
type MemoryMirror struct {
	mu      sync.RWMutex
	objects map[string][]byte // relative path -> content
}

// NewMemoryMirror creates an empty in-memory mirror.
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{objects: make(map[string][]byte)}
}

func (m *MemoryMirror) Name() string { return "memory" }

// Put stores a copy of r. A non-negative size must match the bytes read.
func (m *MemoryMirror) Put(ctx context.Context, relativePath string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading content: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[relativePath] = data
	return nil
}

// Get returns the mirrored copy of relativePath.
func (m *MemoryMirror) Get(relativePath string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[relativePath]
	return data, ok
}

// Paths returns the sorted paths of every mirrored copy.
func (m *MemoryMirror) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.objects))
	for p := range m.objects {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Compile-time check that MemoryMirror implements filehost.Mirror
var _ filehost.Mirror = (*MemoryMirror)(nil)
