package cache

import (
	"context"
	"sync"
)

// MemoryBackend keeps values in a process-local map. It is the Go
// counterpart of a browser tab's session storage: values live as long as
// the backend does. A non-zero maxBytes caps the total size of stored
// values and makes oversized writes fail with ErrQuotaExceeded.
type MemoryBackend struct {
	mu       sync.RWMutex
	entries  map[string][]byte
	size     int
	maxBytes int
}

// NewMemoryBackend creates an empty memory backend. maxBytes <= 0 means
// unlimited.
func NewMemoryBackend(maxBytes int) *MemoryBackend {
	return &MemoryBackend{
		entries:  make(map[string][]byte),
		maxBytes: maxBytes,
	}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	newSize := m.size - len(m.entries[key]) + len(value)
	if m.maxBytes > 0 && newSize > m.maxBytes {
		return ErrQuotaExceeded
	}

	v := make([]byte, len(value))
	copy(v, value)
	m.entries[key] = v
	m.size = newSize
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.entries[key]; ok {
		m.size -= len(v)
		delete(m.entries, key)
	}
	return nil
}

func (m *MemoryBackend) Purge(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string][]byte)
	m.size = 0
	return nil
}

// Len returns the number of stored keys
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
