package blobstore

import (
	"sync"

	"github.com/arcfs/realm/internal/contentkey"
)

// Memory implements Store using an in-memory map with thread-safe access.
// Intended for tests and development; nothing is persisted across process
// restarts.
type Memory struct {
	mu   sync.RWMutex
	data map[contentkey.Key][]byte
}

// NewMemory creates a new in-memory Store.
func NewMemory() *Memory {
	return &Memory{data: make(map[contentkey.Key][]byte)}
}

func (m *Memory) Get(key contentkey.Key) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	body, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

func (m *Memory) Put(key contentkey.Key, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]byte, len(body))
	copy(cp, body)
	m.data[key] = cp
	return nil
}

func (m *Memory) Del(key contentkey.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Has(key contentkey.Key) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok, nil
}

// Len returns the number of distinct bodies currently stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
