package store

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store for tests. It survives "process restarts"
// simulated by constructing a fresh agent over the same instance.
type MemStore struct {
	mu      sync.Mutex
	records map[string][]byte

	// FailPuts, when set, makes every Put return this error.
	FailPuts error
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string][]byte)}
}

func (m *MemStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.records[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, true, nil
}

func (m *MemStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPuts != nil {
		return m.FailPuts
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.records[key] = cp
	return nil
}

func (m *MemStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}
