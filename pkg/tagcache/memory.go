package tagcache

import (
	"context"
	"log/slog"
	"sync"
)

// NewMemory returns a Cache that keeps everything in process memory.
// Namespaces survive Close of their handles only for the lifetime of the
// returned Cache.
func NewMemory(logger *slog.Logger) *Cache {
	return newCache(&memoryBackend{tables: make(map[string]*memoryTable)}, logger)
}

type memoryBackend struct {
	mu     sync.Mutex
	tables map[string]*memoryTable
}

func (*memoryBackend) kind() string { return "memory" }

func (m *memoryBackend) exists(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tables[name]
	return ok, nil
}

func (m *memoryBackend) open(name string) (table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[name]
	if !ok {
		t = &memoryTable{data: make(map[string][]byte)}
		m.tables[name] = t
	}
	return t, nil
}

type memoryTable struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func (t *memoryTable) get(_ context.Context, identifier, idCtx string) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.data[string(key(identifier, idCtx))]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (t *memoryTable) put(_ context.Context, identifier, idCtx string, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data[string(key(identifier, idCtx))] = value
	return nil
}

func (*memoryTable) close() error { return nil }
