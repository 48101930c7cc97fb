package storage

import (
	"sync"

	"github.com/illarion/keylock/internal/store"
)

// MemoryStore is an in-RAM store.Store. Its content is lost when the
// process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ store.ConfigStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Contains(key string) bool {
	_, ok := m.Get(key)
	return ok
}

func (m *MemoryStore) Items() ([]store.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]store.Item, 0, len(m.values))
	for k, v := range m.values {
		items = append(items, store.Item{Key: k, Value: v})
	}
	store.SortItems(items)
	return items, nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryStore) Wipe() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]string)
	return nil
}
