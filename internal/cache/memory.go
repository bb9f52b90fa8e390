package cache

import (
	"context"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

var _ LocalStore = (*MemoryStore)(nil)

// MemoryStore is an in-process LocalStore. It is the default backend when no
// Redis address is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	values   map[string][]byte
	owners   map[string]string
	children map[string]mapset.Set[string]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:   make(map[string][]byte),
		owners:   make(map[string]string),
		children: make(map[string]mapset.Set[string]),
	}
}

func (m *MemoryStore) Get(ctx context.Context, kind Kind, id string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[valueKey(kind, id)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (m *MemoryStore) Put(ctx context.Context, kind Kind, id, parentID string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[valueKey(kind, id)] = append([]byte(nil), value...)
	if parentID != "" {
		m.attach(kind, id, parentID)
	}
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, kind Kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.remove(kind, id)
	return nil
}

func (m *MemoryStore) GetBulkByParent(ctx context.Context, kind Kind, parentID string) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids, ok := m.children[childrenKey(kind, parentID)]
	if !ok {
		return nil, nil
	}

	values := make([][]byte, 0, ids.Cardinality())
	for _, id := range ids.ToSlice() {
		if value, ok := m.values[valueKey(kind, id)]; ok {
			values = append(values, append([]byte(nil), value...))
		}
	}
	return values, nil
}

func (m *MemoryStore) PutBulk(ctx context.Context, kind Kind, parentID string, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	keep := mapset.NewThreadUnsafeSet[string]()
	for _, e := range entries {
		keep.Add(e.ID)
	}

	if existing, ok := m.children[childrenKey(kind, parentID)]; ok {
		for _, id := range existing.Difference(keep).ToSlice() {
			m.remove(kind, id)
		}
	}

	for _, e := range entries {
		m.values[valueKey(kind, e.ID)] = append([]byte(nil), e.Value...)
		m.attach(kind, e.ID, parentID)
	}
	return nil
}

func (m *MemoryStore) attach(kind Kind, id, parentID string) {
	key := ownerKey(kind, id)
	if old, ok := m.owners[key]; ok && old != parentID {
		if set, ok := m.children[childrenKey(kind, old)]; ok {
			set.Remove(id)
		}
	}
	m.owners[key] = parentID

	ck := childrenKey(kind, parentID)
	set, ok := m.children[ck]
	if !ok {
		set = mapset.NewThreadUnsafeSet[string]()
		m.children[ck] = set
	}
	set.Add(id)
}

func (m *MemoryStore) remove(kind Kind, id string) {
	delete(m.values, valueKey(kind, id))

	key := ownerKey(kind, id)
	if parentID, ok := m.owners[key]; ok {
		if set, ok := m.children[childrenKey(kind, parentID)]; ok {
			set.Remove(id)
		}
		delete(m.owners, key)
	}
}
