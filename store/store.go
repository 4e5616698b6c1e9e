// Package store holds the items a node physically keeps.
//
// Writes are last-writer-wins: a Put for an existing key replaces its content
// without any versioning. Items live until explicitly deleted.
package store

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrNotFound = errors.New("store: item not found")
	ErrEmptyKey = errors.New("store: empty key")
)

// Item describes a held item without its content.
type Item struct {
	Key  string
	Size int
}

// Store is the local item store of a node. Implementations copy values on the
// way in and out so callers never alias stored bytes.
type Store interface {
	Put(key string, value []byte) error
	Get(key string) ([]byte, error)
	Has(key string) bool
	Delete(key string) (bool, error)
	List() []Item
	Len() int
	Close() error
}

// Memory is an in-memory Store.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte)}
}

func (m *Memory) Put(key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = append([]byte{}, value...)
	return nil
}

func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte{}, v...), nil
}

func (m *Memory) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[key]
	return ok
}

func (m *Memory) Delete(key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key]; !ok {
		return false, nil
	}
	delete(m.items, key)
	return true, nil
}

func (m *Memory) List() []Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Item, 0, len(m.items))
	for k, v := range m.items {
		out = append(out, Item{Key: k, Size: len(v)})
	}
	sortItems(out)
	return out
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Memory) Close() error { return nil }

// Keys returns the sorted keys of s.
func Keys(s Store) []string {
	items := s.List()
	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = it.Key
	}
	return keys
}

func sortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
}
