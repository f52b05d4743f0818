// Package safemap provides a map guarded by a read-write mutex.
package safemap

import "sync"

// Map is safe for concurrent use.
type Map[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]V
}

func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{data: make(map[K]V)}
}

func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	v, ok := m.data[key]
	m.mu.RUnlock()
	return v, ok
}

func (m *Map[K, V]) Set(key K, val V) {
	m.mu.Lock()
	m.data[key] = val
	m.mu.Unlock()
}

func (m *Map[K, V]) Delete(key K) {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
}

// GetOrCompute returns the value stored for key, calling compute to fill it
// in if absent. compute runs without the lock held and may race with
// another caller computing the same key; the first stored value wins.
func (m *Map[K, V]) GetOrCompute(key K, compute func() V) V {
	if v, ok := m.Get(key); ok {
		return v
	}

	v := compute()
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return existing
	}
	m.data[key] = v
	return v
}

// Foreach calls it for every entry while holding the read lock.
func (m *Map[K, V]) Foreach(it func(K, V)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for k, v := range m.data {
		it(k, v)
	}
}

func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
