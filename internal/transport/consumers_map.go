package transport

import "sync"

// ConsumersMap fans in from many producers, keyed by routing key (e.g. an
// exchange name). PollValues round-robins over the registered consumers so
// that one noisy key cannot starve the others — this is the primitive
// every engine that fans in from multiple MarketData engines uses (spec §4.1).
type ConsumersMap[K comparable, T any] struct {
	mu     sync.Mutex
	keys   []K
	byKey  map[K]Consumer[T]
	cursor int
}

// NewConsumersMap creates an empty map.
func NewConsumersMap[K comparable, T any]() *ConsumersMap[K, T] {
	return &ConsumersMap[K, T]{byKey: make(map[K]Consumer[T])}
}

// Register adds (or replaces) the consumer for key.
func (m *ConsumersMap[K, T]) Register(key K, c Consumer[T]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byKey[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.byKey[key] = c
}

// Remove drops the consumer for key.
func (m *ConsumersMap[K, T]) Remove(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byKey[key]; !exists {
		return
	}
	delete(m.byKey, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	if m.cursor >= len(m.keys) {
		m.cursor = 0
	}
}

// Len returns the number of registered keys.
func (m *ConsumersMap[K, T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

// PollValues round-robins over entries starting just after the last
// returned key, and returns the first (key, value) whose consumer has a
// ready item. Returns ok == false if no consumer has anything pending.
func (m *ConsumersMap[K, T]) PollValues() (key K, value T, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.keys)
	for i := 0; i < n; i++ {
		idx := (m.cursor + i) % n
		k := m.keys[idx]
		c := m.byKey[k]
		if v, popped := c.TryPop(); popped {
			m.cursor = (idx + 1) % n
			return k, v, true
		}
	}
	return key, value, false
}
