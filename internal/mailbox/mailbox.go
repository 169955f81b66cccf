// Package mailbox provides a bounded, lock-guarded FIFO that hands data from
// an asynchronous producer to synchronous readers.
//
// Push never blocks and never fails: when the mailbox is full the oldest item
// is evicted. Readers are non-destructive; only Push and Clear mutate.
package mailbox

import "sync"

// Mailbox is a fixed-capacity ring of T.
type Mailbox[T any] struct {
	mu     sync.RWMutex
	items  []T
	head   int // index of the oldest item
	count  int
	onPush func(item T, evicted bool)
}

// New creates a mailbox holding at most capacity items. Capacities below 1
// are raised to 1.
func New[T any](capacity int) *Mailbox[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Mailbox[T]{items: make([]T, capacity)}
}

// OnPush installs a hook called after every Push, outside the lock.
// evicted reports whether the push displaced the oldest item.
func (m *Mailbox[T]) OnPush(hook func(item T, evicted bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPush = hook
}

// Push appends item, evicting the oldest entry first when full.
// It returns true if an item was evicted.
func (m *Mailbox[T]) Push(item T) bool {
	m.mu.Lock()
	size := len(m.items)
	evicted := m.count == size
	if evicted {
		var zero T
		m.items[m.head] = zero
		m.head = (m.head + 1) % size
		m.count--
	}
	m.items[(m.head+m.count)%size] = item
	m.count++
	hook := m.onPush
	m.mu.Unlock()

	if hook != nil {
		hook(item, evicted)
	}
	return evicted
}

// Latest returns the most recently pushed item.
func (m *Mailbox[T]) Latest() (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.count == 0 {
		var zero T
		return zero, false
	}
	return m.items[(m.head+m.count-1)%len(m.items)], true
}

// DrainAll returns a copy of every stored item in insertion order.
// The mailbox is left unchanged.
func (m *Mailbox[T]) DrainAll() []T {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.count == 0 {
		return nil
	}

	out := make([]T, m.count)
	size := len(m.items)
	for i := range m.count {
		out[i] = m.items[(m.head+i)%size]
	}
	return out
}

// Clear empties the mailbox.
func (m *Mailbox[T]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.items)
	m.head = 0
	m.count = 0
}

// Len returns the number of stored items.
func (m *Mailbox[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}

// Cap returns the capacity.
func (m *Mailbox[T]) Cap() int {
	return len(m.items)
}
