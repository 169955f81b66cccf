package output

import "sync"

// Memory is an in-process Driver that records every write.
// It backs registers on hosts without GPIO and in tests.
type Memory struct {
	mu     sync.Mutex
	writes []uint32
	last   uint32
	resets int
	err    error
	hook   func(value uint32)
}

// NewMemory creates an empty memory driver.
func NewMemory() *Memory {
	return &Memory{}
}

// Write records value. If a hook is installed it runs before recording,
// outside the driver's own lock.
func (m *Memory) Write(value uint32) error {
	m.mu.Lock()
	hook := m.hook
	err := m.err
	m.mu.Unlock()

	if hook != nil {
		hook(value)
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.writes = append(m.writes, value)
	m.last = value
	m.mu.Unlock()
	return nil
}

// Reset clears the recorded output level and counts the reset.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	m.last = 0
	m.writes = append(m.writes, 0)
	return nil
}

// Last returns the most recently written value.
func (m *Memory) Last() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Writes returns a copy of every recorded write in order.
func (m *Memory) Writes() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint32, len(m.writes))
	copy(out, m.writes)
	return out
}

// Resets returns how many times Reset was called.
func (m *Memory) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// FailWith makes subsequent writes return err (nil restores normal writes).
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetHook installs a function called on every write, e.g. to block a
// writer while it holds the register lock.
func (m *Memory) SetHook(hook func(value uint32)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = hook
}
