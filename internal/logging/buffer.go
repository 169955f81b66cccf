package logging

import (
	"time"

	"github.com/smazurov/effectnode/internal/mailbox"
)

// LogEntry represents a single log line stored in the ring buffer.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer keeps the most recent log entries for /api/logs.
type RingBuffer struct {
	entries *mailbox.Mailbox[LogEntry]
}

// NewRingBuffer creates a new ring buffer with the specified capacity.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{entries: mailbox.New[LogEntry](size)}
}

// Write adds a log entry to the buffer, overwriting the oldest entry if full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.entries.Push(entry)
}

// ReadAll returns all entries in chronological order.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.entries.DrainAll()
}

// Tail returns at most n of the newest entries, oldest first.
func (rb *RingBuffer) Tail(n int) []LogEntry {
	all := rb.entries.DrainAll()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Count returns the number of entries in the buffer.
func (rb *RingBuffer) Count() int {
	return rb.entries.Len()
}
