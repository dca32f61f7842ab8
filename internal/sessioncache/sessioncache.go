// Package sessioncache holds best-effort key/value caches for bulk refresh
// snapshots.
package sessioncache

import (
	"context"
	"errors"
	"sync"
)

// ErrQuotaExceeded is returned by Set when the value does not fit.
var ErrQuotaExceeded = errors.New("session cache quota exceeded")

// DefaultMaxBytes mirrors the usual browser session storage budget.
const DefaultMaxBytes = 5 << 20

// Memory is an in-process cache bounded by the total size of keys and values.
type Memory struct {
	mu       sync.Mutex
	values   map[string]string
	size     int
	maxBytes int
}

// NewMemory returns a cache holding at most maxBytes; non-positive means DefaultMaxBytes.
func NewMemory(maxBytes int) *Memory {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Memory{values: make(map[string]string), maxBytes: maxBytes}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.values[key]
	return value, ok
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := m.size
	if old, ok := m.values[key]; ok {
		size -= len(key) + len(old)
	}
	size += len(key) + len(value)
	if size > m.maxBytes {
		return ErrQuotaExceeded
	}

	m.values[key] = value
	m.size = size
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}
