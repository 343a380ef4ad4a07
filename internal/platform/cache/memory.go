package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryItem struct {
	payload   []byte
	expiresAt time.Time
}

// Memory is an in-process TTL cache. Entries expire lazily: an expired
// entry is removed the first time a lookup observes it. There is no
// background sweep and no capacity bound.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemory constructs an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// WithClock overrides the time source, used by tests to control expiry.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// Get returns the cached value while its expiry is strictly in the future.
func (m *Memory) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !m.now().Before(item.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry.
		if current, stillThere := m.items[key]; stillThere && !m.now().Before(current.expiresAt) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return false, nil
	}
	return true, json.Unmarshal(item.payload, dest)
}

// Set overwrites any existing entry for key with expiry now+ttl.
func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.items[key] = memoryItem{payload: payload, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Len reports the number of entries currently held, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

var _ Cache = (*Memory)(nil)
