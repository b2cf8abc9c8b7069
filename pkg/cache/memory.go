package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	raw     []byte
	expires time.Time
}

// Memory is an in-process Cache. Values are stored JSON-encoded so callers
// never share mutable state with the cache.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates an in-process cache.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string, dst interface{}) (bool, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && !m.now().Before(e.expires) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(e.raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{raw: raw, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

// Delete implements Cache.
func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
	return nil
}
