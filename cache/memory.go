package cache

import (
	"context"
	"sync"
	"time"

	"github.com/AmrMohamed27/threadit-server-sub001/errors"
)

// memoryEntry represents an entry in the in-memory store.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process TTL store. Production deployments use KVStore;
// Memory serves tests and single-process development setups.
type Memory struct {
	mu              sync.RWMutex
	ttl             time.Duration
	cleanupInterval time.Duration
	items           map[string]memoryEntry
	now             func() time.Time

	shutdown chan struct{}
	done     chan struct{}
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock overrides the time source. Tests use this to cross the expiry
// window without sleeping.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an in-memory TTL store and starts its background
// cleanup loop. Close stops the loop.
func NewMemory(ttl time.Duration, opts ...MemoryOption) *Memory {
	m := &Memory{
		ttl:             ttl,
		cleanupInterval: ttl / 2,
		items:           make(map[string]memoryEntry),
		now:             time.Now,
		shutdown:        make(chan struct{}),
		done:            make(chan struct{}),
	}
	if m.cleanupInterval < time.Second {
		m.cleanupInterval = time.Second
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.cleanup()

	return m
}

// Set stores a value with the store's TTL. The expiry clock restarts from
// this write.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: m.now().Add(m.ttl),
	}
	return nil
}

// Get retrieves a value. Reading does not extend the remaining TTL.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	entry, exists := m.items[key]
	m.mu.RUnlock()

	if !exists || m.now().After(entry.expiresAt) {
		return nil, errors.ErrKeyNotFound
	}

	return append([]byte(nil), entry.value...), nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Size returns the number of entries, expired ones included until the
// next cleanup pass.
func (m *Memory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Close stops the background cleanup goroutine.
func (m *Memory) Close() error {
	select {
	case <-m.shutdown:
	default:
		close(m.shutdown)
	}
	<-m.done
	return nil
}

// cleanup periodically removes expired entries.
func (m *Memory) cleanup() {
	defer close(m.done)

	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.shutdown:
			return
		case <-ticker.C:
			m.removeExpired()
		}
	}
}

func (m *Memory) removeExpired() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, entry := range m.items {
		if now.After(entry.expiresAt) {
			delete(m.items, key)
		}
	}
}

var _ Store = (*Memory)(nil)
