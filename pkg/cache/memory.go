package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultJanitorInterval is how often the in-memory tier sweeps expired
// entries when no interval is configured.
const DefaultJanitorInterval = time.Minute

// Memory is an in-process Cache with per-entry TTL. It is safe for
// concurrent use. Expired entries are dropped lazily on read and by a
// background janitor.
type Memory struct {
	mu   sync.RWMutex
	data map[string]memEntry

	stopOnce sync.Once
	stop     chan struct{}
}

type memEntry struct {
	value []byte
	// expiresAt is zero for entries without expiry.
	expiresAt time.Time
}

// NewMemory creates a new in-memory Cache and starts its janitor.
// A non-positive interval uses DefaultJanitorInterval.
func NewMemory(janitorInterval time.Duration) *Memory {
	if janitorInterval <= 0 {
		janitorInterval = DefaultJanitorInterval
	}
	m := &Memory{
		data: make(map[string]memEntry),
		stop: make(chan struct{}),
	}
	go m.janitor(janitorInterval)
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, ok := m.data[key]; ok && !cur.expiresAt.IsZero() && time.Now().After(cur.expiresAt) {
			delete(m.data, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	// Return a copy to prevent mutation.
	cp := make([]byte, len(e.value))
	copy(cp, e.value)
	return cp, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	e := memEntry{value: cp}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Len reports the number of live entries, counting expired ones the janitor
// has not swept yet.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Close stops the janitor. The cache remains usable afterwards; expired
// entries are then only dropped on read.
func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

func (m *Memory) janitor(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			m.sweep(time.Now())
		}
	}
}

func (m *Memory) sweep(now time.Time) {
	m.mu.Lock()
	for k, e := range m.data {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(m.data, k)
		}
	}
	m.mu.Unlock()
}
