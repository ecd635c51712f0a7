package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowCounter struct {
	count       int
	windowStart time.Time
}

// MemoryStore is a process-local counter store. Stale windows are evicted
// lazily on access and swept whenever the map grows past a threshold.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]windowCounter
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]windowCounter)}
}

const sweepThreshold = 10000

func (m *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.counters[key]
	if !ok || now.Sub(c.windowStart) >= window {
		c = windowCounter{windowStart: now}
	}
	c.count++
	m.counters[key] = c

	if len(m.counters) > sweepThreshold {
		m.sweepLocked(now, window)
	}

	return c.count, nil
}

func (m *MemoryStore) sweepLocked(now time.Time, window time.Duration) {
	for k, c := range m.counters {
		if now.Sub(c.windowStart) >= window {
			delete(m.counters, k)
		}
	}
}
