package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// Memory is an in-process Store used for tests and single-shot runs.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return Entry{}, false, nil
	}
	return e.entry, true, nil
}

func (m *Memory) Put(_ context.Context, key, fingerprint string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var expires time.Time
	if ttl > 0 {
		expires = now.Add(ttl)
	}
	m.entries[key] = memoryEntry{
		entry:     Entry{Key: key, Fingerprint: fingerprint, DeliveredAt: now},
		expiresAt: expires,
	}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Clear drops all entries. Tests use it to simulate total cache loss.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
}
