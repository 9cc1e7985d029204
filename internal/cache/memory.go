package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Memory is the default in-process store: bounded entry count with
// oldest-first eviction (insertion order, not access order) and TTL
// enforcement on read.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	order   *list.List
	maxSize int
	ttl     time.Duration

	hits   uint64
	misses uint64
}

type memoryEntry struct {
	entry   Entry
	element *list.Element
}

// NewMemory creates a bounded in-memory store.
func NewMemory(maxSize int, ttl time.Duration) *Memory {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Memory{
		entries: make(map[string]*memoryEntry),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get returns the entry for key. Entries past TTL are treated as misses and
// removed.
func (m *Memory) Get(_ context.Context, key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	me, ok := m.entries[key]
	if !ok {
		m.misses++
		return Entry{}, false
	}
	if time.Since(me.entry.CreatedAt) > m.ttl {
		m.removeLocked(key)
		m.misses++
		return Entry{}, false
	}

	m.hits++
	return me.entry, true
}

// Set stores or refreshes the entry for key, evicting the oldest entry when
// the size ceiling is exceeded.
func (m *Memory) Set(_ context.Context, key string, e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	if existing, ok := m.entries[key]; ok {
		existing.entry = e
		return
	}

	if m.order.Len() >= m.maxSize {
		if oldest := m.order.Front(); oldest != nil {
			m.removeLocked(oldest.Value.(string))
		}
	}

	m.entries[key] = &memoryEntry{
		entry:   e,
		element: m.order.PushBack(key),
	}
}

// Len reports the current entry count.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// Stats returns hit/miss counters for status output.
func (m *Memory) Stats() (hits, misses uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}

func (m *Memory) removeLocked(key string) {
	if me, ok := m.entries[key]; ok {
		m.order.Remove(me.element)
		delete(m.entries, key)
	}
}
