package cache

import (
	"context"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"

	"github.com/nao1215/contactscan/internal/model"
)

// Memory is a process-local Cache with lazy TTL expiry.
// When a maximum size is set, the least recently used entry is evicted
// once the bound is reached.
type Memory struct {
	mu      sync.Mutex
	entries *lru.Cache
	ttl     time.Duration
	now     func() time.Time
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the freshness window. Non-positive values are ignored.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithMaxEntries bounds the number of entries. Zero means unbounded.
func WithMaxEntries(n int) MemoryOption {
	return func(m *Memory) {
		if n >= 0 {
			m.entries.MaxEntries = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates an empty in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: lru.New(0),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the fresh value stored under key.
// An expired entry is dropped on read.
func (m *Memory) Get(_ context.Context, key string) (model.ContactRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.entries.Get(key)
	if !ok {
		return model.ContactRecord{}, false
	}

	entry, ok := v.(Entry)
	if !ok || entry.expired(m.now(), m.ttl) {
		m.entries.Remove(key)
		return model.ContactRecord{}, false
	}
	return entry.Value, true
}

// Put stores value under key, replacing any previous entry.
func (m *Memory) Put(_ context.Context, key string, value model.ContactRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries.Add(key, Entry{Key: key, Value: value, StoredAt: m.now()})
}

// Len returns the number of stored entries, fresh or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries.Len()
}
