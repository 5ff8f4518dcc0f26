package governor

import (
	"context"
	"sync"
	"time"
)

// Counter is one client's minute window.
type Counter struct {
	// Start is when the current window opened.
	Start time.Time

	// Count is the number of attempts seen in the window.
	Count int
}

// MemoryWindowStore keeps minute windows in a mutex-guarded map.
// Windows are reset lazily; the janitor only reclaims memory.
type MemoryWindowStore struct {
	mu           sync.Mutex
	counters     map[string]*Counter
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

// MemoryWindowOption configures a MemoryWindowStore.
type MemoryWindowOption func(*MemoryWindowStore)

// WithIdleTTL sets how long an untouched window is kept before cleanup.
func WithIdleTTL(d time.Duration) MemoryWindowOption {
	return func(s *MemoryWindowStore) { s.idleTTL = d }
}

// WithCleanupEvery sets the janitor interval. Zero disables the janitor.
func WithCleanupEvery(d time.Duration) MemoryWindowOption {
	return func(s *MemoryWindowStore) { s.cleanupEvery = d }
}

// NewMemoryWindowStore creates an empty store.
func NewMemoryWindowStore(opts ...MemoryWindowOption) *MemoryWindowStore {
	s := &MemoryWindowStore{
		counters:     make(map[string]*Counter),
		idleTTL:      2 * DefaultWindow,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hit implements WindowStore.
func (s *MemoryWindowStore) Hit(_ context.Context, key string, now time.Time, window time.Duration) (int, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || now.Sub(c.Start) > window {
		s.counters[key] = &Counter{Start: now, Count: 1}
		return 1, window, nil
	}

	c.Count++
	return c.Count, window - now.Sub(c.Start), nil
}

// Snapshot returns a copy of key's window.
func (s *MemoryWindowStore) Snapshot(key string) (Counter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok {
		return Counter{}, false
	}
	return *c, true
}

// Len returns the number of tracked clients.
func (s *MemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// Cleanup drops windows that opened more than idleTTL before now.
func (s *MemoryWindowStore) Cleanup(now time.Time) {
	cutoff := now.Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, c := range s.counters {
		if c.Start.Before(cutoff) {
			delete(s.counters, k)
		}
	}
}

// StartJanitor runs Cleanup periodically until ctx is done.
func (s *MemoryWindowStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				s.Cleanup(now)
			}
		}
	}()
}
