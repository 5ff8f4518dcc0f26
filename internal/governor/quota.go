package governor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DailyQuota is a session-scoped daily lookup counter.
// It lives with the caller's session, outside the governor, so it survives
// server restarts. One quota may be shared by the goroutines of a batch.
type DailyQuota interface {
	// Count returns the lookups already admitted in the current day.
	Count(ctx context.Context) (int, error)

	// Reserve records one admitted lookup if fewer than limit were admitted
	// in the current day, and extends the counter's lifetime to
	// DailyLifetime from now. The check and the increment are atomic.
	// It reports false when the limit was already reached.
	Reserve(ctx context.Context, limit int) (bool, error)
}

// MemoryQuota is a DailyQuota held in memory.
// The CLI uses it when no database is available, and tests use it directly.
type MemoryQuota struct {
	mu      sync.Mutex
	count   int
	expires time.Time
	now     func() time.Time
}

// NewMemoryQuota creates a quota starting at used lookups.
// A nil clock means time.Now.
func NewMemoryQuota(used int, now func() time.Time) *MemoryQuota {
	if now == nil {
		now = time.Now
	}
	q := &MemoryQuota{count: used, now: now}
	if used > 0 {
		q.expires = now().Add(DailyLifetime)
	}
	return q
}

// Count implements DailyQuota.
func (q *MemoryQuota) Count(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.expiredLocked() {
		return 0, nil
	}
	return q.count, nil
}

// Reserve implements DailyQuota.
func (q *MemoryQuota) Reserve(_ context.Context, limit int) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.expiredLocked() {
		q.count = 0
	}
	if q.count >= limit {
		return false, nil
	}
	q.count++
	q.expires = q.now().Add(DailyLifetime)
	return true, nil
}

func (q *MemoryQuota) expiredLocked() bool {
	return !q.expires.IsZero() && q.now().After(q.expires)
}

// reserveScript increments a daily counter unless it already reached
// ARGV[1], and restarts its lifetime of ARGV[2] milliseconds.
var reserveScript = redis.NewScript(`
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
if used >= tonumber(ARGV[1]) then
  return 0
end
redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

// RedisQuota is a DailyQuota stored under a per-session Redis key.
type RedisQuota struct {
	rdb redis.Cmdable
	key string
}

// NewRedisQuota creates a quota for one session.
func NewRedisQuota(rdb redis.Cmdable, sessionID string) *RedisQuota {
	return &RedisQuota{
		rdb: rdb,
		key: "contactscan:ratelimit:day:" + strings.TrimSpace(sessionID),
	}
}

// Count implements DailyQuota.
func (q *RedisQuota) Count(ctx context.Context) (int, error) {
	n, err := q.rdb.Get(ctx, q.key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Reserve implements DailyQuota.
func (q *RedisQuota) Reserve(ctx context.Context, limit int) (bool, error) {
	n, err := reserveScript.Run(ctx, q.rdb, []string{q.key}, limit, DailyLifetime.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
