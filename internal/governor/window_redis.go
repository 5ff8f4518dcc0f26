package governor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript increments a window counter and starts its expiry on the
// first hit, so the window opens with the first attempt and resets when
// the key expires.
var hitScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {count, redis.call('PTTL', KEYS[1])}
`)

// RedisWindowStore keeps minute windows in Redis so several servers share
// the same per-client limit. The window clock is the Redis server's.
type RedisWindowStore struct {
	rdb    redis.Scripter
	prefix string
}

// RedisWindowOption configures a RedisWindowStore.
type RedisWindowOption func(*RedisWindowStore)

// WithWindowPrefix sets the key prefix.
func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

// NewRedisWindowStore creates a Redis-backed WindowStore.
func NewRedisWindowStore(rdb redis.Scripter, opts ...RedisWindowOption) *RedisWindowStore {
	s := &RedisWindowStore{
		rdb:    rdb,
		prefix: "contactscan:ratelimit:minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hit implements WindowStore.
func (s *RedisWindowStore) Hit(ctx context.Context, key string, _ time.Time, window time.Duration) (int, time.Duration, error) {
	res, err := hitScript.Run(ctx, s.rdb, []string{s.prefix + ":" + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("unexpected window script reply: %v", res)
	}

	retryAfter := time.Duration(res[1]) * time.Millisecond
	if retryAfter < 0 {
		retryAfter = 0
	}
	return int(res[0]), retryAfter, nil
}
