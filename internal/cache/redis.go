package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nao1215/contactscan/internal/model"
)

// Redis is a Cache shared between processes.
// Values are stored as JSON with a server-side expiry equal to the TTL.
// Backend failures are logged and read as a miss.
type Redis struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// RedisOption configures a Redis cache.
type RedisOption func(*Redis)

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = strings.Trim(prefix, ":")
	}
}

// WithRedisTTL sets the expiry. Non-positive values are ignored.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithRedisLogger sets the logger used for backend errors.
func WithRedisLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) {
		r.logger = logger
	}
}

// NewRedis creates a Redis-backed cache.
func NewRedis(rdb redis.Cmdable, opts ...RedisOption) *Redis {
	r := &Redis{
		rdb:    rdb,
		prefix: "contactscan:cache",
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Get returns the value stored under key, if any.
func (r *Redis) Get(ctx context.Context, key string) (model.ContactRecord, bool) {
	data, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.ContactRecord{}, false
	}
	if err != nil {
		r.logger.Warn("cache get failed", "key", key, "error", err)
		return model.ContactRecord{}, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		r.logger.Warn("cache entry is corrupt", "key", key, "error", err)
		return model.ContactRecord{}, false
	}
	return entry.Value, true
}

// Put stores value under key with the configured expiry.
func (r *Redis) Put(ctx context.Context, key string, value model.ContactRecord) {
	data, err := json.Marshal(Entry{Key: key, Value: value, StoredAt: time.Now()})
	if err != nil {
		r.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := r.rdb.Set(ctx, r.key(key), data, r.ttl).Err(); err != nil {
		r.logger.Warn("cache put failed", "key", key, "error", err)
	}
}

func (r *Redis) key(k string) string {
	return r.prefix + ":" + k
}
