package cache

import (
	"context"
	"time"

	"github.com/nao1215/contactscan/internal/model"
)

// DefaultTTL is how long a crawl result stays fresh.
const DefaultTTL = 5 * time.Minute

// Cache memoizes crawl results by website.
//
// Get reports absent both for keys never stored and for entries older than
// the TTL; callers cannot tell the two apart and need not. Put always
// overwrites. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (model.ContactRecord, bool)
	Put(ctx context.Context, key string, value model.ContactRecord)
}

// Entry is one cached crawl result.
type Entry struct {
	// Key is the website the result belongs to.
	Key string `json:"key"`

	// Value is the crawled contact record, possibly empty.
	Value model.ContactRecord `json:"value"`

	// StoredAt is when the entry was written.
	StoredAt time.Time `json:"storedAt"`
}

// expired reports whether the entry is older than ttl at now.
func (e Entry) expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) > ttl
}

// Nop is a Cache that never stores anything.
type Nop struct{}

// Get always reports absent.
func (Nop) Get(context.Context, string) (model.ContactRecord, bool) {
	return model.ContactRecord{}, false
}

// Put discards the value.
func (Nop) Put(context.Context, string, model.ContactRecord) {}
