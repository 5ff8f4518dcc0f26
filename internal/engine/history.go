package engine

import (
	"context"
	"time"

	"github.com/nao1215/contactscan/internal/model"
)

// Source tells where the website half of a lookup came from.
type Source string

const (
	// SourceProfile means the profile alone produced the record.
	SourceProfile Source = "profile"

	// SourceCache means the website findings were cached.
	SourceCache Source = "cache"

	// SourceCrawl means the website was crawled.
	SourceCrawl Source = "crawl"

	// SourceRateLimited means the crawl was refused by the governor.
	SourceRateLimited Source = "rate_limited"
)

// Lookup is one resolved profile as stored in the history.
type Lookup struct {
	Name         string              `json:"name"`
	Record       model.ContactRecord `json:"record"`
	Source       Source              `json:"source"`
	PagesFetched int                 `json:"pages_fetched,omitempty"`
	StopReason   string              `json:"stop_reason,omitempty"`
	ResolvedAt   time.Time           `json:"resolved_at"`
}

// History records resolved lookups.
type History interface {
	Record(ctx context.Context, lookup Lookup) error
}
