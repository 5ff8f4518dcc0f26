package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidMaxPages is returned when the crawl budget is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidTimeout is returned when the fetch timeout or the email
	// deadline is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidCache is returned for a non-positive TTL or a negative size.
	ErrInvalidCache = errors.New("invalid cache settings: ttl must be positive and max entries non-negative")

	// ErrInvalidLimit is returned when a rate limit is not positive.
	ErrInvalidLimit = errors.New("invalid rate limit: minute and daily limits must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrShortCookieSecret is returned when the cookie secret is set but
	// too short to seal cookies.
	ErrShortCookieSecret = errors.New("cookie secret must be at least 16 bytes")

	// ErrUnknownFormat is returned for a report format other than
	// simple, json or markdown.
	ErrUnknownFormat = errors.New("unknown report format: use simple, json or markdown")
)
