package config

import (
	"os/user"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "contactscan"

	// DefaultMaxPages is the number of successfully fetched pages after
	// which a website crawl gives up.
	DefaultMaxPages = 40

	// DefaultFetchTimeout bounds a single page fetch.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultEmailDeadline is the soft deadline of a whole website crawl.
	// The crawl returns what it found so far when it expires.
	DefaultEmailDeadline = 5 * time.Second

	// DefaultCrawlDelay is the pause between two fetches of one crawl.
	DefaultCrawlDelay = time.Duration(0)

	// DefaultUserAgent is sent with every fetch.
	DefaultUserAgent = "Mozilla/5.0 (compatible; ContactScan/1.0)"

	// DefaultMaxBodySize limits the bytes read from one response.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultCacheTTL is how long crawl findings for a website are reused.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultCacheMaxEntries bounds the in-memory result cache.
	DefaultCacheMaxEntries = 10000

	// DefaultMinuteLimit is the number of crawls one client may start per minute.
	DefaultMinuteLimit = 15

	// DefaultDailyLimit is the number of crawls one session may start per day.
	DefaultDailyLimit = 100

	// DefaultBatchSize is the number of profiles resolved at once.
	DefaultBatchSize = 5

	// DefaultListenAddr is where "contactscan serve" listens.
	DefaultListenAddr = ":8080"

	// DefaultMaxInFlight caps concurrent HTTP lookups.
	DefaultMaxInFlight = 64

	// DefaultFormat is the report format of the resolve and history commands.
	DefaultFormat = FormatSimple
)

// Report formats.
const (
	FormatSimple   = "simple"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Config holds all configuration options for contactscan.
// It is filled from defaults, then the config file, then CLI flags.
type Config struct {
	// MaxPages is the crawl budget per website.
	MaxPages int

	// FetchTimeout bounds a single page fetch.
	FetchTimeout time.Duration

	// EmailDeadline is the soft deadline of a whole website crawl.
	EmailDeadline time.Duration

	// CrawlDelay is the pause between two fetches of one crawl.
	CrawlDelay time.Duration

	// UserAgent is the User-Agent header sent with every fetch.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// IgnorePatterns are extra URL path patterns the crawler skips.
	IgnorePatterns []string

	// Proxy routes every fetch through a socks5:// or http(s):// proxy.
	Proxy string

	// CacheTTL is how long crawl findings are reused.
	CacheTTL time.Duration

	// CacheMaxEntries bounds the in-memory cache. Zero means unbounded.
	CacheMaxEntries int

	// MinuteLimit is the number of crawls one client may start per minute.
	MinuteLimit int

	// DailyLimit is the number of crawls one session may start per day.
	DailyLimit int

	// BatchSize is the number of profiles resolved at once.
	BatchSize int

	// RedisAddr enables Redis-backed cache and counters when set.
	RedisAddr string

	// RedisPassword authenticates to Redis.
	RedisPassword string

	// RedisDB selects the Redis database.
	RedisDB int

	// ListenAddr is where "contactscan serve" listens.
	ListenAddr string

	// CookieSecret seals the daily counter cookie. When empty a random key
	// is used and counters reset on restart.
	CookieSecret string

	// TrustForwardedFor keys clients by X-Forwarded-For. Enable it only
	// behind a proxy that sets the header.
	TrustForwardedFor bool

	// KeyHeader, when set, names a request header that identifies clients.
	KeyHeader string

	// MaxInFlight caps concurrent HTTP lookups. Zero disables the cap.
	MaxInFlight int

	// DBDir is the directory of the SQLite history database.
	DBDir string

	// SaveToDB records every lookup in the history database.
	SaveToDB bool

	// SessionID identifies the CLI session whose daily counter is used.
	SessionID string

	// Format is the report format: simple, json or markdown.
	Format string

	// ReportFile is the output file path. Empty means stdout.
	ReportFile string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the explicit configuration file path, if any.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxPages:          DefaultMaxPages,
		FetchTimeout:      DefaultFetchTimeout,
		EmailDeadline:     DefaultEmailDeadline,
		CrawlDelay:        DefaultCrawlDelay,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		CacheTTL:          DefaultCacheTTL,
		CacheMaxEntries:   DefaultCacheMaxEntries,
		MinuteLimit:       DefaultMinuteLimit,
		DailyLimit:        DefaultDailyLimit,
		BatchSize:         DefaultBatchSize,
		ListenAddr:        DefaultListenAddr,
		TrustForwardedFor: true,
		MaxInFlight:       DefaultMaxInFlight,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
		SessionID:         DefaultSessionID(),
		Format:            DefaultFormat,
	}
}

// DefaultSessionID is the CLI session of the current OS user.
func DefaultSessionID() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return "cli:" + u.Username
	}
	return "cli"
}

// XDGDataDir returns the XDG data directory for contactscan.
// On Linux: ~/.local/share/contactscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for contactscan.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.FetchTimeout <= 0 || c.EmailDeadline <= 0 {
		return ErrInvalidTimeout
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.CacheTTL <= 0 || c.CacheMaxEntries < 0 {
		return ErrInvalidCache
	}
	if c.MinuteLimit <= 0 || c.DailyLimit <= 0 {
		return ErrInvalidLimit
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.CookieSecret != "" && len(c.CookieSecret) < MinCookieSecretLength {
		return ErrShortCookieSecret
	}
	switch c.Format {
	case FormatSimple, FormatJSON, FormatMarkdown:
	default:
		return ErrUnknownFormat
	}
	return nil
}

// MinCookieSecretLength is the shortest accepted cookie secret.
const MinCookieSecretLength = 16
