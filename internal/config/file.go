package config

import "time"

// File represents the structure of the .contactscan configuration file.
// Zero values leave the corresponding Config field unchanged.
type File struct {
	Crawl   CrawlSettings   `yaml:"crawl,omitempty"`
	Cache   CacheSettings   `yaml:"cache,omitempty"`
	Limits  LimitSettings   `yaml:"limits,omitempty"`
	Redis   RedisSettings   `yaml:"redis,omitempty"`
	Server  ServerSettings  `yaml:"server,omitempty"`
	History HistorySettings `yaml:"history,omitempty"`
	Report  ReportSettings  `yaml:"report,omitempty"`
}

// CrawlSettings configures website crawls.
type CrawlSettings struct {
	MaxPages       int           `yaml:"maxPages,omitempty"`
	FetchTimeout   time.Duration `yaml:"fetchTimeout,omitempty"`
	EmailDeadline  time.Duration `yaml:"emailDeadline,omitempty"`
	Delay          time.Duration `yaml:"delay,omitempty"`
	UserAgent      string        `yaml:"userAgent,omitempty"`
	MaxBodySize    int64         `yaml:"maxBodySize,omitempty"`
	IgnorePatterns []string      `yaml:"ignorePatterns,omitempty"`
	Proxy          string        `yaml:"proxy,omitempty"`
}

// CacheSettings configures the result cache.
type CacheSettings struct {
	TTL        time.Duration `yaml:"ttl,omitempty"`
	MaxEntries int           `yaml:"maxEntries,omitempty"`
}

// LimitSettings configures the rate governor and batch size.
type LimitSettings struct {
	PerMinute int `yaml:"perMinute,omitempty"`
	PerDay    int `yaml:"perDay,omitempty"`
	BatchSize int `yaml:"batchSize,omitempty"`
}

// RedisSettings enables the shared Redis backend.
type RedisSettings struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// ServerSettings configures "contactscan serve".
type ServerSettings struct {
	Listen            string `yaml:"listen,omitempty"`
	CookieSecret      string `yaml:"cookieSecret,omitempty"`
	TrustForwardedFor *bool  `yaml:"trustForwardedFor,omitempty"`
	KeyHeader         string `yaml:"keyHeader,omitempty"`
	MaxInFlight       int    `yaml:"maxInFlight,omitempty"`
}

// HistorySettings configures the lookup history database.
type HistorySettings struct {
	Dir     string `yaml:"dir,omitempty"`
	Enabled *bool  `yaml:"enabled,omitempty"`
	Session string `yaml:"session,omitempty"`
}

// ReportSettings configures report output.
type ReportSettings struct {
	Format string `yaml:"format,omitempty"`
}

// Apply copies every value set in the file onto c.
func (f *File) Apply(c *Config) {
	if f == nil {
		return
	}

	setInt(&c.MaxPages, f.Crawl.MaxPages)
	setDuration(&c.FetchTimeout, f.Crawl.FetchTimeout)
	setDuration(&c.EmailDeadline, f.Crawl.EmailDeadline)
	setDuration(&c.CrawlDelay, f.Crawl.Delay)
	setString(&c.UserAgent, f.Crawl.UserAgent)
	if f.Crawl.MaxBodySize != 0 {
		c.MaxBodySize = f.Crawl.MaxBodySize
	}
	if len(f.Crawl.IgnorePatterns) > 0 {
		c.IgnorePatterns = append([]string(nil), f.Crawl.IgnorePatterns...)
	}
	setString(&c.Proxy, f.Crawl.Proxy)

	setDuration(&c.CacheTTL, f.Cache.TTL)
	setInt(&c.CacheMaxEntries, f.Cache.MaxEntries)

	setInt(&c.MinuteLimit, f.Limits.PerMinute)
	setInt(&c.DailyLimit, f.Limits.PerDay)
	setInt(&c.BatchSize, f.Limits.BatchSize)

	setString(&c.RedisAddr, f.Redis.Addr)
	setString(&c.RedisPassword, f.Redis.Password)
	setInt(&c.RedisDB, f.Redis.DB)

	setString(&c.ListenAddr, f.Server.Listen)
	setString(&c.CookieSecret, f.Server.CookieSecret)
	if f.Server.TrustForwardedFor != nil {
		c.TrustForwardedFor = *f.Server.TrustForwardedFor
	}
	setString(&c.KeyHeader, f.Server.KeyHeader)
	setInt(&c.MaxInFlight, f.Server.MaxInFlight)

	setString(&c.DBDir, f.History.Dir)
	if f.History.Enabled != nil {
		c.SaveToDB = *f.History.Enabled
	}
	setString(&c.SessionID, f.History.Session)

	setString(&c.Format, f.Report.Format)
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
