package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/nao1215/contactscan/internal/cache"
	"github.com/nao1215/contactscan/internal/config"
	"github.com/nao1215/contactscan/internal/crawler"
	"github.com/nao1215/contactscan/internal/database"
	"github.com/nao1215/contactscan/internal/engine"
	"github.com/nao1215/contactscan/internal/governor"
	applog "github.com/nao1215/contactscan/internal/log"
	"github.com/nao1215/contactscan/internal/report"
)

// Environment variables read on top of the configuration file. Secrets
// are not accepted as flags so they stay out of shell history.
const (
	envCookieSecret  = "CONTACTSCAN_COOKIE_SECRET"
	envRedisPassword = "CONTACTSCAN_REDIS_PASSWORD"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// addConfigFlag registers --config on cmd.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .contactscan in current or home directory)")
}

// addCrawlFlags registers the flags that tune website crawls.
func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to crawl per website")
	cmd.Flags().DurationP("timeout", "t", config.DefaultFetchTimeout,
		"Timeout of a single page fetch")
	cmd.Flags().Duration("deadline", config.DefaultEmailDeadline,
		"Time after which a website crawl returns what it found")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Pause between two fetches of the same website")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every fetch")
	cmd.Flags().String("proxy", "",
		"Fetch websites through this proxy (socks5://host:port or http://host:port)")
	cmd.Flags().String("redis", "",
		"Redis address shared by the cache and rate counters (e.g., localhost:6379)")
}

// loadConfig loads the configuration file and overlays the environment
// and every flag the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if errors.Is(err, config.ErrConfigNotFound) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if v := os.Getenv(envCookieSecret); v != "" {
		cfg.CookieSecret = v
	}
	if v := os.Getenv(envRedisPassword); v != "" {
		cfg.RedisPassword = v
	}

	cfg.Verbose = getVerboseFlag(cmd)
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// applyFlags copies the flags that are defined on cmd and were set by the
// user onto cfg. Unset flags leave file values alone.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	changed := func(name string) bool {
		return flags.Lookup(name) != nil && flags.Changed(name)
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"max-pages", &cfg.MaxPages},
		{"batch", &cfg.BatchSize},
		{"max-in-flight", &cfg.MaxInFlight},
	}
	for _, f := range ints {
		if !changed(f.name) {
			continue
		}
		v, err := flags.GetInt(f.name)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"timeout", &cfg.FetchTimeout},
		{"deadline", &cfg.EmailDeadline},
		{"delay", &cfg.CrawlDelay},
	}
	for _, f := range durations {
		if !changed(f.name) {
			continue
		}
		v, err := flags.GetDuration(f.name)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{"user-agent", &cfg.UserAgent},
		{"proxy", &cfg.Proxy},
		{"redis", &cfg.RedisAddr},
		{"format", &cfg.Format},
		{"output", &cfg.ReportFile},
		{"session", &cfg.SessionID},
		{"listen", &cfg.ListenAddr},
		{"key-header", &cfg.KeyHeader},
	}
	for _, f := range strs {
		if !changed(f.name) {
			continue
		}
		v, err := flags.GetString(f.name)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	if changed("no-history") {
		noHistory, err := flags.GetBool("no-history")
		if err != nil {
			return err
		}
		cfg.SaveToDB = !noHistory
	}
	return nil
}

// setupLogger creates the secure structured logger. JSON output is used
// by the server so its logs can be collected.
func setupLogger(verbose, jsonOutput bool) *slog.Logger {
	if jsonOutput {
		return applog.NewSecureJSONLogger(os.Stderr, verbose)
	}
	return applog.NewSecureLogger(os.Stderr, verbose)
}

// newRedisClient connects to the configured Redis server.
func newRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close() //nolint:errcheck // Best effort cleanup
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return rdb, nil
}

// stack is the lookup engine together with the resources it owns.
type stack struct {
	engine  *engine.Engine
	db      *database.ContactDB
	rdb     *redis.Client
	windows *governor.MemoryWindowStore
}

// buildStack wires the crawler, cache, governor and history from cfg.
// With a Redis address the cache and minute windows live in Redis,
// otherwise they are kept in memory.
func buildStack(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stack, error) {
	s := &stack{}

	crawlerOpts := []crawler.Option{
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithFetchTimeout(cfg.FetchTimeout),
		crawler.WithDeadline(cfg.EmailDeadline),
		crawler.WithDelay(cfg.CrawlDelay),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(int(cfg.MaxBodySize)),
		crawler.WithLogger(logger),
	}
	if len(cfg.IgnorePatterns) > 0 {
		patterns := append(append([]string(nil), crawler.DefaultIgnorePatterns...), cfg.IgnorePatterns...)
		crawlerOpts = append(crawlerOpts, crawler.WithIgnorePatterns(patterns))
	}
	if cfg.Proxy != "" {
		transport, err := crawler.NewProxyTransport(cfg.Proxy, cfg.FetchTimeout)
		if err != nil {
			return nil, err
		}
		crawlerOpts = append(crawlerOpts, crawler.WithFetcher(crawler.NewCollyFetcher(
			crawler.WithFetcherUserAgent(cfg.UserAgent),
			crawler.WithFetcherTimeout(cfg.FetchTimeout),
			crawler.WithFetcherMaxBodySize(int(cfg.MaxBodySize)),
			crawler.WithTransport(transport),
		)))
	}
	c := crawler.New(crawlerOpts...)

	var (
		resultCache cache.Cache
		windows     governor.WindowStore
	)
	if cfg.RedisAddr != "" {
		rdb, err := newRedisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.rdb = rdb
		resultCache = cache.NewRedis(rdb,
			cache.WithRedisTTL(cfg.CacheTTL),
			cache.WithRedisLogger(logger),
		)
		windows = governor.NewRedisWindowStore(rdb)
		logger.Info("using redis backend", "addr", cfg.RedisAddr)
	} else {
		resultCache = cache.NewMemory(
			cache.WithTTL(cfg.CacheTTL),
			cache.WithMaxEntries(cfg.CacheMaxEntries),
		)
		s.windows = governor.NewMemoryWindowStore()
		windows = s.windows
	}

	gov := governor.New(windows,
		governor.WithMinuteLimit(cfg.MinuteLimit),
		governor.WithDailyLimit(cfg.DailyLimit),
		governor.WithLogger(logger),
	)

	engineOpts := []engine.Option{
		engine.WithCache(resultCache),
		engine.WithGovernor(gov),
		engine.WithLogger(logger),
	}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		s.db = db
		engineOpts = append(engineOpts, engine.WithHistory(db))
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	s.engine = engine.New(c, engineOpts...)
	return s, nil
}

// sessionQuota returns the daily counter of the CLI session id. Redis is
// preferred so several machines can share one budget.
func (s *stack) sessionQuota(id string) governor.DailyQuota {
	switch {
	case s.rdb != nil:
		return governor.NewRedisQuota(s.rdb, id)
	case s.db != nil:
		return s.db.SessionQuota(id)
	default:
		return governor.NewMemoryQuota(0, time.Now)
	}
}

// Close releases the database and the Redis connection.
func (s *stack) Close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Warn("failed to close database", "error", err)
		}
	}
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
}

// newReportWriter returns the writer for format.
func newReportWriter(format string, w io.Writer, verbose bool) (report.Writer, error) {
	switch format {
	case config.FormatSimple:
		return report.NewSimpleWriter(w, report.WithVerbose(verbose)), nil
	case config.FormatJSON:
		return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint()), nil
	case config.FormatMarkdown:
		return report.NewMarkdownWriter(w), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownFormat, format)
	}
}

// createReportFile creates path and its parent directories.
func createReportFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports contain personal contact details, so only the owner may read them.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// writeReport writes entries in cfg.Format to cfg.ReportFile, or to stdout
// when no file is set. With tee the file and stdout both receive it.
func writeReport(cmd *cobra.Command, cfg *config.Config, entries []report.Entry, tee bool) error {
	stdout := cmd.OutOrStdout()
	if cfg.ReportFile == "" {
		w, err := newReportWriter(cfg.Format, stdout, cfg.Verbose)
		if err != nil {
			return err
		}
		_, err = w.Write(entries)
		return err
	}

	f, err := createReportFile(cfg.ReportFile)
	if err != nil {
		return err
	}
	defer f.Close()

	fileWriter, err := newReportWriter(cfg.Format, f, cfg.Verbose)
	if err != nil {
		return err
	}
	var w report.Writer = fileWriter
	if tee {
		stdoutWriter, err := newReportWriter(cfg.Format, stdout, cfg.Verbose)
		if err != nil {
			return err
		}
		w = report.NewMultiWriter(fileWriter, stdoutWriter)
	}

	if _, err := w.Write(entries); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
