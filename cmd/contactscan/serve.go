package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/contactscan/internal/config"
	"github.com/nao1215/contactscan/internal/server"
)

// sessionPurgeInterval is how often expired CLI sessions are removed from
// the history database while the server runs.
const sessionPurgeInterval = time.Hour

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve contact lookups over HTTP",
		Long: `Serve starts an HTTP server that resolves profiles.

Endpoints:
  GET  /api/contacts?name=&bio=&website=&instagram=
  POST /api/contacts          (JSON profile)
  POST /api/contacts/batch    ({"profiles": [...]})
  GET  /healthz

Website crawls are limited per client per minute and per browser session
per day. The daily counter lives in a sealed cookie, or in Redis when
--redis is set. Set the cookie key with the CONTACTSCAN_COOKIE_SECRET
environment variable or server.cookieSecret in the configuration file.

Examples:
  # Listen on the default address
  contactscan serve

  # Share cache and counters between replicas
  contactscan serve --listen :9000 --redis localhost:6379`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "l", config.DefaultListenAddr,
		"Address to listen on")
	cmd.Flags().String("key-header", "",
		"Request header that identifies clients (default: client IP)")
	cmd.Flags().Int("max-in-flight", config.DefaultMaxInFlight,
		"Concurrent lookups before the server answers 503")
	cmd.Flags().Bool("no-history", false,
		"Do not record lookups in the history database")

	addConfigFlag(cmd)
	addCrawlFlags(cmd)

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Verbose, true)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	srv, err := newServer(cfg, s, logger)
	if err != nil {
		return err
	}

	if s.windows != nil {
		s.windows.StartJanitor(ctx)
	}
	if s.db != nil {
		go purgeSessions(ctx, s, logger)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", cfg.ListenAddr)
	return srv.ListenAndServe(ctx, cfg.ListenAddr)
}

// newServer builds the HTTP server around the stack's engine. The daily
// quota is kept in Redis when it is configured, otherwise in a sealed
// cookie.
func newServer(cfg *config.Config, s *stack, logger *slog.Logger) (*server.Server, error) {
	opts := []server.Option{
		server.WithKeyFunc(server.DefaultKeyFunc(cfg.KeyHeader, cfg.TrustForwardedFor)),
		server.WithLogger(logger),
		server.WithMaxInFlight(cfg.MaxInFlight),
		server.WithBatchConcurrency(cfg.BatchSize),
	}

	switch {
	case s.rdb != nil:
		opts = append(opts, server.WithQuota(server.RedisSessionQuota(s.rdb)))
	case cfg.CookieSecret != "":
		sealer, err := server.NewSealer([]byte(cfg.CookieSecret))
		if err != nil {
			return nil, fmt.Errorf("invalid cookie secret: %w", err)
		}
		opts = append(opts, server.WithQuota(server.CookieQuota(sealer, time.Now)))
	}

	return server.New(s.engine, opts...)
}

// purgeSessions removes expired CLI sessions until ctx is done.
func purgeSessions(ctx context.Context, s *stack, logger *slog.Logger) {
	t := time.NewTicker(sessionPurgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.db.PurgeSessions(ctx)
			if err != nil {
				logger.Warn("failed to purge sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged expired sessions", "count", n)
			}
		}
	}
}
