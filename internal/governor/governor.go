package governor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/contactscan/internal/model"
)

// Default limits.
const (
	// DefaultMinuteLimit is the number of lookups one client may start per window.
	DefaultMinuteLimit = 15

	// DefaultDailyLimit is the number of lookups one session may start per day.
	DefaultDailyLimit = 100

	// DefaultWindow is the length of the per-client window.
	DefaultWindow = time.Minute

	// DailyLifetime is how long a session's daily counter lives after its
	// last increment.
	DailyLifetime = 24 * time.Hour

	// unknownClient is the key used when the caller has no identity.
	unknownClient = "unknown"
)

// Caller identifies who is asking for a lookup.
// The two fields are deliberately different identity scopes: Key is the
// network identity (usually the client IP) and Quota is the session.
type Caller struct {
	// Key scopes the minute window.
	Key string

	// Quota is the session's daily counter. Nil disables the daily cap.
	Quota DailyQuota
}

// WindowStore keeps the per-client minute windows.
// Hit must be atomic per key.
type WindowStore interface {
	// Hit records one admission attempt for key at now. It returns the
	// count within the current window, including this attempt, and the time
	// left until the window resets.
	Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int, time.Duration, error)
}

// Governor performs admission control before a website crawl.
type Governor struct {
	windows     WindowStore
	minuteLimit int
	dailyLimit  int
	window      time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Governor.
type Option func(*Governor)

// WithMinuteLimit sets the per-window ceiling. Non-positive values are ignored.
func WithMinuteLimit(n int) Option {
	return func(g *Governor) {
		if n > 0 {
			g.minuteLimit = n
		}
	}
}

// WithDailyLimit sets the per-session daily ceiling. Non-positive values are ignored.
func WithDailyLimit(n int) Option {
	return func(g *Governor) {
		if n > 0 {
			g.dailyLimit = n
		}
	}
}

// WithWindow sets the window length. Non-positive values are ignored.
func WithWindow(d time.Duration) Option {
	return func(g *Governor) {
		if d > 0 {
			g.window = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Governor) {
		g.logger = logger
	}
}

// New creates a Governor backed by the given window store.
// A nil store gets a fresh MemoryWindowStore.
func New(store WindowStore, opts ...Option) *Governor {
	if store == nil {
		store = NewMemoryWindowStore()
	}
	g := &Governor{
		windows:     store,
		minuteLimit: DefaultMinuteLimit,
		dailyLimit:  DefaultDailyLimit,
		window:      DefaultWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Admit decides whether caller may start one more lookup.
//
// The minute window is checked first; its counter advances even when the
// attempt is rejected, and it resets once the window has elapsed. The
// daily cap is checked next; the quota's Reserve checks and increments it
// in one step, so concurrent lookups of one session cannot pass the cap. A rejection is a *model.RateExceededError. Any other
// error means the window store failed and the lookup was not admitted.
func (g *Governor) Admit(ctx context.Context, caller Caller) error {
	key := strings.TrimSpace(caller.Key)
	if key == "" {
		key = unknownClient
	}

	count, retryAfter, err := g.windows.Hit(ctx, key, g.now(), g.window)
	if err != nil {
		return fmt.Errorf("minute window for %s: %w", key, err)
	}
	if count > g.minuteLimit {
		g.logger.Debug("lookup rejected", "client", key, "window", model.WindowMinute, "count", count)
		return &model.RateExceededError{
			Window:     model.WindowMinute,
			Limit:      g.minuteLimit,
			RetryAfter: retryAfter,
		}
	}

	if caller.Quota == nil {
		return nil
	}

	ok, err := caller.Quota.Reserve(ctx, g.dailyLimit)
	if err != nil {
		g.logger.Warn("daily quota unavailable, admitting", "client", key, "error", err)
		return nil
	}
	if !ok {
		g.logger.Debug("lookup rejected", "client", key, "window", model.WindowDay, "limit", g.dailyLimit)
		return &model.RateExceededError{
			Window: model.WindowDay,
			Limit:  g.dailyLimit,
		}
	}
	return nil
}

// MinuteLimit returns the per-window ceiling.
func (g *Governor) MinuteLimit() int { return g.minuteLimit }

// DailyLimit returns the per-session daily ceiling.
func (g *Governor) DailyLimit() int { return g.dailyLimit }
