package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/contactscan/internal/extract"
	"github.com/nao1215/contactscan/internal/model"
)

const (
	// DefaultMaxPages is the number of pages fetched successfully before
	// a crawl gives up.
	DefaultMaxPages = 40

	// DefaultFetchTimeout bounds a single page fetch.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultUserAgent identifies the crawler to the sites it visits.
	DefaultUserAgent = "Mozilla/5.0 (compatible; ContactScan/1.0)"

	// DefaultMaxBodySize caps one response body.
	DefaultMaxBodySize = model.MaxPageSize
)

// contactPaths are probed right after the root page, with and without a
// trailing slash, because contact details usually live there.
var contactPaths = []string{
	"contact",
	"contact-us",
	"contactus",
	"about",
	"about-us",
	"aboutus",
	"impressum",
}

// DefaultIgnorePatterns keep binary and media links out of the frontier.
var DefaultIgnorePatterns = []string{
	"*.jpg", "*.jpeg", "*.png", "*.gif", "*.svg", "*.webp", "*.bmp", "*.ico", "*.tga",
	"*.pdf", "*.zip", "*.gz", "*.dmg", "*.exe",
	"*.mp3", "*.wav", "*.mp4", "*.mov", "*.webm",
	"*.css", "*.js", "*.json", "*.xml",
	"*.woff", "*.woff2", "*.ttf",
}

// StopReason tells why a crawl ended.
type StopReason string

const (
	// StopEmailFound means a page yielded at least one email.
	StopEmailFound StopReason = "email_found"

	// StopFrontierEmpty means every reachable page was tried.
	StopFrontierEmpty StopReason = "frontier_empty"

	// StopBudgetExhausted means the page budget was spent.
	StopBudgetExhausted StopReason = "budget_exhausted"

	// StopDeadline means the deadline passed or the context was canceled.
	StopDeadline StopReason = "deadline"
)

// Stats describes one finished crawl.
type Stats struct {
	// PagesFetched counts pages retrieved successfully.
	PagesFetched int `json:"pages_fetched"`

	// PagesFailed counts pages that could not be retrieved.
	PagesFailed int `json:"pages_failed"`

	// URLsDiscovered counts distinct URLs that entered the frontier.
	URLsDiscovered int `json:"urls_discovered"`

	// StopReason is why the crawl ended.
	StopReason StopReason `json:"stop_reason"`

	// Elapsed is the wall-clock duration of the crawl.
	Elapsed time.Duration `json:"elapsed"`
}

// Result is the outcome of a crawl. A crawl that finds nothing still
// produces a Result; Record then carries only the website.
type Result struct {
	Record model.ContactRecord `json:"record"`
	Stats  Stats               `json:"stats"`
}

// Crawler walks one website breadth-first looking for contact details.
// Every Crawl call owns its state, so a Crawler may be shared.
type Crawler struct {
	fetcher        Fetcher
	maxPages       int
	fetchTimeout   time.Duration
	deadline       time.Duration
	delay          time.Duration
	userAgent      string
	maxBodySize    int
	ignorePatterns []string
	logger         *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithMaxPages sets the page budget. Non-positive values are ignored.
func WithMaxPages(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithFetchTimeout sets the timeout of the default fetcher.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Crawler) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithDeadline sets a soft deadline for a whole crawl. When it passes the
// partial result is returned. Zero means no deadline.
func WithDeadline(d time.Duration) Option {
	return func(c *Crawler) {
		c.deadline = d
	}
}

// WithDelay sets the minimum interval between two fetches of a crawl.
func WithDelay(d time.Duration) Option {
	return func(c *Crawler) {
		c.delay = d
	}
}

// WithUserAgent sets the User-Agent of the default fetcher.
func WithUserAgent(ua string) Option {
	return func(c *Crawler) {
		c.userAgent = ua
	}
}

// WithMaxBodySize sets the body cap of the default fetcher.
func WithMaxBodySize(n int) Option {
	return func(c *Crawler) {
		c.maxBodySize = n
	}
}

// WithIgnorePatterns replaces the URL path patterns that are never enqueued.
// Patterns use glob syntax (e.g. "*.pdf", "/shop/*").
func WithIgnorePatterns(patterns []string) Option {
	return func(c *Crawler) {
		c.ignorePatterns = patterns
	}
}

// WithFetcher replaces the colly fetcher.
func WithFetcher(f Fetcher) Option {
	return func(c *Crawler) {
		c.fetcher = f
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// New creates a Crawler.
func New(opts ...Option) *Crawler {
	c := &Crawler{
		maxPages:       DefaultMaxPages,
		fetchTimeout:   DefaultFetchTimeout,
		userAgent:      DefaultUserAgent,
		maxBodySize:    DefaultMaxBodySize,
		ignorePatterns: DefaultIgnorePatterns,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.fetcher == nil {
		c.fetcher = NewCollyFetcher(
			WithFetcherUserAgent(c.userAgent),
			WithFetcherTimeout(c.fetchTimeout),
			WithFetcherMaxBodySize(c.maxBodySize),
		)
	}
	return c
}

// Crawl searches the website at rawURL for an email address, collecting a
// profile link and a tracking link on the way. It returns an error only
// when rawURL is not a valid target; running out of pages or time yields
// a normal, possibly empty, Result.
func (c *Crawler) Crawl(ctx context.Context, rawURL string) (*Result, error) {
	target, err := model.NewCrawlTarget(rawURL)
	if err != nil {
		return nil, err
	}

	if c.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.deadline)
		defer cancel()
	}

	started := time.Now()
	seeds := c.seeds(target)
	state := newCrawlState(target, c.maxPages+len(seeds))
	for _, seed := range seeds {
		state.enqueue(seed)
	}

	var limiter *rate.Limiter
	if c.delay > 0 {
		limiter = rate.NewLimiter(rate.Every(c.delay), 1)
	}

	reason := c.run(ctx, state, limiter)

	stats := Stats{
		PagesFetched:   state.pagesFetched,
		PagesFailed:    state.pagesFailed,
		URLsDiscovered: len(state.discovered),
		StopReason:     reason,
		Elapsed:        time.Since(started),
	}
	c.logger.Debug("crawl finished",
		"target", target.String(),
		"reason", reason,
		"fetched", stats.PagesFetched,
		"failed", stats.PagesFailed,
		"elapsed", stats.Elapsed)

	return &Result{Record: state.record, Stats: stats}, nil
}

// run drains the frontier and returns why it stopped.
func (c *Crawler) run(ctx context.Context, state *crawlState, limiter *rate.Limiter) StopReason {
	for {
		if state.pagesFetched >= c.maxPages {
			return StopBudgetExhausted
		}
		if ctx.Err() != nil {
			return StopDeadline
		}

		pageURL, ok := state.next()
		if !ok {
			return StopFrontierEmpty
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return StopDeadline
			}
		}

		page, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return StopDeadline
			}
			state.pagesFailed++
			c.logger.Debug("page skipped", "url", pageURL, "error", err)
			continue
		}
		state.pagesFetched++

		if c.visit(state, page) {
			return StopEmailFound
		}
	}
}

// visit extracts signals from page and enqueues its same-origin links.
// It reports whether an email was found.
func (c *Crawler) visit(state *crawlState, page *model.Page) bool {
	if !page.IsHTML() {
		return c.visitText(state, page.Text())
	}

	doc, err := extract.Parse(page.Body, page.URL)
	if err != nil {
		c.logger.Debug("page not parseable as HTML", "url", page.URL, "error", err)
		return c.visitText(state, page.Text())
	}

	if state.record.Instagram == "" {
		state.record.Instagram = doc.SocialLink(extract.InstagramMarker)
	}
	if state.record.TrackLink == "" {
		state.record.TrackLink = doc.TrackingLink()
	}
	if emails := doc.Emails(); len(emails) > 0 {
		state.record.Email = extract.JoinEmails(emails)
		return true
	}

	for _, link := range doc.Links() {
		u, err := url.Parse(link)
		if err != nil || !state.target.SameOrigin(u) || !shouldCrawl(u, c.ignorePatterns) {
			continue
		}
		state.enqueue(link)
	}
	return false
}

func (c *Crawler) visitText(state *crawlState, text string) bool {
	if state.record.TrackLink == "" {
		state.record.TrackLink = extract.TrackingLink(text)
	}
	if emails := extract.Emails(text); len(emails) > 0 {
		state.record.Email = extract.JoinEmails(emails)
		return true
	}
	return false
}

// seeds returns the root followed by the contact paths on the target's origin.
func (c *Crawler) seeds(target model.CrawlTarget) []string {
	seeds := make([]string, 0, 1+2*len(contactPaths))
	seeds = append(seeds, target.String())
	for _, p := range contactPaths {
		for _, ref := range []string{"/" + p, "/" + p + "/"} {
			u, err := target.Resolve(ref)
			if err != nil {
				continue
			}
			seeds = append(seeds, u.String())
		}
	}
	return seeds
}
