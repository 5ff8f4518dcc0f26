package crawler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/nao1215/contactscan/internal/model"
)

// errNoResponse is returned when colly finished without calling OnResponse.
var errNoResponse = errors.New("no response received")

// Fetcher retrieves a single page.
// Implementations must be safe for concurrent use, as several crawls may
// share one Fetcher.
type Fetcher interface {
	// Fetch returns the page at pageURL. Any failure, including a non-success
	// status, is returned as a *model.FetchError.
	Fetch(ctx context.Context, pageURL string) (*model.Page, error)
}

// CollyFetcher fetches pages with a fresh colly collector per request.
type CollyFetcher struct {
	userAgent   string
	timeout     time.Duration
	maxBodySize int
	transport   http.RoundTripper
}

// FetcherOption configures a CollyFetcher.
type FetcherOption func(*CollyFetcher)

// WithFetcherUserAgent sets the User-Agent header.
func WithFetcherUserAgent(ua string) FetcherOption {
	return func(f *CollyFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithFetcherTimeout sets the per-request timeout.
func WithFetcherTimeout(d time.Duration) FetcherOption {
	return func(f *CollyFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithFetcherMaxBodySize caps the bytes read from one response.
func WithFetcherMaxBodySize(n int) FetcherOption {
	return func(f *CollyFetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithTransport replaces the HTTP transport, mainly for tests and proxies.
func WithTransport(rt http.RoundTripper) FetcherOption {
	return func(f *CollyFetcher) {
		f.transport = rt
	}
}

// NewCollyFetcher creates a Fetcher backed by colly.
func NewCollyFetcher(opts ...FetcherOption) *CollyFetcher {
	f := &CollyFetcher{
		userAgent:   DefaultUserAgent,
		timeout:     DefaultFetchTimeout,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch implements Fetcher.
func (f *CollyFetcher) Fetch(ctx context.Context, pageURL string) (*model.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.MaxBodySize(f.maxBodySize),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(f.timeout)
	if f.transport != nil {
		c.WithTransport(f.transport)
	}

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
	})

	var (
		page   *model.Page
		status int
	)
	c.OnResponse(func(r *colly.Response) {
		page = &model.Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       r.Body,
		}
		if r.Headers != nil {
			page.Headers = *r.Headers
			page.ContentType = r.Headers.Get("Content-Type")
		}
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, &model.FetchError{URL: pageURL, StatusCode: status, Err: err}
	}
	if page == nil {
		return nil, &model.FetchError{URL: pageURL, Err: errNoResponse}
	}

	page.ComputeHash()
	page.TruncateBody()
	return page, nil
}
