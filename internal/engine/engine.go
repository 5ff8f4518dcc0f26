package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nao1215/contactscan/internal/cache"
	"github.com/nao1215/contactscan/internal/crawler"
	"github.com/nao1215/contactscan/internal/extract"
	"github.com/nao1215/contactscan/internal/governor"
	"github.com/nao1215/contactscan/internal/model"
)

// instagramService is matched against SocialProfile.Service.
const instagramService = "instagram"

// instagramBaseURL prefixes a bare Instagram username.
const instagramBaseURL = "https://instagram.com/"

// WebsiteCrawler crawls one website. *crawler.Crawler implements it.
type WebsiteCrawler interface {
	Crawl(ctx context.Context, rawURL string) (*crawler.Result, error)
}

// Admitter decides whether a crawl may start. *governor.Governor implements it.
type Admitter interface {
	Admit(ctx context.Context, caller governor.Caller) error
}

// Engine resolves a profile into a ContactRecord, falling back to a
// website crawl when the profile alone is not enough.
type Engine struct {
	crawler  WebsiteCrawler
	governor Admitter
	cache    cache.Cache
	history  History
	flight   singleflight.Group
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache sets the result cache. The default is an in-memory cache with
// the default TTL.
func WithCache(c cache.Cache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithGovernor sets the admission control. The default is a governor with
// an in-memory window store and default limits.
func WithGovernor(a Admitter) Option {
	return func(e *Engine) {
		e.governor = a
	}
}

// WithHistory sets a sink that records every resolved lookup.
func WithHistory(h History) Option {
	return func(e *Engine) {
		e.history = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock replaces time.Now for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Engine around c.
func New(c WebsiteCrawler, opts ...Option) *Engine {
	e := &Engine{
		crawler: c,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.cache == nil {
		e.cache = cache.NewMemory()
	}
	if e.governor == nil {
		e.governor = governor.New(nil, governor.WithLogger(e.logger))
	}
	return e
}

// Resolve builds the contact record for profile.
//
// Fields come from the profile first. When the social link, the email or
// the tracking link is still missing and the profile declares a usable
// website, the website is crawled (through the cache and the governor) and
// its findings fill the gaps. Profile values always win; emails from both
// sources are kept.
//
// The only error Resolve returns is a *model.RateExceededError, together
// with the record built from the profile alone.
func (e *Engine) Resolve(ctx context.Context, profile model.Profile, caller governor.Caller) (model.ContactRecord, error) {
	primary := Primary(profile)
	lookup := Lookup{
		Name:       profile.DisplayName,
		Source:     SourceProfile,
		ResolvedAt: e.now(),
	}

	if primary.IsComplete() || primary.Website == "" {
		lookup.Record = primary
		e.record(ctx, lookup)
		return primary, nil
	}

	fallback, source, stats, err := e.website(ctx, primary.Website, caller)
	if err != nil {
		lookup.Record = primary
		lookup.Source = SourceRateLimited
		e.record(ctx, lookup)
		return primary, err
	}

	merged := primary.Merge(fallback)
	lookup.Record = merged
	lookup.Source = source
	if stats != nil {
		lookup.PagesFetched = stats.PagesFetched
		lookup.StopReason = string(stats.StopReason)
	}
	e.record(ctx, lookup)
	return merged, nil
}

// Primary derives a record from the profile alone: the declared website
// (unless it is blacklisted or malformed), the declared Instagram profile,
// and the emails and tracking link found in the bio.
func Primary(profile model.Profile) model.ContactRecord {
	var rec model.ContactRecord

	if website := strings.TrimSpace(profile.DeclaredWebsite); website != "" && !extract.IsBlacklistedWebsite(website) {
		if target, err := model.NewCrawlTarget(website); err == nil {
			rec.Website = target.String()
		}
	}

	if sp, ok := profile.Social(instagramService); ok {
		if username := strings.Trim(strings.TrimSpace(sp.Username), "@/"); username != "" {
			rec.Instagram = instagramBaseURL + username
		} else {
			rec.Instagram = sp.URL
		}
	}

	rec.Email = extract.JoinEmails(extract.Emails(profile.BioText))
	rec.TrackLink = extract.TrackingLink(profile.BioText)
	return rec
}

// website returns the crawl findings for website from the cache or from a
// fresh crawl. Concurrent misses for the same website share one crawl,
// which keeps running when ctx is canceled. A non-nil error is always a
// rate rejection.
func (e *Engine) website(ctx context.Context, website string, caller governor.Caller) (model.ContactRecord, Source, *crawler.Stats, error) {
	if rec, ok := e.cache.Get(ctx, website); ok {
		return rec, SourceCache, nil, nil
	}

	if err := e.governor.Admit(ctx, caller); err != nil {
		if rateErr, ok := model.IsRateExceeded(err); ok {
			return model.ContactRecord{}, SourceRateLimited, nil, rateErr
		}
		e.logger.Warn("admission check failed, skipping website", "website", website, "error", err)
		return model.ContactRecord{}, SourceProfile, nil, nil
	}

	ch := e.flight.DoChan(website, func() (any, error) {
		// The result is cached for every caller, so the crawl is detached
		// from ctx and only the crawler's own deadline bounds it.
		crawlCtx := context.WithoutCancel(ctx)

		// A lookup that missed the cache just before another finished its
		// crawl lands here after the Put.
		if rec, ok := e.cache.Get(crawlCtx, website); ok {
			return outcome{record: rec, source: SourceCache}, nil
		}
		res, err := e.crawler.Crawl(crawlCtx, website)
		if err != nil {
			return nil, err
		}
		e.cache.Put(crawlCtx, website, res.Record)
		return outcome{record: res.Record, source: SourceCrawl, stats: &res.Stats}, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		e.logger.Debug("lookup canceled during crawl", "website", website, "error", ctx.Err())
		return model.ContactRecord{}, SourceProfile, nil, nil
	}
	if res.Err != nil {
		e.logger.Warn("website crawl failed", "website", website, "error", res.Err)
		return model.ContactRecord{}, SourceProfile, nil, nil
	}

	out := res.Val.(outcome)
	if res.Shared {
		e.logger.Debug("crawl shared with a concurrent lookup", "website", website)
	}
	return out.record, out.source, out.stats, nil
}

// outcome is the value shared by collapsed crawls.
type outcome struct {
	record model.ContactRecord
	source Source
	stats  *crawler.Stats
}

func (e *Engine) record(ctx context.Context, lookup Lookup) {
	if e.history == nil {
		return
	}
	if err := e.history.Record(ctx, lookup); err != nil {
		e.logger.Warn("lookup not recorded", "name", lookup.Name, "error", err)
	}
}
