package model

import (
	"net/url"
	"strings"
)

// CrawlTarget is the validated root of a website crawl.
// It is never mutated after NewCrawlTarget returns.
type CrawlTarget struct {
	// RootURL is the absolute start URL, fragment stripped.
	RootURL *url.URL

	// Origin is scheme://host, the same-site boundary of the crawl.
	Origin string
}

// NewCrawlTarget validates raw and builds a CrawlTarget.
// A missing scheme is promoted to https ("artist.com" -> "https://artist.com").
// Only http and https URLs with a host and no userinfo are accepted;
// everything else returns ErrInvalidTarget.
func NewCrawlTarget(raw string) (CrawlTarget, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return CrawlTarget{}, ErrInvalidTarget
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + strings.TrimPrefix(raw, "//")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return CrawlTarget{}, ErrInvalidTarget
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return CrawlTarget{}, ErrInvalidTarget
	}
	if u.Hostname() == "" || u.User != nil || strings.ContainsAny(u.Host, " \t") {
		return CrawlTarget{}, ErrInvalidTarget
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	return CrawlTarget{
		RootURL: u,
		Origin:  u.Scheme + "://" + u.Host,
	}, nil
}

// String returns the root URL.
func (t CrawlTarget) String() string {
	if t.RootURL == nil {
		return ""
	}
	return t.RootURL.String()
}

// SameOrigin reports whether u shares the target's scheme and host.
func (t CrawlTarget) SameOrigin(u *url.URL) bool {
	if u == nil || t.RootURL == nil {
		return false
	}
	return strings.EqualFold(u.Scheme, t.RootURL.Scheme) &&
		strings.EqualFold(u.Host, t.RootURL.Host)
}

// Resolve resolves ref against the origin (not the root path).
func (t CrawlTarget) Resolve(ref string) (*url.URL, error) {
	base, err := url.Parse(t.Origin + "/")
	if err != nil {
		return nil, err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(r), nil
}
