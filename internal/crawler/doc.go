// Package crawler finds contact details on a single website.
//
// A Crawler walks the site breadth-first, starting from the root page and
// the usual contact pages (/contact, /about, /impressum...). It never
// leaves the origin of the start URL, fetches each URL at most once, and
// stops at the first page that contains an email address. Page budget,
// per-fetch timeout and an optional soft deadline keep every crawl bounded.
//
// # Usage
//
//	c := crawler.New(crawler.WithMaxPages(20), crawler.WithDeadline(5*time.Second))
//	res, err := c.Crawl(ctx, "artist.com")
//
// Pages are retrieved through the Fetcher interface. The default
// implementation is backed by colly.
package crawler
