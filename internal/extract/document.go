package extract

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// metaSources are checked, in order, before anchors when looking for a
// profile link. The first whose value contains the marker wins.
var metaSources = []struct {
	selector string
	attr     string
}{
	{selector: `meta[property="og:url"]`, attr: "content"},
	{selector: `meta[name="og:url"]`, attr: "content"},
	{selector: `link[rel="canonical"]`, attr: "href"},
}

// Document is one parsed HTML page.
// It is built once per fetched page and queried for every signal.
type Document struct {
	doc  *goquery.Document
	base *url.URL
	raw  string
}

// Parse parses body as HTML. pageURL is used to resolve relative links;
// it may be empty, in which case links are returned as written.
func Parse(body []byte, pageURL string) (*Document, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	return &Document{
		doc:  goquery.NewDocumentFromNode(root),
		base: base,
		raw:  string(body),
	}, nil
}

// SocialLink parses markup and returns its first profile link for marker.
func SocialLink(markup, marker string) string {
	d, err := Parse([]byte(markup), "")
	if err != nil {
		return ""
	}
	return d.SocialLink(marker)
}

// Emails scans the raw markup, not just visible text, so addresses in
// attributes and scripts are found too.
func (d *Document) Emails() []string {
	return Emails(d.raw)
}

// SocialLink returns the page's link to the service identified by marker
// (a domain such as "instagram.com"). Page metadata is preferred; otherwise
// the first anchor whose href contains the marker is used.
func (d *Document) SocialLink(marker string) string {
	for _, src := range metaSources {
		v, ok := d.doc.Find(src.selector).First().Attr(src.attr)
		if ok && containsFold(v, marker) {
			return d.resolve(v)
		}
	}

	var found string
	d.doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if containsFold(href, marker) {
			found = d.resolve(href)
			return false
		}
		return true
	})
	return found
}

// TrackingLink returns the first anchor pointing at the tracking host,
// falling back to a scan of the raw markup.
func (d *Document) TrackingLink() string {
	var found string
	d.doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if link := TrackingLink(strings.TrimSpace(href)); link != "" {
			found = link
			return false
		}
		return true
	})
	if found != "" {
		return found
	}
	return TrackingLink(d.raw)
}

// Links returns the absolute http(s) targets of all anchors, fragment
// stripped, deduplicated, in document order.
func (d *Document) Links() []string {
	seen := make(map[string]bool)
	links := make([]string, 0)

	d.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, ok := d.resolveURL(href)
		if !ok || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		u.Fragment = ""
		u.RawFragment = ""

		link := u.String()
		if seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})

	return links
}

// resolve returns href resolved against the page URL, or href itself when
// it cannot be parsed.
func (d *Document) resolve(href string) string {
	if u, ok := d.resolveURL(href); ok {
		return u.String()
	}
	return strings.TrimSpace(href)
}

// resolveURL parses href and resolves it against the page URL.
func (d *Document) resolveURL(href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	return d.base.ResolveReference(ref), true
}
