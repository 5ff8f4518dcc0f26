package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

const (
	// InstagramMarker is the domain marker of Instagram profile links.
	InstagramMarker = "instagram.com"

	// TrackingHost is the host of the link-in-bio tracking service.
	TrackingHost = "tstack.app"
)

var (
	// trackingPattern matches a tracking page URL with its handle.
	trackingPattern = regexp.MustCompile(`(?i)https://tstack\.app/[a-zA-Z0-9_]+`)

	// blacklistedWebsitePattern matches platforms that are never a person's own site.
	blacklistedWebsitePattern = regexp.MustCompile(`(?i)tiktok|spotify|music\.apple\.com`)
)

// TrackingLink returns the first tracking page URL in text, or "".
// It works on plain text such as a bio, and on raw markup.
func TrackingLink(text string) string {
	return trackingPattern.FindString(text)
}

// IsBlacklistedWebsite reports whether a declared website belongs to a
// platform that is treated as "no website".
func IsBlacklistedWebsite(website string) bool {
	return blacklistedWebsitePattern.MatchString(website)
}

// fold returns the case-folded form of s.
// A Caser is stateful, so each call builds its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// containsFold reports whether s contains substr, ignoring case.
func containsFold(s, substr string) bool {
	return strings.Contains(fold(s), fold(substr))
}
