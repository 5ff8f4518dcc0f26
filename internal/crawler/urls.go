package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
)

// normalizeURL normalizes a URL for deduplication: the fragment is
// dropped, scheme and host are lower-cased, and an empty path becomes "/".
// http://example.com and http://example.com/ are the same page.
func normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

// shouldCrawl reports whether the path of u escapes every ignore pattern.
func shouldCrawl(u *url.URL, ignorePatterns []string) bool {
	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range ignorePatterns {
		if matchPattern(pattern, strings.ToLower(path)) {
			return false
		}
	}
	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/cart/*" matches "/cart/checkout"
//   - "*.pdf" matches "/press/kit.pdf"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		ext := strings.TrimPrefix(pattern, "*")
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Patterns without a slash also match the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}
