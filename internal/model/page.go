package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// MaxPageSize is the maximum size of page content kept in memory.
// Larger bodies are truncated to this size.
const MaxPageSize = 5 * 1024 * 1024 // 5 MB

// Page represents one fetched page of a crawl.
type Page struct {
	// URL is the absolute URL that was requested.
	URL string `json:"url"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// Headers contains the HTTP response headers.
	Headers map[string][]string `json:"headers,omitempty"`

	// ContentType is the MIME type of the response.
	ContentType string `json:"content_type"`

	// Body is the raw response body.
	Body []byte `json:"-"`

	// Hash is the SHA-256 hash of Body.
	Hash string `json:"hash,omitempty"`
}

// ComputeHash calculates and sets the SHA-256 hash of the body.
func (p *Page) ComputeHash() {
	if len(p.Body) == 0 {
		p.Hash = ""
		return
	}

	hash := sha256.Sum256(p.Body)
	p.Hash = hex.EncodeToString(hash[:])
}

// IsHTML returns true if the content type indicates HTML.
// An empty content type is treated as HTML because many small sites omit it.
func (p *Page) IsHTML() bool {
	ct := strings.ToLower(strings.TrimSpace(p.ContentType))
	return ct == "" ||
		strings.HasPrefix(ct, "text/html") ||
		strings.HasPrefix(ct, "application/xhtml+xml")
}

// Text returns the body as a string.
func (p *Page) Text() string {
	return string(p.Body)
}

// TruncateBody ensures the body doesn't exceed MaxPageSize.
func (p *Page) TruncateBody() {
	if len(p.Body) > MaxPageSize {
		p.Body = p.Body[:MaxPageSize]
	}
}
