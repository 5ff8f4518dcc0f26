package report

import (
	"io"
	"time"

	"github.com/nao1215/contactscan/internal/engine"
	"github.com/nao1215/contactscan/internal/model"
)

// Entry is one row of a report: a resolved profile and how it was resolved.
type Entry struct {
	// Name is the display name of the profile.
	Name string `json:"name"`

	// Record is the resolved contact information.
	Record model.ContactRecord `json:"record"`

	// Source tells where the website findings came from. Empty when unknown.
	Source engine.Source `json:"source,omitempty"`

	// PagesFetched is the number of pages crawled for this entry.
	PagesFetched int `json:"pagesFetched,omitempty"`

	// Error is the rate rejection message, if the lookup was rejected.
	Error string `json:"error,omitempty"`

	// ResolvedAt is when the lookup finished.
	ResolvedAt time.Time `json:"resolvedAt"`
}

// RateLimited reports whether the website step of this entry was rejected.
func (e Entry) RateLimited() bool {
	return e.Error != "" || e.Source == engine.SourceRateLimited
}

// FromBatch converts batch results into entries, keeping their order.
func FromBatch(results []engine.BatchResult, resolvedAt time.Time) []Entry {
	entries := make([]Entry, 0, len(results))
	for _, r := range results {
		entry := Entry{
			Name:       r.Profile.DisplayName,
			Record:     r.Record,
			ResolvedAt: resolvedAt,
		}
		if r.Err != nil {
			entry.Error = r.Err.Error()
			entry.Source = engine.SourceRateLimited
		}
		entries = append(entries, entry)
	}
	return entries
}

// FromLookups converts stored lookups into entries.
func FromLookups(lookups []engine.Lookup) []Entry {
	entries := make([]Entry, 0, len(lookups))
	for _, l := range lookups {
		entries = append(entries, Entry{
			Name:         l.Name,
			Record:       l.Record,
			Source:       l.Source,
			PagesFetched: l.PagesFetched,
			ResolvedAt:   l.ResolvedAt,
		})
	}
	return entries
}

// Summary counts how many entries carry each kind of contact field.
type Summary struct {
	Total       int `json:"total"`
	Website     int `json:"website"`
	Instagram   int `json:"instagram"`
	Email       int `json:"email"`
	TrackLink   int `json:"trackLink"`
	Empty       int `json:"empty"`
	RateLimited int `json:"rateLimited"`
}

// Summarize builds the Summary of entries.
func Summarize(entries []Entry) Summary {
	s := Summary{Total: len(entries)}
	for _, e := range entries {
		if e.Record.Website != "" {
			s.Website++
		}
		if e.Record.Instagram != "" {
			s.Instagram++
		}
		if e.Record.Email != "" {
			s.Email++
		}
		if e.Record.TrackLink != "" {
			s.TrackLink++
		}
		if e.Record.IsEmpty() {
			s.Empty++
		}
		if e.RateLimited() {
			s.RateLimited++
		}
	}
	return s
}

// Writer defines the interface for report output.
// Implementations write lookup results in various formats.
type Writer interface {
	// Write outputs the entries to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(entries []Entry) (int, error)
}

// MultiWriter writes to multiple Writers in turn.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the entries to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(entries []Entry) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(entries)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// orDash returns s, or "-" when s is empty.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
