package report

import (
	"fmt"
	"io"
	"strings"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether empty fields are printed as "-".
	showEmpty bool

	// verbose adds the source, page count and timestamp of each lookup.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to print fields that were not found.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the entries in human-readable format.
func (w *SimpleWriter) Write(entries []Entry) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb)
	w.writeSummary(&sb, Summarize(entries))
	w.writeEntries(&sb, entries)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         CONTACT REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, s Summary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  PROFILES:     %d\n", s.Total)
	fmt.Fprintf(sb, "  WEBSITE:      %d\n", s.Website)
	fmt.Fprintf(sb, "  INSTAGRAM:    %d\n", s.Instagram)
	fmt.Fprintf(sb, "  EMAIL:        %d\n", s.Email)
	fmt.Fprintf(sb, "  TRACK LINK:   %d\n", s.TrackLink)
	if s.RateLimited > 0 {
		fmt.Fprintf(sb, "  RATE LIMITED: %d\n", s.RateLimited)
	}
	sb.WriteString("\n")
}

// writeEntries writes one block per entry.
func (w *SimpleWriter) writeEntries(sb *strings.Builder, entries []Entry) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("CONTACTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(entries) == 0 {
		sb.WriteString("  No contacts\n\n")
		return
	}

	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = "(unnamed)"
		}
		indicator := "+"
		switch {
		case e.RateLimited():
			indicator = "!"
		case e.Record.IsEmpty():
			indicator = "-"
		}
		fmt.Fprintf(sb, "[%s] %s\n", indicator, name)

		w.writeField(sb, "Website", e.Record.Website)
		w.writeField(sb, "Instagram", e.Record.Instagram)
		for _, email := range e.Record.Emails() {
			w.writeField(sb, "Email", email)
		}
		if e.Record.Email == "" {
			w.writeField(sb, "Email", "")
		}
		w.writeField(sb, "Track link", e.Record.TrackLink)

		if e.Error != "" {
			fmt.Fprintf(sb, "    Error:      %s\n", e.Error)
		}
		if w.verbose {
			if e.Source != "" {
				fmt.Fprintf(sb, "    Source:     %s\n", e.Source)
			}
			if e.PagesFetched > 0 {
				fmt.Fprintf(sb, "    Pages:      %d\n", e.PagesFetched)
			}
			if !e.ResolvedAt.IsZero() {
				fmt.Fprintf(sb, "    Resolved:   %s\n", e.ResolvedAt.Format("2006-01-02 15:04:05 MST"))
			}
		}
		sb.WriteString("\n")
	}
}

func (w *SimpleWriter) writeField(sb *strings.Builder, label, value string) {
	if value == "" {
		if !w.showEmpty {
			return
		}
		value = "-"
	}
	fmt.Fprintf(sb, "    %-11s %s\n", label+":", value)
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by contactscan\n")
	sb.WriteString("https://github.com/nao1215/contactscan\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
