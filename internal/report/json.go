package report

import (
	"encoding/json"
	"io"
)

// JSONWriter outputs entries as a JSON array.
// This format is designed for tool integration and programmatic processing.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the entries as a JSON array. Nil entries become [].
func (w *JSONWriter) Write(entries []Entry) (int, error) {
	if entries == nil {
		entries = []Entry{}
	}
	return w.writeJSON(entries)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// JSONReport wraps entries with the generating version and a summary.
type JSONReport struct {
	// Version is the contactscan version that generated this report.
	Version string `json:"version"`

	// Summary counts the fields found across all entries.
	Summary Summary `json:"summary"`

	// Entries are the lookup results.
	Entries []Entry `json:"entries"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(entries []Entry, version string) *JSONReport {
	if entries == nil {
		entries = []Entry{}
	}
	return &JSONReport{
		Version: version,
		Summary: Summarize(entries),
		Entries: entries,
	}
}

// FullJSONWriter outputs entries inside a JSONReport.
type FullJSONWriter struct {
	*JSONWriter

	version string
}

// NewFullJSONWriter creates a writer for complete reports with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the entries wrapped with metadata.
func (w *FullJSONWriter) Write(entries []Entry) (int, error) {
	return w.writeJSON(NewJSONReport(entries, w.version))
}
