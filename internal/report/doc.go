// Package report renders lookup results.
//
// Writers for different output formats:
//   - SimpleWriter: human-readable text for terminal display
//   - JSONWriter and FullJSONWriter: structured JSON for tool integration
//   - MarkdownWriter: a Markdown document with a mermaid chart
//
// All writers implement Writer and can be combined with MultiWriter.
package report
