package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs entries as a Markdown document with a summary
// table, a mermaid pie chart and one row per lookup.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the entries in Markdown format.
func (w *MarkdownWriter) Write(entries []Entry) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := Summarize(entries)

	md.H1("Contact Report")
	md.PlainText("")

	w.writeSummary(md, summary)
	w.writeEntries(md, entries)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeSummary writes the field counts, the chart and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s Summary) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Field", "Found"},
		Rows: [][]string{
			{"Website", strconv.Itoa(s.Website)},
			{"Instagram", strconv.Itoa(s.Instagram)},
			{"Email", strconv.Itoa(s.Email)},
			{"Tracking link", strconv.Itoa(s.TrackLink)},
			{"Nothing found", strconv.Itoa(s.Empty)},
			{"**Profiles**", "**" + strconv.Itoa(s.Total) + "**"},
		},
	})
	md.PlainText("")

	if s.Total > 0 {
		w.writePieChart(md, s)
	}
	w.writeAlert(md, s)
}

// writePieChart writes a mermaid pie chart of profiles with and without email.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Email Coverage"),
		piechart.WithShowData(true),
	)

	if s.Email > 0 {
		chart.LabelAndIntValue("Email found", uint64(s.Email))
	}
	if missing := s.Total - s.Email; missing > 0 {
		chart.LabelAndIntValue("No email", uint64(missing))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s Summary) {
	switch {
	case s.RateLimited > 0:
		md.Warningf(
			"%d lookup(s) were rate limited. Their websites were not crawled; try again later.",
			s.RateLimited,
		)
	case s.Total == 0:
		md.Note("No profiles were resolved.")
	case s.Email == s.Total:
		md.Tip("An email address was found for every profile.")
	default:
		md.Importantf("No email address was found for %d profile(s).", s.Total-s.Email)
	}
	md.PlainText("")
}

// writeEntries writes one table row per entry.
func (w *MarkdownWriter) writeEntries(md *markdown.Markdown, entries []Entry) {
	md.H2("Contacts")
	md.PlainText("")

	if len(entries) == 0 {
		md.PlainText("No contacts.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			orDash(truncateString(e.Name, 40)),
			orDash(truncateString(e.Record.Website, 50)),
			orDash(truncateString(e.Record.Instagram, 50)),
			orDash(e.Record.Email),
			orDash(truncateString(e.Record.TrackLink, 50)),
			orDash(string(e.Source)),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Name", "Website", "Instagram", "Email", "Tracking link", "Source"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, e := range entries {
		if e.Error != "" {
			md.Details(orDash(e.Name), e.Error)
		}
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [contactscan](https://github.com/nao1215/contactscan)*")
}
