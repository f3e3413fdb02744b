package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/recipescan/internal/model"
)

// MarkdownWriter outputs a crawl summary in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter

	// sampleRows is the number of recipe rows listed in the report.
	sampleRows int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithSampleRows sets how many recipe rows are listed. Zero lists none.
func WithSampleRows(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		if n >= 0 {
			w.sampleRows = n
		}
	}
}

// DefaultSampleRows is the number of recipe rows listed by default.
const DefaultSampleRows = 20

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		sampleRows: DefaultSampleRows,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the crawl summary in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeCategories(md, report)
	w.writeCoverage(md, report)
	w.writeRows(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Recipe Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + report.RunID.String() + "`"},
			{"Landing Page", report.LandingURL},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().Round(time.Second).String()},
			{"Categories", strconv.Itoa(len(report.Categories))},
			{"Items Found", strconv.Itoa(report.ItemCount())},
			{"Rows Written", strconv.Itoa(len(report.Rows))},
			{"Duplicates Removed", strconv.Itoa(report.DuplicatesRemoved)},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")

	w.writeAlert(md, report)
}

// writeAlert writes an alert for a failed or partial crawl.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CrawlReport) {
	switch {
	case report.Error != nil:
		md.Cautionf("The crawl stopped early: %s", report.Error.Error())
	case report.SkippedCount() > 0:
		md.Warningf(
			"%d of %d categories could not be expanded and were skipped.",
			report.SkippedCount(), len(report.Categories),
		)
	case len(report.Rows) == 0:
		md.Note("No recipes were found.")
	default:
		md.Tip("Every category was crawled.")
	}
	md.PlainText("")
}

// writeCategories writes one table row per category and a chart of rows
// per category.
func (w *MarkdownWriter) writeCategories(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Categories")
	md.PlainText("")

	if len(report.Categories) == 0 {
		md.PlainText("No categories were discovered.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Categories))
	for i, c := range report.Categories {
		status := "ok"
		if c.Skipped() {
			status = "skipped: " + truncateString(c.Err.Error(), 60)
		}
		rows[i] = []string{
			c.Ref.Name,
			c.Ref.URL,
			strconv.Itoa(len(c.Items)),
			strconv.Itoa(c.Rows),
			status,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Category", "URL", "Items", "Rows", "Status"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(report.Rows) > 0 {
		w.writePieChart(md, report)
	}
}

// writePieChart writes a mermaid pie chart of final rows per category.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.CrawlReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Recipes per Category"),
		piechart.WithShowData(true),
	)

	counts := make(map[string]uint64)
	var order []string
	for _, row := range report.Rows {
		if _, ok := counts[row.Category]; !ok {
			order = append(order, row.Category)
		}
		counts[row.Category]++
	}
	for _, name := range order {
		chart.LabelAndIntValue(name, counts[name])
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeCoverage writes how many rows have each detail field.
func (w *MarkdownWriter) writeCoverage(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Field Coverage")
	md.PlainText("")

	cov := report.FieldCoverage()
	total := len(report.Rows)
	md.Table(markdown.TableSet{
		Header: []string{"Field", "Found", "Missing"},
		Rows: [][]string{
			coverageRow("Ingredients", cov.Ingredients, total),
			coverageRow("Cooking Time", cov.CookingTime, total),
			coverageRow("Nutrition Facts", cov.NutritionFacts, total),
			coverageRow("Publish Date", cov.PublishDate, total),
		},
	})
	md.PlainText("")
}

func coverageRow(name string, found, total int) []string {
	return []string{name, strconv.Itoa(found), strconv.Itoa(total - found)}
}

// writeRows lists the first rows of the crawl.
func (w *MarkdownWriter) writeRows(md *markdown.Markdown, report *model.CrawlReport) {
	if w.sampleRows == 0 || len(report.Rows) == 0 {
		return
	}

	md.H2("Recipes")
	md.PlainText("")

	n := min(w.sampleRows, len(report.Rows))
	rows := make([][]string, n)
	for i, row := range report.Rows[:n] {
		rows[i] = []string{
			"[" + row.Title + "](" + row.URL + ")",
			row.Category,
			row.CookingTime.OrElse(model.NotAvailable),
			row.PublishDate.OrElse(model.NotAvailable),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Title", "Category", "Cooking Time", "Publish Date"},
		Rows:   rows,
	})
	md.PlainText("")

	if n < len(report.Rows) {
		md.PlainTextf("%d more recipes are in the CSV output.", len(report.Rows)-n)
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [recipescan](https://github.com/nao1215/recipescan)*")
}

// statusText returns a one-line status for the crawl.
func statusText(report *model.CrawlReport) string {
	switch {
	case report.TimedOut:
		return "Timed Out (partial results)"
	case report.Error != nil:
		return "Error - " + report.Error.Error()
	case report.SkippedCount() > 0:
		return "Complete with skipped categories"
	default:
		return "Complete"
	}
}

// truncateString truncates a string to maxLen runes with ellipsis.
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
