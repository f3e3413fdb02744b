package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/recipescan/internal/model"
)

// SimpleWriter outputs a human-readable crawl summary.
// This format is designed for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because it works in all terminals and pipes cleanly to files.
type SimpleWriter struct {
	baseWriter

	// verbose lists every category, not only skipped ones.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

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

// Write outputs the crawl summary in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeCategories(&sb, report)
	w.writeCoverage(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// writeHeader writes the run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         RECIPE CRAWL SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Run ID:             %s\n", report.RunID)
	fmt.Fprintf(sb, "Landing Page:       %s\n", report.LandingURL)
	fmt.Fprintf(sb, "Started:            %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:           %s\n", report.Duration().Round(time.Second))
	fmt.Fprintf(sb, "Categories:         %d (%d skipped)\n", len(report.Categories), report.SkippedCount())
	fmt.Fprintf(sb, "Items Found:        %d\n", report.ItemCount())
	fmt.Fprintf(sb, "Rows Written:       %d\n", len(report.Rows))
	fmt.Fprintf(sb, "Duplicates Removed: %d\n", report.DuplicatesRemoved)
	fmt.Fprintf(sb, "Status:             %s\n", statusText(report))
	sb.WriteString("\n")
}

// writeCategories lists skipped categories, or every category when verbose.
func (w *SimpleWriter) writeCategories(sb *strings.Builder, report *model.CrawlReport) {
	if !w.verbose && report.SkippedCount() == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("CATEGORIES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, c := range report.Categories {
		switch {
		case c.Skipped():
			fmt.Fprintf(sb, "  [!] %s: skipped (%v)\n", c.Ref.Name, c.Err)
		case w.verbose:
			fmt.Fprintf(sb, "  [+] %s: %d items, %d rows\n", c.Ref.Name, len(c.Items), c.Rows)
		}
	}
	sb.WriteString("\n")
}

// writeCoverage writes how many rows have each detail field.
func (w *SimpleWriter) writeCoverage(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.Rows) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FIELD COVERAGE\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	cov := report.FieldCoverage()
	total := len(report.Rows)
	fmt.Fprintf(sb, "  Ingredients:     %d/%d\n", cov.Ingredients, total)
	fmt.Fprintf(sb, "  Cooking Time:    %d/%d\n", cov.CookingTime, total)
	fmt.Fprintf(sb, "  Nutrition Facts: %d/%d\n", cov.NutritionFacts, total)
	fmt.Fprintf(sb, "  Publish Date:    %d/%d\n", cov.PublishDate, total)
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
