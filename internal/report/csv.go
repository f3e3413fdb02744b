package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/recipescan/internal/model"
)

// CSVHeader is the column order of every CSV file recipescan writes.
var CSVHeader = []string{
	"URL",
	"Title",
	"Ingredients",
	"Cooking Time",
	"Nutrition Facts",
	"Publish Date",
	"Timestamp",
	"Category",
}

// IngredientSeparator joins ingredient lines inside one CSV cell.
const IngredientSeparator = "; "

// CSVWriter writes recipe rows as CSV.
//
// Design decision: We use encoding/csv because quoting of commas, quotes
// and newlines inside recipe text is exactly what it implements, and the
// output is consumed by spreadsheets that expect RFC 4180.
type CSVWriter struct {
	baseWriter

	// header controls whether CSVHeader is written before the rows.
	header bool
}

// CSVWriterOption configures a CSVWriter.
type CSVWriterOption func(*CSVWriter)

// WithHeader controls whether the header row is written. Default is true.
func WithHeader(header bool) CSVWriterOption {
	return func(w *CSVWriter) {
		w.header = header
	}
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer, opts ...CSVWriterOption) *CSVWriter {
	w := &CSVWriter{
		baseWriter: newBaseWriter(output),
		header:     true,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report's final rows.
func (w *CSVWriter) Write(report *model.CrawlReport) (int, error) {
	return w.WriteRows(report.Rows)
}

// WriteRows outputs rows in order and returns the number of bytes written.
func (w *CSVWriter) WriteRows(rows []model.RecipeRow) (int, error) {
	cw := &countingWriter{w: w.output}
	out := csv.NewWriter(cw)

	if w.header {
		if err := out.Write(CSVHeader); err != nil {
			return cw.n, err
		}
	}

	for _, row := range rows {
		if err := out.Write(Record(row)); err != nil {
			return cw.n, err
		}
	}

	out.Flush()
	return cw.n, out.Error()
}

// AppendCSV appends rows to the CSV file at path, creating it and its
// directory when needed. The header is written only when the file is empty,
// so repeated crawls accumulate in one file. It returns the number of rows
// appended.
func AppendCSV(path string, rows []model.RecipeRow) (n int, err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return 0, fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // output path is chosen by the user
	if err != nil {
		return 0, fmt.Errorf("open output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			n, err = 0, fmt.Errorf("close output file: %w", cerr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat output file: %w", err)
	}

	w := NewCSVWriter(f, WithHeader(info.Size() == 0))
	if _, err := w.WriteRows(rows); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return len(rows), nil
}

// Record renders row as CSV cells in CSVHeader order. Missing fields are
// rendered as N/A.
func Record(row model.RecipeRow) []string {
	return []string{
		row.URL,
		row.Title,
		cell(row.Ingredients, func(lines []string) string {
			return strings.Join(lines, IngredientSeparator)
		}),
		cell(row.CookingTime, identity),
		cell(row.NutritionFacts, model.NutritionFacts.String),
		cell(row.PublishDate, identity),
		row.Timestamp.Format(model.TimestampLayout),
		row.Category,
	}
}

func cell[T any](f model.Field[T], format func(T) string) string {
	v, ok := f.Get()
	if !ok {
		return model.NotAvailable
	}
	return format(v)
}

func identity(s string) string { return s }
