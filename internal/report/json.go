package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/recipescan/internal/model"
)

// JSONWriter outputs crawl reports in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because the documents are small and the standard encoder
// is what every consumer of the output already uses.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is the recipescan version recorded in the document.
	version string
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

// WithVersion records the generating version in the document.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
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

// Write outputs the crawl report in JSON format.
func (w *JSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.writeJSON(NewJSONReport(report, w.version))
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

// JSONReport is the JSON document for one crawl.
//
// Design decision: We map the report into output-specific structs rather
// than tagging model types, so a missing field is an explicit null here
// while the model keeps its Found/Missing representation.
type JSONReport struct {
	Version           string          `json:"version,omitempty"`
	RunID             string          `json:"run_id"`
	LandingURL        string          `json:"landing_url,omitempty"`
	StartedAt         time.Time       `json:"started_at"`
	FinishedAt        time.Time       `json:"finished_at"`
	Error             string          `json:"error,omitempty"`
	Categories        []JSONCategory  `json:"categories"`
	DuplicatesRemoved int             `json:"duplicates_removed"`
	Rows              []JSONRecipeRow `json:"rows"`
	Coverage          model.Coverage  `json:"coverage"`
}

// JSONCategory summarizes one crawled category.
type JSONCategory struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Items int    `json:"items"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}

// JSONRecipeRow is one output row. Missing fields are null.
type JSONRecipeRow struct {
	URL            string               `json:"url"`
	Title          string               `json:"title"`
	Ingredients    []string             `json:"ingredients"`
	CookingTime    *string              `json:"cooking_time"`
	NutritionFacts model.NutritionFacts `json:"nutrition_facts"`
	PublishDate    *string              `json:"publish_date"`
	Timestamp      time.Time            `json:"timestamp"`
	Category       string               `json:"category"`
}

// NewJSONReport maps report into its JSON document.
func NewJSONReport(report *model.CrawlReport, version string) *JSONReport {
	doc := &JSONReport{
		Version:           version,
		RunID:             report.RunID.String(),
		LandingURL:        report.LandingURL,
		StartedAt:         report.StartedAt,
		FinishedAt:        report.FinishedAt,
		Categories:        make([]JSONCategory, 0, len(report.Categories)),
		DuplicatesRemoved: report.DuplicatesRemoved,
		Rows:              make([]JSONRecipeRow, 0, len(report.Rows)),
		Coverage:          report.FieldCoverage(),
	}
	if report.Error != nil {
		doc.Error = report.Error.Error()
	}

	for _, c := range report.Categories {
		jc := JSONCategory{
			Name:  c.Ref.Name,
			URL:   c.Ref.URL,
			Items: len(c.Items),
			Rows:  c.Rows,
		}
		if c.Err != nil {
			jc.Error = c.Err.Error()
		}
		doc.Categories = append(doc.Categories, jc)
	}

	for _, row := range report.Rows {
		doc.Rows = append(doc.Rows, NewJSONRecipeRow(row))
	}

	return doc
}

// NewJSONRecipeRow maps row into its JSON form.
func NewJSONRecipeRow(row model.RecipeRow) JSONRecipeRow {
	out := JSONRecipeRow{
		URL:         row.URL,
		Title:       row.Title,
		CookingTime: optional(row.CookingTime),
		PublishDate: optional(row.PublishDate),
		Timestamp:   row.Timestamp,
		Category:    row.Category,
	}
	if lines, ok := row.Ingredients.Get(); ok {
		out.Ingredients = lines
	}
	if facts, ok := row.NutritionFacts.Get(); ok {
		out.NutritionFacts = facts
	}
	return out
}

func optional(f model.Field[string]) *string {
	if v, ok := f.Get(); ok {
		return &v
	}
	return nil
}
