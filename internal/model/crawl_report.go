package model

import (
	"time"

	"github.com/google/uuid"
)

// CrawlReport collects everything produced by one crawl run.
// Pipeline steps fill it in order: categories, item cards, rows.
//
// Design decision: Like a scan report, a single struct is passed through
// every step so the steps stay independent of each other and the finished
// report can be written to any output without knowing how it was built.
type CrawlReport struct {
	// RunID identifies the run in the results database.
	RunID uuid.UUID

	// LandingURL is the page categories were discovered from.
	LandingURL string

	// StartedAt is when the run began.
	StartedAt time.Time

	// FinishedAt is set when the last step has run.
	FinishedAt time.Time

	// Categories holds one entry per category, in crawl order.
	Categories []CategoryResult

	// Rows is the dataset. It is append-only until the dedupe step replaces
	// it with its deduplicated form.
	Rows []RecipeRow

	// DuplicatesRemoved is the number of rows dropped by deduplication.
	DuplicatesRemoved int

	// PerformedSteps lists the names of steps that ran.
	PerformedSteps []string

	// TimedOut is true if the run was cancelled.
	TimedOut bool

	// Error is the last step error, if any.
	Error error

	// ErrorMessage is Error as text.
	ErrorMessage string
}

// CategoryResult is the outcome of expanding one category listing.
type CategoryResult struct {
	// Ref is the category that was crawled.
	Ref CategoryRef

	// Items holds the cards found on the listing page, in document order.
	Items []ItemRef

	// Rows is the number of rows produced from Items.
	Rows int

	// Err is set when the listing could not be expanded. The category is
	// then skipped by later steps.
	Err error
}

// Skipped reports whether the category was skipped.
func (c CategoryResult) Skipped() bool {
	return c.Err != nil
}

// NewCrawlReport creates an empty report for a crawl starting at landingURL.
func NewCrawlReport(landingURL string) *CrawlReport {
	return &CrawlReport{
		RunID:          uuid.New(),
		LandingURL:     landingURL,
		StartedAt:      time.Now(),
		Categories:     make([]CategoryResult, 0),
		Rows:           make([]RecipeRow, 0),
		PerformedSteps: make([]string, 0),
	}
}

// ItemCount returns the number of item cards found across all categories.
func (r *CrawlReport) ItemCount() int {
	n := 0
	for _, c := range r.Categories {
		n += len(c.Items)
	}
	return n
}

// SkippedCount returns the number of categories that were skipped.
func (r *CrawlReport) SkippedCount() int {
	n := 0
	for _, c := range r.Categories {
		if c.Skipped() {
			n++
		}
	}
	return n
}

// Duration returns how long the run took. It is zero until FinishedAt is set.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Coverage counts, per detail field, how many rows hold a value.
type Coverage struct {
	Ingredients    int `json:"ingredients"`
	CookingTime    int `json:"cooking_time"`
	NutritionFacts int `json:"nutrition_facts"`
	PublishDate    int `json:"publish_date"`
}

// FieldCoverage returns how many rows in the report have each field.
func (r *CrawlReport) FieldCoverage() Coverage {
	var c Coverage
	for _, row := range r.Rows {
		if row.Ingredients.IsFound() {
			c.Ingredients++
		}
		if row.CookingTime.IsFound() {
			c.CookingTime++
		}
		if row.NutritionFacts.IsFound() {
			c.NutritionFacts++
		}
		if row.PublishDate.IsFound() {
			c.PublishDate++
		}
	}
	return c
}
