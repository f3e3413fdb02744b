package pipeline

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/recipescan/internal/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultConcurrency is the number of detail pages read at once. Higher
// values trip the site's anti-scraping defenses.
const DefaultConcurrency = 3

// DetailExtractor reads the detail fields of one item page.
// Implementations must not fail; unreadable fields are missing.
type DetailExtractor interface {
	Extract(ctx context.Context, itemURL string) model.DetailFields
}

// Scheduler runs a DetailExtractor over many items with bounded parallelism.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Each item gets its own goroutine, but only 'concurrency' goroutines
// run simultaneously.
type Scheduler struct {
	extractor   DetailExtractor
	concurrency int
	stableOrder bool
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithConcurrency sets the maximum number of items extracted at once.
// Default is 3 if not specified.
func WithConcurrency(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithStableOrder controls whether Run returns rows in submission order
// (true, the default) or in completion order (false).
func WithStableOrder(stable bool) SchedulerOption {
	return func(s *Scheduler) {
		s.stableOrder = stable
	}
}

// WithPacing spaces the start of detail extractions at least d apart,
// across all workers. Zero or less means no pacing.
func WithPacing(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.limiter = rate.NewLimiter(rate.Every(d), 1)
		} else {
			s.limiter = nil
		}
	}
}

// WithSchedulerLogger sets a custom logger for the scheduler.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler creates a Scheduler around extractor.
func NewScheduler(extractor DetailExtractor, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		extractor:   extractor,
		concurrency: DefaultConcurrency,
		stableOrder: true,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Concurrency returns the configured parallelism.
func (s *Scheduler) Concurrency() int {
	return s.concurrency
}

// scheduled is a row tagged with the position of its item in the input.
type scheduled struct {
	index int
	row   model.RecipeRow
}

// Run extracts every item and returns one row per item. It waits for all
// items before returning and never fails: an item whose extraction panics,
// or whose turn is cancelled, becomes a row with all detail fields missing.
//
// Each row is joined to the ItemRef it was scheduled for, never looked up
// again by title or URL.
func (s *Scheduler) Run(ctx context.Context, items []model.ItemRef) []model.RecipeRow {
	s.logger.Info("starting detail extraction",
		"items", len(items),
		"concurrency", s.concurrency,
	)

	startTime := time.Now()

	// Appended in completion order; access is synchronized via mutex.
	results := make([]scheduled, 0, len(items))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, item := range items {
		g.Go(func() error {
			row := s.extractOne(ctx, item)

			mu.Lock()
			results = append(results, scheduled{index: i, row: row})
			mu.Unlock()

			// Never fail the group; one item must not stop the others.
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // tasks always return nil

	if s.stableOrder {
		slices.SortFunc(results, func(a, b scheduled) int {
			return cmp.Compare(a.index, b.index)
		})
	}

	rows := make([]model.RecipeRow, len(results))
	for i, r := range results {
		rows[i] = r.row
	}

	s.logger.Info("detail extraction complete",
		"items", len(items),
		"elapsed", time.Since(startTime),
	)

	return rows
}

// extractOne runs the extractor for one item, turning a panic into a row
// with missing details.
func (s *Scheduler) extractOne(ctx context.Context, item model.ItemRef) (row model.RecipeRow) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("detail extraction panicked",
				"url", item.URL,
				"panic", fmt.Sprint(r),
			)
			row = model.NewRecipeRow(item, model.MissingDetails())
		}
	}()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			s.logger.Debug("detail extraction not started", "url", item.URL, "error", err)
			return model.NewRecipeRow(item, model.MissingDetails())
		}
	}

	s.logger.Debug("extracting details", "url", item.URL, "title", item.Title)

	return model.NewRecipeRow(item, s.extractor.Extract(ctx, item.URL))
}
