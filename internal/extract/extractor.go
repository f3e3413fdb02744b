package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/recipescan/internal/browser"
	"github.com/nao1215/recipescan/internal/model"
)

// DefaultDetailWait bounds each wait on a detail page. Nutrition panels only
// render after a click, so this is longer than the listing wait.
const DefaultDetailWait = 20 * time.Second

// Extractor reads the detail fields of one recipe page at a time.
// It is safe for concurrent use; every Extract call opens its own page.
type Extractor struct {
	opener    browser.Opener
	selectors Selectors
	wait      time.Duration
	logger    *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithSelectors overrides detail page selectors. Empty fields keep their
// defaults.
func WithSelectors(s Selectors) Option {
	return func(e *Extractor) {
		e.selectors = e.selectors.merge(s)
	}
}

// WithWait sets the bound on each wait for a detail page element.
func WithWait(wait time.Duration) Option {
	return func(e *Extractor) {
		if wait > 0 {
			e.wait = wait
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor creates an Extractor that opens pages with opener.
func NewExtractor(opener browser.Opener, opts ...Option) *Extractor {
	e := &Extractor{
		opener:    opener,
		selectors: DefaultSelectors(),
		wait:      DefaultDetailWait,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}

	return e
}

// Extract loads itemURL in a fresh page and reads every detail field.
// It never fails: a field that cannot be read is missing, and a page that
// cannot be opened or loaded gives all missing fields. The page is closed
// before Extract returns.
//
// Design decision: Each field is read by its own function returning a
// model.Field, so:
//  1. One field's failure cannot hide another field's value
//  2. No error crosses the Extract boundary
func (e *Extractor) Extract(ctx context.Context, itemURL string) model.DetailFields {
	page, err := e.opener.Open(ctx)
	if err != nil {
		e.logger.Warn("could not open detail page", "url", itemURL, "error", err)
		return model.MissingDetails()
	}
	defer func() {
		if err := page.Close(); err != nil {
			e.logger.Debug("closing detail page failed", "url", itemURL, "error", err)
		}
	}()

	if err := page.Load(ctx, itemURL); err != nil {
		e.logger.Warn("could not load detail page", "url", itemURL, "error", err)
		return model.MissingDetails()
	}

	r := &reader{page: page, selectors: e.selectors, wait: e.wait, logger: e.logger.With("url", itemURL)}

	return model.DetailFields{
		Ingredients:    r.ingredients(ctx),
		PublishDate:    r.publishDate(ctx),
		CookingTime:    r.cookingTime(ctx),
		NutritionFacts: r.nutritionFacts(ctx),
	}
}
