package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/nao1215/recipescan/internal/browser"
	"github.com/nao1215/recipescan/internal/crawler"
	"github.com/nao1215/recipescan/internal/extract"
	"github.com/nao1215/recipescan/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ListingStep discovers categories and expands each listing.
// It owns the single coordinator page for the whole listing phase.
//
// Design decision: Discovery and expansion run in one step on one page
// because:
// 1. Both drive the same browsing session, which is not safe to share
// 2. The page is opened and closed in one place, on every return path
type ListingStep struct {
	opener       browser.Opener
	discoverer   *crawler.Discoverer
	expander     *crawler.Expander
	categoryURLs []string
	limit        int
	logger       *slog.Logger
}

// ListingStepOption configures a ListingStep.
type ListingStepOption func(*ListingStep)

// WithCategoryURLs crawls these listings instead of discovering categories.
func WithCategoryURLs(urls []string) ListingStepOption {
	return func(s *ListingStep) {
		s.categoryURLs = urls
	}
}

// WithCategoryLimit caps the number of discovered categories.
// Zero means no cap.
func WithCategoryLimit(limit int) ListingStepOption {
	return func(s *ListingStep) {
		s.limit = limit
	}
}

// WithListingLogger sets a custom logger for the listing step.
func WithListingLogger(logger *slog.Logger) ListingStepOption {
	return func(s *ListingStep) {
		s.logger = logger
	}
}

// NewListingStep creates a listing step that opens its page with opener.
func NewListingStep(opener browser.Opener, discoverer *crawler.Discoverer, expander *crawler.Expander, opts ...ListingStepOption) *ListingStep {
	s := &ListingStep{
		opener:     opener,
		discoverer: discoverer,
		expander:   expander,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ListingStep) Name() string {
	return "listing"
}

// Do executes the listing step.
//
// A category whose listing cannot be expanded is recorded with its error
// and skipped. Finding no categories at all is not an error; the report
// simply has nothing for the later steps.
func (s *ListingStep) Do(ctx context.Context, report *model.CrawlReport) error {
	page, err := s.opener.Open(ctx)
	if err != nil {
		return fmt.Errorf("open coordinator page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			s.logger.Debug("closing coordinator page failed", "error", err)
		}
	}()

	categories, err := s.categories(ctx, page, report.LandingURL)
	if err != nil {
		return fmt.Errorf("discover categories: %w", err)
	}
	if len(categories) == 0 {
		s.logger.Warn("no categories found, nothing to crawl", "landing_url", report.LandingURL)
		return nil
	}

	for i, category := range categories {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.logger.Info("expanding category",
			"category", category.Name,
			"index", i+1,
			"total", len(categories),
		)

		items, err := s.expander.Expand(ctx, page, category)
		if err != nil {
			s.logger.Warn("skipping category",
				"category", category.Name,
				"url", category.URL,
				"error", err,
			)
		}
		report.Categories = append(report.Categories, model.CategoryResult{
			Ref:   category,
			Items: items,
			Err:   err,
		})
	}

	s.logger.Info("listing complete",
		"categories", len(report.Categories),
		"skipped", report.SkippedCount(),
		"items", report.ItemCount(),
	)

	return nil
}

func (s *ListingStep) categories(ctx context.Context, page browser.Page, landingURL string) ([]model.CategoryRef, error) {
	if len(s.categoryURLs) == 0 {
		return s.discoverer.Discover(ctx, page, landingURL, s.limit)
	}

	refs := make([]model.CategoryRef, 0, len(s.categoryURLs))
	for _, u := range s.categoryURLs {
		refs = append(refs, model.CategoryRef{Name: categoryName(u), URL: u})
	}
	return refs, nil
}

// categoryName derives a display name from a listing URL, such as
// "Dinner Recipes" for ".../dinner-recipes-5091433".
func categoryName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || strings.Trim(u.Path, "/") == "" {
		return rawURL
	}

	words := strings.FieldsFunc(path.Base(u.Path), func(r rune) bool {
		return r == '-' || r == '_'
	})
	// Drop a trailing numeric page ID.
	if n := len(words); n > 1 && strings.IndexFunc(words[n-1], func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		words = words[:n-1]
	}
	if len(words) == 0 {
		return rawURL
	}
	return cases.Title(language.Und).String(strings.Join(words, " "))
}

// DetailStep extracts details for every item, one category at a time.
type DetailStep struct {
	scheduler *Scheduler
	logger    *slog.Logger
}

// DetailStepOption configures a DetailStep.
type DetailStepOption func(*DetailStep)

// WithDetailLogger sets a custom logger for the detail step.
func WithDetailLogger(logger *slog.Logger) DetailStepOption {
	return func(s *DetailStep) {
		s.logger = logger
	}
}

// NewDetailStep creates a detail step backed by scheduler.
func NewDetailStep(scheduler *Scheduler, opts ...DetailStepOption) *DetailStep {
	s := &DetailStep{
		scheduler: scheduler,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *DetailStep) Name() string {
	return "detail"
}

// Do executes the detail step. Rows are appended to the report category by
// category, in crawl order.
func (s *DetailStep) Do(ctx context.Context, report *model.CrawlReport) error {
	for i := range report.Categories {
		c := &report.Categories[i]
		if c.Skipped() || len(c.Items) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rows := s.scheduler.Run(ctx, c.Items)
		c.Rows = len(rows)
		report.Rows = append(report.Rows, rows...)

		s.logger.Info("category extracted",
			"category", c.Ref.Name,
			"rows", len(rows),
		)
	}
	return nil
}

// DedupeStep removes rows whose title repeats an earlier row's title.
type DedupeStep struct {
	logger *slog.Logger
}

// NewDedupeStep creates a dedupe step.
func NewDedupeStep(logger *slog.Logger) *DedupeStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &DedupeStep{logger: logger}
}

// Name returns the step name.
func (s *DedupeStep) Name() string {
	return "dedupe"
}

// Do executes the dedupe step.
func (s *DedupeStep) Do(_ context.Context, report *model.CrawlReport) error {
	before := len(report.Rows)
	report.Rows = model.Dedupe(report.Rows)
	report.DuplicatesRemoved = before - len(report.Rows)

	s.logger.Info("deduplicated rows",
		"rows", len(report.Rows),
		"removed", report.DuplicatesRemoved,
	)
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// CategoryURLs, when set, replace category discovery.
	CategoryURLs []string

	// CategoryLimit caps the number of discovered categories.
	CategoryLimit int

	// Concurrency is the number of detail pages read at once.
	Concurrency int

	// DetailDelay spaces the start of detail extractions.
	DetailDelay time.Duration

	// ListingWait bounds waits on landing and listing pages.
	ListingWait time.Duration

	// DetailWait bounds each wait on a detail page.
	DetailWait time.Duration

	// ScrollSettle is the pause after each listing scroll.
	ScrollSettle time.Duration

	// MaxScrolls caps scrolls per listing. Zero removes the cap.
	MaxScrolls int

	// NavSelector and CategoryLinkSelector locate categories.
	NavSelector          string
	CategoryLinkSelector string

	// Listing locates item cards.
	Listing crawler.ListingSelectors

	// Detail locates detail fields.
	Detail extract.Selectors
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineCategoryURLs sets explicit category listing URLs.
func WithPipelineCategoryURLs(urls []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.CategoryURLs = urls
	}
}

// WithPipelineCategoryLimit sets the discovered category cap.
func WithPipelineCategoryLimit(limit int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.CategoryLimit = limit
	}
}

// WithPipelineConcurrency sets the detail parallelism.
func WithPipelineConcurrency(n int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Concurrency = n
	}
}

// WithPipelineDetailDelay sets the pacing between detail extractions.
func WithPipelineDetailDelay(d time.Duration) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.DetailDelay = d
	}
}

// WithPipelineWaits sets the listing and detail wait bounds.
func WithPipelineWaits(listing, detail time.Duration) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.ListingWait = listing
		c.DetailWait = detail
	}
}

// WithPipelineScroll sets the settle pause and scroll ceiling.
func WithPipelineScroll(settle time.Duration, maxScrolls int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.ScrollSettle = settle
		c.MaxScrolls = maxScrolls
	}
}

// WithPipelineNavSelectors sets the category navigation selectors.
func WithPipelineNavSelectors(nav, link string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.NavSelector = nav
		c.CategoryLinkSelector = link
	}
}

// WithPipelineListingSelectors sets the item card selectors.
func WithPipelineListingSelectors(s crawler.ListingSelectors) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Listing = s
	}
}

// WithPipelineDetailSelectors sets the detail page selectors.
func WithPipelineDetailSelectors(s extract.Selectors) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Detail = s
	}
}

// DefaultPipeline creates the standard crawl pipeline: listing, detail,
// then dedupe as a final step, so an interrupted or failed crawl still ends
// with unique titles. Every page, coordinator and detail alike, comes from opener.
//
// The first variadic parameter accepts pipeline options (WithLogger, etc).
// The second accepts pipeline config options (WithPipelineConcurrency, etc).
func DefaultPipeline(opener browser.Opener, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{
		Concurrency:  DefaultConcurrency,
		ListingWait:  crawler.DefaultListingWait,
		DetailWait:   extract.DefaultDetailWait,
		ScrollSettle: crawler.DefaultSettle,
		MaxScrolls:   crawler.DefaultMaxScrolls,
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	discoverer := crawler.NewDiscoverer(
		crawler.WithNavSelector(cfg.NavSelector),
		crawler.WithCategoryLinkSelector(cfg.CategoryLinkSelector),
		crawler.WithNavWait(cfg.ListingWait),
		crawler.WithDiscoverLogger(p.logger),
	)
	expander := crawler.NewExpander(
		crawler.WithListingSelectors(cfg.Listing),
		crawler.WithListingWait(cfg.ListingWait),
		crawler.WithSettle(cfg.ScrollSettle),
		crawler.WithMaxScrolls(cfg.MaxScrolls),
		crawler.WithExpandLogger(p.logger),
	)
	extractor := extract.NewExtractor(opener,
		extract.WithSelectors(cfg.Detail),
		extract.WithWait(cfg.DetailWait),
		extract.WithLogger(p.logger),
	)
	scheduler := NewScheduler(extractor,
		WithConcurrency(cfg.Concurrency),
		WithPacing(cfg.DetailDelay),
		WithSchedulerLogger(p.logger),
	)

	p.AddSteps(
		NewListingStep(opener, discoverer, expander,
			WithCategoryURLs(cfg.CategoryURLs),
			WithCategoryLimit(cfg.CategoryLimit),
			WithListingLogger(p.logger),
		),
		NewDetailStep(scheduler, WithDetailLogger(p.logger)),
	)
	// Rows written after an interrupt must hold unique titles too.
	p.AddFinalStep(NewDedupeStep(p.logger))

	return p
}
