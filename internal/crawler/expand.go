package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/recipescan/internal/browser"
	"github.com/nao1215/recipescan/internal/model"
)

// Default listing settings.
const (
	// DefaultListingWait is how long Expand waits for the first item card.
	DefaultListingWait = 10 * time.Second

	// DefaultSettle is the pause after each scroll so lazy content can render.
	DefaultSettle = 3 * time.Second

	// DefaultMaxScrolls caps the scroll loop when the page height never
	// settles. Zero disables the cap.
	DefaultMaxScrolls = 50
)

// ListingSelectors locate item cards and their parts on a listing page.
// Title, CookingTime and Tag are matched inside each card.
type ListingSelectors struct {
	Card        string
	Title       string
	CookingTime string
	Tag         string
}

// DefaultListingSelectors returns the selectors for the default site.
func DefaultListingSelectors() ListingSelectors {
	return ListingSelectors{
		Card:        "a.mntl-card-list-items",
		Title:       "span.card__title-text",
		CookingTime: "span.meta-text__text",
		Tag:         "div.card__content",
	}
}

// Expander expands infinite-scroll listing pages into item references.
//
// Design decision: Cards are read from one HTML snapshot taken after the
// page stops growing, rather than through per-element browser calls:
//  1. A long listing holds hundreds of cards; one round trip replaces
//     several per card
//  2. The snapshot cannot change under the parser while it reads
type Expander struct {
	selectors  ListingSelectors
	wait       time.Duration
	settle     time.Duration
	maxScrolls int
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
	logger     *slog.Logger
}

// ExpandOption configures an Expander.
type ExpandOption func(*Expander)

// WithListingSelectors overrides the card selectors. Empty fields keep
// their defaults.
func WithListingSelectors(s ListingSelectors) ExpandOption {
	return func(e *Expander) {
		if s.Card != "" {
			e.selectors.Card = s.Card
		}
		if s.Title != "" {
			e.selectors.Title = s.Title
		}
		if s.CookingTime != "" {
			e.selectors.CookingTime = s.CookingTime
		}
		if s.Tag != "" {
			e.selectors.Tag = s.Tag
		}
	}
}

// WithListingWait sets how long to wait for the first item card.
func WithListingWait(wait time.Duration) ExpandOption {
	return func(e *Expander) {
		if wait > 0 {
			e.wait = wait
		}
	}
}

// WithSettle sets the pause after each scroll.
func WithSettle(d time.Duration) ExpandOption {
	return func(e *Expander) {
		if d >= 0 {
			e.settle = d
		}
	}
}

// WithMaxScrolls caps the number of scrolls per listing. Zero removes the cap.
func WithMaxScrolls(n int) ExpandOption {
	return func(e *Expander) {
		if n >= 0 {
			e.maxScrolls = n
		}
	}
}

// WithSleep replaces the settle sleep. Used by tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ExpandOption {
	return func(e *Expander) {
		e.sleep = sleep
	}
}

// WithClock sets the source of discovery timestamps.
func WithClock(now func() time.Time) ExpandOption {
	return func(e *Expander) {
		e.now = now
	}
}

// WithExpandLogger sets the logger.
func WithExpandLogger(logger *slog.Logger) ExpandOption {
	return func(e *Expander) {
		e.logger = logger
	}
}

// NewExpander creates an Expander with default settings.
func NewExpander(opts ...ExpandOption) *Expander {
	e := &Expander{
		selectors:  DefaultListingSelectors(),
		wait:       DefaultListingWait,
		settle:     DefaultSettle,
		maxScrolls: DefaultMaxScrolls,
		sleep:      sleepContext,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}

	return e
}

// Expand loads the category listing in page, scrolls until the page stops
// growing, and returns the item cards in document order. Cards sharing a
// URL are all returned.
//
// It returns an error wrapping browser.ErrTimeout when no card appears.
func (e *Expander) Expand(ctx context.Context, page browser.Page, category model.CategoryRef) ([]model.ItemRef, error) {
	base, err := url.Parse(category.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid category URL: %w", err)
	}

	if err := page.Load(ctx, category.URL); err != nil {
		return nil, err
	}

	if _, err := page.WaitFor(ctx, e.selectors.Card, e.wait); err != nil {
		return nil, fmt.Errorf("first item card: %w", err)
	}

	scrolls, err := e.scrollToEnd(ctx, page)
	if err != nil {
		return nil, err
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", browser.ErrParse, category.URL, err)
	}

	items := e.parseCards(doc, base, category)

	e.logger.Info("expanded listing",
		"category", category.Name,
		"scrolls", scrolls,
		"items", len(items),
	)

	return items, nil
}

// scrollToEnd scrolls until the page height stops increasing and returns
// the number of scrolls issued.
func (e *Expander) scrollToEnd(ctx context.Context, page browser.Page) (int, error) {
	last, err := page.CurrentHeight(ctx)
	if err != nil {
		return 0, err
	}

	scrolls := 0
	for {
		if e.maxScrolls > 0 && scrolls >= e.maxScrolls {
			e.logger.Warn("listing kept growing, stopped scrolling",
				"scrolls", scrolls,
				"height", last,
			)
			return scrolls, nil
		}

		if err := page.ScrollToBottom(ctx); err != nil {
			return scrolls, err
		}
		scrolls++

		if err := e.sleep(ctx, e.settle); err != nil {
			return scrolls, err
		}

		height, err := page.CurrentHeight(ctx)
		if err != nil {
			return scrolls, err
		}
		if height <= last {
			return scrolls, nil
		}
		last = height
	}
}

// parseCards reads every item card in doc. Cards without a same-site link
// are skipped.
func (e *Expander) parseCards(doc *goquery.Document, base *url.URL, category model.CategoryRef) []model.ItemRef {
	now := e.now()
	var items []model.ItemRef

	doc.Find(e.selectors.Card).Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Attr("href")
		if !ok {
			href, ok = card.Find("a[href]").First().Attr("href")
		}
		if !ok {
			return
		}

		link := resolveURL(base, href)
		if link == "" || !sameSite(base, link) {
			e.logger.Debug("skipping card link", "href", href)
			return
		}

		title := cleanText(card.Find(e.selectors.Title).First().Text())
		if title == "" {
			title = model.TitleNotFound
		}

		hint := model.Missing[string]()
		if t := cleanText(card.Find(e.selectors.CookingTime).First().Text()); t != "" {
			hint = model.Found(t)
		}

		tag, _ := card.Find(e.selectors.Tag).First().Attr("data-tag")
		tag = cleanText(tag)
		if tag == "" {
			tag = category.Name
		}

		items = append(items, model.ItemRef{
			URL:             link,
			Title:           title,
			CookingTimeHint: hint,
			Category:        tag,
			DiscoveredAt:    now,
		})
	})

	return items
}

// cleanText collapses runs of whitespace and trims the result.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
