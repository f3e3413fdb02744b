package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/nao1215/recipescan/internal/browser"
	"github.com/nao1215/recipescan/internal/model"
)

// Default category navigation selectors.
const (
	// DefaultNavSelector matches the category navigation container on the
	// landing page.
	DefaultNavSelector = "#taxonomysc_1-0"

	// DefaultCategoryLinkSelector matches category anchors inside the
	// navigation container.
	DefaultCategoryLinkSelector = "#taxonomysc_1-0 a[href]"

	// DefaultNavWait is how long Discover waits for the navigation container.
	DefaultNavWait = 10 * time.Second
)

// Discoverer reads category links from a site's landing page.
type Discoverer struct {
	navSelector  string
	linkSelector string
	wait         time.Duration
	logger       *slog.Logger
}

// DiscoverOption configures a Discoverer.
type DiscoverOption func(*Discoverer)

// WithNavSelector sets the selector of the navigation container.
func WithNavSelector(selector string) DiscoverOption {
	return func(d *Discoverer) {
		if selector != "" {
			d.navSelector = selector
		}
	}
}

// WithCategoryLinkSelector sets the selector of category anchors.
func WithCategoryLinkSelector(selector string) DiscoverOption {
	return func(d *Discoverer) {
		if selector != "" {
			d.linkSelector = selector
		}
	}
}

// WithNavWait sets how long to wait for the navigation container.
func WithNavWait(wait time.Duration) DiscoverOption {
	return func(d *Discoverer) {
		if wait > 0 {
			d.wait = wait
		}
	}
}

// WithDiscoverLogger sets the logger.
func WithDiscoverLogger(logger *slog.Logger) DiscoverOption {
	return func(d *Discoverer) {
		d.logger = logger
	}
}

// NewDiscoverer creates a Discoverer with the default selectors.
func NewDiscoverer(opts ...DiscoverOption) *Discoverer {
	d := &Discoverer{
		navSelector:  DefaultNavSelector,
		linkSelector: DefaultCategoryLinkSelector,
		wait:         DefaultNavWait,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		d.logger = slog.Default()
	}

	return d
}

// Discover loads landingURL in page and returns up to limit categories in
// document order. A limit of zero or less means no limit.
//
// limit bounds the categories returned, not the anchor elements read:
// anchors are read in document order until limit links have been accepted.
// Links without an href, links that leave the landing page's site, and links
// that repeat an earlier link are skipped and do not count toward limit, so
// more than limit anchors may be read. An empty result is not an error; the
// caller decides whether to stop the crawl.
//
// It returns an error wrapping browser.ErrNotFound when the navigation
// container never appears.
func (d *Discoverer) Discover(ctx context.Context, page browser.Page, landingURL string, limit int) ([]model.CategoryRef, error) {
	base, err := url.Parse(landingURL)
	if err != nil {
		return nil, fmt.Errorf("invalid landing URL: %w", err)
	}

	if err := page.Load(ctx, landingURL); err != nil {
		return nil, err
	}

	if _, err := page.WaitFor(ctx, d.navSelector, d.wait); err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			return nil, fmt.Errorf("%w: category navigation %q: %v", browser.ErrNotFound, d.navSelector, err)
		}
		return nil, err
	}

	anchors, err := page.FindAll(ctx, d.linkSelector)
	if err != nil {
		return nil, err
	}

	categories := make([]model.CategoryRef, 0, len(anchors))
	seen := make(map[string]bool, len(anchors))

	for _, a := range anchors {
		if limit > 0 && len(categories) >= limit {
			break
		}

		href, ok, err := page.Attribute(ctx, a, "href")
		if err != nil || !ok {
			continue
		}

		link := resolveURL(base, href)
		if link == "" || !sameSite(base, link) {
			d.logger.Debug("skipping category link", "href", href)
			continue
		}
		if seen[link] {
			continue
		}
		seen[link] = true

		name, err := page.Text(ctx, a)
		if err != nil {
			d.logger.Debug("category name unreadable", "url", link, "error", err)
		}
		name = cleanText(name)
		if name == "" {
			name = link
		}

		categories = append(categories, model.CategoryRef{Name: name, URL: link})
	}

	d.logger.Info("discovered categories",
		"landing_url", landingURL,
		"count", len(categories),
	)

	return categories, nil
}
