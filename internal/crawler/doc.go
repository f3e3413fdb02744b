// Package crawler drives the listing phase of a crawl.
//
// # Architecture
//
// Two components share one browser.Page owned by the caller:
//
//   - Discoverer: reads category links from the landing page
//   - Expander: scrolls a category listing until it stops growing and
//     reads the item cards
//
// Both run sequentially on the coordinator's page. Neither opens or closes
// pages; the caller acquires the page and releases it when the listing
// phase ends.
//
// Design decision: The page is a parameter rather than a field because:
//  1. Ownership stays with the one goroutine that coordinates the crawl
//  2. Tests hand in a scripted page without a browser
//
// # Site filter
//
// Links are resolved against the page they came from and kept only when
// they share its registrable domain (golang.org/x/net/publicsuffix), so
// "www.example.com" and "example.com" are the same site.
//
// # Scroll termination
//
// Expand scrolls, waits a settle interval, and stops as soon as the page
// height does not increase. A ceiling on the number of scrolls guards
// against pages whose height never settles.
//
// # Usage
//
//	d := crawler.NewDiscoverer()
//	categories, err := d.Discover(ctx, page, landingURL, 5)
//
//	e := crawler.NewExpander(crawler.WithSettle(3 * time.Second))
//	items, err := e.Expand(ctx, page, categories[0])
package crawler
