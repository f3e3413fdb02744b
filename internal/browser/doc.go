// Package browser provides rendered page sessions backed by headless Chrome.
//
// A Page is one browser tab. It loads a URL, runs the page's scripts, and
// lets callers wait for elements, scroll, click, and read text, attributes,
// or the rendered HTML. Pages are created by an Opener and each one is owned
// by exactly one goroutine until it is closed.
//
// Design decision: Callers depend on the Page and Opener interfaces rather
// than on chromedp because:
//  1. The crawl logic can be tested with in-memory stubs
//  2. Timeouts and failures map onto a small error set (ErrTimeout,
//     ErrNotFound, ErrParse, *FetchError) instead of CDP errors
//  3. Session lifetime is explicit: Open acquires, Close releases
//
// # Usage
//
//	b, err := browser.New(ctx, browser.WithHeadless(true))
//	if err != nil {
//		return err
//	}
//	defer b.Close()
//
//	page, err := b.Open(ctx)
//	if err != nil {
//		return err
//	}
//	defer page.Close()
package browser
