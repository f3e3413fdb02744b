package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/cdp"
)

// Element is a handle to a DOM node inside the Page that returned it.
// It must not be passed to a different Page.
type Element struct {
	// Key identifies the node within its page.
	Key string

	// node is the CDP node for elements found by a Chrome page.
	node *cdp.Node
}

// Page is one rendering session. All methods block until the browser answers
// or ctx is done. A Page is not safe for concurrent use.
type Page interface {
	// Load navigates to url and waits for the document to load.
	Load(ctx context.Context, url string) error

	// WaitFor waits up to timeout for an element matching selector to be
	// present in the DOM and returns the first match.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) (Element, error)

	// WaitVisible waits up to timeout for an element matching selector to
	// be visible and returns the first match.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) (Element, error)

	// FindAll returns every element currently matching selector, in
	// document order. It does not wait; no match is an empty slice.
	FindAll(ctx context.Context, selector string) ([]Element, error)

	// Text returns the rendered text of el.
	Text(ctx context.Context, el Element) (string, error)

	// Attribute returns the value of attribute name on el and whether the
	// attribute is present.
	Attribute(ctx context.Context, el Element, name string) (string, bool, error)

	// ScrollIntoView scrolls the page so el is in the viewport.
	ScrollIntoView(ctx context.Context, el Element) error

	// Click activates el through script, so it works even when another
	// element covers it.
	Click(ctx context.Context, el Element) error

	// ScrollToBottom scrolls the window to the end of the document.
	ScrollToBottom(ctx context.Context) error

	// CurrentHeight returns the scroll height of the document body.
	CurrentHeight(ctx context.Context) (int, error)

	// HTML returns the rendered document as HTML.
	HTML(ctx context.Context) (string, error)

	// Close releases the session. It is safe to call more than once.
	Close() error
}

// Opener creates Pages. Each returned Page is an independent session.
type Opener interface {
	Open(ctx context.Context) (Page, error)
}
