package browsertest

import (
	"context"
	"sync"

	"github.com/nao1215/recipescan/internal/browser"
)

// Opener hands out a fresh Page per Open call, all serving the same Site.
// It records how many pages are open at once.
type Opener struct {
	// Site maps URLs to HTML documents served by every page.
	Site map[string]string

	// Configure, when set, adjusts each new page before it is returned.
	Configure func(*Page)

	// Err, when set, is returned by every Open call.
	Err error

	mu      sync.Mutex
	pages   []*Page
	open    int
	maxOpen int
}

var _ browser.Opener = (*Opener)(nil)

// Open implements browser.Opener.
func (o *Opener) Open(_ context.Context) (browser.Page, error) {
	if o.Err != nil {
		return nil, o.Err
	}

	p := &Page{Site: o.Site}
	if o.Configure != nil {
		o.Configure(p)
	}

	o.mu.Lock()
	o.pages = append(o.pages, p)
	o.open++
	o.maxOpen = max(o.maxOpen, o.open)
	o.mu.Unlock()

	return &trackedPage{Page: p, opener: o}, nil
}

// Pages returns every page handed out so far.
func (o *Opener) Pages() []*Page {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Page(nil), o.pages...)
}

// OpenCount returns how many pages are currently open.
func (o *Opener) OpenCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.open
}

// MaxOpen returns the largest number of pages open at the same time.
func (o *Opener) MaxOpen() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.maxOpen
}

// trackedPage decrements the open count on the first Close.
type trackedPage struct {
	*Page
	opener *Opener
	once   sync.Once
}

func (t *trackedPage) Close() error {
	t.once.Do(func() {
		t.opener.mu.Lock()
		t.opener.open--
		t.opener.mu.Unlock()
	})
	return t.Page.Close()
}
