// Package browsertest provides an in-memory browser.Page for tests.
//
// A Page serves canned HTML documents keyed by URL and answers selector
// queries with goquery, so crawler and extractor code can be tested without
// starting Chrome. Failures, scroll growth and hidden elements are scripted
// through exported fields.
package browsertest

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/recipescan/internal/browser"
)

// Operation names used as keys in Page.Errs. Selector based operations are
// keyed as "<op>:<selector>".
const (
	OpOpen   = "open"
	OpLoad   = "load"
	OpWait   = "wait"
	OpFind   = "find"
	OpText   = "text"
	OpAttr   = "attr"
	OpScroll = "scroll"
	OpReveal = "scroll-into-view"
	OpClick  = "click"
	OpHeight = "height"
	OpHTML   = "html"
)

// Page is a scripted browser.Page. Set fields before handing it to the code
// under test. Page is safe for concurrent use so tests can inspect counters
// while work is in flight.
type Page struct {
	// Site maps URLs to HTML documents.
	Site map[string]string

	// Grow maps URLs to documents served after each scroll. After the n-th
	// scroll the page shows Grow[url][n-1], or the last entry once the list
	// is exhausted.
	Grow map[string][]string

	// Heights is the sequence returned by successive CurrentHeight calls.
	// The last value repeats once the list is exhausted.
	Heights []int

	// Hidden lists selectors that WaitVisible treats as hidden until the
	// first successful Click.
	Hidden []string

	// Errs injects failures. Keys are operation names, optionally suffixed
	// with ":" and a selector.
	Errs map[string]error

	// LoadDelay is slept inside Load, honouring ctx.
	LoadDelay time.Duration

	// PanicOnLoad makes Load panic with this value when non-nil.
	PanicOnLoad any

	mu          sync.Mutex
	url         string
	doc         *goquery.Document
	nodes       []*goquery.Selection
	scrolls     int
	heightReads int
	clicks      int
	closed      bool
	loads       []string
}

var _ browser.Page = (*Page)(nil)

func (p *Page) failure(op, selector string) error {
	if p.Errs == nil {
		return nil
	}
	if selector != "" {
		if err, ok := p.Errs[op+":"+selector]; ok {
			return err
		}
	}
	return p.Errs[op]
}

// Load implements browser.Page.
func (p *Page) Load(ctx context.Context, url string) error {
	if p.PanicOnLoad != nil {
		panic(p.PanicOnLoad)
	}
	if p.LoadDelay > 0 {
		select {
		case <-time.After(p.LoadDelay):
		case <-ctx.Done():
			return &browser.FetchError{Op: "load", URL: url, Err: ctx.Err()}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.loads = append(p.loads, url)
	if err := p.failure(OpLoad, ""); err != nil {
		return err
	}
	html, ok := p.Site[url]
	if !ok {
		return &browser.FetchError{Op: "load", URL: url, Err: fmt.Errorf("no document for %s", url)}
	}
	p.url = url
	p.scrolls = 0
	return p.setDocument(html)
}

func (p *Page) setDocument(html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("%w: %v", browser.ErrParse, err)
	}
	p.doc = doc
	p.nodes = nil
	return nil
}

func (p *Page) element(sel *goquery.Selection) browser.Element {
	p.nodes = append(p.nodes, sel)
	return browser.Element{Key: strconv.Itoa(len(p.nodes) - 1)}
}

func (p *Page) node(el browser.Element) (*goquery.Selection, error) {
	i, err := strconv.Atoi(el.Key)
	if err != nil || i < 0 || i >= len(p.nodes) {
		return nil, fmt.Errorf("%w: stale element %q", browser.ErrNotFound, el.Key)
	}
	return p.nodes[i], nil
}

func (p *Page) query(op, selector string) (*goquery.Selection, error) {
	if err := p.failure(op, selector); err != nil {
		return nil, err
	}
	if p.doc == nil {
		return nil, &browser.FetchError{Op: op, Err: fmt.Errorf("no document loaded")}
	}
	return p.doc.Find(selector), nil
}

// WaitFor implements browser.Page. Absent elements time out immediately.
func (p *Page) WaitFor(_ context.Context, selector string, timeout time.Duration) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	found, err := p.query(OpWait, selector)
	if err != nil {
		return browser.Element{}, err
	}
	if found.Length() == 0 {
		return browser.Element{}, fmt.Errorf("%w: %q after %s", browser.ErrTimeout, selector, timeout)
	}
	return p.element(found.First()), nil
}

// WaitVisible implements browser.Page.
func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) (browser.Element, error) {
	p.mu.Lock()
	hidden := p.clicks == 0 && slices.Contains(p.Hidden, selector)
	p.mu.Unlock()

	if hidden {
		return browser.Element{}, fmt.Errorf("%w: %q not visible after %s", browser.ErrTimeout, selector, timeout)
	}
	return p.WaitFor(ctx, selector, timeout)
}

// FindAll implements browser.Page.
func (p *Page) FindAll(_ context.Context, selector string) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	found, err := p.query(OpFind, selector)
	if err != nil {
		return nil, err
	}
	elements := make([]browser.Element, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, p.element(s))
	})
	return elements, nil
}

// Text implements browser.Page.
func (p *Page) Text(_ context.Context, el browser.Element) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.failure(OpText, ""); err != nil {
		return "", err
	}
	s, err := p.node(el)
	if err != nil {
		return "", err
	}
	return s.Text(), nil
}

// Attribute implements browser.Page.
func (p *Page) Attribute(_ context.Context, el browser.Element, name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.failure(OpAttr, name); err != nil {
		return "", false, err
	}
	s, err := p.node(el)
	if err != nil {
		return "", false, err
	}
	v, ok := s.Attr(name)
	return v, ok, nil
}

// ScrollIntoView implements browser.Page.
func (p *Page) ScrollIntoView(_ context.Context, el browser.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.failure(OpReveal, ""); err != nil {
		return err
	}
	_, err := p.node(el)
	return err
}

// Click implements browser.Page.
func (p *Page) Click(_ context.Context, el browser.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.failure(OpClick, ""); err != nil {
		return err
	}
	if _, err := p.node(el); err != nil {
		return err
	}
	p.clicks++
	return nil
}

// ScrollToBottom implements browser.Page.
func (p *Page) ScrollToBottom(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.failure(OpScroll, ""); err != nil {
		return err
	}
	p.scrolls++
	if docs := p.Grow[p.url]; len(docs) > 0 {
		i := min(p.scrolls, len(docs)) - 1
		return p.setDocument(docs[i])
	}
	return nil
}

// CurrentHeight implements browser.Page.
func (p *Page) CurrentHeight(_ context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.failure(OpHeight, ""); err != nil {
		return 0, err
	}
	if len(p.Heights) == 0 {
		p.heightReads++
		return 0, nil
	}
	i := min(p.heightReads, len(p.Heights)-1)
	p.heightReads++
	return p.Heights[i], nil
}

// HTML implements browser.Page.
func (p *Page) HTML(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.failure(OpHTML, ""); err != nil {
		return "", err
	}
	if p.doc == nil {
		return "", &browser.FetchError{Op: "read html", Err: fmt.Errorf("no document loaded")}
	}
	return p.doc.Html()
}

// Close implements browser.Page.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	return nil
}

// Scrolls returns how many times ScrollToBottom succeeded since the last Load.
func (p *Page) Scrolls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrolls
}

// HeightReads returns how many times CurrentHeight was called.
func (p *Page) HeightReads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heightReads
}

// Clicks returns how many times Click succeeded.
func (p *Page) Clicks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Loads returns every URL passed to Load, in order.
func (p *Page) Loads() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.loads...)
}
