package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// DefaultOperationTimeout bounds calls that do not take their own timeout,
// such as reading text or scrolling. A hung renderer otherwise blocks the
// caller forever.
const DefaultOperationTimeout = 15 * time.Second

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// Scripts run against nodes and the window.
const (
	textFunction      = `function() { return this.innerText || this.textContent || ""; }`
	attributeFunction = `function(name) { return {present: this.hasAttribute(name), value: this.getAttribute(name) || ""}; }`
	scrollIntoViewFn  = `function() { this.scrollIntoView({block: "center", inline: "nearest"}); }`
	clickFunction     = `function() { this.click(); }`
	scrollBottomJS    = `window.scrollTo(0, document.body.scrollHeight)`
	scrollHeightJS    = `document.body.scrollHeight`
)

// Browser is a headless Chrome process. It hands out one tab per Open call.
//
// Design decision: One Chrome process serves every tab rather than one
// process per session because:
//  1. Starting Chrome costs seconds; opening a tab costs milliseconds
//  2. Tabs do not share DOM or script state, so sessions stay isolated
//  3. Closing the Browser tears down every tab that is still open
type Browser struct {
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc

	headless    bool
	userAgent   string
	execPath    string
	headers     map[string]string
	cookie      string
	opTimeout   time.Duration
	logger      *slog.Logger
	closeOnce   sync.Once
	startupWait time.Duration
}

// Option configures a Browser.
type Option func(*Browser)

// WithHeadless sets whether Chrome runs without a window.
func WithHeadless(headless bool) Option {
	return func(b *Browser) {
		b.headless = headless
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(b *Browser) {
		if ua != "" {
			b.userAgent = ua
		}
	}
}

// WithExecPath sets the Chrome binary to run.
// Empty means chromedp searches the usual install locations.
func WithExecPath(path string) Option {
	return func(b *Browser) {
		b.execPath = path
	}
}

// WithHeaders sets extra HTTP headers sent by every tab.
func WithHeaders(headers map[string]string) Option {
	return func(b *Browser) {
		b.headers = headers
	}
}

// WithCookie sets a Cookie header sent by every tab.
func WithCookie(cookie string) Option {
	return func(b *Browser) {
		b.cookie = cookie
	}
}

// WithOperationTimeout bounds page calls that have no timeout of their own.
func WithOperationTimeout(d time.Duration) Option {
	return func(b *Browser) {
		if d > 0 {
			b.opTimeout = d
		}
	}
}

// WithStartupTimeout bounds how long New waits for Chrome to start.
func WithStartupTimeout(d time.Duration) Option {
	return func(b *Browser) {
		if d > 0 {
			b.startupWait = d
		}
	}
}

// WithLogger sets the logger used for chromedp diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Browser) {
		b.logger = logger
	}
}

// New starts Chrome and returns a Browser ready to open pages.
// The Browser lives until Close is called or ctx is cancelled.
func New(ctx context.Context, opts ...Option) (*Browser, error) {
	b := &Browser{
		headless:    true,
		userAgent:   DefaultUserAgent,
		opTimeout:   DefaultOperationTimeout,
		startupWait: time.Minute,
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = slog.Default()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(b.userAgent),
	)
	if b.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(b.execPath))
	}

	b.allocCtx, b.cancelAlloc = chromedp.NewExecAllocator(ctx, allocOpts...)
	b.browserCtx, b.cancelBrowser = chromedp.NewContext(b.allocCtx,
		chromedp.WithLogf(b.logf(slog.LevelDebug)),
		chromedp.WithErrorf(b.logf(slog.LevelWarn)),
	)

	// Running no actions launches the browser process.
	startCtx, cancel := context.WithTimeout(b.browserCtx, b.startupWait)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		_ = b.Close()
		return nil, &FetchError{Op: "start browser", Err: err}
	}

	return b, nil
}

// logf adapts the logger to chromedp's printf-style hooks.
func (b *Browser) logf(level slog.Level) func(string, ...any) {
	return func(format string, args ...any) {
		b.logger.Log(context.Background(), level, fmt.Sprintf(format, args...), "component", "chromedp")
	}
}

// Open creates a new tab. The tab is closed by Page.Close, or when ctx is
// cancelled, whichever comes first.
func (b *Browser) Open(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	stop := context.AfterFunc(ctx, cancel)

	actions := []chromedp.Action{network.Enable()}
	if headers := b.extraHeaders(); len(headers) > 0 {
		actions = append(actions, network.SetExtraHTTPHeaders(headers))
	}

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		stop()
		cancel()
		return nil, &FetchError{Op: "open tab", Err: err}
	}

	return &chromePage{
		ctx:       tabCtx,
		cancel:    cancel,
		stop:      stop,
		opTimeout: b.opTimeout,
	}, nil
}

// extraHeaders merges configured headers and the cookie.
func (b *Browser) extraHeaders() network.Headers {
	headers := make(network.Headers, len(b.headers)+1)
	for k, v := range b.headers {
		headers[k] = v
	}
	if b.cookie != "" {
		headers["Cookie"] = b.cookie
	}
	return headers
}

// Close shuts Chrome down. It is safe to call more than once.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		if b.cancelBrowser != nil {
			b.cancelBrowser()
		}
		if b.cancelAlloc != nil {
			b.cancelAlloc()
		}
	})
	return nil
}

// chromePage is a Page backed by one Chrome tab.
type chromePage struct {
	ctx       context.Context
	cancel    context.CancelFunc
	stop      func() bool
	opTimeout time.Duration
	url       string
	closeOnce sync.Once
}

// run executes actions on the tab. The call ends when the actions finish,
// when timeout elapses, or when either ctx or the tab is done.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// timedOut reports whether err came from the run timeout rather than from
// the caller giving up.
func timedOut(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
}

// Load implements Page.
func (p *chromePage) Load(ctx context.Context, url string) error {
	if err := p.run(ctx, p.opTimeout*4, chromedp.Navigate(url)); err != nil {
		return &FetchError{Op: "load", URL: url, Err: err}
	}
	p.url = url
	return nil
}

// WaitFor implements Page.
func (p *chromePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	return p.waitNode(ctx, selector, timeout, chromedp.NodeReady)
}

// WaitVisible implements Page.
func (p *chromePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	return p.waitNode(ctx, selector, timeout, chromedp.NodeVisible)
}

func (p *chromePage) waitNode(ctx context.Context, selector string, timeout time.Duration, cond chromedp.QueryOption) (Element, error) {
	var nodes []*cdp.Node
	err := p.run(ctx, timeout, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, cond))
	if err != nil {
		if timedOut(ctx, err) {
			return Element{}, fmt.Errorf("%w: %q after %s", ErrTimeout, selector, timeout)
		}
		return Element{}, &FetchError{Op: "wait for " + selector, URL: p.url, Err: err}
	}
	if len(nodes) == 0 {
		return Element{}, fmt.Errorf("%w: %q", ErrNotFound, selector)
	}
	return newElement(nodes[0]), nil
}

// FindAll implements Page.
func (p *chromePage) FindAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	err := p.run(ctx, p.opTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, p.opError("find "+selector, ctx, err)
	}

	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, newElement(n))
	}
	return elements, nil
}

// Text implements Page.
func (p *chromePage) Text(ctx context.Context, el Element) (string, error) {
	var text string
	if err := p.callOn(ctx, el, "read text", textFunction, &text); err != nil {
		return "", err
	}
	return text, nil
}

// Attribute implements Page.
func (p *chromePage) Attribute(ctx context.Context, el Element, name string) (string, bool, error) {
	var attr struct {
		Present bool   `json:"present"`
		Value   string `json:"value"`
	}
	if err := p.callOn(ctx, el, "read attribute "+name, attributeFunction, &attr, name); err != nil {
		return "", false, err
	}
	return attr.Value, attr.Present, nil
}

// ScrollIntoView implements Page.
func (p *chromePage) ScrollIntoView(ctx context.Context, el Element) error {
	return p.callOn(ctx, el, "scroll into view", scrollIntoViewFn, nil)
}

// Click implements Page.
func (p *chromePage) Click(ctx context.Context, el Element) error {
	return p.callOn(ctx, el, "click", clickFunction, nil)
}

// callOn runs a script function with el bound to this.
func (p *chromePage) callOn(ctx context.Context, el Element, op, function string, res any, args ...any) error {
	if el.node == nil {
		return fmt.Errorf("%w: %s on detached element %q", ErrNotFound, op, el.Key)
	}
	err := p.run(ctx, p.opTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return callFunctionOnNode(ctx, el.node, function, res, args...)
	}))
	if err != nil {
		return p.opError(op, ctx, err)
	}
	return nil
}

// callFunctionOnNode resolves node to a remote object and calls function
// with the object bound to this. The result is unmarshaled into res.
func callFunctionOnNode(ctx context.Context, node *cdp.Node, function string, res any, args ...any) error {
	obj, err := dom.ResolveNode().WithBackendNodeID(node.BackendNodeID).Do(ctx)
	if err != nil {
		return fmt.Errorf("resolve node: %w", err)
	}
	// Release fails once the page has navigated away, which is harmless.
	defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }() //nolint:errcheck // best effort

	bind := func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
		return p.WithObjectID(obj.ObjectID)
	}
	return chromedp.CallFunctionOn(function, res, bind, args...).Do(ctx)
}

// ScrollToBottom implements Page.
func (p *chromePage) ScrollToBottom(ctx context.Context) error {
	if err := p.run(ctx, p.opTimeout, chromedp.Evaluate(scrollBottomJS, nil)); err != nil {
		return p.opError("scroll", ctx, err)
	}
	return nil
}

// CurrentHeight implements Page.
func (p *chromePage) CurrentHeight(ctx context.Context) (int, error) {
	var height int
	if err := p.run(ctx, p.opTimeout, chromedp.Evaluate(scrollHeightJS, &height)); err != nil {
		return 0, p.opError("read height", ctx, err)
	}
	return height, nil
}

// HTML implements Page.
func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, p.opTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", p.opError("read html", ctx, err)
	}
	return html, nil
}

// Close implements Page.
func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		p.stop()
		p.cancel()
	})
	return nil
}

// opError maps a failed call to ErrTimeout or a *FetchError.
func (p *chromePage) opError(op string, ctx context.Context, err error) error {
	if timedOut(ctx, err) {
		return fmt.Errorf("%w: %s after %s", ErrTimeout, op, p.opTimeout)
	}
	return &FetchError{Op: op, URL: p.url, Err: err}
}

func newElement(n *cdp.Node) Element {
	return Element{
		Key:  strconv.FormatInt(int64(n.NodeID), 10),
		node: n,
	}
}
