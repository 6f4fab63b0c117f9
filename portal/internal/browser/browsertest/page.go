// Package browsertest provides a scripted browser.Page for tests.
//
// A Page holds a static document; navigation routes and interaction
// handlers (click, press, fill, select) swap documents or open popups.
// Every interaction is appended to an action log so tests can assert what
// the code under test did, and in which order.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/baextract/portal/internal/browser"
	"github.com/hazyhaar/baextract/portal/internal/dom"
)

// Action names an interaction kind in the log and in handler registration.
type Action string

const (
	Navigate Action = "navigate"
	Click    Action = "click"
	Force    Action = "force"
	Fill     Action = "fill"
	Press    Action = "press"
	Select   Action = "select"
	Scroll   Action = "scroll"
)

// Handler runs after an interaction. Returning a non-nil Page other than p
// simulates a new tab (seen by ClickFollow).
type Handler func(p *Page) (browser.Page, error)

// Page is a scripted, in-memory browser.Page.
type Page struct {
	mu          sync.Mutex
	root        *html.Node
	url         string
	routes      map[string]func() string
	handlers    map[string]Handler
	intercepted map[string]bool
	log         []string
	closed      bool
}

var _ browser.Page = (*Page)(nil)

// New returns an empty page.
func New() *Page {
	p := &Page{
		routes:      make(map[string]func() string),
		handlers:    make(map[string]Handler),
		intercepted: make(map[string]bool),
	}
	p.root, _ = dom.ParseString("<html></html>")
	return p
}

// Load replaces the current document.
func (p *Page) Load(doc string) {
	root, err := dom.ParseString(doc)
	if err != nil {
		panic(err)
	}
	p.mu.Lock()
	p.root = root
	p.mu.Unlock()
}

// Route serves doc when url is navigated to.
func (p *Page) Route(url, doc string) *Page {
	return p.RouteFunc(url, func() string { return doc })
}

// RouteFunc serves the document produced by fn when url is navigated to.
func (p *Page) RouteFunc(url string, fn func() string) *Page {
	p.mu.Lock()
	p.routes[url] = fn
	p.mu.Unlock()
	return p
}

// On registers fn to run after action on the locator expression expr. A
// "#N" suffix on expr restricts a click handler to the N-th match.
func (p *Page) On(action Action, expr string, fn Handler) *Page {
	p.mu.Lock()
	p.handlers[string(action)+"\x00"+expr] = fn
	p.mu.Unlock()
	return p
}

// LoadOn swaps in doc after action on expr.
func (p *Page) LoadOn(action Action, expr, doc string) *Page {
	return p.On(action, expr, func(p *Page) (browser.Page, error) {
		p.Load(doc)
		return nil, nil
	})
}

// Intercept makes pointer clicks on expr fail with ErrIntercepted.
func (p *Page) Intercept(expr string) *Page {
	p.mu.Lock()
	p.intercepted[expr] = true
	p.mu.Unlock()
	return p
}

// Actions returns a copy of the interaction log ("click <expr>", ...).
func (p *Page) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.log...)
}

// Did counts log entries starting with action (and expr when non-empty).
func (p *Page) Did(action Action, expr string) int {
	prefix := string(action)
	if expr != "" {
		prefix += " " + expr
	}
	n := 0
	for _, a := range p.Actions() {
		if a == prefix || strings.HasPrefix(a, prefix+" ") || strings.HasPrefix(a, prefix+"=") || strings.HasPrefix(a, prefix+"#") {
			n++
		}
	}
	return n
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) record(format string, args ...any) {
	p.mu.Lock()
	p.log = append(p.log, fmt.Sprintf(format, args...))
	p.mu.Unlock()
}

func (p *Page) handler(action Action, expr string) Handler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handlers[string(action)+"\x00"+expr]
}

func (p *Page) nodes(loc browser.Locator) []*html.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return dom.Query(p.root, loc.Expr, loc.Kind == browser.XPath)
}

func (p *Page) node(loc browser.Locator) (*html.Node, error) {
	ns := p.nodes(loc)
	if loc.Index >= len(ns) {
		return nil, fmt.Errorf("%w: %s", browser.ErrNotFound, loc)
	}
	return ns[loc.Index], nil
}

func (p *Page) run(action Action, loc browser.Locator) (browser.Page, error) {
	if h := p.handler(action, loc.Expr); h != nil {
		return h(p)
	}
	return nil, nil
}

func (p *Page) Navigate(_ context.Context, url string) error {
	p.record("%s %s", Navigate, url)
	p.mu.Lock()
	fn, ok := p.routes[url]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("browsertest: no route for %s", url)
	}
	p.Load(fn())
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

func (p *Page) Count(_ context.Context, loc browser.Locator) (int, error) {
	return len(p.nodes(loc)), nil
}

// WaitFor checks once: documents only change inside handlers, which run
// synchronously, so there is nothing to wait for.
func (p *Page) WaitFor(_ context.Context, loc browser.Locator, state browser.State, timeout time.Duration) error {
	n, err := p.node(loc)
	if err == nil && (state == browser.Attached || dom.Visible(n)) {
		return nil
	}
	return fmt.Errorf("%w: %s after %s", browser.ErrTimeout, loc, timeout)
}

func (p *Page) Text(_ context.Context, loc browser.Locator) (string, error) {
	n, err := p.node(loc)
	if err != nil {
		return "", err
	}
	return dom.Text(n), nil
}

func (p *Page) Texts(_ context.Context, loc browser.Locator) ([]string, error) {
	var out []string
	for _, n := range p.nodes(loc) {
		out = append(out, dom.Text(n))
	}
	return out, nil
}

func (p *Page) Attribute(_ context.Context, loc browser.Locator, name string) (string, bool, error) {
	n, err := p.node(loc)
	if err != nil {
		return "", false, err
	}
	v, ok := dom.Attr(n, name)
	return v, ok, nil
}

func (p *Page) Attributes(_ context.Context, loc browser.Locator, name string) ([]string, error) {
	var out []string
	for _, n := range p.nodes(loc) {
		v, _ := dom.Attr(n, name)
		out = append(out, v)
	}
	return out, nil
}

func (p *Page) Click(ctx context.Context, loc browser.Locator) error {
	_, err := p.click(ctx, loc, Click)
	return err
}

func (p *Page) ForceClick(ctx context.Context, loc browser.Locator) error {
	_, err := p.click(ctx, loc, Force)
	return err
}

func (p *Page) click(ctx context.Context, loc browser.Locator, kind Action) (browser.Page, error) {
	n, err := p.node(loc)
	if err != nil {
		return nil, err
	}
	p.record("%s %s", kind, key(loc))

	p.mu.Lock()
	blocked := p.intercepted[loc.Expr]
	p.mu.Unlock()
	if kind == Click && blocked {
		return nil, fmt.Errorf("%w: %s", browser.ErrIntercepted, loc)
	}

	h := p.handler(Click, key(loc))
	if h == nil {
		h = p.handler(Click, loc.Expr)
	}
	if h != nil {
		return h(p)
	}

	// Unscripted links follow a route when one exists.
	if href, ok := dom.Attr(n, "href"); ok {
		p.mu.Lock()
		_, routed := p.routes[href]
		p.mu.Unlock()
		if routed {
			return nil, p.Navigate(ctx, href)
		}
	}
	return nil, nil
}

// key names a locator in the log and in handler registration: the
// expression, suffixed with "#N" when a later match is selected.
func key(loc browser.Locator) string {
	if loc.Index > 0 {
		return fmt.Sprintf("%s#%d", loc.Expr, loc.Index)
	}
	return loc.Expr
}

func (p *Page) ClickFollow(ctx context.Context, loc browser.Locator, _ time.Duration) (browser.Page, error) {
	next, err := p.click(ctx, loc, Click)
	if err != nil && !errors.Is(err, browser.ErrIntercepted) {
		return nil, err
	}
	if err != nil {
		if next, err = p.click(ctx, loc, Force); err != nil {
			return nil, err
		}
	}
	if next != nil {
		return next, nil
	}
	return p, nil
}

func (p *Page) Fill(_ context.Context, loc browser.Locator, text string) error {
	n, err := p.node(loc)
	if err != nil {
		return err
	}
	p.mu.Lock()
	dom.SetAttr(n, "value", text)
	p.mu.Unlock()
	p.record("%s %s=%s", Fill, loc.Expr, text)
	_, err = p.run(Fill, loc)
	return err
}

func (p *Page) Press(_ context.Context, loc browser.Locator, key browser.Key) error {
	if _, err := p.node(loc); err != nil {
		return err
	}
	p.record("%s %s %d", Press, loc.Expr, key)
	_, err := p.run(Press, loc)
	return err
}

func (p *Page) SelectOption(_ context.Context, loc browser.Locator, value string) error {
	if _, err := p.node(loc); err != nil {
		return err
	}
	p.record("%s %s=%s", Select, loc.Expr, value)
	_, err := p.run(Select, loc)
	return err
}

func (p *Page) ScrollIntoView(_ context.Context, loc browser.Locator) error {
	_, err := p.node(loc)
	return err
}

func (p *Page) ScrollTo(_ context.Context, fraction float64) error {
	p.record("%s %.2f", Scroll, fraction)
	return nil
}

func (p *Page) Lang(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return dom.Lang(p.root), nil
}

func (p *Page) Settle(context.Context, time.Duration) error { return nil }

func (p *Page) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return dom.Render(p.root), nil
}

func (p *Page) Screenshot(context.Context) ([]byte, error) {
	return []byte("\x89PNG fake"), nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}
