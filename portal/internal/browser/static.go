package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/baextract/portal/internal/dom"
)

// ErrUnsupported reports an interaction the HTTP-only level cannot perform
// (script-driven widgets, screenshots).
var ErrUnsupported = errors.New("browser: unsupported at http level")

// Static is the HTTP-only Page (LevelHTTP). It fetches documents with resty
// and evaluates locators against the parsed HTML. Links and forms work;
// anything that needs script execution reports ErrUnsupported. Since the
// document only changes on navigation, waits resolve immediately.
type Static struct {
	client *resty.Client
	logger *slog.Logger
	root   *html.Node
	url    string
}

var _ Page = (*Static)(nil)

// StaticOption configures a Static page.
type StaticOption func(*Static)

// WithStaticLogger sets the logger.
func WithStaticLogger(l *slog.Logger) StaticOption {
	return func(s *Static) { s.logger = l }
}

// WithStaticClient replaces the resty client.
func WithStaticClient(c *resty.Client) StaticOption {
	return func(s *Static) { s.client = c }
}

// WithStaticUserAgent overrides the browser-like user agent.
func WithStaticUserAgent(ua string) StaticOption {
	return func(s *Static) {
		if ua != "" {
			s.client.SetHeader("User-Agent", ua)
		}
	}
}

// NewStatic creates an HTTP-only page with a browser-like user agent.
func NewStatic(opts ...StaticOption) *Static {
	s := &Static{
		client: resty.New().
			SetTimeout(navTimeout).
			SetRetryCount(2).
			SetRetryWaitTime(time.Second).
			SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36").
			SetHeader("Accept", "text/html,application/xhtml+xml"),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Static) Navigate(ctx context.Context, rawURL string) error {
	resp, err := s.client.R().SetContext(ctx).Get(rawURL)
	return s.load(rawURL, resp, err)
}

func (s *Static) load(rawURL string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("browser: fetch %s: %w", rawURL, err)
	}
	if resp.IsError() {
		return fmt.Errorf("browser: fetch %s: status %d", rawURL, resp.StatusCode())
	}
	root, err := dom.Parse(strings.NewReader(resp.String()))
	if err != nil {
		return err
	}
	s.root = root
	s.url = rawURL
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		s.url = raw.Request.URL.String()
	}
	s.logger.Debug("browser: static page loaded", "url", s.url, "bytes", len(resp.Body()))
	return nil
}

func (s *Static) nodes(loc Locator) []*html.Node {
	return dom.Query(s.root, loc.Expr, loc.Kind == XPath)
}

func (s *Static) node(loc Locator) (*html.Node, error) {
	ns := s.nodes(loc)
	if loc.Index >= len(ns) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	return ns[loc.Index], nil
}

func (s *Static) Count(_ context.Context, loc Locator) (int, error) {
	return len(s.nodes(loc)), nil
}

func (s *Static) WaitFor(_ context.Context, loc Locator, state State, timeout time.Duration) error {
	n, err := s.node(loc)
	if err == nil && (state == Attached || dom.Visible(n)) {
		return nil
	}
	return fmt.Errorf("%w: %s after %s", ErrTimeout, loc, timeout)
}

func (s *Static) Text(_ context.Context, loc Locator) (string, error) {
	n, err := s.node(loc)
	if err != nil {
		return "", err
	}
	return dom.Text(n), nil
}

func (s *Static) Texts(_ context.Context, loc Locator) ([]string, error) {
	ns := s.nodes(loc)
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, dom.Text(n))
	}
	return out, nil
}

func (s *Static) Attribute(_ context.Context, loc Locator, name string) (string, bool, error) {
	n, err := s.node(loc)
	if err != nil {
		return "", false, err
	}
	v, ok := dom.Attr(n, name)
	return v, ok, nil
}

func (s *Static) Attributes(_ context.Context, loc Locator, name string) ([]string, error) {
	ns := s.nodes(loc)
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		v, _ := dom.Attr(n, name)
		out = append(out, v)
	}
	return out, nil
}

// Click follows the enclosing link or submits the enclosing form.
func (s *Static) Click(ctx context.Context, loc Locator) error {
	n, err := s.node(loc)
	if err != nil {
		return err
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.DataAtom == atom.A {
			if href, ok := dom.Attr(cur, "href"); ok && !strings.HasPrefix(href, "javascript:") && href != "#" {
				return s.Navigate(ctx, s.resolve(href))
			}
		}
		if cur.DataAtom == atom.Button || cur.DataAtom == atom.Input {
			if form := enclosingForm(cur); form != nil {
				return s.submit(ctx, form)
			}
		}
	}
	return fmt.Errorf("%w: click %s", ErrUnsupported, loc)
}

func (s *Static) ForceClick(ctx context.Context, loc Locator) error { return s.Click(ctx, loc) }

// ClickFollow never sees a new tab at the HTTP level.
func (s *Static) ClickFollow(ctx context.Context, loc Locator, _ time.Duration) (Page, error) {
	if err := s.Click(ctx, loc); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Static) Fill(_ context.Context, loc Locator, text string) error {
	n, err := s.node(loc)
	if err != nil {
		return err
	}
	dom.SetAttr(n, "value", text)
	return nil
}

// Press submits the enclosing form on Enter.
func (s *Static) Press(ctx context.Context, loc Locator, key Key) error {
	n, err := s.node(loc)
	if err != nil {
		return err
	}
	if key != KeyEnter {
		return nil
	}
	form := enclosingForm(n)
	if form == nil {
		return fmt.Errorf("%w: enter outside a form at %s", ErrUnsupported, loc)
	}
	return s.submit(ctx, form)
}

func (s *Static) SelectOption(_ context.Context, loc Locator, value string) error {
	n, err := s.node(loc)
	if err != nil {
		return err
	}
	found := false
	for _, opt := range dom.Query(n, "option", false) {
		opt.Attr = without(opt.Attr, "selected")
		if dom.Text(opt) == value {
			dom.SetAttr(opt, "selected", "selected")
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: option %q in %s", ErrNotFound, value, loc)
	}
	return nil
}

func (s *Static) ScrollIntoView(_ context.Context, loc Locator) error {
	_, err := s.node(loc)
	return err
}

func (s *Static) ScrollTo(context.Context, float64) error { return nil }

func (s *Static) Lang(context.Context) (string, error) { return dom.Lang(s.root), nil }

func (s *Static) Settle(context.Context, time.Duration) error { return nil }

func (s *Static) HTML(context.Context) (string, error) {
	if s.root == nil {
		return "", nil
	}
	return dom.Render(s.root), nil
}

func (s *Static) Screenshot(context.Context) ([]byte, error) {
	return nil, fmt.Errorf("%w: screenshot", ErrUnsupported)
}

func (s *Static) URL() string { return s.url }

func (s *Static) Close() error {
	s.root = nil
	return nil
}

func (s *Static) resolve(href string) string {
	base, err := url.Parse(s.url)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func (s *Static) submit(ctx context.Context, form *html.Node) error {
	action, _ := dom.Attr(form, "action")
	target := s.resolve(action)
	values := formValues(form)

	method, _ := dom.Attr(form, "method")
	if strings.EqualFold(method, http.MethodPost) {
		resp, err := s.client.R().SetContext(ctx).SetFormDataFromValues(values).Post(target)
		return s.load(target, resp, err)
	}
	resp, err := s.client.R().SetContext(ctx).SetQueryParamsFromValues(values).Get(target)
	return s.load(target, resp, err)
}

func enclosingForm(n *html.Node) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.DataAtom == atom.Form {
			return cur
		}
	}
	return nil
}

func formValues(form *html.Node) url.Values {
	values := url.Values{}
	for _, in := range dom.Query(form, "input[name], textarea[name], select[name]", false) {
		name, _ := dom.Attr(in, "name")
		switch in.DataAtom {
		case atom.Select:
			for _, opt := range dom.Query(in, "option[selected]", false) {
				v, ok := dom.Attr(opt, "value")
				if !ok {
					v = dom.Text(opt)
				}
				values.Add(name, v)
			}
		case atom.Textarea:
			values.Add(name, dom.Text(in))
		default:
			typ, _ := dom.Attr(in, "type")
			if typ == "checkbox" || typ == "radio" {
				if _, checked := dom.Attr(in, "checked"); !checked {
					continue
				}
			}
			v, _ := dom.Attr(in, "value")
			values.Add(name, v)
		}
	}
	return values
}

func without(attrs []html.Attribute, key string) []html.Attribute {
	out := attrs[:0]
	for _, a := range attrs {
		if a.Key != key {
			out = append(out, a)
		}
	}
	return out
}
