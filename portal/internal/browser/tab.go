package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// navTimeout bounds a single Navigate including the load event.
const navTimeout = 30 * time.Second

// Tab is the rod-backed Page: one stealth tab with optional resource blocking.
type Tab struct {
	page    *rod.Page
	router  *rod.HijackRouter
	manager *Manager
}

var _ Page = (*Tab)(nil)

// OpenTab creates a blank stealth tab on the manager's browser.
func OpenTab(ctx context.Context, mgr *Manager) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	return newTab(page, mgr), nil
}

func newTab(page *rod.Page, mgr *Manager) *Tab {
	t := &Tab{page: page, manager: mgr}
	if len(mgr.cfg.ResourceBlocking) > 0 {
		t.router = blockResources(page, mgr.cfg.ResourceBlocking)
	}
	return t
}

// Navigate loads url; a slow load event is logged, not fatal.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, navTimeout)
	defer cancel()

	p := t.page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		t.manager.cfg.Logger.Warn("browser: wait load timeout", "url", url, "error", err)
	}
	return nil
}

func (t *Tab) elements(ctx context.Context, loc Locator) (rod.Elements, error) {
	p := t.page.Context(ctx)
	if loc.Kind == XPath {
		return p.ElementsX(loc.Expr)
	}
	return p.Elements(loc.Expr)
}

func (t *Tab) element(ctx context.Context, loc Locator) (*rod.Element, error) {
	els, err := t.elements(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("browser: query %s: %w", loc, err)
	}
	if loc.Index >= len(els) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	return els[loc.Index], nil
}

func (t *Tab) Count(ctx context.Context, loc Locator) (int, error) {
	els, err := t.elements(ctx, loc)
	if err != nil {
		return 0, fmt.Errorf("browser: query %s: %w", loc, err)
	}
	return len(els), nil
}

func (t *Tab) WaitFor(ctx context.Context, loc Locator, state State, timeout time.Duration) error {
	ok := Await(ctx, 200*time.Millisecond, timeout, func() bool {
		el, err := t.element(ctx, loc)
		if err != nil {
			return false
		}
		if state == Visible {
			v, err := el.Visible()
			return err == nil && v
		}
		return true
	})
	if !ok {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s after %s", ErrTimeout, loc, timeout)
	}
	return nil
}

func (t *Tab) Text(ctx context.Context, loc Locator) (string, error) {
	el, err := t.element(ctx, loc)
	if err != nil {
		return "", err
	}
	s, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("browser: text %s: %w", loc, err)
	}
	return strings.TrimSpace(s), nil
}

func (t *Tab) Texts(ctx context.Context, loc Locator) ([]string, error) {
	els, err := t.elements(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("browser: query %s: %w", loc, err)
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		s, err := el.Text()
		if err != nil {
			return nil, fmt.Errorf("browser: text %s: %w", loc, err)
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out, nil
}

func (t *Tab) Attribute(ctx context.Context, loc Locator, name string) (string, bool, error) {
	el, err := t.element(ctx, loc)
	if err != nil {
		return "", false, err
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", false, fmt.Errorf("browser: attribute %s@%s: %w", loc, name, err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (t *Tab) Attributes(ctx context.Context, loc Locator, name string) ([]string, error) {
	els, err := t.elements(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("browser: query %s: %w", loc, err)
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		v, err := el.Attribute(name)
		if err != nil {
			return nil, fmt.Errorf("browser: attribute %s@%s: %w", loc, name, err)
		}
		if v == nil {
			out = append(out, "")
			continue
		}
		out = append(out, *v)
	}
	return out, nil
}

// Click scrolls to the element and clicks it. An element that stays covered
// or non-interactable past ClickTimeout reports ErrIntercepted.
func (t *Tab) Click(ctx context.Context, loc Locator) error {
	el, err := t.element(ctx, loc)
	if err != nil {
		return err
	}
	err = el.Context(ctx).Timeout(t.manager.cfg.ClickTimeout).Click(proto.InputMouseButtonLeft, 1)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if isIntercepted(err) {
		return fmt.Errorf("%w: %s: %v", ErrIntercepted, loc, err)
	}
	return fmt.Errorf("browser: click %s: %w", loc, err)
}

func isIntercepted(err error) bool {
	var covered *rod.CoveredError
	var noPointer *rod.NoPointerEventsError
	var invisible *rod.InvisibleShapeError
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &covered) ||
		errors.As(err, &noPointer) ||
		errors.As(err, &invisible)
}

func (t *Tab) ForceClick(ctx context.Context, loc Locator) error {
	el, err := t.element(ctx, loc)
	if err != nil {
		return err
	}
	if _, err := el.Context(ctx).Eval(`() => this.click()`); err != nil {
		return fmt.Errorf("browser: force click %s: %w", loc, err)
	}
	return nil
}

// ClickFollow clicks loc and returns the tab it opens, if any, within wait.
func (t *Tab) ClickFollow(ctx context.Context, loc Locator, wait time.Duration) (Page, error) {
	wctx, cancel := context.WithTimeout(ctx, wait+t.manager.cfg.ClickTimeout)
	defer cancel()

	waitOpen := t.page.Context(wctx).WaitOpen()
	if err := ClickOrForce(ctx, t, loc); err != nil {
		return nil, err
	}

	popup, err := waitOpen()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if wctx.Err() != nil {
			return t, nil
		}
		return nil, fmt.Errorf("browser: follow popup: %w", err)
	}

	if err := popup.Context(ctx).WaitLoad(); err != nil {
		t.manager.cfg.Logger.Warn("browser: popup load", "error", err)
	}
	t.manager.cfg.Logger.Debug("browser: popup opened", "from", t.URL())
	return newTab(popup, t.manager), nil
}

func (t *Tab) Fill(ctx context.Context, loc Locator, text string) error {
	el, err := t.element(ctx, loc)
	if err != nil {
		return err
	}
	el = el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("browser: fill %s: %w", loc, err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("browser: fill %s: %w", loc, err)
	}
	return nil
}

func (t *Tab) Press(ctx context.Context, loc Locator, key Key) error {
	el, err := t.element(ctx, loc)
	if err != nil {
		return err
	}
	k := input.Enter
	if key == KeyEnd {
		k = input.End
	}
	if err := el.Context(ctx).Type(k); err != nil {
		return fmt.Errorf("browser: press %s: %w", loc, err)
	}
	return nil
}

func (t *Tab) SelectOption(ctx context.Context, loc Locator, value string) error {
	el, err := t.element(ctx, loc)
	if err != nil {
		return err
	}
	if err := el.Context(ctx).Select([]string{value}, true, rod.SelectorTypeText); err != nil {
		return fmt.Errorf("browser: select %q in %s: %w", value, loc, err)
	}
	return nil
}

func (t *Tab) ScrollIntoView(ctx context.Context, loc Locator) error {
	el, err := t.element(ctx, loc)
	if err != nil {
		return err
	}
	if err := el.Context(ctx).ScrollIntoView(); err != nil {
		return fmt.Errorf("browser: scroll to %s: %w", loc, err)
	}
	return nil
}

func (t *Tab) ScrollTo(ctx context.Context, fraction float64) error {
	_, err := t.page.Context(ctx).Eval(`(f) => window.scrollTo(0, document.body.scrollHeight * f)`, fraction)
	if err != nil {
		return fmt.Errorf("browser: scroll: %w", err)
	}
	return nil
}

func (t *Tab) Lang(ctx context.Context) (string, error) {
	res, err := t.page.Context(ctx).Eval(`() => document.documentElement.lang || ""`)
	if err != nil {
		return "", fmt.Errorf("browser: read lang: %w", err)
	}
	return res.Value.Str(), nil
}

// Settle waits for the load event and then for an idle main thread.
func (t *Tab) Settle(ctx context.Context, timeout time.Duration) error {
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := t.page.Context(sctx)
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("%w: settle load: %v", ErrTimeout, err)
	}
	if err := p.WaitIdle(timeout); err != nil {
		return fmt.Errorf("%w: settle idle: %v", ErrTimeout, err)
	}
	return nil
}

func (t *Tab) HTML(ctx context.Context) (string, error) {
	s, err := t.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return s, nil
}

func (t *Tab) Screenshot(ctx context.Context) ([]byte, error) {
	b, err := t.page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return b, nil
}

func (t *Tab) URL() string {
	info, err := t.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Close stops request interception and closes the tab.
func (t *Tab) Close() error {
	if t.router != nil {
		_ = t.router.Stop()
		t.router = nil
	}
	if t.page != nil {
		err := t.page.Close()
		t.page = nil
		return err
	}
	return nil
}
