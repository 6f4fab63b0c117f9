package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors shared by every Page implementation.
var (
	// ErrTimeout reports that a bounded wait reached its deadline.
	ErrTimeout = errors.New("browser: timeout exhausted")
	// ErrNotFound reports that a locator resolved to no element.
	ErrNotFound = errors.New("browser: element absent")
	// ErrIntercepted reports that a normal click could not reach the element
	// (covered, not interactable). Callers fall back to ForceClick.
	ErrIntercepted = errors.New("browser: click intercepted")
)

// LocatorKind selects how a Locator expression is evaluated.
type LocatorKind int

const (
	CSS LocatorKind = iota
	XPath
)

func (k LocatorKind) String() string {
	if k == XPath {
		return "xpath"
	}
	return "css"
}

// Locator is a stable reference to a region of the rendered page. It may
// resolve to zero elements; Index picks the n-th match (0 = first).
type Locator struct {
	Kind  LocatorKind
	Expr  string
	Index int
}

// ByCSS returns a CSS locator.
func ByCSS(expr string) Locator { return Locator{Kind: CSS, Expr: expr} }

// ByXPath returns an XPath locator.
func ByXPath(expr string) Locator { return Locator{Kind: XPath, Expr: expr} }

// ParseLocator reads the configuration form of a locator: an explicit
// "css:" or "xpath:" prefix, otherwise XPath when expr starts with "/" or
// "(" and CSS for anything else.
func ParseLocator(expr string) Locator {
	expr = strings.TrimSpace(expr)
	switch {
	case strings.HasPrefix(expr, "css:"):
		return ByCSS(strings.TrimSpace(expr[len("css:"):]))
	case strings.HasPrefix(expr, "xpath:"):
		return ByXPath(strings.TrimSpace(expr[len("xpath:"):]))
	case strings.HasPrefix(expr, "/"), strings.HasPrefix(expr, "("):
		return ByXPath(expr)
	}
	return ByCSS(expr)
}

// Nth expands the "{i}" placeholder of a templated locator.
func (l Locator) Nth(i int) Locator {
	l.Expr = strings.ReplaceAll(l.Expr, "{i}", fmt.Sprint(i))
	return l
}

// Child narrows l to its tag children. pos > 0 selects the pos-th child of
// that tag (1-based, as in XPath).
func (l Locator) Child(tag string, pos int) Locator {
	if l.Kind == XPath {
		l.Expr += "/" + tag
		if pos > 0 {
			l.Expr += fmt.Sprintf("[%d]", pos)
		}
		return l
	}
	l.Expr += " > " + tag
	if pos > 0 {
		l.Expr += fmt.Sprintf(":nth-of-type(%d)", pos)
	}
	return l
}

// At returns a copy of l selecting the i-th match.
func (l Locator) At(i int) Locator {
	l.Index = i
	return l
}

// IsZero reports whether l has no expression.
func (l Locator) IsZero() bool { return l.Expr == "" }

func (l Locator) String() string {
	if l.Index > 0 {
		return fmt.Sprintf("%s:%s#%d", l.Kind, l.Expr, l.Index)
	}
	return fmt.Sprintf("%s:%s", l.Kind, l.Expr)
}

// State is the condition WaitFor waits for.
type State int

const (
	// Attached means present in the DOM.
	Attached State = iota
	// Visible means present and rendered.
	Visible
)

// Key is a keyboard key sent by Press.
type Key int

const (
	KeyEnter Key = iota
	KeyEnd
)

// Page is one browser tab owned by exactly one component at a time.
//
// Interactions are sequential: a Page is not safe for concurrent use. When
// an interaction opens a new tab, ClickFollow returns the new Page and the
// caller becomes responsible for closing the superseded one.
type Page interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// Count returns how many elements loc currently resolves to. It never waits.
	Count(ctx context.Context, loc Locator) (int, error)
	// WaitFor blocks until loc reaches state or timeout passes (ErrTimeout).
	WaitFor(ctx context.Context, loc Locator, state State, timeout time.Duration) error
	// Text returns the trimmed text of the element (ErrNotFound when absent).
	Text(ctx context.Context, loc Locator) (string, error)
	// Texts returns the trimmed text of every element loc resolves to.
	Texts(ctx context.Context, loc Locator) ([]string, error)
	// Attribute returns an attribute value and whether it is set.
	Attribute(ctx context.Context, loc Locator, name string) (string, bool, error)
	// Attributes returns the attribute of every match ("" when unset).
	Attributes(ctx context.Context, loc Locator, name string) ([]string, error)
	// Click performs a real pointer click (ErrIntercepted when blocked).
	Click(ctx context.Context, loc Locator) error
	// ForceClick activates the element through script, bypassing hit tests.
	ForceClick(ctx context.Context, loc Locator) error
	// ClickFollow clicks loc and, if a new tab opens within wait, returns it.
	// Otherwise it returns the receiver.
	ClickFollow(ctx context.Context, loc Locator, wait time.Duration) (Page, error)
	// Fill replaces the value of an input.
	Fill(ctx context.Context, loc Locator, text string) error
	// Press sends a key to the element.
	Press(ctx context.Context, loc Locator, key Key) error
	// SelectOption selects the option whose visible text is value.
	SelectOption(ctx context.Context, loc Locator, value string) error
	// ScrollIntoView scrolls the element into the viewport.
	ScrollIntoView(ctx context.Context, loc Locator) error
	// ScrollTo scrolls the window to fraction (0..1) of the document height.
	ScrollTo(ctx context.Context, fraction float64) error
	// Lang returns document.documentElement.lang.
	Lang(ctx context.Context) (string, error)
	// Settle waits for network and DOM quiescence, bounded by timeout.
	Settle(ctx context.Context, timeout time.Duration) error
	// HTML returns the serialised document.
	HTML(ctx context.Context) (string, error)
	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// URL returns the current document URL.
	URL() string
	// Close releases the tab.
	Close() error
}

// ClickOrForce clicks loc, falling back to ForceClick when the normal click
// is intercepted.
func ClickOrForce(ctx context.Context, p Page, loc Locator) error {
	err := p.Click(ctx, loc)
	if errors.Is(err, ErrIntercepted) {
		return p.ForceClick(ctx, loc)
	}
	return err
}
