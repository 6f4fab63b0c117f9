// Package navigate brings a page to the detail view of an activity code.
//
// The portal offers three inconsistent ways in, tried in order:
//
//  1. direct addressing of the detail URL;
//  2. the header search widget, when it yields a single candidate;
//  3. the footer "business activities" search, scanning every result link
//     for the exact code.
//
// Timeouts in the first two strategies only move on to the next one. The
// footer search is the last resort and its failures are final.
package navigate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/hazyhaar/baextract/portal/internal/browser"
)

var (
	// ErrNavigationExhausted reports that no strategy reached the detail page.
	ErrNavigationExhausted = errors.New("navigate: navigation exhausted")
	// ErrAmbiguousMatch reports that search results existed but none carried
	// exactly the requested code.
	ErrAmbiguousMatch = errors.New("navigate: no exact match among candidates")
)

// Kind is how the detail page was reached.
type Kind int

const (
	Failed Kind = iota
	DirectHit
	SearchSingle
	SearchAmbiguous
)

func (k Kind) String() string {
	switch k {
	case DirectHit:
		return "direct_hit"
	case SearchSingle:
		return "search_single"
	case SearchAmbiguous:
		return "search_ambiguous"
	}
	return "failed"
}

// Footer search failure reasons.
const (
	ReasonNoResults    = "no results"
	ReasonNoExactMatch = "no exact match"
)

// Outcome is the result of Resolve.
type Outcome struct {
	Kind Kind
	// Page is the page the caller owns afterwards. It differs from the page
	// passed to Resolve when the detail view opened in a new tab; the
	// original page is then left open for the caller to close.
	Page browser.Page
	// Candidates are the codes scanned by the footer search.
	Candidates []string
	Reason     string
}

// OK reports whether the detail page was reached.
func (o Outcome) OK() bool { return o.Kind != Failed }

// Err returns nil on success, otherwise an error wrapping
// ErrAmbiguousMatch or ErrNavigationExhausted.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	if o.Reason == ReasonNoExactMatch {
		return fmt.Errorf("%w: %s", ErrAmbiguousMatch, o.Reason)
	}
	return fmt.Errorf("%w: %s", ErrNavigationExhausted, o.Reason)
}

// Locators is the part of the locator table the navigator uses.
type Locators struct {
	// Anchor is the code field of the detail page.
	Anchor browser.Locator

	SearchIcon    browser.Locator
	BusinessTab   browser.Locator
	SearchInput   browser.Locator
	SearchResults browser.Locator
	SearchFirst   browser.Locator

	FooterLink       browser.Locator
	FooterInput      browser.Locator
	FooterContainer  browser.Locator
	SearchButton     browser.Locator
	ResultsContainer browser.Locator
	ResultLinks      browser.Locator
}

// Options configures a Navigator.
type Options struct {
	Locators Locators
	// DetailURL builds the detail page address of a code.
	DetailURL func(code string) string
	// HomeURL is the portal home page the footer search starts from.
	HomeURL string

	Direct       time.Duration
	SearchStep   time.Duration
	SearchAnchor time.Duration
	Footer       time.Duration
	FooterAnchor time.Duration
	Popup        time.Duration

	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Direct <= 0 {
		o.Direct = 30 * time.Second
	}
	if o.SearchStep <= 0 {
		o.SearchStep = 10 * time.Second
	}
	if o.SearchAnchor <= 0 {
		o.SearchAnchor = 20 * time.Second
	}
	if o.Footer <= 0 {
		o.Footer = 20 * time.Second
	}
	if o.FooterAnchor <= 0 {
		o.FooterAnchor = 30 * time.Second
	}
	if o.Popup <= 0 {
		o.Popup = 2 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Navigator resolves codes to detail pages.
type Navigator struct {
	opts Options
}

// New creates a Navigator.
func New(opts Options) *Navigator {
	opts.defaults()
	return &Navigator{opts: opts}
}

// Resolve tries each strategy in order and stops at the first that shows
// the detail page. The code is used verbatim.
func (n *Navigator) Resolve(ctx context.Context, page browser.Page, code string) Outcome {
	log := n.opts.Logger.With("code", code)

	err := n.direct(ctx, page, code)
	if err == nil {
		log.Debug("navigate: direct hit")
		return Outcome{Kind: DirectHit, Page: page}
	}
	log.Debug("navigate: direct addressing failed", "error", err)
	if err := ctx.Err(); err != nil {
		return Outcome{Kind: Failed, Page: page, Reason: err.Error()}
	}

	single, err := n.search(ctx, page, code)
	switch {
	case err == nil:
		log.Debug("navigate: search hit")
		return Outcome{Kind: SearchSingle, Page: page}
	case errors.Is(err, errSeveral):
		log.Debug("navigate: several search candidates", "count", single)
	default:
		log.Debug("navigate: search failed", "error", err)
	}
	if err := ctx.Err(); err != nil {
		return Outcome{Kind: Failed, Page: page, Reason: err.Error()}
	}

	out := n.footer(ctx, page, code)
	if out.OK() {
		log.Info("navigate: footer search hit", "candidates", len(out.Candidates), "new_tab", out.Page != page)
	} else {
		log.Warn("navigate: exhausted", "reason", out.Reason)
	}
	return out
}

func (n *Navigator) direct(ctx context.Context, page browser.Page, code string) error {
	if n.opts.DetailURL == nil {
		return errors.New("no detail url")
	}
	if err := page.Navigate(ctx, n.opts.DetailURL(code)); err != nil {
		return err
	}
	return page.WaitFor(ctx, n.opts.Locators.Anchor, browser.Visible, n.opts.Direct)
}

var errSeveral = errors.New("several candidates")

// search drives the header search widget. It returns the candidate count
// alongside errSeveral when more than one activity matched.
func (n *Navigator) search(ctx context.Context, page browser.Page, code string) (int, error) {
	loc := n.opts.Locators
	step := n.opts.SearchStep

	for _, l := range []browser.Locator{loc.SearchIcon, loc.BusinessTab} {
		if err := clickVisible(ctx, page, l, step); err != nil {
			return 0, err
		}
	}
	if err := page.WaitFor(ctx, loc.SearchInput, browser.Visible, step); err != nil {
		return 0, err
	}
	if err := page.Fill(ctx, loc.SearchInput, code); err != nil {
		return 0, err
	}
	if err := page.WaitFor(ctx, loc.SearchResults, browser.Attached, step); err != nil {
		return 0, err
	}

	count, err := page.Count(ctx, loc.SearchResults)
	if err != nil {
		return 0, err
	}
	if count > 1 {
		return count, errSeveral
	}
	if err := clickVisible(ctx, page, loc.SearchFirst, step); err != nil {
		return count, err
	}
	return count, page.WaitFor(ctx, loc.Anchor, browser.Visible, n.opts.SearchAnchor)
}

var bacodeRe = regexp.MustCompile(`(?:\?|&)bacode=(\d+)`)

// CodeFromHref extracts the bacode query value of a result link.
func CodeFromHref(href string) (string, bool) {
	m := bacodeRe.FindStringSubmatch(href)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// footer runs the exhaustive footer search.
func (n *Navigator) footer(ctx context.Context, page browser.Page, code string) Outcome {
	loc := n.opts.Locators
	wait := n.opts.Footer
	log := n.opts.Logger.With("code", code)
	fail := func(reason string, cands []string) Outcome {
		return Outcome{Kind: Failed, Page: page, Candidates: cands, Reason: reason}
	}

	if err := page.Navigate(ctx, n.opts.HomeURL); err != nil {
		return fail(fmt.Sprintf("home: %v", err), nil)
	}
	if err := page.ScrollTo(ctx, 1); err != nil {
		log.Debug("navigate: scroll to footer", "error", err)
	}
	if err := clickVisible(ctx, page, loc.FooterLink, wait); err != nil {
		return fail(fmt.Sprintf("footer link: %v", err), nil)
	}
	if err := page.WaitFor(ctx, loc.FooterInput, browser.Visible, wait); err != nil {
		return fail(fmt.Sprintf("footer search input: %v", err), nil)
	}
	if err := page.Fill(ctx, loc.FooterInput, code); err != nil {
		return fail(fmt.Sprintf("footer search input: %v", err), nil)
	}
	if err := page.Press(ctx, loc.FooterInput, browser.KeyEnter); err != nil {
		log.Debug("navigate: enter on footer search", "error", err)
	}

	trigger := loc.FooterContainer
	if c, _ := page.Count(ctx, loc.SearchButton); c > 0 {
		trigger = loc.SearchButton
	}
	if err := browser.ClickOrForce(ctx, page, trigger); err != nil && trigger != loc.FooterContainer {
		if err := browser.ClickOrForce(ctx, page, loc.FooterContainer); err != nil {
			log.Debug("navigate: trigger footer search", "error", err)
		}
	}

	if err := page.WaitFor(ctx, loc.ResultsContainer, browser.Attached, wait); err != nil {
		return fail(fmt.Sprintf("results: %v", err), nil)
	}
	hrefs, err := page.Attributes(ctx, loc.ResultLinks, "href")
	if err != nil {
		return fail(fmt.Sprintf("results: %v", err), nil)
	}
	if len(hrefs) == 0 {
		return fail(ReasonNoResults, nil)
	}

	match := -1
	cands := make([]string, 0, len(hrefs))
	for i, h := range hrefs {
		c, ok := CodeFromHref(h)
		if !ok {
			continue
		}
		cands = append(cands, c)
		if match < 0 && c == code {
			match = i
		}
	}
	if match < 0 {
		return fail(ReasonNoExactMatch, cands)
	}

	active, err := page.ClickFollow(ctx, loc.ResultLinks.At(match), n.opts.Popup)
	if err != nil {
		return fail(fmt.Sprintf("open result: %v", err), cands)
	}
	if err := active.WaitFor(ctx, loc.Anchor, browser.Visible, n.opts.FooterAnchor); err != nil {
		if active != page {
			active.Close()
		}
		return fail(fmt.Sprintf("detail page: %v", err), cands)
	}
	return Outcome{Kind: SearchAmbiguous, Page: active, Candidates: cands}
}

func clickVisible(ctx context.Context, page browser.Page, loc browser.Locator, timeout time.Duration) error {
	if err := page.WaitFor(ctx, loc, browser.Visible, timeout); err != nil {
		return err
	}
	return browser.ClickOrForce(ctx, page, loc)
}
