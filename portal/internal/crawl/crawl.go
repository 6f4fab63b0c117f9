// Package crawl walks the portal's paginated activity listing end to end
// and emits the codes of every page exactly once.
//
// A page is identified by its fingerprint, the first few codes joined with
// "|". The crawler only advances when the next control is enabled and
// only emits after the fingerprint has changed, so a slow or stuck
// paginator can neither repeat a page nor loop forever.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/baextract/portal/internal/browser"
	"github.com/hazyhaar/baextract/portal/record"
)

// Locators is the part of the locator table the crawler uses.
type Locators struct {
	FooterLink       browser.Locator
	FooterInput      browser.Locator
	SearchChip       browser.Locator
	ListingContainer browser.Locator
	PageSize         browser.Locator
	Items            browser.Locator
	NextItem         browser.Locator
	NextLink         browser.Locator
	Indicator        browser.Locator
	Total            browser.Locator
}

// Capturer stores diagnostic artifacts of a page.
type Capturer interface {
	// Capture stores a screenshot and the HTML.
	Capture(ctx context.Context, page browser.Page, name string)
	// Snapshot stores the HTML only.
	Snapshot(ctx context.Context, page browser.Page, name string)
}

// EmitFunc receives the codes of one listing page (1-based index).
type EmitFunc func(ctx context.Context, page int, codes []string) error

// Options configures a Crawler.
type Options struct {
	Locators Locators
	HomeURL  string

	PageSize     int
	FingerprintN int
	SearchSeed   string
	// MaxPages bounds the walk; zero means until the last page.
	MaxPages int

	Indicator   time.Duration // wait for the page indicator to change
	Fingerprint time.Duration // wait for the first codes to change
	Results     time.Duration // wait for listing items
	Poll        time.Duration
	Settle      time.Duration

	Capturer Capturer
	// Snapshots stores every page's HTML through Capturer.
	Snapshots bool
	Logger    *slog.Logger
}

func (o *Options) defaults() {
	if o.PageSize <= 0 {
		o.PageSize = 30
	}
	if o.FingerprintN <= 0 {
		o.FingerprintN = 10
	}
	if o.SearchSeed == "" {
		o.SearchSeed = "10"
	}
	if o.Indicator <= 0 {
		o.Indicator = 15 * time.Second
	}
	if o.Fingerprint <= 0 {
		o.Fingerprint = 25 * time.Second
	}
	if o.Results <= 0 {
		o.Results = 15 * time.Second
	}
	if o.Poll <= 0 {
		o.Poll = 500 * time.Millisecond
	}
	if o.Settle <= 0 {
		o.Settle = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Cursor is the crawler position, advanced once per emitted page.
type Cursor struct {
	PageIndex       int
	LastFingerprint string
	// TotalExpected and PagesExpected come from the listing counters and are
	// only used for reconciliation.
	TotalExpected *int
	PagesExpected *int
}

// Summary reports a finished crawl.
type Summary struct {
	Pages         int
	Codes         int
	TotalExpected *int
	PagesExpected *int
	// Stalled is true when the listing stopped changing before the last page.
	Stalled bool
	Reason  string
	Elapsed time.Duration
}

// Crawler walks the listing.
type Crawler struct {
	opts Options
}

// New creates a Crawler.
func New(opts Options) *Crawler {
	opts.defaults()
	return &Crawler{opts: opts}
}

// Run opens the listing on page and walks it to the end, calling emit once
// per page. A stall ends the walk without error; only emit failures and
// listing setup failures are returned.
func (c *Crawler) Run(ctx context.Context, page browser.Page, emit EmitFunc) (sum Summary, err error) {
	start := time.Now()
	log := c.opts.Logger
	defer func() { sum.Elapsed = time.Since(start) }()

	if err := c.open(ctx, page); err != nil {
		return sum, fmt.Errorf("crawl: open listing: %w", err)
	}

	cur := Cursor{}
	cur.TotalExpected, cur.PagesExpected = c.counters(ctx, page)
	sum.TotalExpected, sum.PagesExpected = cur.TotalExpected, cur.PagesExpected
	log.Info("crawl: listing open", "total", deref(cur.TotalExpected), "pages", deref(cur.PagesExpected))

	for {
		codes := c.items(ctx, page)
		if len(codes) == 0 {
			sum.Reason = "no items"
			break
		}
		fp := c.fingerprint(codes)
		if cur.PageIndex > 0 && fp == cur.LastFingerprint {
			log.Warn("crawl: listing shows the previous page again", "page", cur.PageIndex)
			codes = c.settle(ctx, page, fp)
			if codes == nil {
				c.stall(ctx, page, &sum, cur.PageIndex)
				break
			}
			fp = c.fingerprint(codes)
		}
		cur.PageIndex++
		cur.LastFingerprint = fp

		if c.opts.Snapshots && c.opts.Capturer != nil {
			c.opts.Capturer.Snapshot(ctx, page, fmt.Sprintf("output_page_%d", cur.PageIndex))
		}
		if err := emit(ctx, cur.PageIndex, codes); err != nil {
			sum.Reason = "emit failed"
			return sum, fmt.Errorf("crawl: emit page %d: %w", cur.PageIndex, err)
		}
		sum.Pages++
		sum.Codes += len(codes)
		log.Info("crawl: page", "page", cur.PageIndex, "codes", len(codes))

		if c.opts.MaxPages > 0 && cur.PageIndex >= c.opts.MaxPages {
			sum.Reason = "max pages"
			break
		}
		if c.nextDisabled(ctx, page) {
			sum.Reason = "last page"
			break
		}
		if err := ctx.Err(); err != nil {
			sum.Reason = "cancelled"
			return sum, err
		}
		if !c.advance(ctx, page, fp) {
			c.stall(ctx, page, &sum, cur.PageIndex)
			break
		}
	}
	return sum, nil
}

// settle re-reads a listing that still shows fp until other codes appear.
// It returns nil when the listing keeps fp past the fingerprint timeout.
func (c *Crawler) settle(ctx context.Context, page browser.Page, fp string) []string {
	var codes []string
	changed := browser.Await(ctx, c.opts.Poll, c.opts.Fingerprint, func() bool {
		codes = c.items(ctx, page)
		return len(codes) > 0 && c.fingerprint(codes) != fp
	})
	if !changed {
		return nil
	}
	return codes
}

func (c *Crawler) stall(ctx context.Context, page browser.Page, sum *Summary, pageIndex int) {
	sum.Stalled = true
	sum.Reason = fmt.Sprintf("stalled after page %d", pageIndex)
	c.opts.Logger.Warn("crawl: listing stopped changing", "page", pageIndex)
	if c.opts.Capturer != nil {
		c.opts.Capturer.Capture(ctx, page, fmt.Sprintf("output_stopped_page_%d", pageIndex))
	}
}

// open reaches the listing the way a visitor does: footer link, seed
// search, chip removal, page size.
func (c *Crawler) open(ctx context.Context, page browser.Page) error {
	loc := c.opts.Locators
	log := c.opts.Logger

	if err := page.Navigate(ctx, c.opts.HomeURL); err != nil {
		return err
	}
	if err := page.ScrollTo(ctx, 1); err != nil {
		log.Debug("crawl: scroll to footer", "error", err)
	}
	if err := page.WaitFor(ctx, loc.FooterLink, browser.Visible, c.opts.Results); err != nil {
		return err
	}
	if err := browser.ClickOrForce(ctx, page, loc.FooterLink); err != nil {
		return err
	}
	if err := page.WaitFor(ctx, loc.FooterInput, browser.Visible, c.opts.Results); err != nil {
		return err
	}
	if err := page.Fill(ctx, loc.FooterInput, c.opts.SearchSeed); err != nil {
		return err
	}
	if err := page.Press(ctx, loc.FooterInput, browser.KeyEnter); err != nil {
		return err
	}
	if err := page.Settle(ctx, c.opts.Settle); err != nil {
		log.Debug("crawl: settle after seed search", "error", err)
	}

	if n, _ := page.Count(ctx, loc.SearchChip); n > 0 {
		if err := browser.ClickOrForce(ctx, page, loc.SearchChip); err != nil {
			log.Debug("crawl: remove search chip", "error", err)
		}
	}
	if err := page.ScrollIntoView(ctx, loc.ListingContainer); err != nil {
		log.Debug("crawl: scroll to listing", "error", err)
	}

	if err := page.WaitFor(ctx, loc.PageSize, browser.Attached, c.opts.Results); err == nil {
		if err := page.SelectOption(ctx, loc.PageSize, strconv.Itoa(c.opts.PageSize)); err != nil {
			log.Warn("crawl: set page size", "error", err)
		}
	} else {
		log.Warn("crawl: page size selector missing", "error", err)
	}

	full := browser.Await(ctx, c.opts.Poll, c.opts.Results, func() bool {
		return len(c.items(ctx, page)) >= c.opts.PageSize || c.nextDisabled(ctx, page)
	})
	if !full {
		log.Debug("crawl: first page not full", "items", len(c.items(ctx, page)))
	}
	return ctx.Err()
}

// advance clicks next and waits for a different page of codes.
func (c *Crawler) advance(ctx context.Context, page browser.Page, fp string) bool {
	loc := c.opts.Locators
	log := c.opts.Logger

	before, _ := page.Text(ctx, loc.Indicator)
	if err := browser.ClickOrForce(ctx, page, loc.NextLink); err != nil {
		log.Warn("crawl: click next", "error", err)
		return false
	}
	if before != "" {
		moved := browser.Await(ctx, c.opts.Poll, c.opts.Indicator, func() bool {
			after, err := page.Text(ctx, loc.Indicator)
			return err == nil && after != before
		})
		if !moved {
			log.Debug("crawl: indicator unchanged", "indicator", before)
		}
	}
	if err := page.Settle(ctx, c.opts.Settle); err != nil {
		log.Debug("crawl: settle after next", "error", err)
	}
	if err := page.WaitFor(ctx, loc.Items, browser.Attached, c.opts.Results); err != nil {
		log.Debug("crawl: wait for items", "error", err)
	}
	return browser.Await(ctx, c.opts.Poll, c.opts.Fingerprint, func() bool {
		codes := c.items(ctx, page)
		return len(codes) > 0 && c.fingerprint(codes) != fp
	})
}

// items returns the pure-digit texts of the listing items.
func (c *Crawler) items(ctx context.Context, page browser.Page) []string {
	texts, err := page.Texts(ctx, c.opts.Locators.Items)
	if err != nil {
		return nil
	}
	var codes []string
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if record.IsCode(t) {
			codes = append(codes, t)
		}
	}
	return codes
}

func (c *Crawler) fingerprint(codes []string) string {
	return Fingerprint(codes, c.opts.FingerprintN)
}

// Fingerprint joins the first n codes with "|".
func Fingerprint(codes []string, n int) string {
	if len(codes) > n {
		codes = codes[:n]
	}
	return strings.Join(codes, "|")
}

// nextDisabled reports whether the next control is disabled or absent.
func (c *Crawler) nextDisabled(ctx context.Context, page browser.Page) bool {
	next := c.opts.Locators.NextItem
	if n, err := page.Count(ctx, next); err != nil || n == 0 {
		return true
	}
	class, _, err := page.Attribute(ctx, next, "class")
	if err != nil {
		return true
	}
	return strings.Contains(class, "disabled")
}

var (
	indicatorRe = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
	totalRe     = regexp.MustCompile(`(\d[\d,]*)`)
)

// counters reads the result total and the page count, when shown.
func (c *Crawler) counters(ctx context.Context, page browser.Page) (total, pages *int) {
	loc := c.opts.Locators
	if s, err := page.Text(ctx, loc.Total); err == nil {
		total = ParseTotal(s)
	}
	if s, err := page.Text(ctx, loc.Indicator); err == nil {
		if _, p, ok := ParseIndicator(s); ok {
			pages = &p
		}
	}
	if pages == nil && total != nil {
		p := (*total + c.opts.PageSize - 1) / c.opts.PageSize
		pages = &p
	}
	return total, pages
}

// ParseIndicator reads "Page X / Y".
func ParseIndicator(s string) (page, pages int, ok bool) {
	m := indicatorRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	page, _ = strconv.Atoi(m[1])
	pages, _ = strconv.Atoi(m[2])
	return page, pages, true
}

// ParseTotal reads the first number of a counter, ignoring thousands
// separators.
func ParseTotal(s string) *int {
	m := totalRe.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return nil
	}
	return &n
}

func deref(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
