package crawl

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/baextract/portal/internal/browser"
	"github.com/hazyhaar/baextract/portal/internal/browser/browsertest"
	"github.com/hazyhaar/baextract/portal/internal/portaltest"
)

var cfg = portaltest.Config()

type captures struct {
	mu        sync.Mutex
	captures  []string
	snapshots []string
}

func (c *captures) Capture(_ context.Context, _ browser.Page, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captures = append(c.captures, name)
}

func (c *captures) Snapshot(_ context.Context, _ browser.Page, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = append(c.snapshots, name)
}

func newCrawler(caps *captures) *Crawler {
	l := cfg.Locators
	p := browser.ParseLocator
	return New(Options{
		Locators: Locators{
			FooterLink:       p(l.FooterLink),
			FooterInput:      p(l.FooterInput),
			SearchChip:       p(l.SearchChip),
			ListingContainer: p(l.ListingContainer),
			PageSize:         p(l.PageSize),
			Items:            p(l.ListingItems),
			NextItem:         p(l.NextItem),
			NextLink:         p(l.NextLink),
			Indicator:        p(l.PageIndicator),
			Total:            p(l.TotalCount),
		},
		HomeURL:     cfg.HomeURL("en"),
		Indicator:   10 * time.Millisecond,
		Fingerprint: 10 * time.Millisecond,
		Results:     10 * time.Millisecond,
		Poll:        time.Millisecond,
		Capturer:    caps,
		Snapshots:   true,
	})
}

func codes(base, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(base + i)
	}
	return out
}

// listing scripts the way into the listing and returns the page. pages are
// shown in order, one per click on next.
func listing(pages []portaltest.Listing) *browsertest.Page {
	p := browsertest.New()
	p.Route(cfg.HomeURL("en"), portaltest.Home("en"))
	p.Route("/business-activities", portaltest.Listing{Chip: true}.HTML())
	p.LoadOn(browsertest.Press, cfg.Locators.FooterInput,
		portaltest.Listing{Chip: true, Codes: codes(9000, 10), Page: 1, Pages: 7}.HTML())
	p.LoadOn(browsertest.Select, cfg.Locators.PageSize, pages[0].HTML())

	idx := 0
	p.On(browsertest.Click, cfg.Locators.NextLink, func(p *browsertest.Page) (browser.Page, error) {
		if idx+1 < len(pages) {
			idx++
			p.Load(pages[idx].HTML())
		}
		return nil, nil
	})
	return p
}

type emitted struct {
	pages []int
	codes []string
}

func (e *emitted) emit(_ context.Context, page int, codes []string) error {
	e.pages = append(e.pages, page)
	e.codes = append(e.codes, codes...)
	return nil
}

func TestRun_ThreePagesToDisabledNext(t *testing.T) {
	pages := []portaltest.Listing{
		{Codes: codes(1000, 30), Page: 1, Pages: 3, Total: "70"},
		{Codes: codes(2000, 30), Page: 2, Pages: 3, Total: "70"},
		{Codes: codes(3000, 10), Page: 3, Pages: 3, Total: "70", NextDisabled: true},
	}
	p := listing(pages)
	caps := &captures{}
	var got emitted

	sum, err := newCrawler(caps).Run(context.Background(), p, got.emit)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, got.pages); diff != "" {
		t.Errorf("pages (-want +got):\n%s", diff)
	}
	if len(got.codes) != 70 || got.codes[0] != "1000" || got.codes[69] != "3009" {
		t.Errorf("emitted %d codes", len(got.codes))
	}
	if sum.Pages != 3 || sum.Codes != 70 || sum.Stalled || sum.Reason != "last page" {
		t.Errorf("summary = %+v", sum)
	}
	if !sum.Complete() {
		t.Errorf("checks = %+v", sum.Checks())
	}
	if n := p.Did(browsertest.Click, cfg.Locators.NextLink); n != 2 {
		t.Errorf("next clicked %d times, want 2", n)
	}
	if p.Did(browsertest.Fill, cfg.Locators.FooterInput+"=10") != 1 {
		t.Errorf("seed search missing: %v", p.Actions())
	}
	if p.Did(browsertest.Select, cfg.Locators.PageSize+"=30") != 1 {
		t.Errorf("page size not set: %v", p.Actions())
	}
	if diff := cmp.Diff([]string{"output_page_1", "output_page_2", "output_page_3"}, caps.snapshots); diff != "" {
		t.Errorf("snapshots (-want +got):\n%s", diff)
	}
}

func TestRun_StallStopsWithDiagnostic(t *testing.T) {
	pages := []portaltest.Listing{
		{Codes: codes(1000, 30), Page: 1, Pages: 3, Total: "70"},
	}
	p := listing(pages)
	caps := &captures{}
	var got emitted

	sum, err := newCrawler(caps).Run(context.Background(), p, got.emit)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !sum.Stalled || sum.Pages != 1 || len(got.pages) != 1 {
		t.Fatalf("summary = %+v, emitted %v", sum, got.pages)
	}
	if diff := cmp.Diff([]string{"output_stopped_page_1"}, caps.captures); diff != "" {
		t.Errorf("captures (-want +got):\n%s", diff)
	}
	if sum.Complete() {
		t.Error("a stalled crawl is not complete")
	}
	if got := sum.Checks()[0].Status(); got != "MISMATCH (Missing: 2)" {
		t.Errorf("pages status = %q", got)
	}
}

// staleListing serves the previous page's items on the reads after next
// was clicked for which stale returns true.
type staleListing struct {
	*browsertest.Page
	previous []string
	stale    func(read int) bool
	reads    int
}

func (s *staleListing) Texts(ctx context.Context, loc browser.Locator) ([]string, error) {
	if loc.Expr == cfg.Locators.ListingItems && s.Did(browsertest.Click, cfg.Locators.NextLink) > 0 {
		s.reads++
		if s.stale(s.reads) {
			return s.previous, nil
		}
	}
	return s.Page.Texts(ctx, loc)
}

func TestRun_RepeatedPageNotEmittedTwice(t *testing.T) {
	first := portaltest.Listing{Codes: codes(1000, 30), Page: 1, Pages: 2, Total: "40"}
	last := portaltest.Listing{Codes: codes(2000, 10), Page: 2, Pages: 2, Total: "40", NextDisabled: true}

	tests := []struct {
		name    string
		stale   func(read int) bool
		pages   []int
		codes   int
		stalled bool
	}{
		{"flickers back once", func(n int) bool { return n == 2 }, []int{1, 2}, 40, false},
		{"stuck on the previous page", func(n int) bool { return n >= 2 }, []int{1}, 30, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &staleListing{
				Page:     listing([]portaltest.Listing{first, last}),
				previous: first.Codes,
				stale:    tt.stale,
			}
			var got emitted
			sum, err := newCrawler(&captures{}).Run(context.Background(), p, got.emit)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if diff := cmp.Diff(tt.pages, got.pages); diff != "" {
				t.Errorf("pages (-want +got):\n%s", diff)
			}
			if len(got.codes) != tt.codes || sum.Stalled != tt.stalled {
				t.Errorf("emitted %d codes, summary %+v", len(got.codes), sum)
			}
			if len(got.codes) > 30 && got.codes[30] != "2000" {
				t.Errorf("second page starts with %s", got.codes[30])
			}
		})
	}
}

func TestRun_AbsentNextEndsWalk(t *testing.T) {
	p := listing([]portaltest.Listing{{Codes: codes(1, 5), NoNext: true}})
	var got emitted
	sum, err := newCrawler(&captures{}).Run(context.Background(), p, got.emit)
	if err != nil || sum.Pages != 1 || sum.Codes != 5 || sum.Stalled {
		t.Fatalf("summary = %+v, err %v", sum, err)
	}
	if sum.PagesExpected != nil || sum.TotalExpected != nil {
		t.Errorf("no counters shown, got %+v", sum)
	}
	if p.Did(browsertest.Click, cfg.Locators.NextLink) != 0 {
		t.Error("clicked an absent next control")
	}
}

func TestRun_EmitErrorStops(t *testing.T) {
	pages := []portaltest.Listing{
		{Codes: codes(1000, 30), Page: 1, Pages: 2},
		{Codes: codes(2000, 3), Page: 2, Pages: 2, NextDisabled: true},
	}
	boom := errors.New("sheet unavailable")
	_, err := newCrawler(&captures{}).Run(context.Background(), listing(pages),
		func(context.Context, int, []string) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestRun_OpenFailure(t *testing.T) {
	p := browsertest.New()
	_, err := newCrawler(&captures{}).Run(context.Background(), p, (&emitted{}).emit)
	if err == nil {
		t.Fatal("listing without a home route must fail")
	}
}

func TestFingerprintAndCounters(t *testing.T) {
	if got := Fingerprint(codes(1, 12), 10); got != "1|2|3|4|5|6|7|8|9|10" {
		t.Errorf("Fingerprint = %q", got)
	}
	if got := Fingerprint([]string{"7"}, 10); got != "7" {
		t.Errorf("short Fingerprint = %q", got)
	}

	if page, pages, ok := ParseIndicator("Page 2 / 117"); !ok || page != 2 || pages != 117 {
		t.Errorf("ParseIndicator = %d %d %v", page, pages, ok)
	}
	if _, _, ok := ParseIndicator("Page"); ok {
		t.Error("no numbers parsed as indicator")
	}
	for in, want := range map[string]int{"3,482 results": 3482, "70": 70} {
		if got := ParseTotal(in); got == nil || *got != want {
			t.Errorf("ParseTotal(%q) = %v", in, got)
		}
	}
	if ParseTotal("none") != nil {
		t.Error("ParseTotal without digits")
	}
}

func TestCheckStatus(t *testing.T) {
	n := func(v int) *int { return &v }
	tests := []struct {
		check Check
		want  string
	}{
		{Check{Expected: n(3), Actual: 3}, "OK"},
		{Check{Expected: n(3), Actual: 5}, "MISMATCH (Excess: 2)"},
		{Check{Expected: n(70), Actual: 60}, "MISMATCH (Missing: 10)"},
		{Check{Actual: 1}, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.check.Status(); got != tt.want {
			t.Errorf("%+v: Status = %q, want %q", tt.check, got, tt.want)
		}
	}
}
