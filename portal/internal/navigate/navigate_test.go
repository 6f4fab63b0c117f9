package navigate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/baextract/portal/internal/browser"
	"github.com/hazyhaar/baextract/portal/internal/browser/browsertest"
	"github.com/hazyhaar/baextract/portal/internal/portaltest"
)

var cfg = portaltest.Config()

func newNavigator() *Navigator {
	l := cfg.Locators
	p := browser.ParseLocator
	return New(Options{
		Locators: Locators{
			Anchor:           p(l.Code),
			SearchIcon:       p(l.SearchIcon),
			BusinessTab:      p(l.BusinessTab),
			SearchInput:      p(l.SearchInput),
			SearchResults:    p(l.SearchResults),
			SearchFirst:      p(l.SearchFirst),
			FooterLink:       p(l.FooterLink),
			FooterInput:      p(l.FooterInput),
			FooterContainer:  p(l.FooterContainer),
			SearchButton:     p(l.SearchButton),
			ResultsContainer: p(l.ResultsContainer),
			ResultLinks:      p(l.ResultLinks),
		},
		DetailURL: cfg.DetailURL,
		HomeURL:   cfg.HomeURL("en"),
	})
}

func detail(code string) string {
	return portaltest.Detail{Code: code, Name: "Activity " + code}.HTML()
}

// footerPage scripts a page on which direct addressing and the header
// search both miss, and the footer search lists codes.
func footerPage(code string, codes ...string) *browsertest.Page {
	p := browsertest.New()
	p.Route(cfg.DetailURL(code), portaltest.Home("en"))
	p.Route(cfg.HomeURL("en"), portaltest.Home("en"))
	p.Route("/business-activities", portaltest.Listing{}.HTML())
	p.LoadOn(browsertest.Click, cfg.Locators.SearchButton, portaltest.Listing{Codes: codes}.HTML())
	return p
}

func TestResolve_DirectHitShortCircuits(t *testing.T) {
	p := browsertest.New()
	p.Route(cfg.DetailURL("007"), detail("007"))

	out := newNavigator().Resolve(context.Background(), p, "007")
	if out.Kind != DirectHit || out.Page != browser.Page(p) || out.Err() != nil {
		t.Fatalf("outcome = %+v", out)
	}
	if got := p.Actions(); len(got) != 1 || got[0] != "navigate "+cfg.DetailURL("007") {
		t.Errorf("actions = %v, want the single direct navigation", got)
	}
}

func TestResolve_SearchSingle(t *testing.T) {
	p := browsertest.New()
	p.Route(cfg.DetailURL("351009"), portaltest.Home("en"))
	p.LoadOn(browsertest.Fill, cfg.Locators.SearchInput,
		portaltest.Home("en", portaltest.Candidate{Code: "351009", Name: "Bakery"}))
	p.LoadOn(browsertest.Click, cfg.Locators.SearchFirst, detail("351009"))

	out := newNavigator().Resolve(context.Background(), p, "351009")
	if out.Kind != SearchSingle || !out.OK() {
		t.Fatalf("outcome = %+v", out)
	}
	if p.Did(browsertest.Fill, cfg.Locators.SearchInput) != 1 || p.Did(browsertest.Navigate, cfg.HomeURL("en")) != 0 {
		t.Errorf("actions = %v", p.Actions())
	}
}

func TestResolve_AmbiguousPicksExactMatchInNewTab(t *testing.T) {
	p := footerPage("123", "456", "123", "1234")
	p.LoadOn(browsertest.Fill, cfg.Locators.SearchInput, portaltest.Home("en",
		portaltest.Candidate{Code: "123"}, portaltest.Candidate{Code: "456"}))

	popup := browsertest.New()
	popup.Load(detail("123"))
	p.On(browsertest.Click, cfg.Locators.ResultLinks+"#1", func(*browsertest.Page) (browser.Page, error) {
		return popup, nil
	})

	out := newNavigator().Resolve(context.Background(), p, "123")
	if out.Kind != SearchAmbiguous {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Page != browser.Page(popup) {
		t.Error("the new tab must become the owned page")
	}
	if diff := cmp.Diff([]string{"456", "123", "1234"}, out.Candidates); diff != "" {
		t.Errorf("candidates (-want +got):\n%s", diff)
	}
	if p.Closed() {
		t.Error("the superseded page is closed by its owner, not the navigator")
	}
	if p.Did(browsertest.Press, cfg.Locators.FooterInput) != 1 {
		t.Errorf("footer search not submitted: %v", p.Actions())
	}
}

func TestResolve_FooterFailures(t *testing.T) {
	tests := []struct {
		name    string
		codes   []string
		reason  string
		wantErr error
	}{
		{"no exact match", []string{"456", "1230"}, ReasonNoExactMatch, ErrAmbiguousMatch},
		{"no results", nil, ReasonNoResults, ErrNavigationExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := footerPage("123", tt.codes...)
			out := newNavigator().Resolve(context.Background(), p, "123")
			if out.Kind != Failed || out.Reason != tt.reason {
				t.Fatalf("outcome = %+v", out)
			}
			if !errors.Is(out.Err(), tt.wantErr) {
				t.Errorf("Err = %v, want %v", out.Err(), tt.wantErr)
			}
			if out.Page != browser.Page(p) {
				t.Error("failed outcome must hand back the original page")
			}
		})
	}
}

func TestResolve_CancelledStopsEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := footerPage("1", "1")
	out := newNavigator().Resolve(ctx, p, "1")
	if out.OK() {
		t.Fatalf("outcome = %+v", out)
	}
	if p.Did(browsertest.Navigate, cfg.HomeURL("en")) != 0 {
		t.Error("no further strategy after cancellation")
	}
}

func TestCodeFromHref(t *testing.T) {
	tests := []struct {
		href, want string
		ok         bool
	}{
		{"/ba/details?bacode=007", "007", true},
		{"https://x/details?lang=en&bacode=351009#top", "351009", true},
		{"/ba/details?xbacode=1", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := CodeFromHref(tt.href)
		if got != tt.want || ok != tt.ok {
			t.Errorf("CodeFromHref(%q) = %q, %v", tt.href, got, ok)
		}
	}
}
