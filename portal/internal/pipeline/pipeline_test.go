package pipeline_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/baextract/portal/internal/assemble"
	"github.com/hazyhaar/baextract/portal/internal/browser"
	"github.com/hazyhaar/baextract/portal/internal/browser/browsertest"
	"github.com/hazyhaar/baextract/portal/internal/config"
	"github.com/hazyhaar/baextract/portal/internal/pipeline"
	"github.com/hazyhaar/baextract/portal/internal/portaltest"
	"github.com/hazyhaar/baextract/portal/record"
)

type captures struct {
	mu    sync.Mutex
	names []string
}

func (c *captures) Capture(_ context.Context, _ browser.Page, name string) {
	c.mu.Lock()
	c.names = append(c.names, name)
	c.mu.Unlock()
}

func testConfig() *config.Config {
	cfg := portaltest.Config()
	cfg.Timeouts.LangPoll = time.Millisecond
	cfg.Timeouts.LangDeadline = 10 * time.Millisecond
	return cfg
}

func newPipeline(cfg *config.Config) (*pipeline.Pipeline, *captures) {
	c := &captures{}
	return assemble.Pipeline(cfg, c, nil), c
}

var (
	bakeryEN = portaltest.Detail{
		Lang:        "en",
		Code:        "007",
		Name:        "Bakery",
		Locations:   [][3]string{{"Commercial", "Shop", "500"}},
		Eligibility: []string{"Qatari nationals"},
		Heading:     true,
		Approvals:   [][2]string{{"1. Fire Safety", "Civil Defence"}},
	}
	bakeryAR = portaltest.Detail{
		Lang:        "ar",
		Code:        "007",
		Name:        "مخبز",
		Locations:   [][3]string{{"تجاري", "محل", "500"}},
		Eligibility: []string{"القطريون"},
		Heading:     true,
		Approvals:   [][2]string{{"1. الدفاع المدني", "وزارة الداخلية"}},
	}
)

// bilingual serves en at the detail URL; the language toggle flips between
// the two documents.
func bilingual(cfg *config.Config, en, ar portaltest.Detail) *browsertest.Page {
	docs := map[string]string{"en": en.HTML(), "ar": ar.HTML()}
	cur := "en"
	p := browsertest.New()
	p.RouteFunc(cfg.DetailURL(en.Code), func() string {
		cur = "en"
		return docs["en"]
	})
	p.On(browsertest.Click, cfg.Locators.LangToggle, func(p *browsertest.Page) (browser.Page, error) {
		if cur == "en" {
			cur = "ar"
		} else {
			cur = "en"
		}
		p.Load(docs[cur])
		return nil, nil
	})
	return p
}

func TestProcess_BilingualRecord(t *testing.T) {
	cfg := testConfig()
	pl, caps := newPipeline(cfg)
	p := bilingual(cfg, bakeryEN, bakeryAR)

	res, owned := pl.Process(context.Background(), p, "007")
	if !res.OK() {
		t.Fatalf("failure: %+v", res.Failure)
	}
	if owned != browser.Page(p) || p.Closed() {
		t.Error("direct hit keeps the caller's page open and owned")
	}
	rec := *res.Record
	if rec.Code() != "007" || rec.Name(record.Primary) != "Bakery" || rec.Name(record.Secondary) != "مخبز" {
		t.Errorf("names = %v code %q", rec.Names(), rec.Code())
	}
	if diff := cmp.Diff([]record.Location{{Main: "Commercial", Sub: "Shop", Fee: "500"}}, rec.Locations()); diff != "" {
		t.Errorf("locations read in the primary language (-want +got):\n%s", diff)
	}
	if got := rec.Approvals(); len(got) != 1 || got[0].Title != "Fire Safety" {
		t.Errorf("approvals = %+v", got)
	}
	if res.Strategy != record.StrategyDirect || res.UsedFallback {
		t.Errorf("strategy = %q fallback %v", res.Strategy, res.UsedFallback)
	}
	if n := p.Did(browsertest.Click, cfg.Locators.LangToggle); n != 2 {
		t.Errorf("toggle clicked %d times, want 2 (there and back)", n)
	}
	if lang, _ := p.Lang(context.Background()); lang != "en" {
		t.Errorf("page left in %q", lang)
	}
	if len(caps.names) != 0 {
		t.Errorf("captures on success: %v", caps.names)
	}
}

func TestProcess_ArabicLocaleSwapsLanguages(t *testing.T) {
	cfg := testConfig()
	if err := cfg.SetLocale("ar"); err != nil {
		t.Fatal(err)
	}
	pl, _ := newPipeline(cfg)
	p := bilingual(cfg, bakeryEN, bakeryAR)

	res, _ := pl.Process(context.Background(), p, "007")
	if !res.OK() {
		t.Fatalf("failure: %+v", res.Failure)
	}
	rec := *res.Record
	if rec.Name(record.Primary) != "مخبز" || rec.Name(record.Secondary) != "Bakery" {
		t.Errorf("names = %v", rec.Names())
	}
	if rec.Locations()[0].Main != "تجاري" {
		t.Errorf("locations = %+v", rec.Locations())
	}
}

func TestProcess_SecondaryUnavailable(t *testing.T) {
	cfg := testConfig()
	pl, _ := newPipeline(cfg)
	p := browsertest.New()
	p.Route(cfg.DetailURL("007"), bakeryEN.HTML())

	res, _ := pl.Process(context.Background(), p, "007")
	if !res.OK() {
		t.Fatalf("failure: %+v", res.Failure)
	}
	if got := res.Record.Name(record.Secondary); got != "Language unavailable" {
		t.Errorf("secondary name = %q", got)
	}
}

func TestProcess_MissingCodeFails(t *testing.T) {
	cfg := testConfig()
	pl, caps := newPipeline(cfg)
	p := browsertest.New()
	p.Route(cfg.DetailURL("123"), portaltest.Detail{Lang: "en", Name: "Orphan"}.HTML())

	res, _ := pl.Process(context.Background(), p, "123")
	if res.OK() || res.Failure.Kind != record.KindElementAbsent || res.Failure.Code != "123" {
		t.Fatalf("result = %+v", res)
	}
	if diff := cmp.Diff([]string{"error_123"}, caps.names); diff != "" {
		t.Errorf("captures (-want +got):\n%s", diff)
	}
}

func TestProcess_NavigationFailureKinds(t *testing.T) {
	tests := []struct {
		name  string
		codes []string
		want  record.Kind
	}{
		{"no candidates", nil, record.KindNavigation},
		{"no exact match", []string{"1230", "4123"}, record.KindAmbiguous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			pl, _ := newPipeline(cfg)
			p := browsertest.New()
			p.Route(cfg.DetailURL("123"), portaltest.Home("en"))
			p.Route(cfg.HomeURL("en"), portaltest.Home("en"))
			p.Route("/business-activities", portaltest.Listing{}.HTML())
			p.LoadOn(browsertest.Click, cfg.Locators.SearchButton, portaltest.Listing{Codes: tt.codes}.HTML())

			res, owned := pl.Process(context.Background(), p, "123")
			if res.OK() || res.Failure.Kind != tt.want {
				t.Fatalf("result = %+v", res.Failure)
			}
			if owned != browser.Page(p) {
				t.Error("failure hands back the caller's page")
			}
		})
	}
}

func TestProcess_PopupTransfersOwnership(t *testing.T) {
	cfg := testConfig()
	pl, _ := newPipeline(cfg)

	p := browsertest.New()
	p.Route(cfg.DetailURL("123"), portaltest.Home("en"))
	p.Route(cfg.HomeURL("en"), portaltest.Home("en"))
	p.Route("/business-activities", portaltest.Listing{}.HTML())
	p.LoadOn(browsertest.Click, cfg.Locators.SearchButton, portaltest.Listing{Codes: []string{"456", "123"}}.HTML())

	en, ar := bakeryEN, bakeryAR
	en.Code, ar.Code = "123", "123"
	popup := bilingual(cfg, en, ar)
	popup.Load(en.HTML())
	p.On(browsertest.Click, cfg.Locators.ResultLinks+"#1", func(*browsertest.Page) (browser.Page, error) {
		return popup, nil
	})

	res, owned := pl.Process(context.Background(), p, "123")
	if !res.OK() {
		t.Fatalf("failure: %+v", res.Failure)
	}
	if owned != browser.Page(popup) || !p.Closed() || popup.Closed() {
		t.Error("the new tab must be owned and the superseded page closed")
	}
	if !res.UsedFallback || res.Strategy != record.StrategyFooter {
		t.Errorf("strategy = %q fallback %v", res.Strategy, res.UsedFallback)
	}
	if res.Record.Name(record.Secondary) != "مخبز" {
		t.Errorf("names = %v", res.Record.Names())
	}
}
