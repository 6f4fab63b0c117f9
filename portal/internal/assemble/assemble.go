// Package assemble turns a Config into the engine's components: it parses
// the locator table once and hands every package the slice it reads.
package assemble

import (
	"log/slog"

	"github.com/hazyhaar/baextract/portal/internal/browser"
	"github.com/hazyhaar/baextract/portal/internal/config"
	"github.com/hazyhaar/baextract/portal/internal/crawl"
	"github.com/hazyhaar/baextract/portal/internal/extract"
	"github.com/hazyhaar/baextract/portal/internal/lang"
	"github.com/hazyhaar/baextract/portal/internal/navigate"
	"github.com/hazyhaar/baextract/portal/internal/pipeline"
)

var loc = browser.ParseLocator

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// Browser maps the browser section to a manager Config.
func Browser(cfg *config.Config, log *slog.Logger) browser.Config {
	b := cfg.Browser
	display := b.XvfbDisplay
	if b.Stealth == "visible" {
		display = ""
	}
	return browser.Config{
		RemoteURL:        b.Remote,
		Bin:              b.Bin,
		NoSandbox:        b.NoSandbox,
		MemoryLimit:      b.MemoryLimit,
		RecycleInterval:  b.RecycleInterval,
		ResourceBlocking: b.ResourceBlocking,
		Stealth:          browser.ParseStealth(b.Stealth),
		XvfbDisplay:      display,
		ClickTimeout:     b.ClickTimeout,
		Logger:           logger(log),
	}
}

// Navigator builds the three-strategy resolver.
func Navigator(cfg *config.Config, log *slog.Logger) *navigate.Navigator {
	l, t := cfg.Locators, cfg.Timeouts
	return navigate.New(navigate.Options{
		Locators: navigate.Locators{
			Anchor:           loc(l.Code),
			SearchIcon:       loc(l.SearchIcon),
			BusinessTab:      loc(l.BusinessTab),
			SearchInput:      loc(l.SearchInput),
			SearchResults:    loc(l.SearchResults),
			SearchFirst:      loc(l.SearchFirst),
			FooterLink:       loc(l.FooterLink),
			FooterInput:      loc(l.FooterInput),
			FooterContainer:  loc(l.FooterContainer),
			SearchButton:     loc(l.SearchButton),
			ResultsContainer: loc(l.ResultsContainer),
			ResultLinks:      loc(l.ResultLinks),
		},
		DetailURL:    cfg.DetailURL,
		HomeURL:      cfg.HomeURL(cfg.Languages()[0]),
		Direct:       t.Direct,
		SearchStep:   t.SearchStep,
		SearchAnchor: t.SearchAnchor,
		Footer:       t.Footer,
		FooterAnchor: t.FooterAnchor,
		Popup:        t.Popup,
		Logger:       logger(log),
	})
}

// Lang builds the language controller for the configured locale.
func Lang(cfg *config.Config, log *slog.Logger) *lang.Controller {
	t := cfg.Timeouts
	return lang.New(lang.Options{
		Toggle:        loc(cfg.Locators.LangToggle),
		Codes:         cfg.Languages(),
		ToggleTimeout: t.LangToggle,
		Poll:          t.LangPoll,
		Deadline:      t.LangDeadline,
		Settle:        t.Settle,
		Logger:        logger(log),
	})
}

// Extractor builds the detail page field reader.
func Extractor(cfg *config.Config, log *slog.Logger) *extract.Extractor {
	l := cfg.Locators
	headings := make([]browser.Locator, 0, len(l.ApprovalsHeading))
	for _, h := range l.ApprovalsHeading {
		headings = append(headings, loc(h))
	}
	return extract.New(extract.Options{
		Locators: extract.Locators{
			Code:             loc(l.Code),
			Name:             loc(l.Name),
			LocationBody:     loc(l.LocationBody),
			EligibilityList:  loc(l.EligibilityList),
			NoApproval:       loc(l.NoApproval),
			ApprovalsHeading: headings,
			ApprovalHeader:   loc(l.ApprovalHeader),
			ApprovalAgency:   loc(l.ApprovalAgency),
		},
		Anchor:       cfg.Timeouts.Anchor,
		Eligibility:  cfg.Timeouts.Eligibility,
		MaxApprovals: cfg.Portal.MaxApprovals,
		Logger:       logger(log),
	})
}

// Pipeline wires navigation, language control and extraction. capt may be
// nil.
func Pipeline(cfg *config.Config, capt pipeline.Capturer, log *slog.Logger) *pipeline.Pipeline {
	return pipeline.New(pipeline.Options{
		Resolver:  Navigator(cfg, log),
		Switcher:  Lang(cfg, log),
		Extractor: Extractor(cfg, log),
		Text:      cfg.PrimaryText(),
		Capturer:  capt,
		Logger:    logger(log),
	})
}

// Crawler builds the listing crawler. capt may be nil.
func Crawler(cfg *config.Config, capt crawl.Capturer, log *slog.Logger) *crawl.Crawler {
	l, t, c := cfg.Locators, cfg.Timeouts, cfg.Crawl
	return crawl.New(crawl.Options{
		Locators: crawl.Locators{
			FooterLink:       loc(l.FooterLink),
			FooterInput:      loc(l.FooterInput),
			SearchChip:       loc(l.SearchChip),
			ListingContainer: loc(l.ListingContainer),
			PageSize:         loc(l.PageSize),
			Items:            loc(l.ListingItems),
			NextItem:         loc(l.NextItem),
			NextLink:         loc(l.NextLink),
			Indicator:        loc(l.PageIndicator),
			Total:            loc(l.TotalCount),
		},
		HomeURL:      cfg.HomeURL(cfg.Languages()[0]),
		PageSize:     c.PageSize,
		FingerprintN: c.FingerprintN,
		SearchSeed:   c.SearchSeed,
		MaxPages:     c.MaxPages,
		Indicator:    t.Indicator,
		Fingerprint:  t.Fingerprint,
		Results:      t.Results,
		Poll:         t.PagePoll,
		Settle:       t.Settle,
		Capturer:     capt,
		Snapshots:    c.Snapshots,
		Logger:       logger(log),
	})
}
