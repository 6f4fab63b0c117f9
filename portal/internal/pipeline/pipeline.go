// Package pipeline turns one activity code into one result: navigate to the
// detail page, read the fields in both languages, build the record.
//
// Process never returns an error. Every failure becomes a record.Failure
// carrying the code and a classified kind, so a batch can move on.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/baextract/portal/internal/browser"
	"github.com/hazyhaar/baextract/portal/internal/extract"
	"github.com/hazyhaar/baextract/portal/internal/navigate"
	"github.com/hazyhaar/baextract/portal/record"
)

// Resolver brings a page to the detail view of a code.
type Resolver interface {
	Resolve(ctx context.Context, page browser.Page, code string) navigate.Outcome
}

// Switcher forces the display language.
type Switcher interface {
	Ensure(ctx context.Context, page browser.Page, target record.Language) bool
}

// Capturer stores diagnostic artifacts of a page.
type Capturer interface {
	Capture(ctx context.Context, page browser.Page, name string)
}

// Options configures a Pipeline.
type Options struct {
	Resolver  Resolver
	Switcher  Switcher
	Extractor *extract.Extractor
	// Text holds the primary language's sentinels.
	Text record.Text
	// Capturer, when set, receives the page of every failed code.
	Capturer Capturer
	Logger   *slog.Logger
}

// Pipeline processes codes one at a time on a caller-owned page.
type Pipeline struct {
	opts Options
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{opts: opts}
}

// Process resolves and extracts code on page. It returns the result and the
// page the caller owns afterwards: when the detail view opened in a new tab
// that tab is returned and page is closed once extraction is over.
func (p *Pipeline) Process(ctx context.Context, page browser.Page, code string) (record.Result, browser.Page) {
	start := time.Now()
	log := p.opts.Logger.With("code", code)

	out := p.opts.Resolver.Resolve(ctx, page, code)
	active := out.Page
	if active == nil {
		active = page
	}

	var res record.Result
	if !out.OK() {
		err := out.Err()
		res = record.Failed(code, navigationKind(ctx, err), err.Error())
	} else {
		rec, err := p.extract(ctx, active, code)
		if err != nil {
			res = record.Failed(code, extractionKind(ctx, err), err.Error())
		} else {
			res = record.Succeeded(rec, strategy(out.Kind))
		}
	}
	res.Elapsed = time.Since(start)

	if !res.OK() {
		log.Warn("pipeline: code failed", "kind", res.Failure.Kind, "reason", res.Failure.Reason)
		if p.opts.Capturer != nil {
			p.opts.Capturer.Capture(ctx, active, "error_"+code)
		}
	} else {
		log.Info("pipeline: record extracted", "strategy", res.Strategy, "elapsed", res.Elapsed)
	}

	if active != page {
		if err := page.Close(); err != nil {
			log.Debug("pipeline: close superseded page", "error", err)
		}
	}
	return res, active
}

func (p *Pipeline) extract(ctx context.Context, page browser.Page, code string) (record.ActivityRecord, error) {
	sw, ex := p.opts.Switcher, p.opts.Extractor
	text := p.opts.Text
	log := p.opts.Logger.With("code", code)

	if !sw.Ensure(ctx, page, record.Primary) {
		log.Warn("pipeline: primary language not confirmed")
	}
	read, err := ex.Code(ctx, page)
	if err != nil {
		return record.ActivityRecord{}, err
	}
	if read != code {
		log.Warn("pipeline: page code differs from requested code", "page_code", read)
	}
	b := record.NewBuilder(read)

	sw.Ensure(ctx, page, record.Primary)
	primary, err := ex.Name(ctx, page)
	if err != nil {
		return record.ActivityRecord{}, err
	}
	b.Name(record.Primary, primary)

	secondary := text.Sentinels.Unavailable
	if sw.Ensure(ctx, page, record.Secondary) {
		if name, err := ex.Name(ctx, page); err == nil {
			secondary = name
		} else {
			log.Warn("pipeline: secondary name", "error", err)
		}
	}
	b.Name(record.Secondary, secondary)

	if !sw.Ensure(ctx, page, record.Primary) {
		log.Warn("pipeline: could not return to primary language")
	}

	locs, err := ex.Locations(ctx, page)
	if err != nil {
		return record.ActivityRecord{}, err
	}
	b.Locations(locs)
	b.Eligibility(ex.Eligibility(ctx, page, text.Sentinels))
	ap := ex.Approvals(ctx, page, text)
	b.Approvals(ap.Status, ap.Entries, ap.Note)

	return b.Build()
}

func strategy(k navigate.Kind) record.Strategy {
	switch k {
	case navigate.DirectHit:
		return record.StrategyDirect
	case navigate.SearchSingle:
		return record.StrategySearch
	case navigate.SearchAmbiguous:
		return record.StrategyFooter
	}
	return record.StrategyNone
}

func navigationKind(ctx context.Context, err error) record.Kind {
	switch {
	case ctx.Err() != nil:
		return record.KindCancelled
	case errors.Is(err, navigate.ErrAmbiguousMatch):
		return record.KindAmbiguous
	}
	return record.KindNavigation
}

func extractionKind(ctx context.Context, err error) record.Kind {
	switch {
	case ctx.Err() != nil:
		return record.KindCancelled
	case errors.Is(err, browser.ErrTimeout):
		return record.KindTimeout
	}
	return record.KindElementAbsent
}
