// Package portal extracts business activity records from the government
// investor portal. It drives a stealth Chrome (or plain HTTP) through the
// portal's search flows, reads every detail field in both display
// languages and delivers the results to sinks: stdout, JSON lines files,
// SQLite or a Google spreadsheet.
//
// One Engine serves single lookups, batch runs over many codes and the
// crawl of the full paginated listing.
package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/hazyhaar/baextract/portal/internal/assemble"
	"github.com/hazyhaar/baextract/portal/internal/batch"
	"github.com/hazyhaar/baextract/portal/internal/browser"
	"github.com/hazyhaar/baextract/portal/internal/config"
	"github.com/hazyhaar/baextract/portal/internal/crawl"
	"github.com/hazyhaar/baextract/portal/internal/diag"
	"github.com/hazyhaar/baextract/portal/internal/pipeline"
	"github.com/hazyhaar/baextract/portal/internal/report"
	"github.com/hazyhaar/baextract/portal/internal/sink"
	"github.com/hazyhaar/baextract/portal/internal/store"
	"github.com/hazyhaar/baextract/portal/record"
)

// Result is the outcome of one code.
type Result = record.Result

// Input is one code of a batch, with its row in a tabular source.
type Input = batch.Input

// BatchSummary is the tally of a batch run.
type BatchSummary = batch.Summary

// CrawlSummary reports a finished crawl.
type CrawlSummary = crawl.Summary

// ErrNoInput is returned by Inputs when no code source is configured.
var ErrNoInput = errors.New("portal: no code source (batch.codes_file, a sheets sink or a crawled store)")

// Engine is the top-level orchestrator. It owns the browser, the record
// pipeline and the sinks.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	mgr      *browser.Manager
	tabs     batch.Tabs
	recycler batch.Recycler

	router  *sink.Router
	pipe    *pipeline.Pipeline
	crawler *crawl.Crawler
	format  sink.Format
	newID   func() string

	// mu serialises lookups on the shared lookup page.
	mu   sync.Mutex
	page browser.Page

	stMu sync.Mutex
	st   *store.Store
}

// New creates an Engine from configuration. Call Start before the first
// lookup.
func New(cfg *Config, logger *slog.Logger, sinks ...Sink) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	capt := diag.New(cfg.Diag.Dir, cfg.Diag.Screenshots, logger)

	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		router:  sink.NewRouter(logger, sinks...),
		pipe:    assemble.Pipeline(cfg, capt, logger),
		crawler: assemble.Crawler(cfg, capt, logger),
		format:  format(cfg),
		newID:   func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	if browser.ParseStealth(cfg.Browser.Stealth) == browser.LevelHTTP {
		e.tabs = staticTabs{ua: cfg.Browser.UserAgent, logger: logger}
	} else {
		e.mgr = browser.NewManager(assemble.Browser(cfg, logger))
		e.tabs = e.mgr
		e.recycler = e.mgr
	}
	return e
}

// staticTabs opens HTTP-only pages.
type staticTabs struct {
	ua     string
	logger *slog.Logger
}

func (s staticTabs) NewPage(context.Context) (browser.Page, error) {
	return browser.NewStatic(browser.WithStaticLogger(s.logger), browser.WithStaticUserAgent(s.ua)), nil
}

// Config returns the engine configuration.
func (e *Engine) Config() *Config { return e.cfg }

// Start launches Chrome, or connects to the remote instance. It is a no-op
// at the http stealth level.
func (e *Engine) Start(ctx context.Context) error {
	if e.mgr == nil {
		return nil
	}
	if _, err := e.mgr.Start(ctx); err != nil {
		return fmt.Errorf("portal: start browser: %w", err)
	}
	return nil
}

// Close releases the lookup page, the browser, the store and the sinks.
func (e *Engine) Close() error {
	var errs []error
	e.mu.Lock()
	if e.page != nil {
		if err := e.page.Close(); err != nil {
			e.logger.Debug("portal: close lookup page", "error", err)
		}
		e.page = nil
	}
	e.mu.Unlock()

	if err := e.router.Close(); err != nil {
		errs = append(errs, err)
	}
	e.stMu.Lock()
	if e.st != nil {
		if err := e.st.Close(); err != nil {
			errs = append(errs, err)
		}
		e.st = nil
	}
	e.stMu.Unlock()
	if e.mgr != nil {
		if err := e.mgr.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Lookup resolves and extracts one code. It never returns an error: every
// failure is a Result carrying a classified record.Failure. Lookups are
// serialised on one reused page; nothing is sent to the sinks.
func (e *Engine) Lookup(ctx context.Context, code string) Result {
	code = record.NormalizeCode(code)
	if code == "" {
		return record.Failed(code, record.KindNavigation, "empty code")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.page == nil {
		p, err := e.tabs.NewPage(ctx)
		if err != nil {
			return record.Failed(code, record.KindNavigation, fmt.Sprintf("open tab: %v", err))
		}
		e.page = p
	}
	res, owned := e.pipe.Process(ctx, e.page, code)
	e.page = owned
	e.recycleLocked(ctx)
	return res
}

// recycleLocked restarts a stale browser between lookups. e.mu is held.
func (e *Engine) recycleLocked(ctx context.Context) {
	if e.recycler == nil || !e.recycler.Stale() {
		return
	}
	if e.page != nil {
		e.page.Close()
		e.page = nil
	}
	if err := e.recycler.Recycle(ctx); err != nil {
		e.logger.Warn("portal: recycle browser", "error", err)
	}
}

// Output renders res as the single-code JSON document.
func (e *Engine) Output(res Result) record.Output {
	return e.format.Output(res)
}

// store opens the run database on first use.
func (e *Engine) store() (*store.Store, error) {
	e.stMu.Lock()
	defer e.stMu.Unlock()
	if e.st != nil {
		return e.st, nil
	}
	st, err := store.Open(e.cfg.Batch.DBPath, store.WithMkdirAll())
	if err != nil {
		return nil, fmt.Errorf("portal: open store: %w", err)
	}
	e.st = st
	return st, nil
}

// withStore adds the run database to the configured sinks, so every run
// leaves its records and crawled codes behind for Stored and Inputs.
func (e *Engine) withStore(st *store.Store) sink.Sink {
	return sink.NewRouter(e.logger, e.router, sink.NewSQLite(st))
}

// Stored returns the last record saved for code in the run database, or
// nil when the code was never extracted.
func (e *Engine) Stored(ctx context.Context, code string) (*record.ActivityRecord, error) {
	st, err := e.store()
	if err != nil {
		return nil, err
	}
	return st.Record(ctx, record.NormalizeCode(code))
}

// Inputs returns the codes of the next batch: batch.codes_file when set,
// otherwise the input column of the first spreadsheet sink, otherwise the
// codes of the last crawl.
func (e *Engine) Inputs(ctx context.Context) ([]Input, error) {
	if path := e.cfg.Batch.CodesFile; path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("portal: open codes file: %w", err)
		}
		defer f.Close()
		return batch.ReadCodes(f)
	}
	if t, ok := e.router.Table(); ok {
		cells, err := t.ReadColumn(ctx, sink.ColSearch)
		if err != nil {
			return nil, fmt.Errorf("portal: read input column: %w", err)
		}
		return batch.FromColumn(cells), nil
	}
	st, err := e.store()
	if err != nil {
		return nil, err
	}
	codes, err := st.Codes(ctx)
	if err != nil {
		return nil, fmt.Errorf("portal: read crawled codes: %w", err)
	}
	if len(codes) == 0 {
		return nil, ErrNoInput
	}
	return batch.FromCodes(codes), nil
}

// RunBatch processes inputs with batch.workers tabs and delivers every
// result to the sinks. Per-code failures are counted in the summary; the
// error reports infrastructure failures or cancellation.
func (e *Engine) RunBatch(ctx context.Context, inputs []Input) (BatchSummary, error) {
	st, err := e.store()
	if err != nil {
		return BatchSummary{}, err
	}
	r := batch.New(batch.Options{
		Store:      st,
		Processor:  e.pipe,
		Tabs:       e.tabs,
		Recycler:   e.recycler,
		Sink:       e.withStore(st),
		Workers:    e.cfg.Batch.Workers,
		Visibility: e.cfg.Batch.Visibility,
		NewID:      e.newID,
		Logger:     e.logger,
	})
	return r.Run(ctx, inputs)
}

// Crawl walks the full activity listing on a fresh tab and delivers the
// codes of every page to the sinks.
func (e *Engine) Crawl(ctx context.Context) (CrawlSummary, error) {
	runID := e.newID()
	log := e.logger.With("run", runID)
	ctx = sink.WithRun(ctx, runID)

	st, err := e.store()
	if err != nil {
		return CrawlSummary{}, err
	}
	if err := st.StartRun(ctx, runID, "crawl"); err != nil {
		log.Warn("portal: record crawl start", "error", err)
	}

	page, err := e.tabs.NewPage(ctx)
	if err != nil {
		return CrawlSummary{}, fmt.Errorf("portal: open tab: %w", err)
	}
	defer page.Close()

	sum, err := e.crawler.Run(ctx, page, e.withStore(st).EmitCodes)
	if ferr := st.FinishRun(context.WithoutCancel(ctx), runID, sum); ferr != nil {
		log.Warn("portal: record crawl end", "error", ferr)
	}
	log.Info("portal: crawl finished",
		"pages", sum.Pages, "codes", sum.Codes, "complete", sum.Complete(), "reason", sum.Reason)
	return sum, err
}

// RecordReport renders res as a terminal table.
func (e *Engine) RecordReport(res Result) string {
	return report.Record(res, e.format.Text, e.format.Langs)
}

// BatchReport renders the tally of a batch and its failures.
func BatchReport(sum BatchSummary) string {
	out := report.Batch(sum)
	if len(sum.Failures) > 0 {
		out += "\n" + report.Failures(sum.Failures)
	}
	return out
}

// CrawlReport renders the reconciliation of a crawl.
func CrawlReport(sum CrawlSummary) string {
	return report.Crawl(sum)
}

// PageReport renders the codes of one listing page.
func PageReport(page int, codes []string) string {
	return report.Page(page, codes)
}
