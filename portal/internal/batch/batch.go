// Package batch runs the record pipeline over a list of codes with a pool
// of workers, each driving its own tab.
//
// Codes go through a SQLite visibility-timeout queue: a worker claims a
// code, processes it and acknowledges it whatever the outcome. Failures are
// results, not errors, so one bad code never stops the run.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/baextract/portal/internal/browser"
	"github.com/hazyhaar/baextract/portal/internal/sink"
	"github.com/hazyhaar/baextract/portal/internal/store"
	"github.com/hazyhaar/baextract/portal/record"
)

// Processor turns one code into one result on a page it is handed, and
// returns the page the caller owns afterwards.
type Processor interface {
	Process(ctx context.Context, page browser.Page, code string) (record.Result, browser.Page)
}

// Tabs opens pages for the workers. *browser.Manager implements it.
type Tabs interface {
	NewPage(ctx context.Context) (browser.Page, error)
}

// Recycler restarts the browser between records. *browser.Manager
// implements it.
type Recycler interface {
	Stale() bool
	Recycle(ctx context.Context) error
}

// Input is one code to process. Row is its row in a tabular source, 0 for
// other sources.
type Input struct {
	Row  int
	Code string
}

// Options configures a Runner.
type Options struct {
	Store     *store.Store
	Processor Processor
	Tabs      Tabs
	// Recycler is optional.
	Recycler Recycler
	Sink     sink.Sink

	Workers    int
	Visibility time.Duration
	// MaxAttempts bounds redeliveries of a code whose worker vanished.
	MaxAttempts int
	Poll        time.Duration
	// NewID generates run ids. Default: UUIDv7.
	NewID  func() string
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 2
	}
	if o.Poll <= 0 {
		o.Poll = 500 * time.Millisecond
	}
	if o.NewID == nil {
		o.NewID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Runner processes batches. A Runner runs one batch at a time.
type Runner struct {
	opts Options

	// gate is read-held while a record is processed and write-held while
	// the browser is recycled; gen counts recycles.
	gate sync.RWMutex
	gen  int
}

// New creates a Runner.
func New(opts Options) *Runner {
	opts.defaults()
	return &Runner{opts: opts}
}

// Run processes every input and returns the tally. The error reports
// infrastructure failures (queue, tabs) or cancellation, never a failed
// code.
func (r *Runner) Run(ctx context.Context, inputs []Input) (Summary, error) {
	start := time.Now()
	runID := r.opts.NewID()
	log := r.opts.Logger.With("run", runID)
	ctx = sink.WithRun(ctx, runID)
	sum := newSummary(runID)

	jobs := make([]store.Job, 0, len(inputs))
	for _, in := range inputs {
		code := record.NormalizeCode(in.Code)
		if code == "" {
			log.Warn("batch: skip empty code", "row", in.Row)
			continue
		}
		jobs = append(jobs, store.Job{ID: r.opts.NewID(), RunID: runID, Code: code, Row: in.Row})
	}

	st := r.opts.Store
	if err := st.StartRun(ctx, runID, "batch"); err != nil {
		log.Warn("batch: record run start", "error", err)
	}
	q, err := st.NewQueue(ctx, r.opts.Visibility)
	if err != nil {
		return sum.Summary(time.Since(start)), err
	}
	if err := q.Reset(ctx); err != nil {
		return sum.Summary(time.Since(start)), fmt.Errorf("batch: reset queue: %w", err)
	}
	if err := q.Publish(ctx, jobs); err != nil {
		return sum.Summary(time.Since(start)), fmt.Errorf("batch: publish: %w", err)
	}

	workers := min(r.opts.Workers, len(jobs))
	log.Info("batch: started", "codes", len(jobs), "workers", workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := range workers {
		g.Go(func() error {
			return r.work(gctx, i+1, runID, q, sum)
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	out := sum.Summary(time.Since(start))
	if ferr := st.FinishRun(context.WithoutCancel(ctx), runID, out); ferr != nil {
		log.Warn("batch: record run end", "error", ferr)
	}
	log.Info("batch: finished",
		"succeeded", out.Succeeded, "failed", out.Failed,
		"fallback", out.Fallback, "elapsed", out.Elapsed)
	return out, err
}

func (r *Runner) work(ctx context.Context, id int, runID string, q *store.Queue, sum *tally) error {
	log := r.opts.Logger.With("run", runID, "worker", id)
	var page browser.Page
	gen := -1
	defer func() {
		if page != nil {
			if err := page.Close(); err != nil {
				log.Debug("batch: close tab", "error", err)
			}
		}
	}()

	for ctx.Err() == nil {
		job, err := q.Claim(ctx, runID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("batch: claim: %w", err)
		}
		if job == nil {
			n, err := q.Len(ctx, runID)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("batch: queue length: %w", err)
			}
			if n == 0 {
				return nil
			}
			// Claimed by other workers; wait for a redelivery or the end.
			select {
			case <-ctx.Done():
			case <-time.After(r.opts.Poll):
			}
			continue
		}

		var res record.Result
		if job.Attempts > r.opts.MaxAttempts {
			res = record.Failed(job.Code, record.KindTimeout,
				fmt.Sprintf("abandoned after %d attempts", job.Attempts-1))
		} else {
			r.gate.RLock()
			if page == nil || gen != r.gen {
				if page != nil {
					page.Close()
				}
				page, err = r.opts.Tabs.NewPage(ctx)
				if err != nil {
					r.gate.RUnlock()
					q.Nack(context.WithoutCancel(ctx), job.ID)
					return fmt.Errorf("batch: open tab: %w", err)
				}
				gen = r.gen
			}
			res, page = r.opts.Processor.Process(ctx, page, job.Code)
			r.gate.RUnlock()
		}
		res.Row = job.Row

		done := context.WithoutCancel(ctx)
		if r.opts.Sink != nil {
			if err := r.opts.Sink.Emit(done, res); err != nil && res.OK() {
				log.Warn("batch: sink write", "code", job.Code, "error", err)
				res = record.Failed(job.Code, record.KindSinkWrite, err.Error())
			}
		}
		sum.add(res)
		if err := q.Ack(done, job.ID); err != nil {
			log.Warn("batch: ack", "code", job.Code, "error", err)
		}
		if res.OK() {
			log.Info("batch: code done", "code", job.Code, "row", job.Row, "strategy", res.Strategy)
		} else {
			log.Warn("batch: code failed", "code", job.Code, "row", job.Row, "kind", res.Failure.Kind)
		}

		r.maybeRecycle(ctx, log)
	}
	return nil
}

// maybeRecycle restarts a stale browser once no record is in flight.
func (r *Runner) maybeRecycle(ctx context.Context, log *slog.Logger) {
	rc := r.opts.Recycler
	if rc == nil || !rc.Stale() {
		return
	}
	r.gate.Lock()
	defer r.gate.Unlock()
	if !rc.Stale() {
		return
	}
	if err := rc.Recycle(ctx); err != nil {
		log.Warn("batch: recycle browser", "error", err)
		return
	}
	r.gen++
}
