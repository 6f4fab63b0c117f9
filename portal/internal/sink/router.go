package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/baextract/portal/record"
)

// Router fans out to all configured sinks. One sink error does not block
// the others: errors are logged and the first one is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Add appends a sink.
func (r *Router) Add(s Sink) { r.sinks = append(r.sinks, s) }

// Len returns the number of sinks.
func (r *Router) Len() int { return len(r.sinks) }

func (r *Router) Emit(ctx context.Context, res record.Result) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Emit(ctx, res); err != nil {
			r.logger.Warn("sink: emit failed", "code", res.Code, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) EmitCodes(ctx context.Context, page int, codes []string) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.EmitCodes(ctx, page, codes); err != nil {
			r.logger.Warn("sink: emit codes failed", "page", page, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Table returns the first sink that is also a Table.
func (r *Router) Table() (Table, bool) {
	for _, s := range r.sinks {
		if t, ok := s.(Table); ok {
			return t, true
		}
	}
	return nil, false
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
