package sink

import (
	"context"

	"github.com/hazyhaar/baextract/portal/record"
)

// ResultFunc is called for each result.
type ResultFunc func(ctx context.Context, res record.Result) error

// CodesFunc is called for each listing page.
type CodesFunc func(ctx context.Context, page int, codes []string) error

// Callback delivers through Go function calls, for embedding the engine.
type Callback struct {
	onResult ResultFunc
	onCodes  CodesFunc
}

// NewCallback creates a Callback sink. Either handler may be nil.
func NewCallback(onResult ResultFunc, onCodes CodesFunc) *Callback {
	return &Callback{onResult: onResult, onCodes: onCodes}
}

func (c *Callback) Emit(ctx context.Context, res record.Result) error {
	if c.onResult != nil {
		return c.onResult(ctx, res)
	}
	return nil
}

func (c *Callback) EmitCodes(ctx context.Context, page int, codes []string) error {
	if c.onCodes != nil {
		return c.onCodes(ctx, page, codes)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
