// Package sink defines output backends for extraction results and crawled
// listing codes.
package sink

import (
	"context"
	"errors"

	"github.com/hazyhaar/baextract/portal/record"
)

// ErrSinkWrite reports a write that still failed after its retries.
var ErrSinkWrite = errors.New("sink: write failed")

// Sink is the output interface. Implementations deliver to stdout, a JSON
// lines file, SQLite, a spreadsheet or an in-process callback.
type Sink interface {
	// Emit delivers the outcome of one code.
	Emit(ctx context.Context, res record.Result) error
	// EmitCodes delivers the codes of one listing page (1-based).
	EmitCodes(ctx context.Context, page int, codes []string) error
	Close() error
}

// Table is a sink backed by a grid of cells. Rows and columns are 1-based.
type Table interface {
	WriteCell(ctx context.Context, row, col int, value string) error
	WriteRow(ctx context.Context, row, col int, values []string) error
	// ReadColumn returns the cells of col below the header row, in row
	// order; blank cells are "".
	ReadColumn(ctx context.Context, col int) ([]string, error)
}

// Format renders results for the sinks that write text.
type Format struct {
	Text record.Text
	// Langs are the language codes of the primary and secondary language.
	Langs [2]string
}

// Output returns the JSON document of res.
func (f Format) Output(res record.Result) record.Output {
	return record.NewOutput(res, f.Text, f.Langs)
}

// Name returns the name of rec in the language with code lang, or "".
func (f Format) Name(rec record.ActivityRecord, lang string) string {
	switch lang {
	case f.Langs[0]:
		return rec.Name(record.Primary)
	case f.Langs[1]:
		return rec.Name(record.Secondary)
	}
	return ""
}

type runKey struct{}

// WithRun tags ctx with the batch or crawl run it belongs to.
func WithRun(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runKey{}, id)
}

// RunID returns the run id set by WithRun, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runKey{}).(string)
	return id
}
