package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/hazyhaar/baextract/portal/internal/sink"
	"github.com/hazyhaar/baextract/portal/record"
)

// Sink is the output interface for results and crawled listing pages.
type Sink = sink.Sink

// ErrSinkWrite reports a sink write that still failed after its retries.
var ErrSinkWrite = sink.ErrSinkWrite

func format(cfg *Config) sink.Format {
	return sink.Format{Text: cfg.PrimaryText(), Langs: cfg.Languages()}
}

// NewStdoutSink creates a JSON lines sink on w (os.Stdout when nil).
func NewStdoutSink(w io.Writer, cfg *Config) Sink {
	return sink.NewStdout(w, format(cfg))
}

// NewJSONFileSink appends JSON lines to the file at path.
func NewJSONFileSink(path string, cfg *Config) (Sink, error) {
	return sink.NewJSONFile(path, format(cfg))
}

// NewSQLiteSink stores records, failures and listing codes in the SQLite
// database at path.
func NewSQLiteSink(path string) (Sink, error) {
	return sink.OpenSQLite(path)
}

// NewSheetsSink writes to the spreadsheet described by sc, authenticating
// with its service-account key.
func NewSheetsSink(ctx context.Context, sc SinkConfig, cfg *Config, logger *slog.Logger) (Sink, error) {
	return sink.NewSheets(ctx, sink.SheetsOptions{
		SpreadsheetID: sc.SpreadsheetID,
		Worksheet:     sc.Worksheet,
		Endpoint:      sc.Endpoint,
		Credentials:   sc.Credentials,
		Format:        format(cfg),
		Logger:        logger,
	})
}

// NewCallbackSink creates an in-process sink. Either handler may be nil.
func NewCallbackSink(
	onResult func(ctx context.Context, res record.Result) error,
	onCodes func(ctx context.Context, page int, codes []string) error,
) Sink {
	return sink.NewCallback(onResult, onCodes)
}

// OpenSinks builds every sink listed in cfg.Sinks, in order. A sqlite sink
// on batch.db_path is left out: the engine records every run there anyway.
// On error the sinks already opened are closed.
func OpenSinks(ctx context.Context, cfg *Config, logger *slog.Logger) ([]Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var sinks []Sink
	fail := func(err error) ([]Sink, error) {
		for _, s := range sinks {
			if cerr := s.Close(); cerr != nil {
				err = errors.Join(err, cerr)
			}
		}
		return nil, err
	}
	for _, sc := range cfg.Sinks {
		var (
			s   Sink
			err error
		)
		switch sc.Type {
		case "stdout":
			s = NewStdoutSink(nil, cfg)
		case "jsonfile":
			s, err = NewJSONFileSink(sc.Path, cfg)
		case "sqlite":
			if filepath.Clean(sc.Path) == filepath.Clean(cfg.Batch.DBPath) {
				logger.Info("portal: sqlite sink is the run database, skipped", "path", sc.Path)
				continue
			}
			s, err = NewSQLiteSink(sc.Path)
		case "sheets":
			s, err = NewSheetsSink(ctx, sc, cfg, logger)
		default:
			logger.Warn("portal: unknown sink type", "type", sc.Type)
			continue
		}
		if err != nil {
			return fail(fmt.Errorf("portal: open %s sink: %w", sc.Type, err))
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}
