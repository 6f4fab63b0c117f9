package sink

import (
	"context"
	"fmt"

	"github.com/hazyhaar/baextract/portal/internal/store"
	"github.com/hazyhaar/baextract/portal/record"
)

// SQLite stores records, failures and listing codes in a store.
type SQLite struct {
	st    *store.Store
	owned bool
}

// NewSQLite writes to an already open store; Close leaves it open.
func NewSQLite(st *store.Store) *SQLite {
	return &SQLite{st: st}
}

// OpenSQLite opens the database at path; Close closes it.
func OpenSQLite(path string) (*SQLite, error) {
	st, err := store.Open(path, store.WithMkdirAll())
	if err != nil {
		return nil, err
	}
	return &SQLite{st: st, owned: true}, nil
}

// Store returns the underlying store.
func (s *SQLite) Store() *store.Store { return s.st }

func (s *SQLite) Emit(ctx context.Context, res record.Result) error {
	if err := s.st.SaveResult(ctx, RunID(ctx), res); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkWrite, err)
	}
	return nil
}

func (s *SQLite) EmitCodes(ctx context.Context, page int, codes []string) error {
	if err := s.st.SaveCodes(ctx, RunID(ctx), page, codes); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkWrite, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	if !s.owned {
		return nil
	}
	return s.st.Close()
}
