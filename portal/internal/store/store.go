// Package store persists extraction results, crawled listing codes and the
// batch job queue in SQLite.
//
// Pragmas applied on open:
//
//	foreign_keys = ON
//	journal_mode = WAL
//	busy_timeout = 10000
//	synchronous  = NORMAL
//
// In tests:
//
//	st := store.OpenMemory(t)
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/baextract/portal/record"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	summary     TEXT
);
CREATE TABLE IF NOT EXISTS activity_records (
	code          TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL DEFAULT '',
	names         TEXT NOT NULL,
	locations     TEXT NOT NULL,
	eligibility   TEXT NOT NULL,
	approvals     TEXT NOT NULL,
	status        TEXT NOT NULL,
	note          TEXT NOT NULL DEFAULT '',
	strategy      TEXT NOT NULL DEFAULT '',
	used_fallback INTEGER NOT NULL DEFAULT 0,
	extracted_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS failures (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    TEXT NOT NULL DEFAULT '',
	code      TEXT NOT NULL,
	kind      TEXT NOT NULL,
	reason    TEXT NOT NULL,
	failed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_failures_code ON failures (code);
CREATE TABLE IF NOT EXISTS listing_codes (
	code    TEXT PRIMARY KEY,
	run_id  TEXT NOT NULL DEFAULT '',
	page    INTEGER NOT NULL,
	seen_at INTEGER NOT NULL
);
`

type config struct {
	busyTimeout int
	synchronous string
	mkdirAll    bool
}

// Option customises Open.
type Option func(*config)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithSynchronous sets PRAGMA synchronous. Default: "NORMAL".
func WithSynchronous(mode string) Option { return func(c *config) { c.synchronous = mode } }

// WithMkdirAll creates parent directories of the database path before opening.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// Store is the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := config{busyTimeout: 10_000, synchronous: "NORMAL"}
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.synchronous),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: exec schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory store for testing. It sets
// MaxOpenConns(1) so every query hits the same database, and closes it
// with t.Cleanup.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	st.db.SetMaxOpenConns(1)
	t.Cleanup(func() { st.Close() })
	return st
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// StartRun records the start of a batch or crawl run.
func (s *Store) StartRun(ctx context.Context, id, kind string) error {
	_, err := Exec(ctx, s.db,
		`INSERT INTO runs (id, kind, started_at) VALUES (?, ?, ?)`,
		id, kind, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("store: start run: %w", err)
	}
	return nil
}

// FinishRun stores the JSON-encoded summary of a run.
func (s *Store) FinishRun(ctx context.Context, id string, summary any) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("store: encode summary: %w", err)
	}
	_, err = Exec(ctx, s.db,
		`UPDATE runs SET finished_at = ?, summary = ? WHERE id = ?`,
		time.Now().UnixMilli(), string(data), id)
	if err != nil {
		return fmt.Errorf("store: finish run: %w", err)
	}
	return nil
}

type storedNames struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// SaveResult upserts a record, or appends a failure row.
func (s *Store) SaveResult(ctx context.Context, runID string, res record.Result) error {
	now := time.Now().UnixMilli()
	if !res.OK() {
		f := res.Failure
		if f == nil {
			return fmt.Errorf("store: result for %q has neither record nor failure", res.Code)
		}
		_, err := Exec(ctx, s.db,
			`INSERT INTO failures (run_id, code, kind, reason, failed_at) VALUES (?, ?, ?, ?, ?)`,
			runID, f.Code, string(f.Kind), f.Reason, now)
		if err != nil {
			return fmt.Errorf("store: save failure %s: %w", f.Code, err)
		}
		return nil
	}

	rec := *res.Record
	names, err := json.Marshal(storedNames{rec.Name(record.Primary), rec.Name(record.Secondary)})
	if err != nil {
		return fmt.Errorf("store: encode names: %w", err)
	}
	locs, err := json.Marshal(rec.Locations())
	if err != nil {
		return fmt.Errorf("store: encode locations: %w", err)
	}
	elig, err := json.Marshal(rec.EligibilityNotes())
	if err != nil {
		return fmt.Errorf("store: encode eligibility: %w", err)
	}
	appr, err := json.Marshal(rec.Approvals())
	if err != nil {
		return fmt.Errorf("store: encode approvals: %w", err)
	}

	return RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO activity_records
				(code, run_id, names, locations, eligibility, approvals, status, note, strategy, used_fallback, extracted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(code) DO UPDATE SET
				run_id = excluded.run_id,
				names = excluded.names,
				locations = excluded.locations,
				eligibility = excluded.eligibility,
				approvals = excluded.approvals,
				status = excluded.status,
				note = excluded.note,
				strategy = excluded.strategy,
				used_fallback = excluded.used_fallback,
				extracted_at = excluded.extracted_at`,
			rec.Code(), runID, string(names), string(locs), string(elig), string(appr),
			string(rec.ApprovalsStatus()), rec.ApprovalsNote(), string(res.Strategy),
			boolInt(res.UsedFallback), now)
		if err != nil {
			return fmt.Errorf("store: save record %s: %w", rec.Code(), err)
		}
		return nil
	})
}

// Record loads a stored record. It returns nil, nil when the code is unknown.
func (s *Store) Record(ctx context.Context, code string) (*record.ActivityRecord, error) {
	var names, locs, elig, appr, status, note string
	err := s.db.QueryRowContext(ctx, `
		SELECT names, locations, eligibility, approvals, status, note
		FROM activity_records WHERE code = ?`, code,
	).Scan(&names, &locs, &elig, &appr, &status, &note)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", code, err)
	}

	var (
		n        storedNames
		location []record.Location
		notes    []string
		entries  []record.Approval
	)
	for _, f := range []struct {
		src string
		dst any
	}{
		{names, &n}, {locs, &location}, {elig, &notes}, {appr, &entries},
	} {
		if err := json.Unmarshal([]byte(f.src), f.dst); err != nil {
			return nil, fmt.Errorf("store: decode %s: %w", code, err)
		}
	}

	rec, err := record.NewBuilder(code).
		Name(record.Primary, n.Primary).
		Name(record.Secondary, n.Secondary).
		Locations(location).
		Eligibility(notes).
		Approvals(record.Status(status), entries, note).
		Build()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Failures returns the failure rows of a run, oldest first.
func (s *Store) Failures(ctx context.Context, runID string) ([]record.Failure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, kind, reason FROM failures WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: list failures: %w", err)
	}
	defer rows.Close()

	var out []record.Failure
	for rows.Next() {
		var f record.Failure
		var kind string
		if err := rows.Scan(&f.Code, &kind, &f.Reason); err != nil {
			return nil, err
		}
		f.Kind = record.Kind(kind)
		out = append(out, f)
	}
	return out, rows.Err()
}

// SaveCodes stores the codes of one listing page. A code seen again keeps
// its first page.
func (s *Store) SaveCodes(ctx context.Context, runID string, page int, codes []string) error {
	now := time.Now().UnixMilli()
	return RunTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR IGNORE INTO listing_codes (code, run_id, page, seen_at) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("store: prepare codes: %w", err)
		}
		defer stmt.Close()
		for _, c := range codes {
			if _, err := stmt.ExecContext(ctx, c, runID, page, now); err != nil {
				return fmt.Errorf("store: save code %s: %w", c, err)
			}
		}
		return nil
	})
}

// Codes returns the crawled codes in listing order.
func (s *Store) Codes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code FROM listing_codes ORDER BY page, rowid`)
	if err != nil {
		return nil, fmt.Errorf("store: list codes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
