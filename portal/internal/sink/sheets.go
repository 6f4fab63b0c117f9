package sink

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/hazyhaar/baextract/portal/record"
)

// Sheet layout: column A holds the input codes ("Search"), B to G one
// extracted record per row. Row 1 is the header.
const (
	ColSearch = 1
	ColCode   = 2
	firstRow  = 2
)

var recordHeader = []string{"Activity_Code", "AR-Activity", "EN-Activity", "Location", "Eligible", "Approvals"}

const sheetsScope = "https://www.googleapis.com/auth/spreadsheets"

// SheetsOptions configures a Sheets sink.
type SheetsOptions struct {
	SpreadsheetID string
	Worksheet     string
	// Endpoint is the Sheets API base URL.
	Endpoint string
	// Credentials is the path of a service-account JSON key.
	Credentials string
	// HTTPClient, when set, is used as is instead of Credentials.
	HTTPClient *http.Client
	Format     Format
	// NameLangs are the language codes of the two name columns (C, D).
	NameLangs [2]string
	Retries   int
	RetryWait time.Duration
	Logger    *slog.Logger
}

func (o *SheetsOptions) defaults() {
	if o.Endpoint == "" {
		o.Endpoint = "https://sheets.googleapis.com/v4"
	}
	if o.NameLangs == [2]string{} {
		o.NameLangs = [2]string{"ar", "en"}
	}
	if o.Retries <= 0 {
		o.Retries = 3
	}
	if o.RetryWait <= 0 {
		o.RetryWait = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Sheets writes records and crawled codes to a Google spreadsheet through
// the values REST API. Codes are always written as text so leading zeros
// survive.
type Sheets struct {
	opts   SheetsOptions
	client *resty.Client

	recordsOnce sync.Once
	codesOnce   sync.Once

	mu      sync.Mutex
	nextRec int
	nextRow int
}

// NewSheets creates a Sheets sink, authenticating with the service-account
// key unless opts.HTTPClient is set.
func NewSheets(ctx context.Context, opts SheetsOptions) (*Sheets, error) {
	opts.defaults()
	if opts.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets: spreadsheet id required")
	}

	hc := opts.HTTPClient
	if hc == nil {
		key, err := os.ReadFile(opts.Credentials)
		if err != nil {
			return nil, fmt.Errorf("sheets: read credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, key, sheetsScope)
		if err != nil {
			return nil, fmt.Errorf("sheets: parse credentials: %w", err)
		}
		hc = oauth2.NewClient(ctx, creds.TokenSource)
	}

	client := resty.NewWithClient(hc).
		SetBaseURL(strings.TrimRight(opts.Endpoint, "/")).
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json").
		SetPathParam("id", opts.SpreadsheetID)

	return &Sheets{opts: opts, client: client, nextRec: firstRow, nextRow: firstRow}, nil
}

// a1 renders a cell reference, prefixed with the quoted worksheet name.
func (s *Sheets) a1(ref string) string {
	if s.opts.Worksheet == "" {
		return ref
	}
	return "'" + strings.ReplaceAll(s.opts.Worksheet, "'", "''") + "'!" + ref
}

// ColumnName maps 1 to "A", 27 to "AA".
func ColumnName(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

func cell(row, col int) string {
	return fmt.Sprintf("%s%d", ColumnName(col), row)
}

type valueRange struct {
	Range          string     `json:"range,omitempty"`
	MajorDimension string     `json:"majorDimension,omitempty"`
	Values         [][]string `json:"values"`
}

func (s *Sheets) update(ctx context.Context, rng string, values [][]string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("range", s.a1(rng)).
		SetQueryParam("valueInputOption", "RAW").
		SetBody(valueRange{Range: s.a1(rng), MajorDimension: "ROWS", Values: values}).
		Put("/spreadsheets/{id}/values/{range}")
	if err != nil {
		return fmt.Errorf("sheets: update %s: %w", rng, err)
	}
	if resp.IsError() {
		return fmt.Errorf("sheets: update %s: status %d: %s", rng, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

// writeBlock writes grid with its top-left cell at (row, col). The range
// update is tried Retries times; then every cell is written on its own.
func (s *Sheets) writeBlock(ctx context.Context, row, col int, grid [][]string) error {
	if len(grid) == 0 {
		return nil
	}
	width := 0
	for _, r := range grid {
		width = max(width, len(r))
	}
	rng := cell(row, col) + ":" + cell(row+len(grid)-1, col+width-1)

	var lastErr error
	for attempt := range s.opts.Retries {
		if attempt > 0 {
			select {
			case <-time.After(s.opts.RetryWait):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrSinkWrite, ctx.Err())
			}
		}
		if lastErr = s.update(ctx, rng, grid); lastErr == nil {
			return nil
		}
		s.opts.Logger.Warn("sheets: range update failed", "range", rng, "attempt", attempt+1, "error", lastErr)
	}

	s.opts.Logger.Info("sheets: falling back to single cells", "range", rng)
	for i, r := range grid {
		for j, v := range r {
			if err := s.update(ctx, cell(row+i, col+j), [][]string{{v}}); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrSinkWrite, cell(row+i, col+j), err)
			}
		}
	}
	return nil
}

// WriteCell writes one value.
func (s *Sheets) WriteCell(ctx context.Context, row, col int, value string) error {
	return s.writeBlock(ctx, row, col, [][]string{{value}})
}

// WriteRow writes values to consecutive cells of row starting at col.
func (s *Sheets) WriteRow(ctx context.Context, row, col int, values []string) error {
	return s.writeBlock(ctx, row, col, [][]string{values})
}

// WriteColumn writes values to consecutive cells of col starting at row.
func (s *Sheets) WriteColumn(ctx context.Context, row, col int, values []string) error {
	grid := make([][]string, len(values))
	for i, v := range values {
		grid[i] = []string{v}
	}
	return s.writeBlock(ctx, row, col, grid)
}

// ReadColumn returns the cells of col from row 2 down. The API omits
// trailing blank rows.
func (s *Sheets) ReadColumn(ctx context.Context, col int) ([]string, error) {
	name := ColumnName(col)
	rng := fmt.Sprintf("%s%d:%s", name, firstRow, name)

	var out valueRange
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("range", s.a1(rng)).
		SetQueryParam("majorDimension", "ROWS").
		SetResult(&out).
		Get("/spreadsheets/{id}/values/{range}")
	if err != nil {
		return nil, fmt.Errorf("sheets: read %s: %w", rng, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("sheets: read %s: status %d", rng, resp.StatusCode())
	}

	cells := make([]string, len(out.Values))
	for i, r := range out.Values {
		if len(r) > 0 {
			cells[i] = r[0]
		}
	}
	return cells, nil
}

type sheetsMeta struct {
	Sheets []struct {
		Properties struct {
			SheetID int64  `json:"sheetId"`
			Title   string `json:"title"`
		} `json:"properties"`
	} `json:"sheets"`
}

// FormatText sets the number format of col to TEXT.
func (s *Sheets) FormatText(ctx context.Context, col int) error {
	var meta sheetsMeta
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("fields", "sheets.properties").
		SetResult(&meta).
		Get("/spreadsheets/{id}")
	if err != nil {
		return fmt.Errorf("sheets: metadata: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("sheets: metadata: status %d", resp.StatusCode())
	}

	sheetID := int64(-1)
	for _, sh := range meta.Sheets {
		if s.opts.Worksheet == "" || sh.Properties.Title == s.opts.Worksheet {
			sheetID = sh.Properties.SheetID
			break
		}
	}
	if sheetID < 0 {
		return fmt.Errorf("sheets: worksheet %q not found", s.opts.Worksheet)
	}

	body := map[string]any{
		"requests": []any{map[string]any{
			"repeatCell": map[string]any{
				"range": map[string]any{
					"sheetId":          sheetID,
					"startColumnIndex": col - 1,
					"endColumnIndex":   col,
				},
				"cell":   map[string]any{"userEnteredFormat": map[string]any{"numberFormat": map[string]string{"type": "TEXT"}}},
				"fields": "userEnteredFormat.numberFormat",
			},
		}},
	}
	resp, err = s.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/spreadsheets/{id}:batchUpdate")
	if err != nil {
		return fmt.Errorf("sheets: format column %s: %w", ColumnName(col), err)
	}
	if resp.IsError() {
		return fmt.Errorf("sheets: format column %s: status %d", ColumnName(col), resp.StatusCode())
	}
	return nil
}

// prepare writes a header and formats col as text once. Failures are
// logged; the data writes that follow report their own errors.
func (s *Sheets) prepare(ctx context.Context, once *sync.Once, col int, header []string) {
	once.Do(func() {
		if err := s.WriteRow(ctx, 1, col, header); err != nil {
			s.opts.Logger.Warn("sheets: write header", "error", err)
		}
		if err := s.FormatText(ctx, col); err != nil {
			s.opts.Logger.Warn("sheets: format column as text", "column", ColumnName(col), "error", err)
		}
	})
}

// Emit writes a record to its input row (or the next free row) from
// column B. Failures leave the row untouched.
func (s *Sheets) Emit(ctx context.Context, res record.Result) error {
	if !res.OK() {
		return nil
	}
	s.prepare(ctx, &s.recordsOnce, ColCode, recordHeader)

	row := res.Row
	s.mu.Lock()
	if row < firstRow {
		row = s.nextRec
	}
	s.nextRec = max(s.nextRec, row+1)
	s.mu.Unlock()

	rec := *res.Record
	r := record.FormatRow(rec, s.opts.Format.Text)
	return s.WriteRow(ctx, row, ColCode, []string{
		r.Code,
		s.opts.Format.Name(rec, s.opts.NameLangs[0]),
		s.opts.Format.Name(rec, s.opts.NameLangs[1]),
		r.Locations,
		r.Eligibility,
		r.Approvals,
	})
}

// EmitCodes appends a listing page to column A in one range update.
func (s *Sheets) EmitCodes(ctx context.Context, page int, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	s.prepare(ctx, &s.codesOnce, ColSearch, []string{"Search"})

	s.mu.Lock()
	row := s.nextRow
	s.nextRow += len(codes)
	s.mu.Unlock()

	if err := s.WriteColumn(ctx, row, ColSearch, codes); err != nil {
		return fmt.Errorf("sheets: page %d: %w", page, err)
	}
	return nil
}

func (s *Sheets) Close() error { return nil }
