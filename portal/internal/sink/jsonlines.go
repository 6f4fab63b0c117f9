package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/hazyhaar/baextract/portal/record"
)

// JSONLines writes one JSON document per line: records as the single-code
// output document, listing pages as their codes.
type JSONLines struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
	format Format
}

// NewStdout creates a JSON lines sink on w. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer, f Format) *JSONLines {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLines{enc: enc, format: f}
}

// NewJSONFile appends JSON lines to the file at path, creating it and its
// directory when missing.
func NewJSONFile(path string, f Format) (*JSONLines, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sink: mkdir: %w", err)
	}
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", path, err)
	}
	s := NewStdout(fh, f)
	s.closer = fh
	return s, nil
}

type envelope struct {
	Type string `json:"type"`
	Run  string `json:"run,omitempty"`
	Row  int    `json:"row,omitempty"`
	Page int    `json:"page,omitempty"`
	Data any    `json:"data"`
}

func (s *JSONLines) Emit(ctx context.Context, res record.Result) error {
	return s.write(envelope{Type: "record", Run: RunID(ctx), Row: res.Row, Data: s.format.Output(res)})
}

func (s *JSONLines) EmitCodes(ctx context.Context, page int, codes []string) error {
	return s.write(envelope{Type: "codes", Run: RunID(ctx), Page: page, Data: codes})
}

func (s *JSONLines) write(e envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(e); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkWrite, err)
	}
	return nil
}

func (s *JSONLines) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
