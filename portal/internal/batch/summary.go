package batch

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/hazyhaar/baextract/portal/record"
)

// Summary is the tally of a finished run.
type Summary struct {
	RunID     string              `json:"run_id"`
	Total     int                 `json:"total"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Fallback  int                 `json:"fallback"`
	Kinds     map[record.Kind]int `json:"kinds,omitempty"`
	Failures  []record.Failure    `json:"failures,omitempty"`
	Elapsed   time.Duration       `json:"elapsed"`
}

type tally struct {
	mu  sync.Mutex
	sum Summary
}

func newSummary(runID string) *tally {
	return &tally{sum: Summary{RunID: runID, Kinds: map[record.Kind]int{}}}
}

func (t *tally) add(res record.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sum.Total++
	if !res.OK() {
		t.sum.Failed++
		t.sum.Kinds[res.Failure.Kind]++
		t.sum.Failures = append(t.sum.Failures, *res.Failure)
		return
	}
	t.sum.Succeeded++
	if res.UsedFallback {
		t.sum.Fallback++
	}
}

// Summary returns a copy of the tally.
func (t *tally) Summary(elapsed time.Duration) Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.sum
	s.Kinds = maps.Clone(t.sum.Kinds)
	s.Failures = slices.Clone(t.sum.Failures)
	s.Elapsed = elapsed
	return s
}
