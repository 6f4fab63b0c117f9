package record

import (
	"fmt"
	"time"
)

// Kind classifies why a code produced no record.
type Kind string

const (
	KindTimeout       Kind = "timeout_exhausted"
	KindAmbiguous     Kind = "ambiguous_match"
	KindElementAbsent Kind = "element_absent"
	KindNavigation    Kind = "navigation_exhausted"
	KindSinkWrite     Kind = "sink_write_failure"
	KindCancelled     Kind = "cancelled"
)

// Failure is the structured reason a code failed.
type Failure struct {
	Code   string `json:"code"`
	Kind   Kind   `json:"kind"`
	Reason string `json:"reason"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s: %s", f.Code, f.Kind, f.Reason)
}

// Strategy names the navigation path that reached the detail page.
type Strategy string

const (
	StrategyNone   Strategy = ""
	StrategyDirect Strategy = "direct"
	StrategySearch Strategy = "search"
	StrategyFooter Strategy = "footer"
)

// Result is the outcome of processing one code: exactly one of Record and
// Failure is set.
type Result struct {
	Code string
	// Row is the input row the code came from (tabular sources), 0 otherwise.
	Row      int
	Record   *ActivityRecord
	Failure  *Failure
	Strategy Strategy
	// UsedFallback is true when the exhaustive footer search was needed.
	UsedFallback bool
	Elapsed      time.Duration
}

// OK reports whether a record was produced.
func (r Result) OK() bool { return r.Record != nil && r.Failure == nil }

// Succeeded builds a success result.
func Succeeded(rec ActivityRecord, strategy Strategy) Result {
	return Result{
		Code:         rec.Code(),
		Record:       &rec,
		Strategy:     strategy,
		UsedFallback: strategy == StrategyFooter,
	}
}

// Failed builds a failure result.
func Failed(code string, kind Kind, reason string) Result {
	return Result{Code: code, Failure: &Failure{Code: code, Kind: kind, Reason: reason}}
}
