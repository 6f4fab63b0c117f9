package crawl

import "fmt"

// Check compares a counter shown by the listing with what was crawled.
type Check struct {
	Name     string
	Expected *int
	Actual   int
}

// Status is "OK", "MISMATCH (Excess: n)", "MISMATCH (Missing: n)" or
// "UNKNOWN" when the listing showed no counter.
func (c Check) Status() string {
	switch {
	case c.Expected == nil:
		return "UNKNOWN"
	case c.Actual == *c.Expected:
		return "OK"
	case c.Actual > *c.Expected:
		return fmt.Sprintf("MISMATCH (Excess: %d)", c.Actual-*c.Expected)
	}
	return fmt.Sprintf("MISMATCH (Missing: %d)", *c.Expected-c.Actual)
}

// Checks reconciles the pages and results of s with the listing counters.
func (s Summary) Checks() []Check {
	return []Check{
		{Name: "Pages", Expected: s.PagesExpected, Actual: s.Pages},
		{Name: "Results", Expected: s.TotalExpected, Actual: s.Codes},
	}
}

// Complete reports whether the crawl ended on the last page and matched
// every counter it could check.
func (s Summary) Complete() bool {
	if s.Stalled {
		return false
	}
	for _, c := range s.Checks() {
		if c.Expected != nil && c.Actual != *c.Expected {
			return false
		}
	}
	return true
}
