package report

import (
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/baextract/portal/internal/batch"
	"github.com/hazyhaar/baextract/portal/internal/crawl"
	"github.com/hazyhaar/baextract/portal/record"
)

func contains(t *testing.T, out string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(out, p) {
			t.Errorf("missing %q in\n%s", p, out)
		}
	}
}

func TestBatch(t *testing.T) {
	out := Batch(batch.Summary{
		RunID: "r1", Total: 5, Succeeded: 3, Failed: 2, Fallback: 1,
		Kinds:   map[record.Kind]int{record.KindAmbiguous: 1, record.KindTimeout: 1},
		Elapsed: 90 * time.Second,
	})
	contains(t, out, "Batch r1", "Succeeded", "ambiguous_match", "timeout_exhausted", "Elapsed", "1m30s")
	if strings.Contains(out, "1M30S") {
		t.Errorf("footer upper-cased:\n%s", out)
	}
	if strings.Index(out, "ambiguous_match") > strings.Index(out, "timeout_exhausted") {
		t.Error("kinds are sorted")
	}
}

func TestCrawl(t *testing.T) {
	pages, total := 3, 70
	out := Crawl(crawl.Summary{Pages: 1, Codes: 30, PagesExpected: &pages, TotalExpected: &total, Stalled: true, Reason: "stalled after page 1"})
	contains(t, out, "MISMATCH (Missing: 2)", "MISMATCH (Missing: 40)", "stalled after page 1", "Complete")

	out = Crawl(crawl.Summary{Pages: 2, Codes: 40, Reason: "last page"})
	contains(t, out, "UNKNOWN", "Ended", "last page")
	if strings.Contains(out, "LAST PAGE") {
		t.Errorf("footer upper-cased:\n%s", out)
	}
}

func TestRecordAndPage(t *testing.T) {
	rec, _ := record.NewBuilder("007").Name(record.Primary, "Bakery").Name(record.Secondary, "مخبز").Build()
	out := Record(record.Succeeded(rec, record.StrategyDirect), record.DefaultText("en"), [2]string{"en", "ar"})
	contains(t, out, "Activity 007", "Name (ar)", "مخبز", "direct")

	out = Record(record.Failed("9", record.KindNavigation, "no results"), record.DefaultText("en"), [2]string{"en", "ar"})
	contains(t, out, "navigation_exhausted", "no results")

	contains(t, Page(2, []string{"007", "008"}), "Page 2", "007", "008")
	contains(t, Failures([]record.Failure{{Code: "9", Kind: record.KindAmbiguous, Reason: "no exact match"}}), "no exact match")
}
