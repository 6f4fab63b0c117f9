package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/baextract/portal/record"
)

func bakery(t *testing.T) record.ActivityRecord {
	t.Helper()
	rec, err := record.NewBuilder("007").
		Name(record.Primary, "Bakery").
		Name(record.Secondary, "مخبز").
		Locations([]record.Location{{Main: "Commercial", Sub: "Shop", Fee: "500"}}).
		Eligibility([]string{"Qatari nationals"}).
		Approvals(record.StatusData, []record.Approval{{Index: 1, Title: "Fire Safety", Agency: "Civil Defence"}}, "").
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

func TestOpen_FileWithMkdirAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "baextract.db")
	st, err := Open(path, WithMkdirAll(), WithBusyTimeout(5000))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	var mode string
	if err := st.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestSaveResult_RoundTripAndUpsert(t *testing.T) {
	st := OpenMemory(t)
	ctx := context.Background()
	rec := bakery(t)

	if err := st.SaveResult(ctx, "run-1", record.Succeeded(rec, record.StrategyFooter)); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if err := st.SaveResult(ctx, "run-2", record.Succeeded(rec, record.StrategyDirect)); err != nil {
		t.Fatalf("second SaveResult: %v", err)
	}

	got, err := st.Record(ctx, "007")
	if err != nil || got == nil {
		t.Fatalf("Record = %v, %v", got, err)
	}
	if got.Code() != "007" || got.Name(record.Secondary) != "مخبز" {
		t.Errorf("names = %v", got.Names())
	}
	if diff := cmp.Diff(rec.Locations(), got.Locations()); diff != "" {
		t.Errorf("locations (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(rec.Approvals(), got.Approvals()); diff != "" {
		t.Errorf("approvals (-want +got):\n%s", diff)
	}

	var n int
	var strategy string
	st.DB().QueryRow(`SELECT COUNT(*), MAX(strategy) FROM activity_records`).Scan(&n, &strategy)
	if n != 1 || strategy != "direct" {
		t.Errorf("rows = %d strategy %q, want one upserted row", n, strategy)
	}

	if missing, err := st.Record(ctx, "999"); err != nil || missing != nil {
		t.Errorf("unknown code = %v, %v", missing, err)
	}
}

func TestSaveResult_Failures(t *testing.T) {
	st := OpenMemory(t)
	ctx := context.Background()

	st.SaveResult(ctx, "run-1", record.Failed("123", record.KindAmbiguous, "no exact match"))
	st.SaveResult(ctx, "run-1", record.Failed("456", record.KindTimeout, "anchor"))
	st.SaveResult(ctx, "run-2", record.Failed("789", record.KindNavigation, "no results"))

	got, err := st.Failures(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	want := []record.Failure{
		{Code: "123", Kind: record.KindAmbiguous, Reason: "no exact match"},
		{Code: "456", Kind: record.KindTimeout, Reason: "anchor"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("failures (-want +got):\n%s", diff)
	}

	if err := st.SaveResult(ctx, "run-1", record.Result{Code: "x"}); err == nil {
		t.Error("a result without record or failure must be rejected")
	}
}

func TestSaveCodes_KeepsFirstPageAndOrder(t *testing.T) {
	st := OpenMemory(t)
	ctx := context.Background()

	st.SaveCodes(ctx, "c1", 1, []string{"0100", "0101"})
	st.SaveCodes(ctx, "c1", 2, []string{"0200", "0101"})

	got, err := st.Codes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"0100", "0101", "0200"}, got); diff != "" {
		t.Errorf("codes (-want +got):\n%s", diff)
	}
}

func TestRuns(t *testing.T) {
	st := OpenMemory(t)
	ctx := context.Background()

	if err := st.StartRun(ctx, "r1", "batch"); err != nil {
		t.Fatal(err)
	}
	if err := st.FinishRun(ctx, "r1", map[string]int{"succeeded": 3}); err != nil {
		t.Fatal(err)
	}
	var summary string
	st.DB().QueryRow(`SELECT summary FROM runs WHERE id = 'r1'`).Scan(&summary)
	if summary != `{"succeeded":3}` {
		t.Errorf("summary = %q", summary)
	}
}

func TestQueue_ClaimAckNack(t *testing.T) {
	st := OpenMemory(t)
	ctx := context.Background()
	q, err := st.NewQueue(ctx, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	jobs := []Job{
		{ID: "a", RunID: "r", Code: "007", Row: 2},
		{ID: "b", RunID: "r", Code: "008", Row: 3},
	}
	if err := q.Publish(ctx, jobs); err != nil {
		t.Fatal(err)
	}
	q.Publish(ctx, []Job{{ID: "other", RunID: "r2", Code: "1"}})

	first, err := q.Claim(ctx, "r")
	if err != nil || first == nil {
		t.Fatalf("Claim = %v, %v", first, err)
	}
	if first.Code != "007" || first.Row != 2 || first.Attempts != 1 {
		t.Errorf("first = %+v", first)
	}

	second, _ := q.Claim(ctx, "r")
	if second == nil || second.Code != "008" {
		t.Fatalf("second = %+v", second)
	}
	if none, _ := q.Claim(ctx, "r"); none != nil {
		t.Fatalf("claimed jobs are invisible, got %+v", none)
	}

	q.Nack(ctx, second.ID)
	again, _ := q.Claim(ctx, "r")
	if again == nil || again.ID != "b" || again.Attempts != 2 {
		t.Fatalf("nacked job = %+v", again)
	}

	q.Ack(ctx, first.ID)
	if n, _ := q.Len(ctx, "r"); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}
	q.Purge(ctx, "r")
	if n, _ := q.Len(ctx, "r"); n != 0 {
		t.Errorf("Len after Purge = %d", n)
	}
	if n, _ := q.Len(ctx, "r2"); n != 1 {
		t.Errorf("other run touched, Len = %d", n)
	}
	q.Reset(ctx)
	if n, _ := q.Len(ctx, "r2"); n != 0 {
		t.Errorf("Len after Reset = %d", n)
	}
}

func TestQueue_VisibilityExpiry(t *testing.T) {
	st := OpenMemory(t)
	ctx := context.Background()
	q, _ := st.NewQueue(ctx, 20*time.Millisecond)
	q.Publish(ctx, []Job{{ID: "a", RunID: "r", Code: "1"}})

	if j, _ := q.Claim(ctx, "r"); j == nil {
		t.Fatal("expected a job")
	}
	time.Sleep(40 * time.Millisecond)
	j, _ := q.Claim(ctx, "r")
	if j == nil || j.Attempts != 2 {
		t.Fatalf("expired job not redelivered: %+v", j)
	}
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("SQLITE_BUSY"), true},
		{errors.New("database is locked (5)"), true},
		{errors.New("database table is locked"), true},
		{errors.New("no such table"), false},
	}
	for _, tt := range tests {
		if got := IsBusy(tt.err); got != tt.want {
			t.Errorf("IsBusy(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
