package batch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/hazyhaar/baextract/portal/internal/browser"
	"github.com/hazyhaar/baextract/portal/internal/browser/browsertest"
	"github.com/hazyhaar/baextract/portal/internal/sink"
	"github.com/hazyhaar/baextract/portal/internal/store"
	"github.com/hazyhaar/baextract/portal/record"
)

// fakeProcessor answers from a table keyed by code: "ok", "fallback",
// "popup" or a failure kind.
type fakeProcessor struct {
	mu     sync.Mutex
	seen   []string
	popups []*browsertest.Page
	out    map[string]string
}

func (f *fakeProcessor) Process(ctx context.Context, page browser.Page, code string) (record.Result, browser.Page) {
	f.mu.Lock()
	f.seen = append(f.seen, code)
	f.mu.Unlock()

	build := func() record.ActivityRecord {
		rec, _ := record.NewBuilder(code).Name(record.Primary, "n"+code).Build()
		return rec
	}
	switch f.out[code] {
	case "ok":
		return record.Succeeded(build(), record.StrategyDirect), page
	case "fallback":
		return record.Succeeded(build(), record.StrategyFooter), page
	case "popup":
		p := browsertest.New()
		f.mu.Lock()
		f.popups = append(f.popups, p)
		f.mu.Unlock()
		page.Close()
		return record.Succeeded(build(), record.StrategyFooter), p
	}
	return record.Failed(code, record.Kind(f.out[code]), "scripted"), page
}

type fakeTabs struct {
	mu    sync.Mutex
	pages []*browsertest.Page
	err   error
}

func (f *fakeTabs) NewPage(context.Context) (browser.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p := browsertest.New()
	f.pages = append(f.pages, p)
	return p, nil
}

func (f *fakeTabs) allClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.pages {
		if !p.Closed() {
			return false
		}
	}
	return true
}

type collected struct {
	mu      sync.Mutex
	results []record.Result
	fail    map[string]bool
}

func (c *collected) emit(_ context.Context, res record.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail[res.Code] {
		return sink.ErrSinkWrite
	}
	c.results = append(c.results, res)
	return nil
}

func newRunner(t *testing.T, proc Processor, tabs Tabs, out *collected, workers int) (*Runner, *store.Store) {
	t.Helper()
	st := store.OpenMemory(t)
	var n atomic.Int64
	return New(Options{
		Store:     st,
		Processor: proc,
		Tabs:      tabs,
		Sink:      sink.NewCallback(out.emit, nil),
		Workers:   workers,
		NewID: func() string {
			return "id-" + string(rune('a'+n.Add(1)))
		},
	}), st
}

func TestRun_ProcessesEveryCodeOnce(t *testing.T) {
	proc := &fakeProcessor{out: map[string]string{
		"007": "ok", "008": "fallback", "009": "ok",
		"123": string(record.KindAmbiguous), "456": string(record.KindTimeout),
	}}
	tabs := &fakeTabs{}
	out := &collected{}
	r, st := newRunner(t, proc, tabs, out, 2)

	inputs := FromColumn([]string{"007", "", "008", "٠٠٩", "123", "456"})
	sum, err := r.Run(context.Background(), inputs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := Summary{
		RunID: "id-b", Total: 5, Succeeded: 3, Failed: 2, Fallback: 1,
		Kinds: map[record.Kind]int{record.KindAmbiguous: 1, record.KindTimeout: 1},
	}
	if diff := cmp.Diff(want, sum, cmpopts.IgnoreFields(Summary{}, "Elapsed", "Failures")); diff != "" {
		t.Errorf("summary (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"007", "008", "009", "123", "456"}, proc.seen, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Errorf("processed (-want +got):\n%s", diff)
	}

	rows := map[string]int{}
	for _, res := range out.results {
		rows[res.Code] = res.Row
	}
	if diff := cmp.Diff(map[string]int{"007": 2, "008": 4, "009": 5, "123": 6, "456": 7}, rows); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}

	if len(tabs.pages) > 2 || !tabs.allClosed() {
		t.Errorf("tabs opened %d, all closed %v", len(tabs.pages), tabs.allClosed())
	}
	var summary string
	st.DB().QueryRow(`SELECT summary FROM runs WHERE id = 'id-b'`).Scan(&summary)
	if !strings.Contains(summary, `"succeeded":3`) {
		t.Errorf("run summary = %q", summary)
	}
}

func TestRun_KeepsPopupPage(t *testing.T) {
	proc := &fakeProcessor{out: map[string]string{"1": "popup", "2": "ok"}}
	tabs := &fakeTabs{}
	r, _ := newRunner(t, proc, tabs, &collected{}, 1)

	if _, err := r.Run(context.Background(), FromCodes([]string{"1", "2"})); err != nil {
		t.Fatal(err)
	}
	if len(tabs.pages) != 1 {
		t.Errorf("the popup replaces the tab, opened %d", len(tabs.pages))
	}
	if len(proc.popups) != 1 || !proc.popups[0].Closed() {
		t.Error("the owned popup must be closed when the worker ends")
	}
}

func TestRun_SinkFailureCountsAsFailure(t *testing.T) {
	proc := &fakeProcessor{out: map[string]string{"1": "ok", "2": "ok"}}
	out := &collected{fail: map[string]bool{"2": true}}
	r, _ := newRunner(t, proc, &fakeTabs{}, out, 1)

	sum, err := r.Run(context.Background(), FromCodes([]string{"1", "2"}))
	if err != nil {
		t.Fatal(err)
	}
	if sum.Succeeded != 1 || sum.Kinds[record.KindSinkWrite] != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

type recycler struct {
	stale    atomic.Bool
	recycles atomic.Int32
}

func (r *recycler) Stale() bool { return r.stale.Load() }

func (r *recycler) Recycle(context.Context) error {
	r.recycles.Add(1)
	r.stale.Store(false)
	return nil
}

func TestRun_RecyclesStaleBrowserBetweenRecords(t *testing.T) {
	proc := &fakeProcessor{out: map[string]string{"1": "ok", "2": "ok", "3": "ok"}}
	tabs := &fakeTabs{}
	rc := &recycler{}
	rc.stale.Store(true)
	r, _ := newRunner(t, proc, tabs, &collected{}, 1)
	r.opts.Recycler = rc

	if _, err := r.Run(context.Background(), FromCodes([]string{"1", "2", "3"})); err != nil {
		t.Fatal(err)
	}
	if n := rc.recycles.Load(); n != 1 {
		t.Errorf("recycles = %d, want 1", n)
	}
	if len(tabs.pages) != 2 {
		t.Errorf("a recycle reopens the tab, opened %d", len(tabs.pages))
	}
}

func TestRun_TabFailureIsFatal(t *testing.T) {
	boom := errors.New("chrome gone")
	r, _ := newRunner(t, &fakeProcessor{}, &fakeTabs{err: boom}, &collected{}, 1)
	_, err := r.Run(context.Background(), FromCodes([]string{"1"}))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	proc := &fakeProcessor{out: map[string]string{"1": "ok"}}
	r, _ := newRunner(t, proc, &fakeTabs{}, &collected{}, 1)

	sum, err := r.Run(ctx, FromCodes([]string{"1"}))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if sum.Total != 0 {
		t.Errorf("cancelled run processed %d codes", sum.Total)
	}
}

func TestReadCodes(t *testing.T) {
	in := "007\n\n# comment\n  0100  \n١٢٣\n"
	got, err := ReadCodes(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	want := []Input{{Code: "007"}, {Code: "0100"}, {Code: "١٢٣"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("inputs (-want +got):\n%s", diff)
	}
}
