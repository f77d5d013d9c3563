package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"serviceflow_gateway/platform/logger"
)

type row struct {
	ID     string
	Status string
	Extra  string
}

func rowConfig(screen string, fetch func(ctx context.Context) ([]row, error)) Config[row] {
	return Config[row]{
		Screen:      screen,
		Interval:    time.Hour, // tests drive polls manually via RefreshNow
		Fetch:       fetch,
		Key:         func(r row) string { return r.ID },
		Fingerprint: func(r row) string { return r.ID + "|" + r.Status },
		IsCalling:   func(r row) bool { return r.Status == "notifying" },
	}
}

type fetchScript struct {
	mu      sync.Mutex
	results [][]row
	errs    []error
	calls   int
}

func (f *fetchScript) fetch(ctx context.Context) ([]row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i], nil
}

func (f *fetchScript) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestFirstLoadFailureIsSurfaced(t *testing.T) {
	script := &fetchScript{
		results: [][]row{{{ID: "a", Status: "started"}}},
		errs:    []error{errors.New("backend down")},
	}
	p := New(rowConfig("test", script.fetch), Hooks[row]{}, logger.New("development"))

	p.RefreshNow(context.Background())
	snap := p.Snapshot()
	if snap.Loaded {
		t.Fatal("board must not be loaded after first-load failure")
	}
	if snap.Err == nil {
		t.Fatal("first-load failure must surface an error state")
	}

	// Next poll succeeds and clears the error.
	p.RefreshNow(context.Background())
	snap = p.Snapshot()
	if !snap.Loaded || snap.Err != nil {
		t.Fatalf("recovered board: loaded=%v err=%v", snap.Loaded, snap.Err)
	}
}

func TestBackgroundFailureRetainsLastKnownGood(t *testing.T) {
	script := &fetchScript{
		results: [][]row{{{ID: "a", Status: "started"}, {ID: "b", Status: "started"}}},
		errs:    []error{nil, errors.New("flaky network")},
	}
	p := New(rowConfig("test", script.fetch), Hooks[row]{}, logger.New("development"))

	p.RefreshNow(context.Background())
	p.RefreshNow(context.Background()) // fails

	snap := p.Snapshot()
	if len(snap.Records) != 2 {
		t.Fatalf("records lost on background failure: %+v", snap.Records)
	}
	if snap.Err != nil {
		t.Fatal("background failure must not surface an error on a loaded board")
	}
}

func TestIdenticalFetchIsSuppressed(t *testing.T) {
	script := &fetchScript{results: [][]row{
		{{ID: "a", Status: "started"}, {ID: "b", Status: "started"}},
		// Same watched fields, different order.
		{{ID: "b", Status: "started"}, {ID: "a", Status: "started"}},
		// Changed status: must apply.
		{{ID: "b", Status: "completed"}, {ID: "a", Status: "started"}},
	}}
	var changes int
	hooks := Hooks[row]{OnChange: func(Snapshot[row]) { changes++ }}
	p := New(rowConfig("test", script.fetch), hooks, logger.New("development"))

	p.RefreshNow(context.Background())
	v1 := p.Version()
	p.RefreshNow(context.Background())
	if p.Version() != v1 {
		t.Fatal("reordered but identical fetch must not bump the version")
	}
	p.RefreshNow(context.Background())
	if p.Version() == v1 {
		t.Fatal("changed status must bump the version")
	}
	if changes != 2 {
		t.Fatalf("OnChange fired %d times, want 2 (first load + real change)", changes)
	}
}

func TestDraftShieldsRecordAcrossRefresh(t *testing.T) {
	script := &fetchScript{results: [][]row{
		{{ID: "a", Status: "started", Extra: "v1"}, {ID: "b", Status: "started"}},
		{{ID: "a", Status: "notifying", Extra: "v2"}, {ID: "b", Status: "completed"}},
	}}
	p := New(rowConfig("test", script.fetch), Hooks[row]{}, logger.New("development"))

	p.RefreshNow(context.Background())
	p.SetDraft("a", "amount", "125.50")
	p.SetDraft("a", "plate_number", "AB-123")
	p.RefreshNow(context.Background())

	snap := p.Snapshot()
	var a, b *row
	for i := range snap.Records {
		switch snap.Records[i].ID {
		case "a":
			a = &snap.Records[i]
		case "b":
			b = &snap.Records[i]
		}
	}
	if a == nil || b == nil {
		t.Fatalf("missing records: %+v", snap.Records)
	}
	if a.Extra != "v1" || a.Status != "started" {
		t.Fatalf("drafted record was clobbered: %+v", *a)
	}
	if b.Status != "completed" {
		t.Fatalf("undrafted record not replaced wholesale: %+v", *b)
	}
	draft := snap.Drafts["a"]
	if draft["amount"] != "125.50" || draft["plate_number"] != "AB-123" {
		t.Fatalf("draft values changed: %+v", draft)
	}

	// Clearing the draft lets the next poll replace the record.
	p.ClearDraft("a")
	p.RefreshNow(context.Background())
	snap = p.Snapshot()
	for _, rec := range snap.Records {
		if rec.ID == "a" && rec.Extra != "v2" {
			t.Fatalf("record not refreshed after draft cleared: %+v", rec)
		}
	}
}

func TestClearedDraftAppliesUnchangedUpstream(t *testing.T) {
	script := &fetchScript{results: [][]row{
		{{ID: "a", Status: "started", Extra: "v1"}},
		// Upstream advances once and then holds steady.
		{{ID: "a", Status: "notifying", Extra: "v2"}},
	}}
	p := New(rowConfig("test", script.fetch), Hooks[row]{}, logger.New("development"))

	p.RefreshNow(context.Background())
	p.SetDraft("a", "amount", "99.00")
	p.RefreshNow(context.Background())

	// While the draft holds, identical upstream polls must not churn the
	// version: the displayed (shielded) state is unchanged.
	v := p.Version()
	p.RefreshNow(context.Background())
	if p.Version() != v {
		t.Fatal("shielded record bumped the version on an identical poll")
	}

	// After the draft clears, the very next poll of the same upstream data
	// must replace the stale shielded record.
	p.ClearDraft("a")
	p.RefreshNow(context.Background())
	snap := p.Snapshot()
	if len(snap.Records) != 1 {
		t.Fatalf("unexpected records: %+v", snap.Records)
	}
	if got := snap.Records[0]; got.Extra != "v2" || got.Status != "notifying" {
		t.Fatalf("board stuck on stale record after draft cleared: %+v", got)
	}
	if p.Version() == v {
		t.Fatal("applying the post-draft record must bump the version")
	}
}

func TestNewlyCallingDiff(t *testing.T) {
	script := &fetchScript{results: [][]row{
		{{ID: "a", Status: "started"}, {ID: "b", Status: "notifying"}},
		{{ID: "a", Status: "notifying"}, {ID: "b", Status: "notifying"}},
		{{ID: "a", Status: "started"}, {ID: "b", Status: "notifying"}},
		{{ID: "a", Status: "notifying"}, {ID: "b", Status: "notifying"}},
	}}
	var mu sync.Mutex
	var batches [][]string
	hooks := Hooks[row]{OnCalling: func(ids []string) {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, ids)
	}}
	p := New(rowConfig("test", script.fetch), hooks, logger.New("development"))

	for i := 0; i < 4; i++ {
		p.RefreshNow(context.Background())
	}

	// Poll 1: b is calling. Poll 2: a newly calling. Poll 3: none new.
	// Poll 4: a re-enters calling after leaving.
	want := [][]string{{"b"}, {"a"}, {"a"}}
	mu.Lock()
	defer mu.Unlock()
	if len(batches) != len(want) {
		t.Fatalf("calling batches = %v, want %v", batches, want)
	}
	for i := range want {
		if len(batches[i]) != len(want[i]) || batches[i][0] != want[i][0] {
			t.Fatalf("batch %d = %v, want %v", i, batches[i], want[i])
		}
	}
}

func TestCountIncreaseHook(t *testing.T) {
	script := &fetchScript{results: [][]row{
		{{ID: "a", Status: "started"}},
		{{ID: "a", Status: "started"}, {ID: "b", Status: "started"}},
		{{ID: "b", Status: "started"}},
	}}
	var deltas [][2]int
	hooks := Hooks[row]{OnCountIncrease: func(prev, cur int) { deltas = append(deltas, [2]int{prev, cur}) }}
	p := New(rowConfig("test", script.fetch), hooks, logger.New("development"))

	for i := 0; i < 3; i++ {
		p.RefreshNow(context.Background())
	}

	want := [][2]int{{0, 1}, {1, 2}}
	if len(deltas) != len(want) {
		t.Fatalf("deltas = %v, want %v", deltas, want)
	}
	for i := range want {
		if deltas[i] != want[i] {
			t.Fatalf("delta %d = %v, want %v", i, deltas[i], want[i])
		}
	}
}

func TestSweepTriggersImmediateRefetch(t *testing.T) {
	script := &fetchScript{results: [][]row{
		{{ID: "stale", Status: "started"}},
		{{ID: "fresh", Status: "started"}},
	}}
	cfg := rowConfig("test", script.fetch)
	swept := 0
	cfg.Sweep = func(ctx context.Context, records []row) bool {
		swept++
		return swept == 1 // only the first pass cancels anything
	}
	p := New(cfg, Hooks[row]{}, logger.New("development"))

	p.RefreshNow(context.Background())

	if script.callCount() != 2 {
		t.Fatalf("fetch called %d times, want 2 (original + post-sweep)", script.callCount())
	}
	snap := p.Snapshot()
	if len(snap.Records) != 1 || snap.Records[0].ID != "fresh" {
		t.Fatalf("board should show post-sweep data: %+v", snap.Records)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	script := &fetchScript{results: [][]row{{{ID: "a", Status: "started"}}}}
	cfg := rowConfig("test", script.fetch)
	cfg.Interval = 5 * time.Millisecond
	p := New(cfg, Hooks[row]{}, logger.New("development"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancel")
	}

	calls := script.callCount()
	time.Sleep(25 * time.Millisecond)
	if script.callCount() != calls {
		t.Fatal("polling continued after cancel")
	}
}
