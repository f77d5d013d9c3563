package board

import (
	"context"
	"sync"
	"testing"
	"time"

	"serviceflow_gateway/internal/session"
	"serviceflow_gateway/internal/upstream"
	"serviceflow_gateway/internal/workflow"
	"serviceflow_gateway/platform/logger"
)

type fakeUpstream struct {
	mu          sync.Mutex
	records     []workflow.ProcessRecord
	tv          []upstream.TVCustomer
	odns        map[string][]workflow.ODN
	statusCalls map[string]string
	listErr     error
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		odns:        make(map[string][]workflow.ODN),
		statusCalls: make(map[string]string),
	}
}

func (f *fakeUpstream) ServiceList(ctx context.Context, store string) ([]workflow.ProcessRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]workflow.ProcessRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeUpstream) TVDisplayCustomers(ctx context.Context) ([]upstream.TVCustomer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]upstream.TVCustomer, len(f.tv))
	copy(out, f.tv)
	return out, nil
}

func (f *fakeUpstream) ODNs(ctx context.Context, processID string) ([]workflow.ODN, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.odns[processID], nil
}

func (f *fakeUpstream) UpdateServiceStatus(ctx context.Context, processID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls[processID] = status
	return nil
}

func testBoard(def ScreenDef, store string, up upstreamAPI) *Board {
	return NewBoard(def, store, up, nil, nil, logger.New("development"))
}

func TestAutoCancelStrictBoundary(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)
	up := newFakeUpstream()
	b := testBoard(ScreenDef{Name: ScreenOutstandingProcesses, Source: SourceServiceList, AutoCancel: true}, "", up)
	b.now = func() time.Time { return now }

	rows := []Row{
		// Exactly 48 hours old: kept.
		{Record: workflow.ProcessRecord{ID: "exact", Status: "started",
			StartedAt: upstream.FormatTimestamp(now.Add(-staleProcessAge))}},
		// One millisecond past the boundary: canceled.
		{Record: workflow.ProcessRecord{ID: "over", Status: "started",
			StartedAt: now.Add(-staleProcessAge - time.Millisecond).Format(time.RFC3339Nano)}},
		// Already terminal: left alone regardless of age.
		{Record: workflow.ProcessRecord{ID: "done", Status: "completed",
			StartedAt: upstream.FormatTimestamp(now.Add(-90 * 24 * time.Hour))}},
		// Unparseable timestamp: skipped, never canceled.
		{Record: workflow.ProcessRecord{ID: "garbled", Status: "started", StartedAt: "not a date"}},
	}

	if !b.cancelStale(context.Background(), rows) {
		t.Fatal("sweep must report a cancellation to force a refetch")
	}

	if got := up.statusCalls["over"]; got != "Canceled" {
		t.Fatalf("over-age record status = %q, want Canceled", got)
	}
	for _, id := range []string{"exact", "done", "garbled"} {
		if _, touched := up.statusCalls[id]; touched {
			t.Fatalf("record %q must not be canceled", id)
		}
	}
}

func TestAutoCancelNothingStaleReportsFalse(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)
	up := newFakeUpstream()
	b := testBoard(ScreenDef{Name: ScreenOutstandingProcesses, Source: SourceServiceList, AutoCancel: true}, "", up)
	b.now = func() time.Time { return now }

	rows := []Row{{Record: workflow.ProcessRecord{ID: "young", Status: "started",
		StartedAt: upstream.FormatTimestamp(now.Add(-time.Hour))}}}
	if b.cancelStale(context.Background(), rows) {
		t.Fatal("sweep with nothing stale must not force a refetch")
	}
}

func TestFetchJoinsODNsAndClassifiesPerStore(t *testing.T) {
	up := newFakeUpstream()
	up.records = []workflow.ProcessRecord{
		{ID: "p1", Status: "o2c_completed", NextServicePoint: "ewm", StartedAt: upstream.FormatTimestamp(time.Now())},
	}
	up.odns["p1"] = []workflow.ODN{
		{ProcessID: "p1", Store: "AA11", EwmStatus: "completed"},
		{ProcessID: "p1", Store: "AA12", EwmStatus: "started"},
	}

	b := testBoard(ScreenDef{Name: ScreenEWMDashboard, Source: SourceServiceList, NeedsODNs: true}, "AA12", up)

	rows, err := b.fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	// AA12's own ODN is mid-processing; the completed AA11 ODN must not leak
	// into this store's classification.
	if rows[0].Class.Tag != workflow.TagProcessing {
		t.Fatalf("AA12 tag = %q, want %q", rows[0].Class.Tag, workflow.TagProcessing)
	}

	b11 := testBoard(ScreenDef{Name: ScreenEWMDashboard, Source: SourceServiceList, NeedsODNs: true}, "AA11", up)
	rows11, err := b11.fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch AA11: %v", err)
	}
	if rows11[0].Class.Tag != workflow.TagReadyForDispatch {
		t.Fatalf("AA11 tag = %q, want %q", rows11[0].Class.Tag, workflow.TagReadyForDispatch)
	}
}

func TestFetchTVConvertsStoreDetails(t *testing.T) {
	up := newFakeUpstream()
	up.tv = []upstream.TVCustomer{{
		ProcessRecord: workflow.ProcessRecord{ID: "p1", Status: "started", StartedAt: upstream.FormatTimestamp(time.Now())},
		StoreDetails: map[string]workflow.ODN{
			"AA12": {ProcessID: "p1", DispatchStatus: "notifying"},
			"AA11": {ProcessID: "p1", Store: "AA11", DispatchStatus: "started"},
		},
	}}

	b := testBoard(ScreenDef{Name: ScreenTVKiosk, Source: SourceTVDisplay}, "", up)
	rows, err := b.fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows[0].ODNs) != 2 {
		t.Fatalf("odns = %d, want 2", len(rows[0].ODNs))
	}
	// Map key backfills a missing store code, and conversion is sorted.
	if rows[0].ODNs[0].Store != "AA11" || rows[0].ODNs[1].Store != "AA12" {
		t.Fatalf("odn stores = %q, %q", rows[0].ODNs[0].Store, rows[0].ODNs[1].Store)
	}
}

func TestFetchTVOrdersByStartedAt(t *testing.T) {
	base := time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)
	up := newFakeUpstream()
	up.tv = []upstream.TVCustomer{
		{ProcessRecord: workflow.ProcessRecord{ID: "late", Status: "started", StartedAt: upstream.FormatTimestamp(base.Add(2 * time.Hour))}},
		{ProcessRecord: workflow.ProcessRecord{ID: "broken", Status: "started", StartedAt: "not-a-time"}},
		{ProcessRecord: workflow.ProcessRecord{ID: "early", Status: "started", StartedAt: upstream.FormatTimestamp(base)}},
		{ProcessRecord: workflow.ProcessRecord{ID: "mid", Status: "started", StartedAt: upstream.FormatTimestamp(base.Add(time.Hour))}},
	}

	b := testBoard(ScreenDef{Name: ScreenTVKiosk, Source: SourceTVDisplay}, "", up)
	rows, err := b.fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	got := make([]string, len(rows))
	for i, row := range rows {
		got[i] = row.Record.ID
	}
	want := []string{"early", "mid", "late", "broken"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("display order = %v, want %v", got, want)
		}
	}
}

func TestViewAppliesRoleFilter(t *testing.T) {
	up := newFakeUpstream()
	up.records = []workflow.ProcessRecord{
		{ID: "mine", Status: "started", NextServicePoint: "o2c", AssignedOfficerID: "u1"},
		{ID: "other", Status: "started", NextServicePoint: "o2c", AssignedOfficerID: "u2"},
		{ID: "mgr", Status: "started", NextServicePoint: "manager"},
	}
	b := testBoard(ScreenDef{Name: ScreenO2CDashboard, Source: SourceServiceList}, "", up)
	b.Refresh(context.Background())

	admin := b.View(session.Context{UserID: "u1", JobTitle: "admin"})
	if len(admin) != 3 {
		t.Fatalf("admin sees %d rows, want 3", len(admin))
	}

	o2c := b.View(session.Context{UserID: "u1", JobTitle: "o2c officer"})
	if len(o2c) != 1 || o2c[0].Record.ID != "mine" {
		t.Fatalf("o2c view = %+v", o2c)
	}

	nobody := b.View(session.Context{UserID: "u1", JobTitle: "visitor"})
	if len(nobody) != 0 {
		t.Fatalf("unknown role sees %d rows, want 0", len(nobody))
	}
}

func TestRowFingerprintIgnoresODNOrder(t *testing.T) {
	a := Row{Record: workflow.ProcessRecord{ID: "p1", Status: "started"}, ODNs: []workflow.ODN{
		{Store: "AA11", EwmStatus: "started"},
		{Store: "AA12", EwmStatus: "completed"},
	}}
	b := Row{Record: a.Record, ODNs: []workflow.ODN{a.ODNs[1], a.ODNs[0]}}
	if rowFingerprint(a) != rowFingerprint(b) {
		t.Fatal("fingerprint must not depend on ODN order")
	}

	c := a
	c.ODNs = []workflow.ODN{a.ODNs[0], {Store: "AA12", EwmStatus: "started"}}
	if rowFingerprint(a) == rowFingerprint(c) {
		t.Fatal("fingerprint must change with a sub-status")
	}
}

func TestCallingPositionFollowsDisplayOrder(t *testing.T) {
	up := newFakeUpstream()
	base := time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)
	up.records = []workflow.ProcessRecord{
		{ID: "late", Status: "notifying", StartedAt: upstream.FormatTimestamp(base.Add(10 * time.Minute))},
		{ID: "early", Status: "notifying", StartedAt: upstream.FormatTimestamp(base)},
		{ID: "waiting", Status: "started", StartedAt: upstream.FormatTimestamp(base.Add(5 * time.Minute))},
	}
	b := testBoard(ScreenDef{Name: ScreenO2CDashboard, Source: SourceServiceList}, "", up)
	b.Refresh(context.Background())

	if pos := b.callingPosition("early"); pos != 1 {
		t.Fatalf("early position = %d, want 1", pos)
	}
	if pos := b.callingPosition("late"); pos != 2 {
		t.Fatalf("late position = %d, want 2", pos)
	}
	if pos := b.callingPosition("waiting"); pos != 0 {
		t.Fatalf("non-calling record position = %d, want 0", pos)
	}
	if pos := b.callingPosition("gone"); pos != 0 {
		t.Fatalf("vanished record position = %d, want 0", pos)
	}
}
