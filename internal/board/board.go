// Package board assembles per-screen dashboards from the upstream workflow
// backend. Each screen owns one polling loop that fetches, classifies and
// reconciles records; the kiosk screens additionally drive an announcement
// queue, and the outstanding-processes screen sweeps stale processes.
package board

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"serviceflow_gateway/internal/announcer"
	"serviceflow_gateway/internal/events"
	"serviceflow_gateway/internal/poller"
	"serviceflow_gateway/internal/rolefilter"
	"serviceflow_gateway/internal/session"
	"serviceflow_gateway/internal/upstream"
	"serviceflow_gateway/internal/workflow"
	"serviceflow_gateway/platform/logger"
)

// odnFetchConcurrency caps parallel ODN lookups during one poll cycle.
const odnFetchConcurrency = 4

// staleProcessAge is the auto-cancel threshold. Processes strictly older than
// this are canceled upstream by the outstanding-processes sweep.
const staleProcessAge = 48 * time.Hour

// Row is one displayable record: the raw process record, its ODN list when
// the screen is store-scoped, and the derived classification.
type Row struct {
	Record workflow.ProcessRecord  `json:"record"`
	ODNs   []workflow.ODN          `json:"odns,omitempty"`
	Class  workflow.Classification `json:"classification"`
}

// upstreamAPI is the slice of the backend client a board needs. Narrowed for
// tests.
type upstreamAPI interface {
	ServiceList(ctx context.Context, store string) ([]workflow.ProcessRecord, error)
	TVDisplayCustomers(ctx context.Context) ([]upstream.TVCustomer, error)
	ODNs(ctx context.Context, processID string) ([]workflow.ODN, error)
	UpdateServiceStatus(ctx context.Context, processID, status string) error
}

// Board owns one screen's state: a polling reconciler plus, depending on the
// screen definition, an announcement queue and the stale-process sweep.
type Board struct {
	def      ScreenDef
	store    string
	upstream upstreamAPI
	bus      events.Bus
	log      *logger.Logger
	now      func() time.Time

	poller    *poller.Poller[Row]
	announcer *announcer.Queue
}

// NewBoard builds a board for def, scoped to store (empty for facility-wide
// screens). player is only consulted when the screen announces.
func NewBoard(def ScreenDef, store string, up upstreamAPI, player announcer.Player, bus events.Bus, log *logger.Logger) *Board {
	b := &Board{
		def:      def,
		store:    store,
		upstream: up,
		bus:      bus,
		log:      log.WithScreen(def.Name),
		now:      time.Now,
	}

	if def.Announce && player != nil {
		b.announcer = announcer.New(announcer.Config{
			Screen:     def.Name,
			Cooldown:   def.AnnounceCooldown,
			PositionOf: b.callingPosition,
		}, player, bus, log)
	}

	cfg := poller.Config[Row]{
		Screen:      def.Name,
		Interval:    def.Interval,
		Fetch:       b.fetch,
		Key:         func(r Row) string { return r.Record.ID },
		Fingerprint: rowFingerprint,
		IsCalling:   func(r Row) bool { return b.rowCalling(r) },
	}
	if def.AutoCancel {
		cfg.Sweep = b.cancelStale
	}

	b.poller = poller.New(cfg, poller.Hooks[Row]{
		OnChange:  b.onChange,
		OnCalling: b.onCalling,
	}, log)

	return b
}

// Name returns the screen this board serves.
func (b *Board) Name() string { return b.def.Name }

// Store returns the store scope, empty for facility-wide boards.
func (b *Board) Store() string { return b.store }

// Run starts the polling loop and, when the screen announces, the playback
// worker. It blocks until ctx is canceled.
func (b *Board) Run(ctx context.Context) {
	if b.announcer != nil {
		go b.announcer.Run(ctx)
	}
	b.poller.Run(ctx)
}

// Refresh forces an immediate poll, used right after an officer action.
func (b *Board) Refresh(ctx context.Context) {
	b.poller.RefreshNow(ctx)
}

// Announcer exposes the call-out queue, nil for silent screens.
func (b *Board) Announcer() *announcer.Queue { return b.announcer }

// Snapshot returns the raw reconciled board state.
func (b *Board) Snapshot() poller.Snapshot[Row] {
	return b.poller.Snapshot()
}

// SetDraft stores one in-progress form field for a record. Drafted records
// are shielded from poll refreshes until the draft is cleared.
func (b *Board) SetDraft(recordID, field, value string) {
	b.poller.SetDraft(recordID, field, value)
}

// ClearDraft discards a record's draft.
func (b *Board) ClearDraft(recordID string) {
	b.poller.ClearDraft(recordID)
}

// View filters the board through the session's role predicate and returns
// rows in display order.
func (b *Board) View(sess session.Context) []Row {
	snap := b.poller.Snapshot()

	records := make([]workflow.ProcessRecord, len(snap.Records))
	odns := make(map[string][]workflow.ODN, len(snap.Records))
	byID := make(map[string]Row, len(snap.Records))
	for i, row := range snap.Records {
		records[i] = row.Record
		odns[row.Record.ID] = row.ODNs
		byID[row.Record.ID] = row
	}

	filtered := rolefilter.Filter(records, odns, sess)
	out := make([]Row, 0, len(filtered))
	for _, rec := range filtered {
		out = append(out, byID[rec.ID])
	}
	return out
}

func (b *Board) fetch(ctx context.Context) ([]Row, error) {
	switch b.def.Source {
	case SourceTVDisplay:
		return b.fetchTV(ctx)
	default:
		return b.fetchServiceList(ctx)
	}
}

func (b *Board) fetchServiceList(ctx context.Context) ([]Row, error) {
	records, err := b.upstream.ServiceList(ctx, b.store)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, len(records))
	now := b.now()
	for i, rec := range records {
		rows[i] = Row{Record: rec, Class: workflow.ClassifyGlobal(rec, now)}
	}

	if b.def.NeedsODNs {
		if err := b.attachODNs(ctx, rows); err != nil {
			return nil, err
		}
		for i := range rows {
			odn := workflow.ODNForStore(rows[i].ODNs, b.store)
			rows[i].Class = workflow.Classify(rows[i].Record, odn, now)
		}
	}

	b.syncAnnouncer(rows)
	return rows, nil
}

func (b *Board) fetchTV(ctx context.Context) ([]Row, error) {
	customers, err := b.upstream.TVDisplayCustomers(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, len(customers))
	now := b.now()
	for i, cust := range customers {
		odns := storeDetailsToODNs(cust.StoreDetails)
		rows[i] = Row{
			Record: cust.ProcessRecord,
			ODNs:   odns,
			Class:  workflow.Classify(cust.ProcessRecord, workflow.ODNForStore(odns, b.store), now),
		}
	}

	// TV displays show arrivals oldest first regardless of fetch order.
	rolefilter.SortByStartedAtFunc(rows, func(r Row) string { return r.Record.StartedAt })

	b.syncAnnouncer(rows)
	return rows, nil
}

// attachODNs joins each record's ODN list, a bounded fan-out since a board
// can hold dozens of records and the backend serves one process per call.
func (b *Board) attachODNs(ctx context.Context, rows []Row) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(odnFetchConcurrency)

	for i := range rows {
		i := i // per-iteration copy; module targets a pre-1.22 go directive
		g.Go(func() error {
			odns, err := b.upstream.ODNs(gctx, rows[i].Record.ID)
			if err != nil {
				return fmt.Errorf("odns for %s: %w", rows[i].Record.ID, err)
			}
			rows[i].ODNs = odns
			return nil
		})
	}
	return g.Wait()
}

// cancelStale is the outstanding-processes sweep. Any record strictly older
// than 48 hours is canceled upstream. It reports whether a cancellation
// happened so the poll refetches immediately.
func (b *Board) cancelStale(ctx context.Context, rows []Row) bool {
	now := b.now()
	canceled := false
	for _, row := range rows {
		started, ok := workflow.ParseTimestamp(row.Record.StartedAt)
		if !ok {
			continue
		}
		age := now.Sub(started)
		if age <= staleProcessAge {
			continue
		}
		if workflow.ParsePhase(row.Record.Status).Terminal() {
			continue
		}

		err := b.upstream.UpdateServiceStatus(ctx, row.Record.ID, "Canceled")
		b.log.AutoCancel(row.Record.ID, age.Hours(), err)
		if err != nil {
			continue
		}
		canceled = true
		if b.bus != nil {
			b.bus.Publish(ctx, events.ProcessAutoCanceled{
				BaseEvent: events.NewBaseEvent(),
				ProcessID: row.Record.ID,
				AgeHours:  age.Hours(),
			})
		}
	}
	return canceled
}

func (b *Board) onChange(snap poller.Snapshot[Row]) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(context.Background(), events.BoardUpdated{
		BaseEvent: events.NewBaseEvent(),
		Screen:    b.def.Name,
		Version:   snap.Version,
		Count:     len(snap.Records),
	})
}

func (b *Board) onCalling(ids []string) {
	if b.bus != nil {
		for _, id := range ids {
			b.bus.Publish(context.Background(), events.RecordCalling{
				BaseEvent: events.NewBaseEvent(),
				Screen:    b.def.Name,
				ProcessID: id,
			})
		}
	}
	if b.announcer != nil {
		b.announcer.EnqueueBatch(ids)
	}
}

// syncAnnouncer reconciles the cool-down set on every fetch, including polls
// whose result is otherwise suppressed, so a record that leaves the calling
// phase becomes announceable again as soon as it re-enters.
func (b *Board) syncAnnouncer(rows []Row) {
	if b.announcer == nil {
		return
	}
	var calling []string
	for _, row := range rows {
		if b.rowCalling(row) {
			calling = append(calling, row.Record.ID)
		}
	}
	b.announcer.SyncCalling(calling)
}

// rowCalling reports whether the row should be called out: the global status
// is a notifying phase, or the store's own dispatch just turned notifying.
func (b *Board) rowCalling(r Row) bool {
	if workflow.ParsePhase(r.Record.Status).Calling() {
		return true
	}
	if b.store == "" {
		return false
	}
	odn := workflow.ODNForStore(r.ODNs, b.store)
	return odn != nil && workflow.StatusEquals(odn.DispatchStatus, "notifying")
}

// callingPosition resolves a record's 1-based slot among the currently
// calling rows, ordered the way the kiosk displays them. Zero means the
// record left the queue.
func (b *Board) callingPosition(processID string) int {
	snap := b.poller.Snapshot()

	var calling []workflow.ProcessRecord
	for _, row := range snap.Records {
		if b.rowCalling(row) {
			calling = append(calling, row.Record)
		}
	}
	rolefilter.SortByStartedAt(calling)

	for i, rec := range calling {
		if rec.ID == processID {
			return i + 1
		}
	}
	return 0
}

// rowFingerprint covers the fields whose change should repaint a screen. The
// poller treats fetches with an identical fingerprint multiset as no-ops.
func rowFingerprint(r Row) string {
	var sb strings.Builder
	sb.WriteString(r.Record.ID)
	sb.WriteByte('|')
	sb.WriteString(r.Record.Status)
	sb.WriteByte('|')
	sb.WriteString(r.Record.NextServicePoint)
	for _, odn := range sortedODNs(r.ODNs) {
		sb.WriteByte('|')
		sb.WriteString(odn.Store)
		sb.WriteByte(':')
		sb.WriteString(odn.Number)
		sb.WriteByte(':')
		sb.WriteString(odn.EwmStatus)
		sb.WriteByte(':')
		sb.WriteString(odn.ExitPermitStatus)
		sb.WriteByte(':')
		sb.WriteString(odn.GateStatus)
		sb.WriteByte(':')
		sb.WriteString(odn.DispatchStatus)
	}
	return sb.String()
}

func sortedODNs(odns []workflow.ODN) []workflow.ODN {
	out := make([]workflow.ODN, len(odns))
	copy(out, odns)
	sort.Slice(out, func(i, j int) bool { return out[i].Store < out[j].Store })
	return out
}

func storeDetailsToODNs(details map[string]workflow.ODN) []workflow.ODN {
	odns := make([]workflow.ODN, 0, len(details))
	for store, odn := range details {
		if odn.Store == "" {
			odn.Store = store
		}
		odns = append(odns, odn)
	}
	sort.Slice(odns, func(i, j int) bool { return odns[i].Store < odns[j].Store })
	return odns
}
