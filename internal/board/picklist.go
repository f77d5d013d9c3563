package board

import (
	"context"
	"strings"

	"serviceflow_gateway/internal/events"
	"serviceflow_gateway/internal/poller"
	"serviceflow_gateway/internal/workflow"
	"serviceflow_gateway/platform/logger"
)

// picklistAPI is the listing call the picklist board needs.
type picklistAPI interface {
	Picklists(ctx context.Context) ([]workflow.Picklist, error)
}

// PicklistBoard tracks the picklist listing. It carries no classification or
// role filtering; its job is the document list plus an alert whenever the
// count grows.
type PicklistBoard struct {
	def    ScreenDef
	bus    events.Bus
	poller *poller.Poller[workflow.Picklist]
}

func NewPicklistBoard(def ScreenDef, up picklistAPI, bus events.Bus, log *logger.Logger) *PicklistBoard {
	b := &PicklistBoard{def: def, bus: bus}

	b.poller = poller.New(poller.Config[workflow.Picklist]{
		Screen:      def.Name,
		Interval:    def.Interval,
		Fetch:       up.Picklists,
		Key:         func(p workflow.Picklist) string { return p.ID },
		Fingerprint: picklistFingerprint,
	}, poller.Hooks[workflow.Picklist]{
		OnChange:        b.onChange,
		OnCountIncrease: b.onCountIncrease,
	}, log)

	return b
}

func (b *PicklistBoard) Name() string { return b.def.Name }

func (b *PicklistBoard) Run(ctx context.Context) {
	b.poller.Run(ctx)
}

func (b *PicklistBoard) Refresh(ctx context.Context) {
	b.poller.RefreshNow(ctx)
}

func (b *PicklistBoard) Snapshot() poller.Snapshot[workflow.Picklist] {
	return b.poller.Snapshot()
}

func (b *PicklistBoard) onChange(snap poller.Snapshot[workflow.Picklist]) {
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

func (b *PicklistBoard) onCountIncrease(previous, current int) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(context.Background(), events.RecordCountIncreased{
		BaseEvent: events.NewBaseEvent(),
		Screen:    b.def.Name,
		Previous:  previous,
		Current:   current,
	})
}

// picklistFingerprint watches exactly the fields whose change should repaint
// the list: id, odn, url and status.
func picklistFingerprint(p workflow.Picklist) string {
	return strings.Join([]string{p.ID, p.ODN, p.URL, p.Status}, "|")
}
