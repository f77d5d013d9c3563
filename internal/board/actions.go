package board

import (
	"context"
	"time"

	"serviceflow_gateway/internal/audit"
	"serviceflow_gateway/internal/events"
	"serviceflow_gateway/internal/session"
	"serviceflow_gateway/internal/upstream"
	"serviceflow_gateway/internal/workflow"
	"serviceflow_gateway/platform/apperr"
	"serviceflow_gateway/platform/logger"
	"serviceflow_gateway/platform/validator"
)

// actionAPI is the slice of the backend client officer actions need.
type actionAPI interface {
	ODNs(ctx context.Context, processID string) ([]workflow.ODN, error)
	UpdateServicePoint(ctx context.Context, req upstream.ServicePointUpdate) error
	UpdateServiceStatus(ctx context.Context, processID, status string) error
	UpdateExitPermitStatus(ctx context.Context, req upstream.ExitPermitUpdate) error
	UpdateGateStatus(ctx context.Context, req upstream.GateStatusUpdate) error
	StartEWM(ctx context.Context, req upstream.ODNActionRequest) error
	CompleteEWM(ctx context.Context, req upstream.ODNActionRequest) error
	RevertEWM(ctx context.Context, req upstream.ODNActionRequest) error
}

// ODNAction is the request body shared by the store-scoped transitions.
type ODNAction struct {
	ProcessID string         `json:"process_id" validate:"required"`
	Store     string         `json:"store" validate:"required"`
	Track     upstream.Track `json:"track"`
	// PlateNumber is consulted by the gate pass action only.
	PlateNumber string `json:"plate_number"`
}

// AdvanceRequest routes a process to its next service point directly.
type AdvanceRequest struct {
	ProcessID        string         `json:"process_id" validate:"required"`
	NextServicePoint string         `json:"next_service_point" validate:"required"`
	Track            upstream.Track `json:"track"`
}

// Actions executes officer transitions against the backend. Every mutation
// re-fetches the process's ODN list to recompute the all-stores aggregation,
// appends a service-time audit entry, and forces a poll on the owning board.
type Actions struct {
	upstream actionAPI
	recorder audit.Recorder
	validate *validator.Validator
	bus      events.Bus
	log      *logger.Logger
	now      func() time.Time

	// refresh forces an immediate poll on every board touched by an action.
	refresh func(ctx context.Context)
}

func NewActions(up actionAPI, recorder audit.Recorder, validate *validator.Validator, bus events.Bus, log *logger.Logger, refresh func(ctx context.Context)) *Actions {
	if refresh == nil {
		refresh = func(context.Context) {}
	}
	return &Actions{
		upstream: up,
		recorder: recorder,
		validate: validate,
		bus:      bus,
		log:      log,
		now:      time.Now,
		refresh:  refresh,
	}
}

// StartEWM marks the store's ODN as in warehouse processing.
func (a *Actions) StartEWM(ctx context.Context, sess session.Context, req ODNAction) error {
	if err := a.validate.Struct(req); err != nil {
		return apperr.Validation(err.Error())
	}

	if err := a.upstream.StartEWM(ctx, a.odnRequest(sess, req)); err != nil {
		return err
	}

	a.recordServiceTime(ctx, sess, req.ProcessID, "ewm", "started", req.Track)
	a.refresh(ctx)
	return nil
}

// CompleteEWM finishes warehouse processing for the store's ODN. When every
// ODN of the process reports completion the process itself is routed to
// dispatch; a single completed store never advances the whole process.
func (a *Actions) CompleteEWM(ctx context.Context, sess session.Context, req ODNAction) error {
	if err := a.validate.Struct(req); err != nil {
		return apperr.Validation(err.Error())
	}

	if err := a.upstream.CompleteEWM(ctx, a.odnRequest(sess, req)); err != nil {
		return err
	}

	a.recordServiceTime(ctx, sess, req.ProcessID, "ewm", "completed", req.Track)

	if err := a.advanceWhenAll(ctx, sess, req.ProcessID, req.Track,
		func(odn workflow.ODN) bool { return workflow.StatusEquals(odn.EwmStatus, "completed") },
		"ewm", "dispatch"); err != nil {
		return err
	}

	a.refresh(ctx)
	return nil
}

// RevertEWM moves the store's ODN back to the pre-processing state.
func (a *Actions) RevertEWM(ctx context.Context, sess session.Context, req ODNAction) error {
	if err := a.validate.Struct(req); err != nil {
		return apperr.Validation(err.Error())
	}

	if err := a.upstream.RevertEWM(ctx, a.odnRequest(sess, req)); err != nil {
		return err
	}

	a.recordServiceTime(ctx, sess, req.ProcessID, "ewm", "reverted", req.Track)
	a.refresh(ctx)
	return nil
}

// GrantExitPermit marks the store's exit permit completed.
func (a *Actions) GrantExitPermit(ctx context.Context, sess session.Context, req ODNAction) error {
	if err := a.validate.Struct(req); err != nil {
		return apperr.Validation(err.Error())
	}

	err := a.upstream.UpdateExitPermitStatus(ctx, upstream.ExitPermitUpdate{
		ODNActionRequest: a.odnRequest(sess, req),
		ExitPermitStatus: "completed",
	})
	if err != nil {
		return err
	}

	a.recordServiceTime(ctx, sess, req.ProcessID, "exit-permit", "completed", req.Track)
	a.refresh(ctx)
	return nil
}

// PassGate records the vehicle leaving through the gate. When every store's
// gate is cleared the whole process is closed.
func (a *Actions) PassGate(ctx context.Context, sess session.Context, req ODNAction) error {
	if err := a.validate.Struct(req); err != nil {
		return apperr.Validation(err.Error())
	}

	err := a.upstream.UpdateGateStatus(ctx, upstream.GateStatusUpdate{
		ODNActionRequest: a.odnRequest(sess, req),
		GateStatus:       "completed",
		PlateNumber:      req.PlateNumber,
	})
	if err != nil {
		return err
	}

	a.recordServiceTime(ctx, sess, req.ProcessID, "gate", "completed", req.Track)

	odns, err := a.upstream.ODNs(ctx, req.ProcessID)
	if err != nil {
		return err
	}
	if workflow.AllODNs(odns, func(odn workflow.ODN) bool {
		return workflow.StatusEquals(odn.GateStatus, "completed")
	}) {
		if err := a.upstream.UpdateServiceStatus(ctx, req.ProcessID, "completed"); err != nil {
			return err
		}
	}

	a.refresh(ctx)
	return nil
}

// Advance routes a process to an explicit next service point.
func (a *Actions) Advance(ctx context.Context, sess session.Context, req AdvanceRequest) error {
	if err := a.validate.Struct(req); err != nil {
		return apperr.Validation(err.Error())
	}

	err := a.upstream.UpdateServicePoint(ctx, upstream.ServicePointUpdate{
		ProcessID:        req.ProcessID,
		NextServicePoint: req.NextServicePoint,
		OfficerID:        sess.UserID,
		OfficerName:      sess.FullName,
	})
	if err != nil {
		return err
	}

	a.publishAdvanced(ctx, sess, req.ProcessID, "", req.NextServicePoint)
	a.recordServiceTime(ctx, sess, req.ProcessID, req.NextServicePoint, "routed", req.Track)
	a.refresh(ctx)
	return nil
}

// advanceWhenAll re-fetches the ODN list and advances the process only when
// pred holds for every store.
func (a *Actions) advanceWhenAll(ctx context.Context, sess session.Context, processID string, track upstream.Track, pred func(workflow.ODN) bool, from, to string) error {
	odns, err := a.upstream.ODNs(ctx, processID)
	if err != nil {
		return err
	}
	if !workflow.AllODNs(odns, pred) {
		return nil
	}

	err = a.upstream.UpdateServicePoint(ctx, upstream.ServicePointUpdate{
		ProcessID:        processID,
		NextServicePoint: to,
		OfficerID:        sess.UserID,
		OfficerName:      sess.FullName,
	})
	if err != nil {
		return err
	}

	a.publishAdvanced(ctx, sess, processID, from, to)
	return nil
}

func (a *Actions) publishAdvanced(ctx context.Context, sess session.Context, processID, from, to string) {
	if a.bus == nil {
		return
	}
	a.bus.Publish(ctx, events.ServicePointAdvanced{
		BaseEvent:   events.NewBaseEvent(),
		ProcessID:   processID,
		From:        from,
		To:          to,
		OfficerID:   sess.UserID,
		OfficerName: sess.FullName,
	})
}

// recordServiceTime appends the audit row. Failures are logged, never
// surfaced: an officer action must not be rolled back because the audit
// queue hiccuped.
func (a *Actions) recordServiceTime(ctx context.Context, sess session.Context, processID, unit, status string, track upstream.Track) {
	if a.recorder == nil {
		return
	}
	if track != upstream.TrackHP {
		track = upstream.TrackRDF
	}

	entry := upstream.ServiceTimeEntry{
		ProcessID:   processID,
		ServiceUnit: unit,
		EndTime:     upstream.FormatTimestamp(a.now()),
		OfficerID:   sess.UserID,
		OfficerName: sess.FullName,
		Status:      status,
	}
	if err := a.recorder.RecordServiceTime(ctx, entry, track); err != nil {
		a.log.Error("service time entry dropped",
			"processId", processID,
			"serviceUnit", unit,
			"error", err)
	}
}

func (a *Actions) odnRequest(sess session.Context, req ODNAction) upstream.ODNActionRequest {
	return upstream.ODNActionRequest{
		ProcessID:   req.ProcessID,
		Store:       req.Store,
		OfficerID:   sess.UserID,
		OfficerName: sess.FullName,
	}
}
