package upstream

import "serviceflow_gateway/internal/workflow"

// TVCustomer is the denormalized record served to TV displays: the process
// plus its per-store ODN details keyed by store code.
type TVCustomer struct {
	workflow.ProcessRecord
	StoreDetails map[string]workflow.ODN `json:"store_details"`
}

// ODNActionRequest scopes every ODN sub-status transition. The backend
// requires all four fields on each call.
type ODNActionRequest struct {
	ProcessID   string `json:"process_id" validate:"required"`
	Store       string `json:"store" validate:"required"`
	OfficerID   string `json:"officer_id" validate:"required"`
	OfficerName string `json:"officer_name" validate:"required"`
}

// ExitPermitUpdate updates an ODN's exit permit status.
type ExitPermitUpdate struct {
	ODNActionRequest
	ExitPermitStatus string `json:"exit_permit_status" validate:"required"`
}

// GateStatusUpdate updates an ODN's gate status, recording the vehicle that
// passed the gate.
type GateStatusUpdate struct {
	ODNActionRequest
	GateStatus  string `json:"gate_status" validate:"required"`
	PlateNumber string `json:"plate_number"`
}

// ServicePointUpdate routes a process to its next service point.
type ServicePointUpdate struct {
	ProcessID        string `json:"process_id" validate:"required"`
	NextServicePoint string `json:"next_service_point" validate:"required"`
	OfficerID        string `json:"officer_id"`
	OfficerName      string `json:"officer_name"`
}

// ServiceTimeEntry is one append-only audit row of an officer action.
// EndTime must already be in FormatTimestamp form.
type ServiceTimeEntry struct {
	ProcessID   string `json:"process_id" validate:"required"`
	ServiceUnit string `json:"service_unit" validate:"required"`
	EndTime     string `json:"end_time" validate:"required"`
	OfficerID   string `json:"officer_id" validate:"required"`
	OfficerName string `json:"officer_name" validate:"required"`
	Status      string `json:"status"`
	Notes       string `json:"notes"`
}

// Track selects which audit endpoint a service-time entry is appended to.
type Track string

const (
	// TrackRDF is the retail (non-health-program) track.
	TrackRDF Track = "rdf"
	// TrackHP is the health-program track.
	TrackHP Track = "hp"
)

// odnsResponse is the GET /api/rdf-odns/:id shape.
type odnsResponse struct {
	Success bool           `json:"success"`
	Odns    []workflow.ODN `json:"odns"`
}

// errorResponse is the error body the backend emits on rejections. Either
// field may carry the message.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e errorResponse) text() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}
