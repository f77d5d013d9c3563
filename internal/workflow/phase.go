package workflow

import (
	"strings"
	"time"
)

// Phase is the closed set of global workflow phases. The backend stores
// free-text status strings; ParsePhase is the single place raw strings are
// mapped into this set so screen rules cannot silently diverge.
type Phase string

const (
	PhaseStarted        Phase = "started"
	PhaseNotifying      Phase = "notifying"
	PhaseO2CStarted     Phase = "o2c_started"
	PhaseO2CCompleted   Phase = "o2c_completed"
	PhaseEwmCompleted   Phase = "ewm_completed"
	PhaseDispatchNotify Phase = "dispatch_notify"
	PhaseDispatching    Phase = "dispatching"
	PhaseCompleted      Phase = "completed"
	PhaseCanceled       Phase = "canceled"
	PhaseRejected       Phase = "rejected"
	PhaseApproved       Phase = "approved"
	PhaseUnknown        Phase = "unknown"
)

// ParsePhase maps a raw backend status string to a Phase. Comparison is
// case-insensitive; missing or unrecognized values map to PhaseUnknown.
func ParsePhase(raw string) Phase {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "started":
		return PhaseStarted
	case "notifying":
		return PhaseNotifying
	case "o2c_started", "o2c started":
		return PhaseO2CStarted
	case "o2c_completed", "o2c completed":
		return PhaseO2CCompleted
	case "ewm_completed", "ewm completed":
		return PhaseEwmCompleted
	case "dispatch_notify", "dispatch_notifying":
		return PhaseDispatchNotify
	case "dispatching", "dispatch_started":
		return PhaseDispatching
	case "completed":
		return PhaseCompleted
	case "canceled", "cancelled":
		return PhaseCanceled
	case "rejected":
		return PhaseRejected
	case "approved":
		return PhaseApproved
	default:
		return PhaseUnknown
	}
}

// Terminal reports whether the phase ends the journey. Approved is not
// terminal: an approved process continues through the workflow.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseCanceled, PhaseRejected:
		return true
	default:
		return false
	}
}

// Calling reports whether the phase means a customer is being called to a
// service point. These records feed the announcement queue.
func (p Phase) Calling() bool {
	return p == PhaseNotifying || p == PhaseDispatchNotify
}

// timestampLayouts are the shapes the backend has been observed to emit.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a raw backend timestamp. The boolean is false for
// empty or malformed input; callers must treat that as "N/A", never an error.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// WaitDays returns the whole days elapsed since startedAt, or -1 when the
// timestamp is missing or malformed.
func WaitDays(startedAt string, now time.Time) int {
	started, ok := ParseTimestamp(startedAt)
	if !ok {
		return -1
	}
	days := int(now.Sub(started).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
