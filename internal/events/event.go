// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"serviceflow_gateway/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Board Events
// =============================================================================

// BoardUpdated is published when a screen's reconciled record set has
// materially changed (suppressed polls do not publish it).
type BoardUpdated struct {
	BaseEvent
	Screen  string `json:"screen"`
	Version uint64 `json:"version"`
	Count   int    `json:"count"`
}

func (e BoardUpdated) EventName() string { return "board.updated" }

// RecordCalling is published when a record newly enters the calling/notifying
// phase on a screen. The announcer subscribes to this.
type RecordCalling struct {
	BaseEvent
	Screen    string `json:"screen"`
	ProcessID string `json:"processId"`
}

func (e RecordCalling) EventName() string { return "board.record.calling" }

// RecordCountIncreased is published when a screen that only tracks counts
// (the picklists list) sees more records than before.
type RecordCountIncreased struct {
	BaseEvent
	Screen   string `json:"screen"`
	Previous int    `json:"previous"`
	Current  int    `json:"current"`
}

func (e RecordCountIncreased) EventName() string { return "board.count.increased" }

// ProcessAutoCanceled is published after the 48-hour sweep silently cancels
// a stale process upstream.
type ProcessAutoCanceled struct {
	BaseEvent
	ProcessID string  `json:"processId"`
	AgeHours  float64 `json:"ageHours"`
}

func (e ProcessAutoCanceled) EventName() string { return "board.process.auto_canceled" }

// =============================================================================
// Announcer Events
// =============================================================================

// AnnouncementPlayed is published after the announcer finishes (or abandons)
// one playback step. Position is the record's 1-based slot in the visible
// queue at playback time.
type AnnouncementPlayed struct {
	BaseEvent
	Screen    string `json:"screen"`
	ProcessID string `json:"processId"`
	Position  int    `json:"position"`
	Failed    bool   `json:"failed"`
}

func (e AnnouncementPlayed) EventName() string { return "announcer.played" }

// =============================================================================
// Workflow Action Events
// =============================================================================

// ServicePointAdvanced is published when an officer action moved a process to
// its next service point upstream.
type ServicePointAdvanced struct {
	BaseEvent
	ProcessID   string `json:"processId"`
	From        string `json:"from"`
	To          string `json:"to"`
	OfficerID   string `json:"officerId"`
	OfficerName string `json:"officerName"`
}

func (e ServicePointAdvanced) EventName() string { return "workflow.service_point.advanced" }
