package workflow

import "time"

// Theme is the display theme a screen renders a classification with.
type Theme string

const (
	ThemeInfo    Theme = "info"
	ThemeWarning Theme = "warning"
	ThemeSuccess Theme = "success"
	ThemeAlert   Theme = "alert"
	ThemeMuted   Theme = "muted"
)

// Classification is the derived phase tag and theme for one record on one
// screen. Pure data, no behavior.
type Classification struct {
	Tag      string `json:"tag"`
	Theme    Theme  `json:"theme"`
	WaitDays int    `json:"wait_days"`
}

// Store-level phase tags produced by the precedence chain.
const (
	TagReadyForPickup   = "ready_for_pickup"
	TagInProgress       = "in_progress"
	TagProcessing       = "processing"
	TagReadyForDispatch = "ready_for_dispatch"
)

// alertWaitDays is the waiting threshold after which a record is themed as an
// alert regardless of phase.
const alertWaitDays = 3

// Classify derives the display classification for a store-level row.
// Precedence is checked in order and stops at the first match:
// dispatch notifying, dispatch started, ewm started, ewm completed, then the
// parent record's global status. Different screens depend on this exact
// ordering; do not reorder.
func Classify(rec ProcessRecord, odn *ODN, now time.Time) Classification {
	wait := WaitDays(rec.StartedAt, now)

	tag, theme := globalTag(rec)
	if odn != nil {
		switch {
		case statusIs(odn.DispatchStatus, "notifying"):
			tag, theme = TagReadyForPickup, ThemeSuccess
		case statusIs(odn.DispatchStatus, "started"):
			tag, theme = TagInProgress, ThemeInfo
		case statusIs(odn.EwmStatus, "started"):
			tag, theme = TagProcessing, ThemeInfo
		case statusIs(odn.EwmStatus, "completed"):
			tag, theme = TagReadyForDispatch, ThemeSuccess
		}
	}

	if wait >= alertWaitDays {
		theme = ThemeAlert
	}

	return Classification{Tag: tag, Theme: theme, WaitDays: wait}
}

// ClassifyGlobal derives the classification for a process-level row with no
// store scoping (TV display, outstanding list).
func ClassifyGlobal(rec ProcessRecord, now time.Time) Classification {
	return Classify(rec, nil, now)
}

func globalTag(rec ProcessRecord) (string, Theme) {
	phase := ParsePhase(rec.Status)
	switch phase {
	case PhaseNotifying, PhaseDispatchNotify:
		return string(phase), ThemeWarning
	case PhaseCompleted, PhaseApproved:
		return string(phase), ThemeSuccess
	case PhaseCanceled, PhaseRejected:
		return string(phase), ThemeMuted
	default:
		return string(phase), ThemeInfo
	}
}
