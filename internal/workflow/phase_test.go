package workflow

import (
	"testing"
	"time"
)

func TestParsePhase(t *testing.T) {
	cases := []struct {
		raw  string
		want Phase
	}{
		{"started", PhaseStarted},
		{"Started", PhaseStarted},
		{"  NOTIFYING ", PhaseNotifying},
		{"o2c_completed", PhaseO2CCompleted},
		{"O2C Completed", PhaseO2CCompleted},
		{"ewm_completed", PhaseEwmCompleted},
		{"dispatch_notify", PhaseDispatchNotify},
		{"dispatch_notifying", PhaseDispatchNotify},
		{"dispatching", PhaseDispatching},
		{"completed", PhaseCompleted},
		{"Canceled", PhaseCanceled},
		{"cancelled", PhaseCanceled},
		{"rejected", PhaseRejected},
		{"approved", PhaseApproved},
		{"", PhaseUnknown},
		{"garbage", PhaseUnknown},
	}

	for _, tc := range cases {
		if got := ParsePhase(tc.raw); got != tc.want {
			t.Errorf("ParsePhase(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestPhaseTerminal(t *testing.T) {
	terminal := []Phase{PhaseCompleted, PhaseCanceled, PhaseRejected}
	for _, p := range terminal {
		if !p.Terminal() {
			t.Errorf("%q should be terminal", p)
		}
	}
	open := []Phase{PhaseStarted, PhaseNotifying, PhaseO2CCompleted, PhaseApproved, PhaseUnknown}
	for _, p := range open {
		if p.Terminal() {
			t.Errorf("%q should not be terminal", p)
		}
	}
}

func TestPhaseCalling(t *testing.T) {
	if !PhaseNotifying.Calling() || !PhaseDispatchNotify.Calling() {
		t.Fatal("notifying phases must be calling")
	}
	if PhaseStarted.Calling() || PhaseCompleted.Calling() {
		t.Fatal("non-notifying phases must not be calling")
	}
}

func TestParseTimestampTolerance(t *testing.T) {
	if _, ok := ParseTimestamp(""); ok {
		t.Fatal("empty timestamp must not parse")
	}
	if _, ok := ParseTimestamp("not-a-date"); ok {
		t.Fatal("malformed timestamp must not parse")
	}

	got, ok := ParseTimestamp("2024-01-05 09:03:07")
	if !ok {
		t.Fatal("audit-format timestamp must parse")
	}
	want := time.Date(2024, 1, 5, 9, 3, 7, 0, time.Local)
	if !got.Equal(want) {
		t.Fatalf("parsed %v, want %v", got, want)
	}

	if _, ok := ParseTimestamp("2024-01-05T09:03:07Z"); !ok {
		t.Fatal("RFC3339 timestamp must parse")
	}
}

func TestWaitDays(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)

	cases := []struct {
		startedAt string
		want      int
	}{
		{"2024-03-10 11:00:00", 0},
		{"2024-03-07 12:00:00", 3},
		{"2024-03-07 12:00:01", 2},
		{"", -1},
		{"garbage", -1},
		// Clock skew: a start time in the future clamps to zero.
		{"2024-03-11 12:00:00", 0},
	}

	for _, tc := range cases {
		if got := WaitDays(tc.startedAt, now); got != tc.want {
			t.Errorf("WaitDays(%q) = %d, want %d", tc.startedAt, got, tc.want)
		}
	}
}
