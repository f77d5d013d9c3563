// Package announcer drives the kiosk call-out sequence. Records that enter a
// calling phase are queued and announced one at a time, with pacing between
// announcements and a per-record cool-down so a customer is not called twice
// in quick succession.
package announcer

import (
	"context"
	"sync"
	"time"

	"serviceflow_gateway/internal/events"
	"serviceflow_gateway/platform/logger"
)

// Announcement is one playback step handed to the Player. Position is the
// record's 1-based slot in the visible queue at playback time, which is what
// gets spoken ("customer number three"), not a database id.
type Announcement struct {
	Screen    string
	ProcessID string
	Position  int
}

// Player performs the actual audio or signage output. Implementations may
// fail (device unavailable, stream rejected); the queue logs and moves on.
type Player interface {
	Announce(ctx context.Context, a Announcement) error
}

// PlayerFunc adapts a function to the Player interface.
type PlayerFunc func(ctx context.Context, a Announcement) error

func (f PlayerFunc) Announce(ctx context.Context, a Announcement) error { return f(ctx, a) }

// Config parameterizes one screen's announcement queue.
type Config struct {
	// Screen names the owning board for logging and events.
	Screen string
	// Cooldown is how long a record stays muted after being announced while
	// it remains in the calling phase.
	Cooldown time.Duration
	// Pace is the delay between consecutive playback steps.
	Pace time.Duration
	// PositionOf resolves a record's current 1-based position in the visible
	// queue. Returning 0 means the record is no longer displayed and the
	// announcement is skipped.
	PositionOf func(processID string) int
}

const (
	DefaultCooldown = 3 * time.Second
	DefaultPace     = 2500 * time.Millisecond
)

// Queue is a FIFO of pending announcements with de-duplication and per-record
// cool-down. A single worker goroutine (Run) plays items sequentially, so at
// most one announcement is in flight per screen.
type Queue struct {
	cfg    Config
	player Player
	bus    events.Bus
	log    *logger.Logger
	now    func() time.Time

	mu       sync.Mutex
	pending  []string
	queued   map[string]bool
	mutedTil map[string]time.Time
	enabled  bool

	wake chan struct{}
}

func New(cfg Config, player Player, bus events.Bus, log *logger.Logger) *Queue {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Pace <= 0 {
		cfg.Pace = DefaultPace
	}
	return &Queue{
		cfg:      cfg,
		player:   player,
		bus:      bus,
		log:      log.WithScreen(cfg.Screen),
		now:      time.Now,
		queued:   make(map[string]bool),
		mutedTil: make(map[string]time.Time),
		wake:     make(chan struct{}, 1),
	}
}

// Enable arms playback. Nothing plays before this; the kiosk requires an
// explicit start gesture from staff before any audio output. Items enqueued
// earlier stay buffered and play once enabled.
func (q *Queue) Enable() {
	q.mu.Lock()
	q.enabled = true
	q.mu.Unlock()
	q.signal()
}

// Enabled reports whether the start gesture has happened.
func (q *Queue) Enabled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enabled
}

// Enqueue adds a record to the back of the queue. It reports false when the
// record is already queued or still inside its cool-down window.
func (q *Queue) Enqueue(processID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.queued[processID] {
		return false
	}
	if until, muted := q.mutedTil[processID]; muted && q.now().Before(until) {
		return false
	}
	delete(q.mutedTil, processID)
	q.pending = append(q.pending, processID)
	q.queued[processID] = true
	q.signalLocked()
	return true
}

// EnqueueBatch enqueues ids in order, typically the newly-calling diff from a
// poll cycle.
func (q *Queue) EnqueueBatch(processIDs []string) {
	for _, id := range processIDs {
		q.Enqueue(id)
	}
}

// SyncCalling reconciles the cool-down set against the records currently in
// the calling phase. A record that left the phase has its cool-down cleared,
// so it is announced again if it ever re-enters.
func (q *Queue) SyncCalling(callingIDs []string) {
	calling := make(map[string]bool, len(callingIDs))
	for _, id := range callingIDs {
		calling[id] = true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for id := range q.mutedTil {
		if !calling[id] {
			delete(q.mutedTil, id)
		}
	}
}

// Stop flushes all pending announcements. The in-flight playback step, if
// any, runs to completion. Cool-down state is kept.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.queued = make(map[string]bool)
}

// Len returns the number of queued announcements.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Run processes the queue until ctx is canceled. It is the only goroutine
// that touches the player.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}
		for {
			id, ok := q.pop()
			if !ok {
				break
			}
			if !q.playOne(ctx, id) {
				continue // record left the board, no pacing needed
			}
			if !sleepCtx(ctx, q.cfg.Pace) {
				return
			}
		}
	}
}

func (q *Queue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.enabled || len(q.pending) == 0 {
		return "", false
	}
	id := q.pending[0]
	q.pending = q.pending[1:]
	delete(q.queued, id)
	return id, true
}

// playOne announces a single record and reports whether playback was
// attempted (skipped records do not consume a pacing slot).
func (q *Queue) playOne(ctx context.Context, id string) bool {
	pos := 0
	if q.cfg.PositionOf != nil {
		pos = q.cfg.PositionOf(id)
	}
	if pos <= 0 {
		q.log.AnnounceEvent(q.cfg.Screen, "skipped", id, 0)
		return false
	}

	err := q.player.Announce(ctx, Announcement{Screen: q.cfg.Screen, ProcessID: id, Position: pos})
	if err != nil {
		q.log.AnnounceEvent(q.cfg.Screen, "failed", id, pos)
	} else {
		q.log.AnnounceEvent(q.cfg.Screen, "played", id, pos)
	}

	q.mu.Lock()
	q.mutedTil[id] = q.now().Add(q.cfg.Cooldown)
	q.mu.Unlock()

	if q.bus != nil {
		q.bus.Publish(ctx, events.AnnouncementPlayed{
			BaseEvent: events.NewBaseEvent(),
			Screen:    q.cfg.Screen,
			ProcessID: id,
			Position:  pos,
			Failed:    err != nil,
		})
	}
	return true
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// signalLocked is callable with q.mu held; the wake channel never blocks.
func (q *Queue) signalLocked() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
