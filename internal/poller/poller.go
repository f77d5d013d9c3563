// Package poller implements the shared poll-and-reconcile loop behind every
// dashboard screen: a fixed-interval re-fetch of the full record set, merged
// into an in-memory board without clobbering in-flight operator edits.
package poller

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"serviceflow_gateway/platform/logger"
)

// FormDraft is the ephemeral per-record editable state (amount, plate number,
// selected gate keeper) keyed by field name. It lives only in memory and is
// discarded on submit or screen shutdown.
type FormDraft map[string]string

// clone guards against callers mutating a draft after handing it over.
func (d FormDraft) clone() FormDraft {
	out := make(FormDraft, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Config parameterizes one screen's polling loop.
type Config[T any] struct {
	// Screen names the board for logging and events.
	Screen string
	// Interval is the fixed poll cadence. The first fetch fires immediately.
	Interval time.Duration
	// Fetch retrieves the full record set from the backend.
	Fetch func(ctx context.Context) ([]T, error)
	// Key returns the record's stable identity.
	Key func(T) string
	// Fingerprint returns the watched fields used for change suppression.
	// Two result sets with equal fingerprint multisets are considered
	// unchanged regardless of order.
	Fingerprint func(T) string
	// IsCalling reports whether a record is in a calling/notifying phase.
	// Optional; screens without announcements leave it nil.
	IsCalling func(T) bool
	// Sweep runs against each fresh fetch before reconciliation (the 48-hour
	// auto-cancel pass). Returning true forces an immediate re-fetch.
	// Optional. Sweep failures must be handled inside the hook; the poll
	// itself never fails because of it.
	Sweep func(ctx context.Context, records []T) bool
}

// Hooks receive reconciliation outcomes. All hooks are invoked from the
// polling goroutine; implementations must not block.
type Hooks[T any] struct {
	// OnChange fires after a material change was applied to the board.
	OnChange func(s Snapshot[T])
	// OnCalling receives ids that entered the calling phase this poll.
	OnCalling func(ids []string)
	// OnCountIncrease fires when the record count grew (the picklists
	// counter-delta alert).
	OnCountIncrease func(previous, current int)
}

// Snapshot is a point-in-time copy of the board.
type Snapshot[T any] struct {
	Records []T
	Drafts  map[string]FormDraft
	Version uint64
	// Loaded is false until the first successful fetch.
	Loaded bool
	// Err carries the first-load failure; background poll failures never
	// surface here (last-known-good data is retained instead).
	Err error
}

// Poller owns one screen's board state and its polling loop.
type Poller[T any] struct {
	cfg   Config[T]
	hooks Hooks[T]
	log   *logger.Logger

	// fetchMu serializes poll cycles so a forced refresh and a ticker poll
	// can never apply results out of order.
	fetchMu sync.Mutex

	mu       sync.RWMutex
	records  []T
	byKey    map[string]T
	calling  map[string]bool
	drafts   map[string]FormDraft
	lastSeen []string
	version  uint64
	loaded   bool
	loadErr  error
	failures int
}

// New creates a poller. Run must be called to start the loop.
func New[T any](cfg Config[T], hooks Hooks[T], log *logger.Logger) *Poller[T] {
	return &Poller[T]{
		cfg:     cfg,
		hooks:   hooks,
		log:     log.WithScreen(cfg.Screen),
		byKey:   make(map[string]T),
		calling: make(map[string]bool),
		drafts:  make(map[string]FormDraft),
	}
}

// Run fetches immediately, then on every interval tick until ctx is
// cancelled. Polls are serialized: the loop is a single goroutine and a tick
// arriving during a slow fetch is dropped by the ticker, so stale results can
// never overwrite newer ones.
func (p *Poller[T]) Run(ctx context.Context) {
	p.pollOnce(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

// RefreshNow runs one poll outside the regular cadence, e.g. right after an
// officer action mutated upstream state.
func (p *Poller[T]) RefreshNow(ctx context.Context) {
	p.pollOnce(ctx)
}

func (p *Poller[T]) pollOnce(ctx context.Context) {
	p.fetchMu.Lock()
	defer p.fetchMu.Unlock()

	if ctx.Err() != nil {
		return
	}

	fresh, err := p.cfg.Fetch(ctx)
	if err != nil {
		p.recordFailure(err)
		return
	}

	if p.cfg.Sweep != nil && p.cfg.Sweep(ctx, fresh) {
		if refetched, err := p.cfg.Fetch(ctx); err == nil {
			fresh = refetched
		} else {
			p.recordFailure(err)
		}
	}

	changed, newlyCalling, prevCount := p.reconcile(fresh)

	if changed && p.hooks.OnChange != nil {
		p.hooks.OnChange(p.Snapshot())
	}
	if len(newlyCalling) > 0 && p.hooks.OnCalling != nil {
		p.hooks.OnCalling(newlyCalling)
	}
	if len(fresh) > prevCount && p.hooks.OnCountIncrease != nil {
		p.hooks.OnCountIncrease(prevCount, len(fresh))
	}
}

func (p *Poller[T]) recordFailure(err error) {
	p.mu.Lock()
	p.failures++
	attempt := p.failures
	if !p.loaded {
		p.loadErr = err
	}
	p.mu.Unlock()
	p.log.PollFailure(p.cfg.Screen, attempt, err)
}

// reconcile merges a fresh fetch into the board. It returns whether the board
// materially changed, the ids that newly entered the calling phase, and the
// previous record count.
func (p *Poller[T]) reconcile(fresh []T) (changed bool, newlyCalling []string, prevCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prevCount = len(p.records)

	if p.cfg.IsCalling != nil {
		for _, rec := range fresh {
			key := p.cfg.Key(rec)
			if p.cfg.IsCalling(rec) && !p.calling[key] {
				newlyCalling = append(newlyCalling, key)
			}
		}
	}

	merged := make([]T, 0, len(fresh))
	byKey := make(map[string]T, len(fresh))
	for _, rec := range fresh {
		key := p.cfg.Key(rec)
		if _, editing := p.drafts[key]; editing {
			// A record mid-edit is never replaced; the operator's view and
			// draft stay verbatim until the draft is submitted or cleared.
			if old, ok := p.byKey[key]; ok {
				merged = append(merged, old)
				byKey[key] = old
				continue
			}
		}
		merged = append(merged, rec)
		byKey[key] = rec
	}

	// Fingerprint the merged set, not the raw fetch: a drafted record keeps
	// its old watched fields, and suppression must compare against what the
	// board actually shows. Otherwise clearing a draft would leave the board
	// stuck on the pre-draft record until the upstream changed again.
	next := fingerprints(merged, p.cfg.Fingerprint)
	if p.loaded && sameFingerprints(next, p.lastSeen) {
		// Displayed state already matches: skip the re-render but refresh
		// the calling set for diff tracking.
		p.rebuildCalling(fresh)
		return false, newlyCalling, prevCount
	}

	// Drafts for records the server no longer returns are dropped with them.
	for key := range p.drafts {
		if _, ok := byKey[key]; !ok {
			delete(p.drafts, key)
		}
	}

	p.records = merged
	p.byKey = byKey
	p.lastSeen = next
	p.rebuildCalling(fresh)
	p.loaded = true
	p.loadErr = nil
	p.failures = 0
	p.version++

	return true, newlyCalling, prevCount
}

func (p *Poller[T]) rebuildCalling(fresh []T) {
	if p.cfg.IsCalling == nil {
		return
	}
	calling := make(map[string]bool, len(fresh))
	for _, rec := range fresh {
		if p.cfg.IsCalling(rec) {
			calling[p.cfg.Key(rec)] = true
		}
	}
	p.calling = calling
}

// sameFingerprints compares two sorted fingerprint sets, ignoring order of
// the underlying records.
func sameFingerprints(next, last []string) bool {
	if len(next) != len(last) {
		return false
	}
	return strings.Join(next, "\x1e") == strings.Join(last, "\x1e")
}

func fingerprints[T any](records []T, fn func(T) string) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, fn(rec))
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of the board safe for concurrent readers.
func (p *Poller[T]) Snapshot() Snapshot[T] {
	p.mu.RLock()
	defer p.mu.RUnlock()

	records := make([]T, len(p.records))
	copy(records, p.records)
	drafts := make(map[string]FormDraft, len(p.drafts))
	for key, draft := range p.drafts {
		drafts[key] = draft.clone()
	}

	snap := Snapshot[T]{
		Records: records,
		Drafts:  drafts,
		Version: p.version,
		Loaded:  p.loaded,
	}
	if !p.loaded {
		snap.Err = p.loadErr
	}
	return snap
}

// SetDraft stores one drafted field for a record, shielding that record from
// refresh replacement until the draft is cleared.
func (p *Poller[T]) SetDraft(recordID, field, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	draft, ok := p.drafts[recordID]
	if !ok {
		draft = make(FormDraft)
		p.drafts[recordID] = draft
	}
	draft[field] = value
}

// Draft returns a copy of the record's draft, or nil.
func (p *Poller[T]) Draft(recordID string) FormDraft {
	p.mu.RLock()
	defer p.mu.RUnlock()
	draft, ok := p.drafts[recordID]
	if !ok {
		return nil
	}
	return draft.clone()
}

// ClearDraft discards a record's draft after submit or cancel. The next poll
// replaces the record with fresh server data.
func (p *Poller[T]) ClearDraft(recordID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.drafts, recordID)
}

// Version returns the current board version without copying records.
func (p *Poller[T]) Version() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}
