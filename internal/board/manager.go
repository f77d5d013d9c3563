package board

import (
	"context"
	"sync"

	"serviceflow_gateway/internal/announcer"
	"serviceflow_gateway/internal/events"
	"serviceflow_gateway/platform/apperr"
	"serviceflow_gateway/platform/logger"
)

// API is the full slice of the backend client the manager hands to boards.
type API interface {
	upstreamAPI
	picklistAPI
}

// Manager owns every running board, one per screen and store scope. Boards
// are created lazily on first request except the background screens
// (outstanding-processes, picklists), which start with the manager so the
// stale sweep and count alerts run without any connected client.
type Manager struct {
	defs     map[string]ScreenDef
	upstream API
	player   announcer.Player
	bus      events.Bus
	log      *logger.Logger

	mu        sync.Mutex
	boards    map[string]*Board
	picklists *PicklistBoard
	runCtx    context.Context
}

// NewManager builds the manager from the screen definitions.
func NewManager(defs []ScreenDef, up API, player announcer.Player, bus events.Bus, log *logger.Logger) *Manager {
	byName := make(map[string]ScreenDef, len(defs))
	for _, def := range defs {
		byName[def.Name] = def
	}
	return &Manager{
		defs:     byName,
		upstream: up,
		player:   player,
		bus:      bus,
		log:      log,
		boards:   make(map[string]*Board),
	}
}

// Start arms the manager and launches the background screens. All boards
// created later run under ctx; canceling it stops every polling loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.runCtx = ctx
	m.mu.Unlock()

	if def, ok := m.defs[ScreenOutstandingProcesses]; ok {
		if _, err := m.Board(def.Name, ""); err != nil {
			m.log.Error("outstanding-processes board failed to start", "error", err)
		}
	}
	if def, ok := m.defs[ScreenPicklists]; ok {
		m.mu.Lock()
		m.picklists = NewPicklistBoard(def, m.upstream, m.bus, m.log)
		go m.picklists.Run(ctx)
		m.mu.Unlock()
	}
}

// Screens lists the configured screen definitions.
func (m *Manager) Screens() []ScreenDef {
	defs := make([]ScreenDef, 0, len(m.defs))
	for _, def := range DefaultScreens() {
		if configured, ok := m.defs[def.Name]; ok {
			defs = append(defs, configured)
		}
	}
	return defs
}

// Board returns the running board for screen and store, creating it on first
// use. Store-scoped screens reject an empty store.
func (m *Manager) Board(screen, store string) (*Board, error) {
	def, ok := m.defs[screen]
	if !ok || def.Source == SourcePicklists {
		return nil, apperr.NotFound("unknown screen " + screen)
	}
	if def.NeedsODNs && store == "" {
		return nil, apperr.Validation("store required for this screen")
	}

	key := screen + "|" + store

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runCtx == nil {
		return nil, apperr.Internal("board manager not started")
	}
	if b, ok := m.boards[key]; ok {
		return b, nil
	}

	b := NewBoard(def, store, m.upstream, m.player, m.bus, m.log)
	m.boards[key] = b
	go b.Run(m.runCtx)
	m.log.Info("board started", "screen", screen, "store", store)
	return b, nil
}

// Picklists returns the picklist board, nil when the screen is not
// configured.
func (m *Manager) Picklists() *PicklistBoard {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.picklists
}

// RefreshAll forces an immediate poll on every running board, used after an
// officer action mutated upstream state.
func (m *Manager) RefreshAll(ctx context.Context) {
	m.mu.Lock()
	boards := make([]*Board, 0, len(m.boards))
	for _, b := range m.boards {
		boards = append(boards, b)
	}
	picklists := m.picklists
	m.mu.Unlock()

	for _, b := range boards {
		b.Refresh(ctx)
	}
	if picklists != nil {
		picklists.Refresh(ctx)
	}
}
