// Package sse provides Server-Sent Events support for pushing board updates
// and announcements to connected dashboards and TV kiosks.
package sse

import (
	"encoding/json"
	"net/http"
	"sync"

	"serviceflow_gateway/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventType represents different types of SSE events.
type EventType string

const (
	// EventBoardUpdated signals that a screen's record set materially changed
	// and the client should re-fetch its board view.
	EventBoardUpdated EventType = "board_updated"
	// EventAnnounce instructs a kiosk to play one call-out.
	EventAnnounce EventType = "announce"
	// EventCountIncreased is the picklists counter-delta alert.
	EventCountIncreased EventType = "count_increased"
	// EventProcessAutoCanceled reports a stale process swept by the gateway.
	EventProcessAutoCanceled EventType = "process_auto_canceled"
)

// Event represents an SSE event payload.
type Event struct {
	Type      EventType   `json:"type"`
	Screen    string      `json:"screen"`
	ProcessID string      `json:"processId,omitempty"`
	Position  int         `json:"position,omitempty"`
	Version   uint64      `json:"version,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// client represents a connected SSE client watching one screen.
type client struct {
	id     uuid.UUID
	screen string
	events chan Event
}

// Service manages SSE connections and event broadcasting.
type Service struct {
	mu      sync.RWMutex
	clients map[string][]*client // screen -> clients
	log     *logger.Logger
}

// New creates a new SSE service.
func New(log *logger.Logger) *Service {
	return &Service{
		clients: make(map[string][]*client),
		log:     log,
	}
}

// addClient registers a new client connection.
func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.screen] = append(s.clients[c.screen], c)
}

// removeClient unregisters a client connection.
func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.screen]
	found := false
	for i, cl := range clients {
		if cl == c {
			s.clients[c.screen] = append(clients[:i], clients[i+1:]...)
			found = true
			break
		}
	}
	if len(s.clients[c.screen]) == 0 {
		delete(s.clients, c.screen)
	}

	// Close already closed the channel for clients it evicted; a handler
	// unwinding after shutdown must not close it a second time.
	if found {
		close(c.events)
	}
}

// Broadcast sends an event to every client watching the screen. Slow clients
// whose buffer is full drop the event; the next board_updated resyncs them.
func (s *Service) Broadcast(screen string, event Event) {
	s.mu.RLock()
	clients := make([]*client, len(s.clients[screen]))
	copy(clients, s.clients[screen])
	s.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.events <- event:
		default:
			s.log.Warn("sse event buffer full", "screen", screen, "client", c.id)
		}
	}
}

// Watchers returns the number of clients connected for a screen.
func (s *Service) Watchers(screen string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[screen])
}

// Handler returns a Gin handler streaming one screen's events. The screen is
// taken from the route parameter.
func (s *Service) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		screen := c.Param("screen")
		if screen == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "screen required"})
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{
			id:     uuid.New(),
			screen: screen,
			events: make(chan Event, 32),
		}
		s.addClient(cl)
		defer s.removeClient(cl)

		c.SSEvent("connected", gin.H{"screen": screen})
		c.Writer.Flush()

		s.log.Info("sse client connected", "screen", screen, "client", cl.id)

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				s.log.Info("sse client disconnected", "screen", screen, "client", cl.id)
				return
			case event, ok := <-cl.events:
				if !ok {
					return
				}
				data, _ := json.Marshal(event)
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close shuts down the SSE service.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, clients := range s.clients {
		for _, c := range clients {
			close(c.events)
		}
	}
	s.clients = make(map[string][]*client)
}
