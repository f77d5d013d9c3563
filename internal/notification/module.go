// Package notification fans domain events out to connected dashboards and
// kiosks over SSE. This module subscribes to events and inverts the
// dependency: the board and announcer modules never know how clients are
// reached.
package notification

import (
	"context"
	"fmt"

	"serviceflow_gateway/internal/announcer"
	"serviceflow_gateway/internal/events"
	apphttp "serviceflow_gateway/internal/http"
	"serviceflow_gateway/internal/notification/sse"
	"serviceflow_gateway/platform/logger"
)

// Module wires the event bus to the SSE fan-out.
type Module struct {
	sse *sse.Service
	log *logger.Logger
}

// New creates the notification module.
func New(log *logger.Logger) *Module {
	return &Module{
		sse: sse.New(log),
		log: log,
	}
}

// Name implements the HTTP module interface.
func (m *Module) Name() string { return "notification" }

// SSE exposes the fan-out service.
func (m *Module) SSE() *sse.Service { return m.sse }

// Close shuts down all SSE streams.
func (m *Module) Close() { m.sse.Close() }

// Player returns the announcer output backed by the kiosk SSE stream. The
// gateway never produces audio itself; it tells the connected kiosk what to
// play. Announcing to a screen with no connected kiosk fails, which the
// announcer logs and paces past.
func (m *Module) Player() announcer.Player {
	return announcer.PlayerFunc(func(ctx context.Context, a announcer.Announcement) error {
		if m.sse.Watchers(a.Screen) == 0 {
			return fmt.Errorf("no kiosk connected for screen %s", a.Screen)
		}
		m.sse.Broadcast(a.Screen, sse.Event{
			Type:      sse.EventAnnounce,
			Screen:    a.Screen,
			ProcessID: a.ProcessID,
			Position:  a.Position,
		})
		return nil
	})
}

// RegisterHandlers subscribes the module to the domain events it forwards.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.BoardUpdated{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		event, ok := e.(events.BoardUpdated)
		if !ok {
			return nil
		}
		m.sse.Broadcast(event.Screen, sse.Event{
			Type:    sse.EventBoardUpdated,
			Screen:  event.Screen,
			Version: event.Version,
			Data:    map[string]interface{}{"count": event.Count},
		})
		return nil
	}))

	bus.Subscribe(events.RecordCountIncreased{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		event, ok := e.(events.RecordCountIncreased)
		if !ok {
			return nil
		}
		m.sse.Broadcast(event.Screen, sse.Event{
			Type:   sse.EventCountIncreased,
			Screen: event.Screen,
			Data:   map[string]interface{}{"previous": event.Previous, "current": event.Current},
		})
		return nil
	}))

	bus.Subscribe(events.ProcessAutoCanceled{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		event, ok := e.(events.ProcessAutoCanceled)
		if !ok {
			return nil
		}
		// The sweep is silent for operators; surfaced only to the
		// outstanding-processes screen itself.
		m.sse.Broadcast("outstanding-processes", sse.Event{
			Type:      sse.EventProcessAutoCanceled,
			Screen:    "outstanding-processes",
			ProcessID: event.ProcessID,
			Data:      map[string]interface{}{"ageHours": event.AgeHours},
		})
		return nil
	}))
}

// RegisterRoutes mounts the SSE stream endpoint. Authentication accepts the
// token as a query parameter because EventSource cannot set headers.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/screens/:screen/events", m.sse.Handler())
}
