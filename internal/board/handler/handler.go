// Package handler exposes the board API: screen views, form drafts, officer
// actions and the kiosk announcer gates.
package handler

import (
	"context"
	"net/http"

	"serviceflow_gateway/internal/board"
	"serviceflow_gateway/internal/board/transport"
	apphttp "serviceflow_gateway/internal/http"
	"serviceflow_gateway/internal/session"
	"serviceflow_gateway/platform/apperr"
	"serviceflow_gateway/platform/httpkit"
	"serviceflow_gateway/platform/logger"

	"github.com/gin-gonic/gin"
)

// Module serves the board HTTP surface.
type Module struct {
	manager *board.Manager
	actions *board.Actions
	log     *logger.Logger
}

func New(manager *board.Manager, actions *board.Actions, log *logger.Logger) *Module {
	return &Module{manager: manager, actions: actions, log: log}
}

// Name implements the HTTP module interface.
func (m *Module) Name() string { return "board" }

// RegisterRoutes mounts the board routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	screens := ctx.Protected.Group("/screens")
	screens.GET("", m.listScreens)
	screens.GET("/:screen/board", m.viewBoard)
	screens.POST("/:screen/refresh", m.refresh)
	screens.PUT("/:screen/drafts/:recordId", m.setDraft)
	screens.DELETE("/:screen/drafts/:recordId", m.clearDraft)
	screens.POST("/:screen/announcer/start", m.startAnnouncer)
	screens.POST("/:screen/announcer/stop", m.stopAnnouncer)

	ctx.Protected.GET("/picklists", m.listPicklists)

	actions := ctx.Protected.Group("/actions")
	actions.POST("/start-ewm", m.action(m.actions.StartEWM))
	actions.POST("/complete-ewm", m.action(m.actions.CompleteEWM))
	actions.POST("/revert-ewm", m.action(m.actions.RevertEWM))
	actions.POST("/exit-permit", m.action(m.actions.GrantExitPermit))
	actions.POST("/gate-pass", m.action(m.actions.PassGate))
	actions.POST("/advance", m.advance)
}

func (m *Module) listScreens(c *gin.Context) {
	httpkit.OK(c, transport.NewScreenResponses(m.manager.Screens()))
}

func (m *Module) viewBoard(c *gin.Context) {
	sess, ok := operatorSession(c)
	if !ok {
		return
	}

	store := c.Query("store")
	if store == "" {
		store = sess.Store
	}

	b, err := m.manager.Board(c.Param("screen"), store)
	if httpkit.HandleError(c, err) {
		return
	}

	snap := b.Snapshot()
	if !snap.Loaded {
		// A board created by this very request may not have completed its
		// first poll; fetch synchronously so the first paint is never empty.
		b.Refresh(c.Request.Context())
		snap = b.Snapshot()
	}
	if !snap.Loaded && snap.Err != nil {
		httpkit.HandleError(c, apperr.Unavailable("board not loaded: "+snap.Err.Error()))
		return
	}

	rows := b.View(sess)
	httpkit.OK(c, transport.NewBoardResponse(b.Name(), b.Store(), snap, rows))
}

func (m *Module) refresh(c *gin.Context) {
	sess, ok := operatorSession(c)
	if !ok {
		return
	}

	store := c.Query("store")
	if store == "" {
		store = sess.Store
	}

	b, err := m.manager.Board(c.Param("screen"), store)
	if httpkit.HandleError(c, err) {
		return
	}

	b.Refresh(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (m *Module) setDraft(c *gin.Context) {
	sess, ok := operatorSession(c)
	if !ok {
		return
	}

	var req transport.DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	b, err := m.manager.Board(c.Param("screen"), c.DefaultQuery("store", sess.Store))
	if httpkit.HandleError(c, err) {
		return
	}

	b.SetDraft(c.Param("recordId"), req.Field, req.Value)
	c.Status(http.StatusNoContent)
}

func (m *Module) clearDraft(c *gin.Context) {
	sess, ok := operatorSession(c)
	if !ok {
		return
	}

	b, err := m.manager.Board(c.Param("screen"), c.DefaultQuery("store", sess.Store))
	if httpkit.HandleError(c, err) {
		return
	}

	b.ClearDraft(c.Param("recordId"))
	c.Status(http.StatusNoContent)
}

// startAnnouncer arms kiosk playback for a screen. Nothing plays before this
// explicit gesture reaches the gateway.
func (m *Module) startAnnouncer(c *gin.Context) {
	sess, ok := operatorSession(c)
	if !ok {
		return
	}

	b, err := m.manager.Board(c.Param("screen"), c.DefaultQuery("store", sess.Store))
	if httpkit.HandleError(c, err) {
		return
	}

	queue := b.Announcer()
	if queue == nil {
		httpkit.HandleError(c, apperr.BadRequest("screen has no announcer"))
		return
	}
	queue.Enable()
	c.Status(http.StatusNoContent)
}

func (m *Module) stopAnnouncer(c *gin.Context) {
	sess, ok := operatorSession(c)
	if !ok {
		return
	}

	b, err := m.manager.Board(c.Param("screen"), c.DefaultQuery("store", sess.Store))
	if httpkit.HandleError(c, err) {
		return
	}

	queue := b.Announcer()
	if queue == nil {
		httpkit.HandleError(c, apperr.BadRequest("screen has no announcer"))
		return
	}
	queue.Stop()
	c.Status(http.StatusNoContent)
}

func (m *Module) listPicklists(c *gin.Context) {
	if _, ok := operatorSession(c); !ok {
		return
	}

	b := m.manager.Picklists()
	if b == nil {
		httpkit.HandleError(c, apperr.NotFound("picklists screen not configured"))
		return
	}

	snap := b.Snapshot()
	httpkit.OK(c, transport.PicklistResponse{
		Version:   snap.Version,
		Loaded:    snap.Loaded,
		Picklists: snap.Records,
	})
}

// action adapts the shared ODN transition signature to a gin handler.
func (m *Module) action(run func(ctx context.Context, sess session.Context, req board.ODNAction) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := operatorSession(c)
		if !ok {
			return
		}

		var req board.ODNAction
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.HandleError(c, apperr.Validation(err.Error()))
			return
		}

		if err := run(c.Request.Context(), sess, req); httpkit.HandleError(c, err) {
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (m *Module) advance(c *gin.Context) {
	sess, ok := operatorSession(c)
	if !ok {
		return
	}

	var req board.AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	if err := m.actions.Advance(c.Request.Context(), sess, req); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// operatorSession builds the session context from the verified token claims.
func operatorSession(c *gin.Context) (session.Context, bool) {
	claims, ok := httpkit.MustGetClaims(c)
	if !ok {
		return session.Context{}, false
	}
	return session.Context{
		UserID:     claims.UserID,
		EmployeeID: claims.EmployeeID,
		FullName:   claims.FullName,
		JobTitle:   claims.JobTitle,
		Store:      claims.Store,
	}, true
}
