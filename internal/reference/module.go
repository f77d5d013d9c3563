package reference

import (
	"net/http"

	apphttp "serviceflow_gateway/internal/http"
	"serviceflow_gateway/platform/httpkit"
	"serviceflow_gateway/platform/logger"

	"github.com/gin-gonic/gin"
)

// Module serves the cached reference lists.
type Module struct {
	service *Service
	log     *logger.Logger
}

// NewModule creates the reference module.
func NewModule(up API, log *logger.Logger) *Module {
	return &Module{
		service: NewService(up, DefaultTTL, log),
		log:     log,
	}
}

// Service exposes the cache for other modules.
func (m *Module) Service() *Service { return m.service }

// Name implements the HTTP module interface.
func (m *Module) Name() string { return "reference" }

// RegisterRoutes mounts the reference routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/reference")
	group.GET("/facilities", m.facilities)
	group.GET("/stores", m.stores)
	group.GET("/employees", m.employees)
	group.GET("/users", m.users)
	group.POST("/invalidate", m.invalidate)
}

func (m *Module) facilities(c *gin.Context) {
	facilities, err := m.service.Facilities(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, facilities)
}

func (m *Module) stores(c *gin.Context) {
	stores, err := m.service.Stores(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, stores)
}

func (m *Module) employees(c *gin.Context) {
	employees, err := m.service.Employees(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, employees)
}

func (m *Module) users(c *gin.Context) {
	users, err := m.service.Users(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, users)
}

// invalidate drops the cache. The dashboard client calls this when it
// detects the operator's assigned store changed, before reloading.
func (m *Module) invalidate(c *gin.Context) {
	if _, ok := httpkit.MustGetClaims(c); !ok {
		return
	}
	m.service.Invalidate()
	c.Status(http.StatusNoContent)
}
