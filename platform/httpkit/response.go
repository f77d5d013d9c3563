// Package httpkit holds the HTTP plumbing shared by every gateway module:
// the auth middleware, operator claims accessors and the response envelope.
package httpkit

import (
	"errors"
	"net/http"

	"serviceflow_gateway/platform/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the error envelope every gateway endpoint returns. Kiosks
// and dashboards surface Error verbatim, so upstream messages pass through
// unchanged.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// OK writes a 200 response with the given payload.
func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// HandleError writes the response for a failed operation and reports whether
// err was non-nil. Typed *apperr.Error values map their Kind to a status;
// anything else is treated as a bad request with the raw message.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		c.JSON(domainErr.HTTPStatus(), ErrorResponse{
			Error:   domainErr.Message,
			Details: domainErr.Details,
		})
		return true
	}

	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	return true
}
