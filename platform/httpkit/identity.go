package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Claims is the operator identity carried by a verified access token. The
// token itself is issued by the out-of-scope auth flow; the gateway only
// reads the claims.
type Claims struct {
	UserID     string
	EmployeeID string
	FullName   string
	JobTitle   string
	Store      string
}

// IsAuthenticated reports whether the claims belong to a signed-in operator.
func (c Claims) IsAuthenticated() bool { return c.UserID != "" }

// GetClaims extracts the operator claims from a Gin context. Returns zero
// claims when the request was not authenticated.
func GetClaims(c *gin.Context) Claims {
	value, ok := c.Get(ContextClaimsKey)
	if !ok {
		return Claims{}
	}
	claims, ok := value.(Claims)
	if !ok {
		return Claims{}
	}
	return claims
}

// MustGetClaims extracts the operator claims from a Gin context.
// If the request is not authenticated it aborts with 401 Unauthorized and
// returns zero claims.
func MustGetClaims(c *gin.Context) (Claims, bool) {
	claims := GetClaims(c)
	if !claims.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return Claims{}, false
	}
	return claims, true
}
