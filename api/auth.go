package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Domenick1991/flightseats/internal/identity"
	"github.com/gin-gonic/gin"
)

type CallerResolver interface {
	Resolve(token string) (identity.Caller, error)
}

const callerKey = "caller"

// Authenticate resolves the bearer token into a Caller. Services receive the
// caller explicitly; the middleware only looks it up.
func Authenticate(resolver CallerResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		caller, err := resolver.Resolve(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

func callerFrom(c *gin.Context) identity.Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(identity.Caller); ok {
			return caller
		}
	}
	return identity.Caller{}
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
