package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// userIDKey is the gin context key holding the authenticated tenant.
const userIDKey = "user_id"

// tenantMiddleware resolves the tenant from the X-User-ID header set by
// the auth proxy in front of the service. Requests without it are
// rejected: every repository operation is tenant-scoped.
func tenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing X-User-ID header",
			})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// userID returns the tenant for the current request.
func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// requestLogger logs each request with latency and status.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds())
	}
}
