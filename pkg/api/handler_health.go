package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adscout/adscout/pkg/database"
	"github.com/adscout/adscout/pkg/version"
)

// healthHandler handles GET /health: database reachability plus the
// worker pool's view of the queue.
func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(ctx, s.dbClient.DB())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"version":  version.Full(),
			"database": dbHealth,
			"error":    err.Error(),
		})
		return
	}

	resp := gin.H{
		"status":   "healthy",
		"version":  version.Full(),
		"database": dbHealth,
	}
	if s.workerPool != nil {
		pool := s.workerPool.Health()
		resp["queue"] = pool
		if !pool.IsHealthy {
			resp["status"] = "degraded"
		}
	}

	c.JSON(http.StatusOK, resp)
}
