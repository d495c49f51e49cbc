package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adscout/adscout/pkg/services"
)

// ────────────────────────────────────────────────────────────
// Credentials
// ────────────────────────────────────────────────────────────

// listCredentialsHandler handles GET /api/v1/credentials.
func (s *Server) listCredentialsHandler(c *gin.Context) {
	creds, err := s.credService.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	out := make([]credentialResponse, len(creds))
	for i, cred := range creds {
		out[i] = toCredentialResponse(cred)
	}
	c.JSON(http.StatusOK, gin.H{"credentials": out})
}

// createCredentialHandler handles POST /api/v1/credentials.
func (s *Server) createCredentialHandler(c *gin.Context) {
	var req createCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cred, err := s.credService.Create(c.Request.Context(), req.Name, req.Token, req.ProxyURL)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toCredentialResponse(cred))
}

// updateCredentialHandler handles PATCH /api/v1/credentials/:id.
func (s *Server) updateCredentialHandler(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req updateCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cred, err := s.credService.Update(c.Request.Context(), id, req.Name, req.Token, req.ProxyURL, req.Active)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCredentialResponse(cred))
}

// deleteCredentialHandler handles DELETE /api/v1/credentials/:id.
func (s *Server) deleteCredentialHandler(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	if err := s.credService.Delete(c.Request.Context(), id); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// clearRateLimitHandler handles POST /api/v1/credentials/:id/clear-rate-limit.
func (s *Server) clearRateLimitHandler(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	if err := s.credService.ClearRateLimit(c.Request.Context(), id); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "rate_limited_until": nil})
}

// resetCredentialStatsHandler handles POST /api/v1/credentials/:id/reset-stats.
func (s *Server) resetCredentialStatsHandler(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	if err := s.credService.ResetStats(c.Request.Context(), id); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// ────────────────────────────────────────────────────────────
// Blacklist
// ────────────────────────────────────────────────────────────

// listBlacklistHandler handles GET /api/v1/blacklist.
func (s *Server) listBlacklistHandler(c *gin.Context) {
	rows, err := s.blacklistService.List(c.Request.Context(), userID(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blacklist": rows})
}

// addBlacklistHandler handles POST /api/v1/blacklist.
func (s *Server) addBlacklistHandler(c *gin.Context) {
	var req addBlacklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.blacklistService.Add(c.Request.Context(), userID(c), req.PageID, req.PageName, req.Reason); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"page_id": req.PageID})
}

// removeBlacklistHandler handles DELETE /api/v1/blacklist/:page_id.
func (s *Server) removeBlacklistHandler(c *gin.Context) {
	if err := s.blacklistService.Remove(c.Request.Context(), userID(c), c.Param("page_id")); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ────────────────────────────────────────────────────────────
// Settings
// ────────────────────────────────────────────────────────────

// listSettingsHandler handles GET /api/v1/settings.
func (s *Server) listSettingsHandler(c *gin.Context) {
	all, err := s.settingsService.All(c.Request.Context(), userID(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": all})
}

// putSettingHandler handles PUT /api/v1/settings/:key.
func (s *Server) putSettingHandler(c *gin.Context) {
	var req putSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	key := c.Param("key")
	if err := s.settingsService.Set(c.Request.Context(), userID(c), key, req.Value); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}

// ────────────────────────────────────────────────────────────
// Scheduled scans
// ────────────────────────────────────────────────────────────

// listScansHandler handles GET /api/v1/scans.
func (s *Server) listScansHandler(c *gin.Context) {
	scans, err := s.scanService.List(c.Request.Context(), userID(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": scans})
}

// createScanHandler handles POST /api/v1/scans.
func (s *Server) createScanHandler(c *gin.Context) {
	var req createScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	minAds := req.MinActiveAds
	if minAds == 0 {
		minAds = 3
	}

	scan, err := s.scanService.Create(c.Request.Context(), services.ScheduledScanInput{
		UserID:       userID(c),
		Name:         req.Name,
		CronExpr:     req.CronExpr,
		Keywords:     req.Keywords,
		Countries:    req.Countries,
		Languages:    req.Languages,
		MinActiveAds: minAds,
		CMSFilter:    req.CMSFilter,
		Priority:     req.Priority,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	s.reloadScheduler(c)
	c.JSON(http.StatusCreated, scan)
}

// deleteScanHandler handles DELETE /api/v1/scans/:id.
func (s *Server) deleteScanHandler(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	if err := s.scanService.Delete(c.Request.Context(), userID(c), id); err != nil {
		abortWithServiceError(c, err)
		return
	}
	s.reloadScheduler(c)
	c.Status(http.StatusNoContent)
}

// setScanActiveHandler handles POST /api/v1/scans/:id/activate and
// /deactivate.
func (s *Server) setScanActiveHandler(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		if err := s.scanService.SetActive(c.Request.Context(), userID(c), id, active); err != nil {
			abortWithServiceError(c, err)
			return
		}
		s.reloadScheduler(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "active": active})
	}
}

// reloadScheduler refreshes cron registrations after scan changes.
func (s *Server) reloadScheduler(c *gin.Context) {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.Reload(c.Request.Context()); err != nil {
		// The change is persisted; the scheduler catches up on restart.
		c.Header("X-Scheduler-Reload", "failed")
	}
}
