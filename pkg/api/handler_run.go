package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/ent/searchrun"
	"github.com/adscout/adscout/pkg/models"
)

// submitRunHandler handles POST /api/v1/runs.
func (s *Server) submitRunHandler(c *gin.Context) {
	var req submitRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	minAds := req.MinActiveAds
	if minAds == 0 {
		minAds = 3
	}

	run, err := s.runService.Submit(c.Request.Context(), models.CreateRunRequest{
		UserID:       userID(c),
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

	c.JSON(http.StatusCreated, toRunResponse(run, false))
}

// getRunHandler handles GET /api/v1/runs/:id — current status, phase,
// percent, message, and the completed phase records.
func (s *Server) getRunHandler(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	run, err := s.runService.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRunResponse(run, true))
}

// listRunsHandler handles GET /api/v1/runs. The status query narrows the
// listing: "active" (pending/running/cancelling) or "interrupted".
func (s *Server) listRunsHandler(c *gin.Context) {
	var (
		runs []*ent.SearchRun
		err  error
	)
	switch c.Query("status") {
	case "":
		runs, err = s.runService.ListRecent(c.Request.Context(), userID(c), intQuery(c, "limit", 50))
	case "active":
		runs, err = s.runService.ListActive(c.Request.Context(), userID(c))
	case "interrupted":
		runs, err = s.runService.ListInterrupted(c.Request.Context(), userID(c))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be active or interrupted"})
		return
	}
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": toRunResponses(runs)})
}

// cancelRunHandler handles POST /api/v1/runs/:id/cancel.
func (s *Server) cancelRunHandler(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	status, err := s.runService.Cancel(c.Request.Context(), userID(c), id)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	// A running run also gets its in-process context cancelled when it
	// lives on this pod; other pods see the status column.
	if status == searchrun.StatusCancelling && s.workerPool != nil {
		s.workerPool.CancelRun(id)
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": string(status)})
}

// restartRunHandler handles POST /api/v1/runs/:id/restart.
func (s *Server) restartRunHandler(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	if err := s.runService.Restart(c.Request.Context(), userID(c), id); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": "pending"})
}

// runPagesHandler handles GET /api/v1/runs/:id/pages.
func (s *Server) runPagesHandler(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	pages, err := s.pageService.PagesByRun(c.Request.Context(), userID(c), id)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pages": toPageResponses(pages)})
}

// runWinningAdsHandler handles GET /api/v1/runs/:id/winning-ads.
func (s *Server) runWinningAdsHandler(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	ads, err := s.winningAdService.WinningAdsByRun(c.Request.Context(), userID(c), id)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"winning_ads": toWinningAdResponses(ads)})
}

// runSummaryHandler handles GET /api/v1/runs/:id/log — the finalized run
// log with counters and the structured error list.
func (s *Server) runSummaryHandler(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	log, err := s.runLogService.GetByRun(c.Request.Context(), userID(c), id)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, log)
}

// intParam parses an integer path parameter, answering 400 on failure.
func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return v, true
}

// intQuery parses an optional integer query parameter.
func intQuery(c *gin.Context, name string, def int) int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
