package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// listPagesHandler handles GET /api/v1/pages.
func (s *Server) listPagesHandler(c *gin.Context) {
	limit := intQuery(c, "limit", 200)
	pages, err := s.pageService.List(c.Request.Context(), userID(c), limit)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pages": toPageResponses(pages)})
}

// getPageHandler handles GET /api/v1/pages/:page_id.
func (s *Server) getPageHandler(c *gin.Context) {
	page, err := s.pageService.Get(c.Request.Context(), userID(c), c.Param("page_id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPageResponse(page))
}

// pageRunsHandler handles GET /api/v1/pages/:page_id/runs — which runs
// discovered this page.
func (s *Server) pageRunsHandler(c *gin.Context) {
	rows, err := s.pageService.RunsForPage(c.Request.Context(), userID(c), c.Param("page_id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	type entry struct {
		RunID          int    `json:"run_id"`
		WasNew         bool   `json:"was_new"`
		KeywordMatched string `json:"keyword_matched,omitempty"`
		AdCount        int    `json:"ad_count_at_discovery"`
		FoundAt        string `json:"found_at"`
	}
	out := make([]entry, len(rows))
	for i, r := range rows {
		out[i] = entry{
			RunID:          r.SearchRunID,
			WasNew:         r.WasNew,
			KeywordMatched: r.KeywordMatched,
			AdCount:        r.AdCountAtDiscovery,
			FoundAt:        r.FoundAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

// pageAdsHandler handles GET /api/v1/pages/:page_id/ads.
func (s *Server) pageAdsHandler(c *gin.Context) {
	limit := intQuery(c, "limit", 200)
	ads, err := s.adService.AdsByPage(c.Request.Context(), userID(c), c.Param("page_id"), limit)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ads": ads})
}

// listWinningAdsHandler handles GET /api/v1/winning-ads.
func (s *Server) listWinningAdsHandler(c *gin.Context) {
	limit := intQuery(c, "limit", 200)
	ads, err := s.winningAdService.List(c.Request.Context(), userID(c), limit)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"winning_ads": toWinningAdResponses(ads)})
}
