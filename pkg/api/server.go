// Package api provides the HTTP API: queue operations, repository read
// helpers for the dashboard, and the admin surface.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adscout/adscout/pkg/config"
	"github.com/adscout/adscout/pkg/database"
	"github.com/adscout/adscout/pkg/metrics"
	"github.com/adscout/adscout/pkg/queue"
	"github.com/adscout/adscout/pkg/sched"
	"github.com/adscout/adscout/pkg/services"
)

// Server is the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        *config.Config
	dbClient   *database.Client
	workerPool *queue.WorkerPool
	metrics    *metrics.Metrics
	scheduler  *sched.Scheduler

	runService       *services.RunService
	runLogService    *services.RunLogService
	pageService      *services.PageService
	adService        *services.AdService
	winningAdService *services.WinningAdService
	credService      *services.CredentialService
	blacklistService *services.BlacklistService
	settingsService  *services.SettingsService
	scanService      *services.ScheduledScanService
}

// Services bundles the repository services the API exposes.
type Services struct {
	Runs       *services.RunService
	RunLogs    *services.RunLogService
	Pages      *services.PageService
	Ads        *services.AdService
	WinningAds *services.WinningAdService
	Creds      *services.CredentialService
	Blacklist  *services.BlacklistService
	Settings   *services.SettingsService
	Scans      *services.ScheduledScanService
}

// NewServer creates the API server and registers all routes.
// scheduler may be nil (scheduled scans disabled).
func NewServer(cfg *config.Config, dbClient *database.Client, svcs Services, pool *queue.WorkerPool, m *metrics.Metrics, scheduler *sched.Scheduler) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		router:     router,
		cfg:        cfg,
		dbClient:   dbClient,
		workerPool: pool,
		metrics:    m,
		scheduler:  scheduler,

		runService:       svcs.Runs,
		runLogService:    svcs.RunLogs,
		pageService:      svcs.Pages,
		adService:        svcs.Ads,
		winningAdService: svcs.WinningAds,
		credService:      svcs.Creds,
		blacklistService: svcs.Blacklist,
		settingsService:  svcs.Settings,
		scanService:      svcs.Scans,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(
			promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}

	v1 := s.router.Group("/api/v1")
	v1.Use(tenantMiddleware())

	runs := v1.Group("/runs")
	runs.POST("", s.submitRunHandler)
	// ?status=active|interrupted narrows the listing; gin cannot route
	// /runs/active next to /runs/:id.
	runs.GET("", s.listRunsHandler)
	runs.GET("/:id", s.getRunHandler)
	runs.POST("/:id/cancel", s.cancelRunHandler)
	runs.POST("/:id/restart", s.restartRunHandler)
	runs.GET("/:id/pages", s.runPagesHandler)
	runs.GET("/:id/winning-ads", s.runWinningAdsHandler)
	runs.GET("/:id/log", s.runSummaryHandler)

	pages := v1.Group("/pages")
	pages.GET("", s.listPagesHandler)
	pages.GET("/:page_id", s.getPageHandler)
	pages.GET("/:page_id/runs", s.pageRunsHandler)
	pages.GET("/:page_id/ads", s.pageAdsHandler)

	v1.GET("/winning-ads", s.listWinningAdsHandler)

	creds := v1.Group("/credentials")
	creds.GET("", s.listCredentialsHandler)
	creds.POST("", s.createCredentialHandler)
	creds.PATCH("/:id", s.updateCredentialHandler)
	creds.DELETE("/:id", s.deleteCredentialHandler)
	creds.POST("/:id/clear-rate-limit", s.clearRateLimitHandler)
	creds.POST("/:id/reset-stats", s.resetCredentialStatsHandler)

	blacklist := v1.Group("/blacklist")
	blacklist.GET("", s.listBlacklistHandler)
	blacklist.POST("", s.addBlacklistHandler)
	blacklist.DELETE("/:page_id", s.removeBlacklistHandler)

	settings := v1.Group("/settings")
	settings.GET("", s.listSettingsHandler)
	settings.PUT("/:key", s.putSettingHandler)

	scans := v1.Group("/scans")
	scans.GET("", s.listScansHandler)
	scans.POST("", s.createScanHandler)
	scans.DELETE("/:id", s.deleteScanHandler)
	scans.POST("/:id/activate", s.setScanActiveHandler(true))
	scans.POST("/:id/deactivate", s.setScanActiveHandler(false))
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP server listening", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
