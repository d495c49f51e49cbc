// Package cleanup provides data retention and cleanup services.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/adscout/adscout/pkg/config"
	"github.com/adscout/adscout/pkg/services"
)

// Service periodically enforces retention policies:
//   - Deletes terminal runs and their logs past the retention window
//   - Deletes ad detail rows past their window
//
// All operations are idempotent and safe to run from multiple pods.
type Service struct {
	config        *config.RetentionConfig
	runService    *services.RunService
	runLogService *services.RunLogService
	adService     *services.AdService

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(
	cfg *config.RetentionConfig,
	runService *services.RunService,
	runLogService *services.RunLogService,
	adService *services.AdService,
) *Service {
	return &Service{
		config:        cfg,
		runService:    runService,
		runLogService: runLogService,
		adService:     adService,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"run_retention_days", s.config.RunRetentionDays,
		"ad_retention_days", s.config.AdRetentionDays,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(_ context.Context) {
	ctx := context.Background()

	count, err := s.runService.PurgeTerminalRuns(ctx, s.config.RunRetentionDays)
	if err != nil {
		slog.Error("Retention: run purge failed", "error", err)
	} else if count > 0 {
		slog.Info("Retention: purged old runs", "count", count)
	}

	count, err = s.runLogService.PurgeOldLogs(ctx, s.config.RunRetentionDays)
	if err != nil {
		slog.Error("Retention: run log purge failed", "error", err)
	} else if count > 0 {
		slog.Info("Retention: purged old run logs", "count", count)
	}

	count, err = s.adService.PurgeOldAds(ctx, s.config.AdRetentionDays)
	if err != nil {
		slog.Error("Retention: ad purge failed", "error", err)
	} else if count > 0 {
		slog.Info("Retention: purged old ads", "count", count)
	}
}
