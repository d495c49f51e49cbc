// Package sched submits recurring search runs from scheduled-scan
// definitions using cron expressions.
package sched

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/pkg/models"
	"github.com/adscout/adscout/pkg/services"
)

// Scheduler owns one cron runner for all tenants' scheduled scans.
type Scheduler struct {
	cron        *cron.Cron
	scanService *services.ScheduledScanService
	runService  *services.RunService
	logger      *slog.Logger

	mu      sync.Mutex
	entries map[int]cron.EntryID // scan id → cron entry
}

// New creates a scheduler.
func New(scanService *services.ScheduledScanService, runService *services.RunService) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		scanService: scanService,
		runService:  runService,
		logger:      slog.Default().With("component", "scan-scheduler"),
		entries:     make(map[int]cron.EntryID),
	}
}

// Start loads the active scans, registers them, and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Scan scheduler started", "scans", len(s.entries))
	return nil
}

// Stop halts the cron loop, waiting for in-flight submissions.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scan scheduler stopped")
}

// Reload re-registers every active scan. Call after scans change.
func (s *Scheduler) Reload(ctx context.Context) error {
	scans, err := s.scanService.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("loading scheduled scans: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entryID := range s.entries {
		s.cron.Remove(entryID)
	}
	s.entries = make(map[int]cron.EntryID, len(scans))

	for _, scan := range scans {
		scan := scan
		entryID, err := s.cron.AddFunc(scan.CronExpr, func() {
			s.fire(scan)
		})
		if err != nil {
			s.logger.Error("Invalid cron expression, scan skipped",
				"scan_id", scan.ID,
				"cron_expr", scan.CronExpr,
				"error", err)
			continue
		}
		s.entries[scan.ID] = entryID
	}
	return nil
}

// fire submits one run for a scheduled scan.
func (s *Scheduler) fire(scan *ent.ScheduledScan) {
	ctx := context.Background()
	log := s.logger.With("scan_id", scan.ID, "user_id", scan.UserID)

	run, err := s.runService.Submit(ctx, models.CreateRunRequest{
		UserID:       scan.UserID,
		Keywords:     scan.Keywords,
		Countries:    scan.Countries,
		Languages:    scan.Languages,
		MinActiveAds: scan.MinActiveAds,
		CMSFilter:    scan.CmsFilter,
		Priority:     scan.Priority,
	})
	if err != nil {
		log.Error("Scheduled scan submission failed", "error", err)
		return
	}

	if err := s.scanService.MarkExecuted(ctx, scan.ID, run.ID); err != nil {
		log.Warn("Failed to stamp scheduled scan", "error", err)
	}
	log.Info("Scheduled scan submitted run", "run_id", run.ID)
}
