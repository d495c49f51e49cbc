package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/ent/searchrun"
)

// orphanState tracks stuck-run recovery metrics (thread-safe).
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// runOrphanDetection periodically scans for stuck runs.
// All pods run this independently — operations are idempotent.
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.detectAndRecoverOrphans(ctx); err != nil {
				slog.Error("Stuck-run detection failed", "error", err)
			}
		}
	}
}

// detectAndRecoverOrphans finds running runs with stale heartbeats and
// marks them as interrupted so they can be restarted.
func (p *WorkerPool) detectAndRecoverOrphans(ctx context.Context) error {
	threshold := time.Now().Add(-p.config.OrphanThreshold)

	orphans, err := p.client.SearchRun.Query().
		Where(
			searchrun.StatusIn(searchrun.StatusRunning, searchrun.StatusCancelling),
			searchrun.LastHeartbeatNotNil(),
			searchrun.LastHeartbeatLT(threshold),
		).
		All(ctx)
	if err != nil {
		return fmt.Errorf("failed to query stuck runs: %w", err)
	}

	if len(orphans) == 0 {
		p.orphans.mu.Lock()
		p.orphans.lastOrphanScan = time.Now()
		p.orphans.mu.Unlock()
		return nil
	}

	slog.Warn("Detected stuck runs", "count", len(orphans))

	recovered := 0
	failed := 0
	for _, run := range orphans {
		if err := p.recoverOrphanedRun(ctx, run); err != nil {
			slog.Error("Failed to recover stuck run",
				"run_id", run.ID,
				"error", err)
			failed++
			continue
		}
		recovered++
	}

	p.orphans.mu.Lock()
	p.orphans.lastOrphanScan = time.Now()
	p.orphans.orphansRecovered += recovered
	p.orphans.mu.Unlock()

	if failed > 0 {
		slog.Warn("Stuck-run recovery completed with failures",
			"total_orphans", len(orphans),
			"recovered", recovered,
			"failed", failed)
	}

	return nil
}

// recoverOrphanedRun marks a single stuck run as interrupted.
func (p *WorkerPool) recoverOrphanedRun(ctx context.Context, run *ent.SearchRun) error {
	log := slog.With("run_id", run.ID)

	lastHeartbeat := "unknown"
	if run.LastHeartbeat != nil {
		lastHeartbeat = run.LastHeartbeat.Format(time.RFC3339)
	}

	podID := "unknown"
	if run.PodID != nil {
		podID = *run.PodID
	}

	errorMsg := fmt.Sprintf("Interrupted: no heartbeat from pod %s since %s", podID, lastHeartbeat)
	if err := markRunInterrupted(ctx, p.client, run.ID, errorMsg); err != nil {
		return err
	}

	log.Warn("Stuck run marked as interrupted", "last_heartbeat", lastHeartbeat, "old_pod_id", podID)
	return nil
}

// RecoverStartupOrphans performs a one-time scan at process start:
//   - runs owned by this pod that were running when it previously crashed
//   - any running run whose heartbeat is older than the orphan threshold
//
// Both are transitioned to interrupted with a synthetic error. Called once
// during startup, before the worker pool begins processing.
func RecoverStartupOrphans(ctx context.Context, client *ent.Client, podID string, threshold time.Duration) error {
	stale := time.Now().Add(-threshold)

	orphans, err := client.SearchRun.Query().
		Where(
			searchrun.StatusIn(searchrun.StatusRunning, searchrun.StatusCancelling),
			searchrun.Or(
				searchrun.PodIDEQ(podID),
				searchrun.LastHeartbeatLT(stale),
				searchrun.LastHeartbeatIsNil(),
			),
		).
		All(ctx)
	if err != nil {
		return fmt.Errorf("failed to query startup orphans: %w", err)
	}

	if len(orphans) == 0 {
		return nil
	}

	slog.Warn("Found interrupted runs from a previous process",
		"pod_id", podID,
		"count", len(orphans))

	for _, run := range orphans {
		errorMsg := fmt.Sprintf("Interrupted: process restarted while run was in progress (pod %s)", podID)
		if err := markRunInterrupted(ctx, client, run.ID, errorMsg); err != nil {
			slog.Error("Failed to mark startup orphan",
				"run_id", run.ID,
				"error", err)
			continue
		}
		slog.Info("Startup orphan recovered", "run_id", run.ID)
	}

	return nil
}

// markRunInterrupted marks a run as interrupted. The transition is a
// check-and-set so a run that finished in the meantime is left alone.
func markRunInterrupted(ctx context.Context, client *ent.Client, runID int, errorMsg string) error {
	n, err := client.SearchRun.Update().
		Where(
			searchrun.IDEQ(runID),
			searchrun.StatusIn(searchrun.StatusRunning, searchrun.StatusCancelling),
		).
		SetStatus(searchrun.StatusInterrupted).
		SetEndedAt(time.Now()).
		SetErrorMessage(errorMsg).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark run as interrupted: %w", err)
	}
	if n == 0 {
		slog.Debug("Run no longer running, skipping interrupt", "run_id", runID)
	}
	return nil
}
