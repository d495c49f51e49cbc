// Package queue provides the durable run queue: worker pool, claim/
// heartbeat/recovery machinery, and the nine-phase search orchestrator.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/ent/searchrun"
)

// Sentinel errors for queue operations.
var (
	// ErrNoRunsAvailable indicates no pending runs are in the queue.
	ErrNoRunsAvailable = errors.New("no runs available")

	// ErrAtCapacity indicates the global concurrent run limit has been reached.
	ErrAtCapacity = errors.New("at capacity")
)

// RunExecutor is the interface for run processing.
//
// The executor owns the pipeline: it runs phases 1–8 sequentially,
// writes progress and the run log progressively, and returns only the
// terminal state. The worker handles claiming, heartbeat, the terminal
// status update, and the best-effort phase-9 notification.
type RunExecutor interface {
	Execute(ctx context.Context, run *ent.SearchRun) *ExecutionResult
}

// ExecutionResult is lightweight — just the terminal state. All
// intermediate state (progress, counters, the run log) was already
// written by the executor during processing.
type ExecutionResult struct {
	Status      searchrun.Status // completed, no_results, failed, cancelled
	RunLogID    int              // phase-8 run log, or the failure log of a failed run; 0 if none
	FailedPhase string           // phase name when Status is failed
	Error       error
}

// PoolHealth contains health information for the entire worker pool.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	DBReachable      bool           `json:"db_reachable"`
	DBError          string         `json:"db_error,omitempty"`
	PodID            string         `json:"pod_id"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	ActiveRuns       int            `json:"active_runs"`
	MaxConcurrent    int            `json:"max_concurrent"`
	QueueDepth       int            `json:"queue_depth"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"` // "idle" or "working"
	CurrentRunID  int       `json:"current_run_id,omitempty"`
	RunsProcessed int       `json:"runs_processed"`
	LastActivity  time.Time `json:"last_activity"`
}
