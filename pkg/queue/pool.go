package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/ent/searchrun"
	"github.com/adscout/adscout/pkg/config"
	adslack "github.com/adscout/adscout/pkg/slack"
)

// WorkerPool manages a pool of queue workers.
type WorkerPool struct {
	podID        string
	client       *ent.Client
	config       *config.QueueConfig
	runExecutor  RunExecutor
	slackService *adslack.Service
	workers      []*Worker
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup

	// Run cancel registry: run_id → cancel function
	activeRuns map[int]context.CancelFunc
	mu         sync.RWMutex
	started    bool

	// Orphan detection state
	orphans orphanState
}

// NewWorkerPool creates a new worker pool. slackService may be nil
// (notifications disabled).
func NewWorkerPool(podID string, client *ent.Client, cfg *config.QueueConfig, executor RunExecutor, slackService *adslack.Service) *WorkerPool {
	return &WorkerPool{
		podID:        podID,
		client:       client,
		config:       cfg,
		runExecutor:  executor,
		slackService: slackService,
		workers:      make([]*Worker, 0, cfg.WorkerCount),
		stopCh:       make(chan struct{}),
		activeRuns:   make(map[int]context.CancelFunc),
	}
}

// Start spawns worker goroutines and the orphan detection background task.
// It is safe to call multiple times; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("Worker pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return nil
	}
	p.started = true

	slog.Info("Starting worker pool", "pod_id", p.podID, "worker_count", p.config.WorkerCount)

	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.podID, i)
		worker := NewWorker(workerID, p.podID, p.client, p.config, p.runExecutor, p, p.slackService)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()

	slog.Info("Worker pool started")
	return nil
}

// Stop signals all workers to stop and waits for them to finish.
// Workers finish their current runs before exiting (graceful shutdown).
func (p *WorkerPool) Stop() {
	slog.Info("Stopping worker pool gracefully")

	active := p.getActiveRunIDs()
	if len(active) > 0 {
		slog.Info("Waiting for active runs to complete",
			"count", len(active),
			"run_ids", active)
	}

	for _, worker := range p.workers {
		worker.Stop()
	}

	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	slog.Info("Worker pool stopped gracefully")
}

// RegisterRun stores a cancel function for manual cancellation.
func (p *WorkerPool) RegisterRun(runID int, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeRuns[runID] = cancel
}

// UnregisterRun removes the cancel function when processing ends.
func (p *WorkerPool) UnregisterRun(runID int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeRuns, runID)
}

// CancelRun triggers context cancellation for a run on this pod.
// Returns true if the run was found and cancelled on this pod.
func (p *WorkerPool) CancelRun(runID int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if cancel, ok := p.activeRuns[runID]; ok {
		cancel()
		return true
	}
	return false
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health() *PoolHealth {
	ctx := context.Background()

	queueDepth, errQ := p.client.SearchRun.Query().
		Where(searchrun.StatusEQ(searchrun.StatusPending)).
		Count(ctx)
	if errQ != nil {
		slog.Error("Failed to query queue depth for health check",
			"pod_id", p.podID,
			"error", errQ)
	}

	activeRuns, errA := p.client.SearchRun.Query().
		Where(
			searchrun.StatusIn(searchrun.StatusRunning, searchrun.StatusCancelling),
			searchrun.PodIDEQ(p.podID),
		).
		Count(ctx)
	if errA != nil {
		slog.Error("Failed to query active runs for health check",
			"pod_id", p.podID,
			"error", errA)
	}

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	// DB errors affect health status - if we can't reach the DB, we're not healthy
	dbHealthy := errQ == nil && errA == nil
	isHealthy := len(p.workers) > 0 && activeRuns <= p.config.MaxConcurrentRuns && dbHealthy

	p.orphans.mu.Lock()
	lastOrphanScan := p.orphans.lastOrphanScan
	orphansRecovered := p.orphans.orphansRecovered
	p.orphans.mu.Unlock()

	var dbError string
	if !dbHealthy {
		if errQ != nil {
			dbError = fmt.Sprintf("queue depth query failed: %v", errQ)
		} else if errA != nil {
			dbError = fmt.Sprintf("active runs query failed: %v", errA)
		}
	}

	return &PoolHealth{
		IsHealthy:        isHealthy,
		DBReachable:      dbHealthy,
		DBError:          dbError,
		PodID:            p.podID,
		ActiveWorkers:    activeWorkers,
		TotalWorkers:     len(p.workers),
		ActiveRuns:       activeRuns,
		MaxConcurrent:    p.config.MaxConcurrentRuns,
		QueueDepth:       queueDepth,
		WorkerStats:      workerStats,
		LastOrphanScan:   lastOrphanScan,
		OrphansRecovered: orphansRecovered,
	}
}

// getActiveRunIDs returns IDs of currently processing runs (for logging).
func (p *WorkerPool) getActiveRunIDs() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	runs := make([]int, 0, len(p.activeRuns))
	for id := range p.activeRuns {
		runs = append(runs, id)
	}
	return runs
}
