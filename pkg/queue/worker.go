package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"entgo.io/ent/dialect/sql"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/ent/searchrun"
	"github.com/adscout/adscout/pkg/config"
	adslack "github.com/adscout/adscout/pkg/slack"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker is a single queue worker that polls for and processes runs.
type Worker struct {
	id           string
	podID        string
	client       *ent.Client
	config       *config.QueueConfig
	runExecutor  RunExecutor
	slackService *adslack.Service
	pool         RunRegistry
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup

	// Health tracking
	mu            sync.RWMutex
	status        WorkerStatus
	currentRunID  int
	runsProcessed int
	lastActivity  time.Time
}

// RunRegistry is the subset of WorkerPool used by Worker for run registration.
type RunRegistry interface {
	RegisterRun(runID int, cancel context.CancelFunc)
	UnregisterRun(runID int)
}

// NewWorker creates a new queue worker.
// slackService may be nil (notifications disabled).
func NewWorker(id, podID string, client *ent.Client, cfg *config.QueueConfig, executor RunExecutor, pool RunRegistry, slackService *adslack.Service) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		client:       client,
		config:       cfg,
		runExecutor:  executor,
		slackService: slackService,
		pool:         pool,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish.
// It is safe to call Stop multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        string(w.status),
		CurrentRunID:  w.currentRunID,
		RunsProcessed: w.runsProcessed,
		LastActivity:  w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("Worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoRunsAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("Error processing run", "error", err)
				w.sleep(time.Second) // Brief backoff on error
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess checks capacity, claims a run, and processes it.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	// 1. Check global capacity (best-effort; racy with concurrent workers
	//    but bounded by WorkerCount and mitigated by poll jitter).
	activeCount, err := w.client.SearchRun.Query().
		Where(searchrun.StatusIn(searchrun.StatusRunning, searchrun.StatusCancelling)).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("checking active runs: %w", err)
	}
	if activeCount >= w.config.MaxConcurrentRuns {
		return ErrAtCapacity
	}

	// 2. Claim next run
	run, err := w.claimNextRun(ctx)
	if err != nil {
		return err
	}

	log := slog.With("run_id", run.ID, "worker_id", w.id)
	log.Info("Run claimed", "keywords", run.Keywords, "priority", run.Priority)

	w.setStatus(WorkerStatusWorking, run.ID)
	defer w.setStatus(WorkerStatusIdle, 0)

	// 3. Create run context
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	// 4. Register cancel function for API-triggered cancellation
	w.pool.RegisterRun(run.ID, cancelRun)
	defer w.pool.UnregisterRun(run.ID)

	// 5. Start heartbeat
	heartbeatCtx, cancelHeartbeat := context.WithCancel(runCtx)
	defer cancelHeartbeat()
	go w.runHeartbeat(heartbeatCtx, run.ID)

	// 6. Execute run
	result := w.runExecutor.Execute(runCtx, run)

	// 6a. Nil-guard: synthesize a safe result if the executor returned nil
	if result == nil {
		if errors.Is(runCtx.Err(), context.Canceled) {
			result = &ExecutionResult{
				Status: searchrun.StatusCancelled,
				Error:  context.Canceled,
			}
		} else {
			result = &ExecutionResult{
				Status: searchrun.StatusFailed,
				Error:  fmt.Errorf("executor returned nil result"),
			}
		}
	}

	// 7. Handle cancellation that fired between phases
	if result.Status == "" && errors.Is(runCtx.Err(), context.Canceled) {
		result = &ExecutionResult{
			Status: searchrun.StatusCancelled,
			Error:  context.Canceled,
		}
	}

	// 8. Stop heartbeat
	cancelHeartbeat()

	// 9. Update terminal status (use background context — run ctx may be cancelled)
	if err := w.updateRunTerminalStatus(context.Background(), run, result); err != nil {
		log.Error("Failed to update run terminal status", "error", err)
		return err
	}

	// 10. Best-effort notification; failure never affects run status.
	w.notifyTerminal(context.Background(), run, result)

	w.mu.Lock()
	w.runsProcessed++
	w.mu.Unlock()

	log.Info("Run processing complete", "status", result.Status)
	return nil
}

// claimNextRun atomically claims the next pending run using FOR UPDATE
// SKIP LOCKED. Priority first, then FIFO by creation time.
func (w *Worker) claimNextRun(ctx context.Context) (*ent.SearchRun, error) {
	tx, err := w.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	run, err := tx.SearchRun.Query().
		Where(searchrun.StatusEQ(searchrun.StatusPending)).
		Order(ent.Desc(searchrun.FieldPriority), ent.Asc(searchrun.FieldCreatedAt)).
		Limit(1).
		ForUpdate(sql.WithLockAction(sql.SkipLocked)).
		First(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNoRunsAvailable
		}
		return nil, fmt.Errorf("failed to query pending run: %w", err)
	}

	// Claim: set running, pod_id, started_at, last_heartbeat
	now := time.Now()
	run, err = run.Update().
		SetStatus(searchrun.StatusRunning).
		SetPodID(w.podID).
		SetStartedAt(now).
		SetLastHeartbeat(now).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to claim run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return run, nil
}

// runHeartbeat periodically updates last_heartbeat for stuck-run detection.
func (w *Worker) runHeartbeat(ctx context.Context, runID int) {
	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.client.SearchRun.UpdateOneID(runID).
				SetLastHeartbeat(time.Now()).
				Exec(ctx); err != nil {
				slog.Warn("Heartbeat update failed", "run_id", runID, "error", err)
			}
		}
	}
}

// updateRunTerminalStatus writes the final run status.
func (w *Worker) updateRunTerminalStatus(ctx context.Context, run *ent.SearchRun, result *ExecutionResult) error {
	update := w.client.SearchRun.UpdateOneID(run.ID).
		SetStatus(result.Status).
		SetEndedAt(time.Now())

	if result.RunLogID != 0 {
		update = update.SetRunLogID(result.RunLogID)
	}
	if result.Error != nil {
		msg := result.Error.Error()
		if result.FailedPhase != "" {
			msg = fmt.Sprintf("%s: %s", result.FailedPhase, msg)
		}
		update = update.SetErrorMessage(msg)
	}

	return update.Exec(ctx)
}

// notifyTerminal publishes the terminal status on the notification
// channel. Best-effort: errors are logged by the service itself.
func (w *Worker) notifyTerminal(ctx context.Context, run *ent.SearchRun, result *ExecutionResult) {
	if w.slackService == nil {
		return
	}

	var errMsg string
	if result.Error != nil {
		errMsg = result.Error.Error()
	}

	w.slackService.NotifyRunCompleted(ctx, adslack.RunCompletedInput{
		RunID:        run.ID,
		Keywords:     run.Keywords,
		Status:       string(result.Status),
		ErrorMessage: errMsg,
	})
}

// pollInterval returns the poll duration with jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	// Range: [base - jitter, base + jitter]
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, runID int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentRunID = runID
	w.lastActivity = time.Now()
}
