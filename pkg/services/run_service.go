package services

import (
	"context"
	"fmt"
	"time"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/ent/searchrun"
	"github.com/adscout/adscout/pkg/models"
	"github.com/adscout/adscout/pkg/progress"
)

// RunService manages the search-run queue rows and their state machine.
type RunService struct {
	client *ent.Client
}

// NewRunService creates a new RunService.
func NewRunService(client *ent.Client) *RunService {
	return &RunService{client: client}
}

// Submit persists a new run in state pending and returns it.
func (s *RunService) Submit(httpCtx context.Context, req models.CreateRunRequest) (*ent.SearchRun, error) {
	if req.UserID == "" {
		return nil, NewValidationError("user_id", "required")
	}
	if len(req.Keywords) == 0 {
		return nil, NewValidationError("keywords", "at least one keyword is required")
	}
	if len(req.Countries) == 0 {
		return nil, NewValidationError("countries", "at least one country is required")
	}
	if req.MinActiveAds < 0 {
		return nil, NewValidationError("min_active_ads", "must be non-negative")
	}

	// Use background context with timeout for the critical write: the
	// submission must survive the HTTP client going away.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	languages := req.Languages
	if len(languages) == 0 {
		languages = []string{}
	}

	builder := s.client.SearchRun.Create().
		SetUserID(req.UserID).
		SetKeywords(req.Keywords).
		SetCountries(req.Countries).
		SetLanguages(languages).
		SetMinActiveAds(req.MinActiveAds).
		SetPriority(req.Priority).
		SetStatus(searchrun.StatusPending)

	if len(req.CMSFilter) > 0 {
		builder.SetCmsFilter(req.CMSFilter)
	}

	run, err := builder.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// Get returns a tenant's run by id.
func (s *RunService) Get(ctx context.Context, userID string, id int) (*ent.SearchRun, error) {
	run, err := s.client.SearchRun.Query().
		Where(searchrun.IDEQ(id), searchrun.UserIDEQ(userID)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

// Cancel requests cancellation. A pending run flips directly to cancelled;
// a running run flips to cancelling and the orchestrator finishes the flip
// at its next phase boundary. Both transitions are atomic check-and-sets.
func (s *RunService) Cancel(ctx context.Context, userID string, id int) (searchrun.Status, error) {
	now := time.Now()

	n, err := s.client.SearchRun.Update().
		Where(
			searchrun.IDEQ(id),
			searchrun.UserIDEQ(userID),
			searchrun.StatusEQ(searchrun.StatusPending),
		).
		SetStatus(searchrun.StatusCancelled).
		SetEndedAt(now).
		Save(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to cancel pending run: %w", err)
	}
	if n > 0 {
		return searchrun.StatusCancelled, nil
	}

	n, err = s.client.SearchRun.Update().
		Where(
			searchrun.IDEQ(id),
			searchrun.UserIDEQ(userID),
			searchrun.StatusEQ(searchrun.StatusRunning),
		).
		SetStatus(searchrun.StatusCancelling).
		Save(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to request run cancellation: %w", err)
	}
	if n > 0 {
		return searchrun.StatusCancelling, nil
	}

	if _, err := s.Get(ctx, userID, id); err != nil {
		return "", err
	}
	return "", ErrInvalidTransition
}

// Restart moves an interrupted or failed run back to pending with cleared
// progress fields and fresh timestamps.
func (s *RunService) Restart(ctx context.Context, userID string, id int) error {
	n, err := s.client.SearchRun.Update().
		Where(
			searchrun.IDEQ(id),
			searchrun.UserIDEQ(userID),
			searchrun.StatusIn(searchrun.StatusInterrupted, searchrun.StatusFailed),
		).
		SetStatus(searchrun.StatusPending).
		SetCurrentPhase(0).
		ClearCurrentPhaseName().
		SetProgressPercent(0).
		ClearProgressMessage().
		ClearPhasesData().
		ClearErrorMessage().
		ClearStartedAt().
		ClearEndedAt().
		ClearLastHeartbeat().
		ClearPodID().
		SetCreatedAt(time.Now()).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("failed to restart run: %w", err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, userID, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

// ListActive returns a tenant's pending, running and cancelling runs,
// oldest first.
func (s *RunService) ListActive(ctx context.Context, userID string) ([]*ent.SearchRun, error) {
	runs, err := s.client.SearchRun.Query().
		Where(
			searchrun.UserIDEQ(userID),
			searchrun.StatusIn(searchrun.StatusPending, searchrun.StatusRunning, searchrun.StatusCancelling),
		).
		Order(ent.Asc(searchrun.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active runs: %w", err)
	}
	return runs, nil
}

// ListInterrupted returns a tenant's interrupted runs, oldest first.
func (s *RunService) ListInterrupted(ctx context.Context, userID string) ([]*ent.SearchRun, error) {
	runs, err := s.client.SearchRun.Query().
		Where(
			searchrun.UserIDEQ(userID),
			searchrun.StatusEQ(searchrun.StatusInterrupted),
		).
		Order(ent.Asc(searchrun.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list interrupted runs: %w", err)
	}
	return runs, nil
}

// ListRecent returns a tenant's most recent runs regardless of status.
func (s *RunService) ListRecent(ctx context.Context, userID string, limit int) ([]*ent.SearchRun, error) {
	if limit <= 0 {
		limit = 50
	}
	runs, err := s.client.SearchRun.Query().
		Where(searchrun.UserIDEQ(userID)).
		Order(ent.Desc(searchrun.FieldCreatedAt)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// WriteProgress persists a tracker snapshot to the run row and refreshes
// the heartbeat. Called by the orchestrator on every phase boundary.
func (s *RunService) WriteProgress(ctx context.Context, id int, snap progress.Snapshot) error {
	err := s.client.SearchRun.UpdateOneID(id).
		SetCurrentPhase(snap.CurrentPhase).
		SetCurrentPhaseName(snap.CurrentName).
		SetProgressPercent(snap.Percent).
		SetProgressMessage(snap.Message).
		SetPhasesData(snap.Completed).
		SetLastHeartbeat(time.Now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to write run progress: %w", err)
	}
	return nil
}

// Heartbeat refreshes last_heartbeat for stuck-run detection.
func (s *RunService) Heartbeat(ctx context.Context, id int) error {
	return s.client.SearchRun.UpdateOneID(id).
		SetLastHeartbeat(time.Now()).
		Exec(ctx)
}

// CancelRequested reports whether the run's status column asks the
// orchestrator to stop. Read at every phase boundary.
func (s *RunService) CancelRequested(ctx context.Context, id int) (bool, error) {
	status, err := s.client.SearchRun.Query().
		Where(searchrun.IDEQ(id)).
		Select(searchrun.FieldStatus).
		String(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read run status: %w", err)
	}
	return searchrun.Status(status) == searchrun.StatusCancelling, nil
}

// PurgeTerminalRuns deletes terminal runs older than the retention
// window. Returns the number of rows removed.
func (s *RunService) PurgeTerminalRuns(ctx context.Context, retentionDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	n, err := s.client.SearchRun.Delete().
		Where(
			searchrun.StatusIn(
				searchrun.StatusCompleted,
				searchrun.StatusNoResults,
				searchrun.StatusFailed,
				searchrun.StatusCancelled,
				searchrun.StatusInterrupted,
			),
			searchrun.CreatedAtLT(cutoff),
		).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old runs: %w", err)
	}
	return n, nil
}

// Finalize writes the terminal status of a run.
func (s *RunService) Finalize(ctx context.Context, id int, status searchrun.Status, errMsg string, runLogID int) error {
	update := s.client.SearchRun.UpdateOneID(id).
		SetStatus(status).
		SetEndedAt(time.Now())
	if errMsg != "" {
		update = update.SetErrorMessage(errMsg)
	}
	if runLogID != 0 {
		update = update.SetRunLogID(runLogID)
	}
	if err := update.Exec(ctx); err != nil {
		return fmt.Errorf("failed to finalize run: %w", err)
	}
	return nil
}
