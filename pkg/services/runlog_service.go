package services

import (
	"context"
	"fmt"
	"time"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/ent/runlog"
	"github.com/adscout/adscout/pkg/models"
)

// RunLogInput carries everything needed to finalize a run's log in one
// write. Once written with EndedAt set, the record is append-only.
type RunLogInput struct {
	UserID       string
	SearchRunID  int
	Keywords     []string
	Countries    []string
	Languages    []string
	MinActiveAds int
	CMSFilter    []string

	Status       string
	ErrorMessage string
	Phases       []models.PhaseRecord

	AdsFound           int
	PagesFound         int
	PagesAfterFilter   int
	PagesByCMS         map[string]int
	WinningAdsCount    int
	BlacklistedSkipped int
	Counts             models.RunCounts

	APICounters models.APICounters
	Errors      []models.ErrorRecord

	StartedAt time.Time
	EndedAt   time.Time
}

// RunLogService manages the immutable run logs.
type RunLogService struct {
	client *ent.Client
}

// NewRunLogService creates a new RunLogService.
func NewRunLogService(client *ent.Client) *RunLogService {
	return &RunLogService{client: client}
}

// Create writes the final run log and returns it.
func (s *RunLogService) Create(ctx context.Context, in RunLogInput) (*ent.RunLog, error) {
	if in.UserID == "" {
		return nil, NewValidationError("user_id", "required")
	}
	if in.SearchRunID == 0 {
		return nil, NewValidationError("search_run_id", "required")
	}

	builder := s.client.RunLog.Create().
		SetUserID(in.UserID).
		SetSearchRunID(in.SearchRunID).
		SetKeywords(in.Keywords).
		SetCountries(in.Countries).
		SetLanguages(in.Languages).
		SetMinActiveAds(in.MinActiveAds).
		SetStatus(in.Status).
		SetAdsFound(in.AdsFound).
		SetPagesFound(in.PagesFound).
		SetPagesAfterFilter(in.PagesAfterFilter).
		SetWinningAdsCount(in.WinningAdsCount).
		SetBlacklistedSkipped(in.BlacklistedSkipped).
		SetNewPages(in.Counts.NewPages).
		SetUpdatedPages(in.Counts.UpdatedPages).
		SetNewWinningAds(in.Counts.NewWinningAds).
		SetUpdatedWinningAds(in.Counts.UpdatedWinningAds).
		SetAPICounters(in.APICounters).
		SetStartedAt(in.StartedAt).
		SetEndedAt(in.EndedAt).
		SetDurationSeconds(in.EndedAt.Sub(in.StartedAt).Seconds())

	if len(in.CMSFilter) > 0 {
		builder.SetCmsFilter(in.CMSFilter)
	}
	if in.ErrorMessage != "" {
		builder.SetErrorMessage(in.ErrorMessage)
	}
	if len(in.Phases) > 0 {
		builder.SetPhases(in.Phases)
	}
	if len(in.PagesByCMS) > 0 {
		builder.SetPagesByCms(in.PagesByCMS)
	}
	if len(in.Errors) > 0 {
		builder.SetErrors(in.Errors)
	}

	log, err := builder.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log: %w", err)
	}
	return log, nil
}

// Get returns a tenant's run log by id.
func (s *RunLogService) Get(ctx context.Context, userID string, id int) (*ent.RunLog, error) {
	log, err := s.client.RunLog.Query().
		Where(runlog.IDEQ(id), runlog.UserIDEQ(userID)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query run log: %w", err)
	}
	return log, nil
}

// GetByRun returns the run log written for a run, if any.
func (s *RunLogService) GetByRun(ctx context.Context, userID string, runID int) (*ent.RunLog, error) {
	log, err := s.client.RunLog.Query().
		Where(runlog.UserIDEQ(userID), runlog.SearchRunIDEQ(runID)).
		Order(ent.Desc(runlog.FieldStartedAt)).
		First(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query run log: %w", err)
	}
	return log, nil
}

// PurgeOldLogs deletes run logs older than the retention window.
func (s *RunLogService) PurgeOldLogs(ctx context.Context, retentionDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	n, err := s.client.RunLog.Delete().
		Where(runlog.StartedAtLT(cutoff)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old run logs: %w", err)
	}
	return n, nil
}

// List returns a tenant's run logs, newest first.
func (s *RunLogService) List(ctx context.Context, userID string, limit int) ([]*ent.RunLog, error) {
	if limit <= 0 {
		limit = 50
	}
	logs, err := s.client.RunLog.Query().
		Where(runlog.UserIDEQ(userID)).
		Order(ent.Desc(runlog.FieldStartedAt)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	return logs, nil
}
