package services

import (
	"context"
	"fmt"
	"time"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/ent/scheduledscan"
)

// ScheduledScanService manages recurring search definitions. The scan
// scheduler reads the active set and submits runs when cron fires.
type ScheduledScanService struct {
	client *ent.Client
}

// NewScheduledScanService creates a new ScheduledScanService.
func NewScheduledScanService(client *ent.Client) *ScheduledScanService {
	return &ScheduledScanService{client: client}
}

// ScheduledScanInput carries the fields of one recurring scan.
type ScheduledScanInput struct {
	UserID       string
	Name         string
	CronExpr     string
	Keywords     []string
	Countries    []string
	Languages    []string
	MinActiveAds int
	CMSFilter    []string
	Priority     int
}

// Create registers a scheduled scan.
func (s *ScheduledScanService) Create(ctx context.Context, in ScheduledScanInput) (*ent.ScheduledScan, error) {
	if in.UserID == "" {
		return nil, NewValidationError("user_id", "required")
	}
	if in.CronExpr == "" {
		return nil, NewValidationError("cron_expr", "required")
	}
	if len(in.Keywords) == 0 {
		return nil, NewValidationError("keywords", "at least one keyword is required")
	}

	builder := s.client.ScheduledScan.Create().
		SetUserID(in.UserID).
		SetName(in.Name).
		SetCronExpr(in.CronExpr).
		SetKeywords(in.Keywords).
		SetCountries(in.Countries).
		SetLanguages(in.Languages).
		SetMinActiveAds(in.MinActiveAds).
		SetPriority(in.Priority)
	if len(in.CMSFilter) > 0 {
		builder.SetCmsFilter(in.CMSFilter)
	}
	scan, err := builder.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduled scan: %w", err)
	}
	return scan, nil
}

// ListActive returns every active scheduled scan across tenants.
func (s *ScheduledScanService) ListActive(ctx context.Context) ([]*ent.ScheduledScan, error) {
	scans, err := s.client.ScheduledScan.Query().
		Where(scheduledscan.Active(true)).
		Order(ent.Asc(scheduledscan.FieldID)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled scans: %w", err)
	}
	return scans, nil
}

// List returns a tenant's scheduled scans.
func (s *ScheduledScanService) List(ctx context.Context, userID string) ([]*ent.ScheduledScan, error) {
	scans, err := s.client.ScheduledScan.Query().
		Where(scheduledscan.UserIDEQ(userID)).
		Order(ent.Asc(scheduledscan.FieldID)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled scans: %w", err)
	}
	return scans, nil
}

// SetActive enables or disables a scan.
func (s *ScheduledScanService) SetActive(ctx context.Context, userID string, id int, active bool) error {
	n, err := s.client.ScheduledScan.Update().
		Where(scheduledscan.IDEQ(id), scheduledscan.UserIDEQ(userID)).
		SetActive(active).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("failed to update scheduled scan: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a scan.
func (s *ScheduledScanService) Delete(ctx context.Context, userID string, id int) error {
	n, err := s.client.ScheduledScan.Delete().
		Where(scheduledscan.IDEQ(id), scheduledscan.UserIDEQ(userID)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete scheduled scan: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkExecuted stamps the scan with the run it just submitted.
func (s *ScheduledScanService) MarkExecuted(ctx context.Context, id, runID int) error {
	return s.client.ScheduledScan.UpdateOneID(id).
		SetLastRunAt(time.Now()).
		SetLastRunID(runID).
		Exec(ctx)
}
