package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/ent/runwinningadhistory"
	"github.com/adscout/adscout/ent/winningad"
	"github.com/adscout/adscout/pkg/models"
)

// WinningAdService manages detected winning ads and their run lineage.
type WinningAdService struct {
	client *ent.Client
}

// NewWinningAdService creates a new WinningAdService.
func NewWinningAdService(client *ent.Client) *WinningAdService {
	return &WinningAdService{client: client}
}

// UpsertWinningAds writes the run's candidates. At most one row exists per
// (tenant, ad_id): re-detections update snapshot fields and clear is_new.
// A create losing a race with a concurrent run retries as an update, so
// the first committer keeps is_new=true. Returns the set of ad ids this
// run inserted as new, and the updated count.
func (s *WinningAdService) UpsertWinningAds(ctx context.Context, userID string, runID int, candidates []models.WinningAdCandidate) (map[string]bool, int, error) {
	newIDs := make(map[string]bool)
	var updatedCount int

	for i := range candidates {
		c := &candidates[i]
		existing, err := s.client.WinningAd.Query().
			Where(winningad.UserIDEQ(userID), winningad.AdIDEQ(c.Ad.AdID)).
			Only(ctx)
		switch {
		case err == nil:
			if err := s.applyUpdate(ctx, existing, runID, c); err != nil {
				return newIDs, updatedCount, err
			}
			updatedCount++
		case ent.IsNotFound(err):
			err := s.create(ctx, userID, runID, c)
			if err == nil {
				newIDs[c.Ad.AdID] = true
				continue
			}
			if !ent.IsConstraintError(err) {
				return newIDs, updatedCount, err
			}
			existing, qerr := s.client.WinningAd.Query().
				Where(winningad.UserIDEQ(userID), winningad.AdIDEQ(c.Ad.AdID)).
				Only(ctx)
			if qerr != nil {
				return newIDs, updatedCount, fmt.Errorf("failed to re-query winning ad after conflict: %w", qerr)
			}
			slog.Debug("Winning ad insert lost race, updating instead", "ad_id", c.Ad.AdID)
			if err := s.applyUpdate(ctx, existing, runID, c); err != nil {
				return newIDs, updatedCount, err
			}
			updatedCount++
		default:
			return newIDs, updatedCount, fmt.Errorf("failed to query winning ad %s: %w", c.Ad.AdID, err)
		}
	}
	return newIDs, updatedCount, nil
}

func (s *WinningAdService) create(ctx context.Context, userID string, runID int, c *models.WinningAdCandidate) error {
	builder := s.client.WinningAd.Create().
		SetUserID(userID).
		SetAdID(c.Ad.AdID).
		SetPageID(c.Ad.PageID).
		SetPageName(c.Ad.PageName).
		SetMatchedCriterion(c.Criterion).
		SetReachAtDetection(c.Reach).
		SetAgeAtDetection(c.AgeDays).
		SetIsNew(true).
		SetSearchRunID(runID)

	if c.Ad.HasCreationDate() {
		builder.SetCreationDate(c.Ad.CreationDate)
	}
	if len(c.Ad.CreativeBodies) > 0 {
		builder.SetCreativeBodies(c.Ad.CreativeBodies)
	}
	if len(c.Ad.CreativeLinkTitles) > 0 {
		builder.SetCreativeLinkTitles(c.Ad.CreativeLinkTitles)
	}
	if len(c.Ad.CreativeLinkCaptions) > 0 {
		builder.SetCreativeLinkCaptions(c.Ad.CreativeLinkCaptions)
	}
	if c.Ad.SnapshotURL != "" {
		builder.SetSnapshotURL(c.Ad.SnapshotURL)
	}
	if c.Website != "" {
		builder.SetWebsite(c.Website)
	}

	return builder.Exec(ctx)
}

func (s *WinningAdService) applyUpdate(ctx context.Context, existing *ent.WinningAd, runID int, c *models.WinningAdCandidate) error {
	update := existing.Update().
		SetMatchedCriterion(c.Criterion).
		SetReachAtDetection(c.Reach).
		SetAgeAtDetection(c.AgeDays).
		SetIsNew(false).
		SetSearchRunID(runID)

	if existing.PageName == "" && c.Ad.PageName != "" {
		update = update.SetPageName(c.Ad.PageName)
	}
	if c.Ad.HasCreationDate() {
		update = update.SetCreationDate(c.Ad.CreationDate)
	}
	if c.Ad.SnapshotURL != "" {
		update = update.SetSnapshotURL(c.Ad.SnapshotURL)
	}
	if c.Website != "" {
		update = update.SetWebsite(c.Website)
	}

	if err := update.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update winning ad %s: %w", c.Ad.AdID, err)
	}
	return nil
}

// RecordRunWinningAds appends the run↔winning-ad lineage rows. Safe to
// replay: existing rows are skipped.
func (s *WinningAdService) RecordRunWinningAds(ctx context.Context, userID string, runID int, candidates []models.WinningAdCandidate, newAdIDs map[string]bool) error {
	for i := range candidates {
		c := &candidates[i]
		err := s.client.RunWinningAdHistory.Create().
			SetUserID(userID).
			SetSearchRunID(runID).
			SetAdID(c.Ad.AdID).
			SetWasNew(newAdIDs[c.Ad.AdID]).
			SetReachAtDiscovery(c.Reach).
			SetAgeAtDiscovery(c.AgeDays).
			SetMatchedCriterion(c.Criterion).
			Exec(ctx)
		if err != nil && !ent.IsConstraintError(err) {
			return fmt.Errorf("failed to record winning ad history for %s: %w", c.Ad.AdID, err)
		}
	}
	return nil
}

// WinningAdsByRun returns the winning ads a run detected, via lineage.
func (s *WinningAdService) WinningAdsByRun(ctx context.Context, userID string, runID int) ([]*ent.WinningAd, error) {
	rows, err := s.client.RunWinningAdHistory.Query().
		Where(runwinningadhistory.UserIDEQ(userID), runwinningadhistory.SearchRunIDEQ(runID)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query run winning ad history: %w", err)
	}
	if len(rows) == 0 {
		return []*ent.WinningAd{}, nil
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.AdID
	}
	ads, err := s.client.WinningAd.Query().
		Where(winningad.UserIDEQ(userID), winningad.AdIDIn(ids...)).
		Order(ent.Desc(winningad.FieldReachAtDetection)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query winning ads: %w", err)
	}
	return ads, nil
}

// List returns a tenant's winning ads, newest detections first.
func (s *WinningAdService) List(ctx context.Context, userID string, limit int) ([]*ent.WinningAd, error) {
	if limit <= 0 {
		limit = 200
	}
	ads, err := s.client.WinningAd.Query().
		Where(winningad.UserIDEQ(userID)).
		Order(ent.Desc(winningad.FieldDetectedAt)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list winning ads: %w", err)
	}
	return ads, nil
}
