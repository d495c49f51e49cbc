package services

import (
	"context"
	"fmt"
	"time"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/ent/ad"
	"github.com/adscout/adscout/pkg/models"
)

// AdService manages the ad detail table. Rows are insert-only: an ad that
// already exists is left untouched.
type AdService struct {
	client *ent.Client
}

// NewAdService creates a new AdService.
func NewAdService(client *ent.Client) *AdService {
	return &AdService{client: client}
}

// InsertAds saves ads for pages at or above the detail threshold, returning the
// number of rows actually inserted. Replays are no-ops.
func (s *AdService) InsertAds(ctx context.Context, userID string, ads []models.AdRecord) (int, error) {
	saved := 0
	for i := range ads {
		a := &ads[i]
		builder := s.client.Ad.Create().
			SetUserID(userID).
			SetAdID(a.AdID).
			SetPageID(a.PageID).
			SetPageName(a.PageName).
			SetReach(a.Reach.Value)

		if a.HasCreationDate() {
			builder.SetCreationDate(a.CreationDate)
		}
		if a.Reach.Lower > 0 {
			builder.SetReachLower(a.Reach.Lower)
		}
		if a.Reach.Upper > 0 {
			builder.SetReachUpper(a.Reach.Upper)
		}
		if len(a.CreativeBodies) > 0 {
			builder.SetCreativeBodies(a.CreativeBodies)
		}
		if len(a.CreativeLinkTitles) > 0 {
			builder.SetCreativeLinkTitles(a.CreativeLinkTitles)
		}
		if len(a.CreativeLinkCaptions) > 0 {
			builder.SetCreativeLinkCaptions(a.CreativeLinkCaptions)
		}
		if a.SnapshotURL != "" {
			builder.SetSnapshotURL(a.SnapshotURL)
		}
		if a.Currency != "" {
			builder.SetCurrency(a.Currency)
		}
		if len(a.Languages) > 0 {
			builder.SetLanguages(a.Languages)
		}
		if len(a.Platforms) > 0 {
			builder.SetPlatforms(a.Platforms)
		}
		if a.Targeting != "" {
			builder.SetTargeting(a.Targeting)
		}
		if a.Keyword != "" {
			builder.SetKeyword(a.Keyword)
		}

		err := builder.Exec(ctx)
		switch {
		case err == nil:
			saved++
		case ent.IsConstraintError(err):
			// Ads are immutable once saved.
		default:
			return saved, fmt.Errorf("failed to insert ad %s: %w", a.AdID, err)
		}
	}
	return saved, nil
}

// PurgeOldAds deletes ad detail rows older than the retention window.
func (s *AdService) PurgeOldAds(ctx context.Context, retentionDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	n, err := s.client.Ad.Delete().
		Where(ad.ScannedAtLT(cutoff)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old ads: %w", err)
	}
	return n, nil
}

// AdsByPage returns the stored ads of one page.
func (s *AdService) AdsByPage(ctx context.Context, userID, pageID string, limit int) ([]*ent.Ad, error) {
	if limit <= 0 {
		limit = 200
	}
	ads, err := s.client.Ad.Query().
		Where(ad.UserIDEQ(userID), ad.PageIDEQ(pageID)).
		Order(ent.Desc(ad.FieldScannedAt)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query ads: %w", err)
	}
	return ads, nil
}
