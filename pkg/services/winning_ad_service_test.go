package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adscout/adscout/pkg/models"
	"github.com/adscout/adscout/test/util"
)

func candidate(adID, pageID string, reach int64, age int) models.WinningAdCandidate {
	return models.WinningAdCandidate{
		Ad: models.AdRecord{
			AdID:         adID,
			PageID:       pageID,
			PageName:     "Shop",
			CreationDate: time.Now().AddDate(0, 0, -age),
			Reach:        models.Reach{Value: reach},
		},
		Criterion: "≤4d & >15k",
		AgeDays:   age,
		Reach:     reach,
		Website:   "https://shop.example",
	}
}

func TestUpsertWinningAdsNewThenUpdate(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	svc := NewWinningAdService(client)
	ctx := context.Background()

	newIDs, updated, err := svc.UpsertWinningAds(ctx, "tenant-1", 1, []models.WinningAdCandidate{
		candidate("ad-1", "page-1", 30_000, 2),
	})
	require.NoError(t, err)
	assert.True(t, newIDs["ad-1"])
	assert.Zero(t, updated)

	w, err := client.WinningAd.Query().Only(ctx)
	require.NoError(t, err)
	assert.True(t, w.IsNew)
	assert.Equal(t, 1, w.SearchRunID)
	assert.EqualValues(t, 30_000, w.ReachAtDetection)

	// Re-detection by a later run updates snapshots, never duplicates.
	newIDs, updated, err = svc.UpsertWinningAds(ctx, "tenant-1", 2, []models.WinningAdCandidate{
		candidate("ad-1", "page-1", 45_000, 3),
	})
	require.NoError(t, err)
	assert.Empty(t, newIDs)
	assert.Equal(t, 1, updated)

	count, err := client.WinningAd.Query().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	w, err = client.WinningAd.Query().Only(ctx)
	require.NoError(t, err)
	assert.False(t, w.IsNew, "is_new marks first-ever detection only")
	assert.Equal(t, 2, w.SearchRunID)
	assert.EqualValues(t, 45_000, w.ReachAtDetection)
	assert.Equal(t, 3, w.AgeAtDetection)
}

func TestNoDuplicateWinningAdsAcrossRuns(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	svc := NewWinningAdService(client)
	ctx := context.Background()

	// Two runs detect the same ad: one row, two lineage entries, is_new
	// reflecting the first committer.
	for runID := 1; runID <= 2; runID++ {
		cands := []models.WinningAdCandidate{candidate("ad-dup", "page-1", 20_000, 1)}
		newIDs, _, err := svc.UpsertWinningAds(ctx, "tenant-1", runID, cands)
		require.NoError(t, err)
		require.NoError(t, svc.RecordRunWinningAds(ctx, "tenant-1", runID, cands, newIDs))
	}

	count, err := client.WinningAd.Query().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	hist, err := client.RunWinningAdHistory.Query().All(ctx)
	require.NoError(t, err)
	require.Len(t, hist, 2)

	newFlags := 0
	for _, h := range hist {
		if h.WasNew {
			newFlags++
		}
	}
	assert.Equal(t, 1, newFlags, "only the first committer's lineage row is new")
}

func TestWinningAdsByRun(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	svc := NewWinningAdService(client)
	ctx := context.Background()

	cands := []models.WinningAdCandidate{
		candidate("ad-1", "page-1", 30_000, 2),
		candidate("ad-2", "page-2", 60_000, 3),
	}
	newIDs, _, err := svc.UpsertWinningAds(ctx, "tenant-1", 9, cands)
	require.NoError(t, err)
	require.NoError(t, svc.RecordRunWinningAds(ctx, "tenant-1", 9, cands, newIDs))

	ads, err := svc.WinningAdsByRun(ctx, "tenant-1", 9)
	require.NoError(t, err)
	require.Len(t, ads, 2)
	// Ordered by reach descending.
	assert.Equal(t, "ad-2", ads[0].AdID)

	none, err := svc.WinningAdsByRun(ctx, "tenant-1", 999)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordRunWinningAdsIsReplaySafe(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	svc := NewWinningAdService(client)
	ctx := context.Background()

	cands := []models.WinningAdCandidate{candidate("ad-1", "page-1", 30_000, 2)}
	newIDs, _, err := svc.UpsertWinningAds(ctx, "tenant-1", 1, cands)
	require.NoError(t, err)

	require.NoError(t, svc.RecordRunWinningAds(ctx, "tenant-1", 1, cands, newIDs))
	require.NoError(t, svc.RecordRunWinningAds(ctx, "tenant-1", 1, cands, newIDs))

	count, err := client.RunWinningAdHistory.Query().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
