package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adscout/adscout/pkg/scoring"
	"github.com/adscout/adscout/test/util"
)

func TestSettingsGetSet(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	svc := NewSettingsService(client)
	ctx := context.Background()

	v, err := svc.Get(ctx, "tenant-1", "missing", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)

	require.NoError(t, svc.Set(ctx, "tenant-1", "min_ads_detail", "30"))
	require.NoError(t, svc.Set(ctx, "tenant-1", "min_ads_detail", "40"))

	v, err = svc.Get(ctx, "tenant-1", "min_ads_detail", "")
	require.NoError(t, err)
	assert.Equal(t, "40", v)

	// Tenant isolation.
	v, err = svc.Get(ctx, "tenant-2", "min_ads_detail", "20")
	require.NoError(t, err)
	assert.Equal(t, "20", v)
}

func TestSizeThresholdsFromSettings(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	svc := NewSettingsService(client)
	ctx := context.Background()
	fallback := scoring.DefaultSizeThresholds()

	// No override → fallback.
	assert.Equal(t, fallback, svc.SizeThresholds(ctx, "tenant-1", fallback))

	require.NoError(t, svc.Set(ctx, "tenant-1", SettingSizeThresholds,
		`{"s":5,"m":15,"l":30,"xl":60,"xxl":120}`))
	got := svc.SizeThresholds(ctx, "tenant-1", fallback)
	assert.Equal(t, scoring.SizeThresholds{S: 5, M: 15, L: 30, XL: 60, XXL: 120}, got)

	// Invalid overrides fall back.
	require.NoError(t, svc.Set(ctx, "tenant-1", SettingSizeThresholds, `{"s":50,"m":15}`))
	assert.Equal(t, fallback, svc.SizeThresholds(ctx, "tenant-1", fallback))
}

func TestWinningCriteriaFromSettings(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	svc := NewSettingsService(client)
	ctx := context.Background()
	fallback := scoring.DefaultCriteria()

	assert.Equal(t, fallback, svc.WinningCriteria(ctx, "tenant-1", fallback))

	require.NoError(t, svc.Set(ctx, "tenant-1", SettingWinningCriteria,
		`[{"max_age_days":10,"min_reach":5000}]`))
	got := svc.WinningCriteria(ctx, "tenant-1", fallback)
	require.Len(t, got, 1)
	assert.Equal(t, 10, got[0].MaxAgeDays)
	assert.EqualValues(t, 5000, got[0].MinReach)
}

func TestMinAdsDetailFromSettings(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	svc := NewSettingsService(client)
	ctx := context.Background()

	assert.Equal(t, 20, svc.MinAdsDetail(ctx, "tenant-1", 20))

	require.NoError(t, svc.Set(ctx, "tenant-1", SettingMinAdsDetail, "35"))
	assert.Equal(t, 35, svc.MinAdsDetail(ctx, "tenant-1", 20))

	require.NoError(t, svc.Set(ctx, "tenant-1", SettingMinAdsDetail, "garbage"))
	assert.Equal(t, 20, svc.MinAdsDetail(ctx, "tenant-1", 20))
}

func TestBlacklistService(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	svc := NewBlacklistService(client)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "tenant-1", "page-1", "Bad Shop", "spam"))
	// Adding twice is a no-op.
	require.NoError(t, svc.Add(ctx, "tenant-1", "page-1", "Bad Shop", "spam"))

	blocked, err := svc.IsBlacklisted(ctx, "tenant-1", "page-1")
	require.NoError(t, err)
	assert.True(t, blocked)

	// Blacklists never leak across tenants.
	blocked, err = svc.IsBlacklisted(ctx, "tenant-2", "page-1")
	require.NoError(t, err)
	assert.False(t, blocked)

	ids, err := svc.PageIDs(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	require.NoError(t, svc.Remove(ctx, "tenant-1", "page-1"))
	blocked, err = svc.IsBlacklisted(ctx, "tenant-1", "page-1")
	require.NoError(t, err)
	assert.False(t, blocked)
}
