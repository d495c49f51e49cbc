package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adscout/adscout/ent/page"
	"github.com/adscout/adscout/pkg/models"
	"github.com/adscout/adscout/test/util"
)

func stagedPage(pageID, name string, adCount int) models.PageUpdate {
	return models.PageUpdate{
		PageID:         pageID,
		PageName:       name,
		ActiveAdCount:  adCount,
		SizeBucket:     "S",
		Keywords:       []string{"bijoux"},
		Countries:      []string{"FR"},
		WasNew:         true,
		KeywordMatched: "bijoux",
	}
}

func TestUpsertPagesCreateThenUpdate(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	svc := NewPageService(client)
	ctx := context.Background()

	created, updated, err := svc.UpsertPages(ctx, "tenant-1", 1, []models.PageUpdate{
		stagedPage("page-1", "Atelier", 12),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Zero(t, updated)

	p, err := svc.Get(ctx, "tenant-1", "page-1")
	require.NoError(t, err)
	assert.True(t, p.WasCreatedInLastRun)
	assert.Equal(t, 12, p.ActiveAdCount)
	assert.Equal(t, []string{"bijoux"}, p.Keywords)

	// Second run updates the same page with new keywords and countries.
	u := stagedPage("page-1", "Atelier", 15)
	u.Keywords = []string{"montres"}
	u.Countries = []string{"DE"}
	u.WasNew = false
	created, updated, err = svc.UpsertPages(ctx, "tenant-1", 2, []models.PageUpdate{u})
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Equal(t, 1, updated)

	p, err = svc.Get(ctx, "tenant-1", "page-1")
	require.NoError(t, err)
	assert.False(t, p.WasCreatedInLastRun)
	assert.Equal(t, 15, p.ActiveAdCount)
	// Keywords and countries are append-only unions.
	assert.Equal(t, []string{"bijoux", "montres"}, p.Keywords)
	assert.Equal(t, []string{"DE", "FR"}, p.Countries)
	require.NotNil(t, p.LastRunID)
	assert.Equal(t, 2, *p.LastRunID)
}

func TestUpsertPagesNamePrecedence(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	svc := NewPageService(client)
	ctx := context.Background()

	_, _, err := svc.UpsertPages(ctx, "tenant-1", 1, []models.PageUpdate{
		stagedPage("page-1", "Original Name", 5),
	})
	require.NoError(t, err)

	// An empty or different snapshot never overwrites the stored name.
	u := stagedPage("page-1", "", 6)
	_, _, err = svc.UpsertPages(ctx, "tenant-1", 2, []models.PageUpdate{u})
	require.NoError(t, err)

	u = stagedPage("page-1", "Other Name", 7)
	_, _, err = svc.UpsertPages(ctx, "tenant-1", 3, []models.PageUpdate{u})
	require.NoError(t, err)

	p, err := svc.Get(ctx, "tenant-1", "page-1")
	require.NoError(t, err)
	assert.Equal(t, "Original Name", p.PageName)
}

func TestUpsertPagesCMSNeverDowngraded(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	svc := NewPageService(client)
	ctx := context.Background()

	u := stagedPage("page-1", "Shop", 5)
	u.CMS = "Shopify"
	_, _, err := svc.UpsertPages(ctx, "tenant-1", 1, []models.PageUpdate{u})
	require.NoError(t, err)

	u = stagedPage("page-1", "Shop", 6)
	u.CMS = string(page.CmsUnknown)
	_, _, err = svc.UpsertPages(ctx, "tenant-1", 2, []models.PageUpdate{u})
	require.NoError(t, err)

	p, err := svc.Get(ctx, "tenant-1", "page-1")
	require.NoError(t, err)
	assert.Equal(t, page.CmsShopify, p.Cms)
}

func TestPagesAreTenantScoped(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	svc := NewPageService(client)
	ctx := context.Background()

	_, _, err := svc.UpsertPages(ctx, "tenant-1", 1, []models.PageUpdate{
		stagedPage("page-1", "Shop A", 5),
	})
	require.NoError(t, err)

	// The same archive page id creates a separate row for another tenant.
	created, _, err := svc.UpsertPages(ctx, "tenant-2", 2, []models.PageUpdate{
		stagedPage("page-1", "Shop A", 5),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	_, err = svc.Get(ctx, "tenant-2", "page-1")
	require.NoError(t, err)
}

func TestLineageCompleteness(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	svc := NewPageService(client)
	ctx := context.Background()

	updates := []models.PageUpdate{
		stagedPage("page-1", "One", 5),
		stagedPage("page-2", "Two", 8),
	}
	_, _, err := svc.UpsertPages(ctx, "tenant-1", 7, updates)
	require.NoError(t, err)
	require.NoError(t, svc.RecordRunPages(ctx, "tenant-1", 7, updates))

	// Every page from PagesByRun has a matching lineage row and vice versa.
	pages, err := svc.PagesByRun(ctx, "tenant-1", 7)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	for _, p := range pages {
		rows, err := svc.RunsForPage(ctx, "tenant-1", p.PageID)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 7, rows[0].SearchRunID)
		assert.True(t, rows[0].WasNew)
		assert.Equal(t, "bijoux", rows[0].KeywordMatched)
	}
}

func TestRecordRunPagesIsReplaySafe(t *testing.T) {
	client, _ := util.SetupTestDatabase(t)
	svc := NewPageService(client)
	ctx := context.Background()

	updates := []models.PageUpdate{stagedPage("page-1", "One", 5)}
	_, _, err := svc.UpsertPages(ctx, "tenant-1", 1, updates)
	require.NoError(t, err)

	require.NoError(t, svc.RecordRunPages(ctx, "tenant-1", 1, updates))
	require.NoError(t, svc.RecordRunPages(ctx, "tenant-1", 1, updates))

	count, err := client.RunPageHistory.Query().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
