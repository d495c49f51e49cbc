package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/ent/runpagehistory"
	"github.com/adscout/adscout/ent/searchrun"
	"github.com/adscout/adscout/ent/winningad"
	"github.com/adscout/adscout/pkg/archive"
	"github.com/adscout/adscout/pkg/config"
	"github.com/adscout/adscout/pkg/models"
	"github.com/adscout/adscout/pkg/rotator"
	"github.com/adscout/adscout/pkg/services"
	"github.com/adscout/adscout/pkg/website"
	"github.com/adscout/adscout/test/util"
)

// testEnv bundles everything an executor test needs.
type testEnv struct {
	client   *ent.Client
	stub     *archive.StubClient
	executor *RealRunExecutor
	runs     *services.RunService
	cfg      *config.Config
}

func newTestEnv(t *testing.T, analyzer website.Analyzer) *testEnv {
	t.Helper()
	client, _ := util.SetupTestDatabase(t)

	cfg := config.Default()
	cfg.Queue.PhaseTimeout = time.Minute
	cfg.Search.RetryInitialInterval = 10 * time.Millisecond
	cfg.Search.RetryMaxInterval = 40 * time.Millisecond

	stub := archive.NewStubClient()
	executor := NewRealRunExecutor(cfg, client, stub, analyzer, nil, rotator.New(client, time.Minute), nil)

	return &testEnv{
		client:   client,
		stub:     stub,
		executor: executor,
		runs:     services.NewRunService(client),
		cfg:      cfg,
	}
}

func (e *testEnv) seedCredential(t *testing.T) *ent.Credential {
	t.Helper()
	cred, err := e.client.Credential.Create().
		SetName("primary").
		SetToken("token-1").
		Save(context.Background())
	require.NoError(t, err)
	return cred
}

// claimedRun submits a run and moves it to running, as the worker would.
func (e *testEnv) claimedRun(t *testing.T, req models.CreateRunRequest) *ent.SearchRun {
	t.Helper()
	ctx := context.Background()
	run, err := e.runs.Submit(ctx, req)
	require.NoError(t, err)
	now := time.Now()
	run, err = run.Update().
		SetStatus(searchrun.StatusRunning).
		SetStartedAt(now).
		SetLastHeartbeat(now).
		Save(ctx)
	require.NoError(t, err)
	return run
}

func makeAd(adID, pageID, pageName string, age int, reach int64, ref time.Time) models.AdRecord {
	return models.AdRecord{
		AdID:         adID,
		PageID:       pageID,
		PageName:     pageName,
		CreationDate: ref.AddDate(0, 0, -age),
		Reach:        models.Reach{Value: reach},
	}
}

// pageAds builds n ads for one page, none of them winning.
func pageAds(prefix, pageID, pageName string, n int, ref time.Time) []models.AdRecord {
	ads := make([]models.AdRecord, n)
	for i := range ads {
		ads[i] = makeAd(prefix+"-"+string(rune('a'+i)), pageID, pageName, 60, 1000, ref)
	}
	return ads
}

func TestExecuteHappyPath(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedCredential(t)
	ctx := context.Background()
	ref := time.Now()

	// Four pages with 5, 4, 3 and 1 ads; one young high-reach ad and one
	// older huge-reach ad hide among them.
	ads := pageAds("p1", "page-1", "Atelier Bijoux", 5, ref)
	ads[0] = makeAd("p1-a", "page-1", "Atelier Bijoux", 2, 30_000, ref)
	ads = append(ads, pageAds("p2", "page-2", "Maison Or", 4, ref)...)
	ads = append(ads, pageAds("p3", "page-3", "Perles & Co", 3, ref)...)
	// The 1-ad page carries the old high-reach winner.
	ads = append(ads, makeAd("p4-a", "page-4", "Solo Shop", 20, 250_000, ref))
	env.stub.SetKeywordAds("bijoux", ads)

	run := env.claimedRun(t, models.CreateRunRequest{
		UserID:       "tenant-1",
		Keywords:     []string{"bijoux"},
		Countries:    []string{"FR"},
		Languages:    []string{"fr"},
		MinActiveAds: 3,
	})

	result := env.executor.Execute(ctx, run)
	require.NotNil(t, result)
	require.NoError(t, result.Error)
	assert.Equal(t, searchrun.StatusCompleted, result.Status)
	require.NotZero(t, result.RunLogID)

	// Phase 3: the 1-ad page is dropped.
	histRows, err := env.client.RunPageHistory.Query().
		Where(runpagehistory.SearchRunIDEQ(run.ID)).
		All(ctx)
	require.NoError(t, err)
	assert.Len(t, histRows, 3)

	// Phase 6: both winners detected, with the first matching criterion.
	winners, err := env.client.WinningAd.Query().All(ctx)
	require.NoError(t, err)
	require.Len(t, winners, 2)
	byAd := map[string]*ent.WinningAd{}
	for _, w := range winners {
		byAd[w.AdID] = w
	}
	require.Contains(t, byAd, "p1-a")
	require.Contains(t, byAd, "p4-a")
	assert.Equal(t, "≤4d & >15k", byAd["p1-a"].MatchedCriterion)
	assert.Equal(t, "≤22d & >200k", byAd["p4-a"].MatchedCriterion)
	assert.True(t, byAd["p1-a"].IsNew)

	// Run log carries the counters.
	runLog, err := env.client.RunLog.Get(ctx, result.RunLogID)
	require.NoError(t, err)
	assert.Equal(t, 13, runLog.AdsFound)
	assert.Equal(t, 4, runLog.PagesFound)
	assert.Equal(t, 3, runLog.PagesAfterFilter)
	assert.Equal(t, 2, runLog.WinningAdsCount)
	assert.Equal(t, 3, runLog.NewPages)
	assert.EqualValues(t, 1, runLog.APICounters.Archive.Calls)
	// The log is written inside phase 8, so it carries the seven phases
	// completed before it.
	assert.Len(t, runLog.Phases, 7)
}

func TestExecuteRateLimitRotation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	ref := time.Now()

	// Two credentials; the second keyword runs on the never-used second
	// credential and hits a rate limit, then retries on the first.
	_, err := env.client.Credential.Create().SetName("one").SetToken("t1").Save(ctx)
	require.NoError(t, err)
	_, err = env.client.Credential.Create().SetName("two").SetToken("t2").Save(ctx)
	require.NoError(t, err)

	env.stub.SetKeywordAds("first", pageAds("k1", "page-1", "Shop One", 10, ref))
	env.stub.SetKeywordAds("second", pageAds("k2", "page-2", "Shop Two", 5, ref))
	env.stub.QueueError("second", archive.RateLimited("throttled", 30*time.Second))

	run := env.claimedRun(t, models.CreateRunRequest{
		UserID:       "tenant-1",
		Keywords:     []string{"first", "second"},
		Countries:    []string{"FR"},
		MinActiveAds: 1,
	})

	result := env.executor.Execute(ctx, run)
	require.NoError(t, result.Error)
	assert.Equal(t, searchrun.StatusCompleted, result.Status)

	// No ad lost: both pages persisted.
	pages, err := env.client.Page.Query().All(ctx)
	require.NoError(t, err)
	assert.Len(t, pages, 2)

	// Exactly one rate-limit event recorded, on a single credential.
	runLog, err := env.client.RunLog.Get(ctx, result.RunLogID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, runLog.APICounters.Archive.RateLimitHits)

	creds, err := env.client.Credential.Query().All(ctx)
	require.NoError(t, err)
	limited := 0
	for _, c := range creds {
		if c.RateLimitedUntil != nil && c.RateLimitedUntil.After(time.Now()) {
			limited++
			assert.EqualValues(t, 1, c.RateLimitHits)
		}
	}
	assert.Equal(t, 1, limited)
}

func TestExecuteNoCredentials(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// One inactive, one rate-limited for the next hour.
	_, err := env.client.Credential.Create().SetToken("t1").SetActive(false).Save(ctx)
	require.NoError(t, err)
	_, err = env.client.Credential.Create().SetToken("t2").
		SetRateLimitedUntil(time.Now().Add(time.Hour)).Save(ctx)
	require.NoError(t, err)

	run := env.claimedRun(t, models.CreateRunRequest{
		UserID:    "tenant-1",
		Keywords:  []string{"bijoux"},
		Countries: []string{"FR"},
	})

	result := env.executor.Execute(ctx, run)
	require.NotNil(t, result.Error)
	assert.Equal(t, searchrun.StatusFailed, result.Status)
	assert.Equal(t, "Keyword search", result.FailedPhase)
	assert.Contains(t, result.Error.Error(), "no eligible credentials")

	// No partial page or ad writes.
	pages, err := env.client.Page.Query().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, pages)
	adCount, err := env.client.Ad.Query().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, adCount)
}

func TestExecuteBlacklistFiltering(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedCredential(t)
	ctx := context.Background()
	ref := time.Now()

	require.NoError(t, services.NewBlacklistService(env.client).
		Add(ctx, "tenant-1", "page-bad", "Bad Shop", "spam"))

	ads := append(pageAds("good", "page-good", "Good Shop", 4, ref),
		pageAds("bad", "page-bad", "Bad Shop", 6, ref)...)
	env.stub.SetKeywordAds("kw", ads)

	run := env.claimedRun(t, models.CreateRunRequest{
		UserID:       "tenant-1",
		Keywords:     []string{"kw"},
		Countries:    []string{"FR"},
		MinActiveAds: 1,
	})

	result := env.executor.Execute(ctx, run)
	require.NoError(t, result.Error)

	runLog, err := env.client.RunLog.Get(ctx, result.RunLogID)
	require.NoError(t, err)
	assert.Equal(t, 6, runLog.BlacklistedSkipped)

	pages, err := env.client.Page.Query().All(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "page-good", pages[0].PageID)
}

func TestExecuteNoResults(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedCredential(t)
	ctx := context.Background()

	env.stub.SetKeywordAds("nothing", nil)

	run := env.claimedRun(t, models.CreateRunRequest{
		UserID:    "tenant-1",
		Keywords:  []string{"nothing"},
		Countries: []string{"FR"},
	})

	result := env.executor.Execute(ctx, run)
	require.NoError(t, result.Error)
	assert.Equal(t, searchrun.StatusNoResults, result.Status)
	assert.NotZero(t, result.RunLogID)
}

func TestExecuteCancellationViaStatusColumn(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedCredential(t)
	ctx := context.Background()
	ref := time.Now()

	env.stub.SetKeywordAds("kw", pageAds("x", "page-x", "Shop", 4, ref))

	run := env.claimedRun(t, models.CreateRunRequest{
		UserID:       "tenant-1",
		Keywords:     []string{"kw"},
		Countries:    []string{"FR"},
		MinActiveAds: 1,
	})

	// Level-triggered cancellation: flip the column before execution; the
	// first phase boundary must observe it.
	require.NoError(t, env.client.SearchRun.UpdateOneID(run.ID).
		SetStatus(searchrun.StatusCancelling).Exec(ctx))

	result := env.executor.Execute(ctx, run)
	assert.Equal(t, searchrun.StatusCancelled, result.Status)

	// Nothing was written.
	pages, err := env.client.Page.Query().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, pages)
}

func TestExecuteWebsiteAnalysisMerge(t *testing.T) {
	ref := time.Now()
	analyzer := website.Func(func(_ context.Context, url, _ string) models.WebsiteAnalysis {
		return models.WebsiteAnalysis{
			CMS:          "Shopify",
			Theme:        "Dawn",
			ProductCount: 42,
			Currency:     "EUR",
			Title:        "Good Shop",
			Channel:      models.ChannelScraperAPI,
			LatencyMS:    12,
		}
	})

	env := newTestEnv(t, analyzer)
	env.seedCredential(t)
	ctx := context.Background()

	ads := pageAds("g", "page-g", "Good Shop", 4, ref)
	for i := range ads {
		ads[i].CreativeLinkCaptions = []string{"www.goodshop.fr"}
	}
	env.stub.SetKeywordAds("kw", ads)

	run := env.claimedRun(t, models.CreateRunRequest{
		UserID:       "tenant-1",
		Keywords:     []string{"kw"},
		Countries:    []string{"FR"},
		MinActiveAds: 1,
	})

	result := env.executor.Execute(ctx, run)
	require.NoError(t, result.Error)

	pages, err := env.client.Page.Query().All(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	p := pages[0]
	assert.Equal(t, "https://goodshop.fr", p.Website)
	assert.Equal(t, "Shopify", string(p.Cms))
	assert.Equal(t, "Dawn", p.Theme)
	assert.Equal(t, 42, p.ProductCount)
	assert.Equal(t, "EUR", p.Currency)

	runLog, err := env.client.RunLog.Get(ctx, result.RunLogID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, runLog.APICounters.Scraper.Calls)
}

func TestExecuteRerunDoesNotDuplicate(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedCredential(t)
	ctx := context.Background()
	ref := time.Now()

	ads := pageAds("r", "page-r", "Repeat Shop", 5, ref)
	ads[0] = makeAd("r-a", "page-r", "Repeat Shop", 2, 50_000, ref)
	env.stub.SetKeywordAds("kw", ads)

	submit := func() *ExecutionResult {
		run := env.claimedRun(t, models.CreateRunRequest{
			UserID:       "tenant-1",
			Keywords:     []string{"kw"},
			Countries:    []string{"FR"},
			MinActiveAds: 1,
		})
		return env.executor.Execute(ctx, run)
	}

	first := submit()
	require.NoError(t, first.Error)
	second := submit()
	require.NoError(t, second.Error)

	// One page row, one winning-ad row — re-detection updates, never
	// duplicates.
	pageCount, err := env.client.Page.Query().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pageCount)

	winnerCount, err := env.client.WinningAd.Query().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, winnerCount)

	w, err := env.client.WinningAd.Query().
		Where(winningad.AdIDEQ("r-a")).
		Only(ctx)
	require.NoError(t, err)
	assert.False(t, w.IsNew, "re-detection must clear is_new")

	// Both runs carry lineage rows for the page and the winner.
	histCount, err := env.client.RunPageHistory.Query().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, histCount)
	winnerHist, err := env.client.RunWinningAdHistory.Query().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, winnerHist)

	// Second run saw the page as already known.
	p, err := env.client.Page.Query().Only(ctx)
	require.NoError(t, err)
	assert.False(t, p.WasCreatedInLastRun)
}
