package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adscout/adscout/ent/page"
	"github.com/adscout/adscout/ent/searchrun"
	"github.com/adscout/adscout/pkg/models"
	"github.com/adscout/adscout/pkg/scoring"
)

// ────────────────────────────────────────────────────────────
// Phase 1 — Keyword expansion & archive fan-out
// ────────────────────────────────────────────────────────────

func (p *pipeline) phaseKeywordSearch(ctx context.Context) (string, error) {
	usable, err := p.exec.rotator.ListUsable(ctx)
	if err != nil {
		return "", fmt.Errorf("checking credential pool: %w", err)
	}
	if len(usable) == 0 {
		return "", errors.New("no eligible credentials")
	}

	seen := make(map[string]int, 64) // ad_id → index into p.ads
	perKeyword := make(map[string]int, len(p.run.Keywords))

	for i, keyword := range p.run.Keywords {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		p.tracker.SetMessage(fmt.Sprintf("searching %q (%d/%d)", keyword, i+1, len(p.run.Keywords)))
		p.writeProgress(ctx)

		ads, err := p.searchKeyword(ctx, keyword)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			// Per-keyword failures are recorded and the phase continues.
			p.logger.Warn("Keyword search failed, skipping keyword",
				"keyword", keyword, "error", err)
			p.recordError(models.ChannelArchiveAPI, err.Error(), keyword, "")
			continue
		}

		perKeyword[keyword] = len(ads)
		for _, ad := range ads {
			if ad.AdID == "" || ad.PageID == "" {
				p.recordError(models.ChannelArchiveAPI, "malformed ad record dropped", keyword, "")
				continue
			}
			if _, dup := seen[ad.AdID]; dup {
				// Only the first surfacing keyword stays on the ad; this
				// later keyword is not recorded for it, and phase 3 builds
				// the page keyword union from the kept ads' keywords only.
				continue
			}
			ad.Keyword = keyword
			seen[ad.AdID] = len(p.ads)
			p.ads = append(p.ads, ad)
		}
	}

	p.tracker.AddStat("keywords", len(p.run.Keywords))
	p.tracker.AddStat("ads_by_keyword", perKeyword)
	p.tracker.AddStat("unique_ads", len(p.ads))

	return fmt.Sprintf("%d unique ads across %d keywords", len(p.ads), len(p.run.Keywords)), nil
}

// ────────────────────────────────────────────────────────────
// Phase 2 — Blacklist & tenant scoping
// ────────────────────────────────────────────────────────────

func (p *pipeline) phaseBlacklist(ctx context.Context) (string, error) {
	blacklisted, err := p.blacklistService.PageIDs(ctx, p.userID)
	if err != nil {
		return "", fmt.Errorf("loading blacklist: %w", err)
	}

	if len(blacklisted) == 0 {
		p.tracker.AddStat("skipped", 0)
		return "no blacklisted pages", nil
	}

	kept := p.ads[:0]
	for _, ad := range p.ads {
		if _, skip := blacklisted[ad.PageID]; skip {
			p.blacklistSkipped++
			continue
		}
		kept = append(kept, ad)
	}
	p.ads = kept

	p.tracker.AddStat("skipped", p.blacklistSkipped)
	return fmt.Sprintf("%d ads skipped via blacklist", p.blacklistSkipped), nil
}

// ────────────────────────────────────────────────────────────
// Phase 3 — Page aggregation
// ────────────────────────────────────────────────────────────

func (p *pipeline) phaseAggregate(ctx context.Context) (string, error) {
	byPage := make(map[string][]models.AdRecord)
	for _, ad := range p.ads {
		byPage[ad.PageID] = append(byPage[ad.PageID], ad)
	}
	p.pagesFound = len(byPage)

	pageIDs := make([]string, 0, len(byPage))
	for id := range byPage {
		pageIDs = append(pageIDs, id)
	}
	sort.Strings(pageIDs)

	existing, err := p.pageService.ExistingPages(ctx, p.userID, pageIDs)
	if err != nil {
		return "", fmt.Errorf("loading existing pages: %w", err)
	}
	p.existing = existing

	cmsFilter := make(map[string]struct{}, len(p.run.CmsFilter))
	for _, c := range p.run.CmsFilter {
		cmsFilter[c] = struct{}{}
	}

	droppedSmall, droppedCMS := 0, 0
	for _, pageID := range pageIDs {
		ads := byPage[pageID]
		count := len(ads)

		if count < p.run.MinActiveAds {
			droppedSmall++
			continue
		}

		prev := existing[pageID]

		cms := ""
		if prev != nil {
			cms = string(prev.Cms)
		}
		if len(cmsFilter) > 0 {
			effective := cms
			if effective == "" {
				effective = string(page.CmsUnknown)
			}
			if _, ok := cmsFilter[effective]; !ok {
				droppedCMS++
				continue
			}
		}

		u := models.PageUpdate{
			PageID:        pageID,
			ActiveAdCount: count,
			SizeBucket:    scoring.SizeBucket(count, p.thresholds),
			Countries:     p.run.Countries,
			WasNew:        prev == nil,
			Ads:           ads,
		}
		for _, ad := range ads {
			if u.PageName == "" && ad.PageName != "" {
				u.PageName = ad.PageName
			}
			if ad.Keyword != "" {
				u.Keywords = append(u.Keywords, ad.Keyword)
				if u.KeywordMatched == "" {
					u.KeywordMatched = ad.Keyword
				}
			}
			if u.Currency == "" && ad.Currency != "" {
				u.Currency = ad.Currency
			}
		}
		if prev != nil && prev.Website != "" {
			u.Website = prev.Website
		} else {
			u.Website = extractWebsite(ads)
		}

		p.updates = append(p.updates, u)
	}

	p.tracker.AddStat("pages_found", p.pagesFound)
	p.tracker.AddStat("pages_kept", len(p.updates))
	p.tracker.AddStat("dropped_min_ads", droppedSmall)
	p.tracker.AddStat("dropped_cms_filter", droppedCMS)

	return fmt.Sprintf("%d pages kept of %d discovered", len(p.updates), p.pagesFound), nil
}

// ────────────────────────────────────────────────────────────
// Phase 4 — Website analysis
// ────────────────────────────────────────────────────────────

func (p *pipeline) phaseWebsiteAnalysis(ctx context.Context) (string, error) {
	countryHint := ""
	if len(p.run.Countries) > 0 {
		countryHint = p.run.Countries[0]
	}

	var mu sync.Mutex
	analyzed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.exec.cfg.Search.WebAnalysisParallelism)

	for i := range p.updates {
		u := &p.updates[i]
		if u.Website == "" {
			continue
		}
		if err := gctx.Err(); err != nil {
			break
		}

		g.Go(func() error {
			analysis := p.exec.analyzer.Analyze(gctx, u.Website, countryHint)

			mu.Lock()
			defer mu.Unlock()

			channel := analysis.Channel
			if channel == "" {
				channel = models.ChannelWebDirect
			}
			p.counters.record(channel, analysis.LatencyMS, analysis.Error != "", false)
			p.counters.addCost(channel, analysis.Cost)

			if analysis.Error != "" {
				// Analyzer failures never abort the phase.
				p.recordError(channel, analysis.Error, "", u.Website)
				return nil
			}

			mergeAnalysis(u, analysis)
			analyzed++
			p.tracker.SetMessage(fmt.Sprintf("analyzed %s", u.Website))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.tracker.AddStat("analyzed", analyzed)
	return fmt.Sprintf("%d websites analyzed", analyzed), nil
}

// mergeAnalysis folds analyzer output into the staged update. A known CMS
// is never overwritten with Unknown.
func mergeAnalysis(u *models.PageUpdate, a models.WebsiteAnalysis) {
	if a.CMS != "" && a.CMS != string(page.CmsUnknown) {
		u.CMS = a.CMS
	}
	if a.Theme != "" {
		u.Theme = a.Theme
	}
	if a.ProductCount > 0 {
		u.ProductCount = a.ProductCount
	}
	if a.Currency != "" {
		u.Currency = a.Currency
	}
	if a.Title != "" {
		u.SiteTitle = a.Title
	}
	if a.Description != "" {
		u.SiteDescription = a.Description
	}
	if a.H1 != "" {
		u.SiteH1 = a.H1
	}
	if a.Keywords != "" {
		u.SiteKeywords = a.Keywords
	}
}

// ────────────────────────────────────────────────────────────
// Phase 5 — Classification (optional)
// ────────────────────────────────────────────────────────────

func (p *pipeline) phaseClassification(ctx context.Context) (string, error) {
	if !p.exec.classifier.Available(ctx) {
		return "classifier unavailable, skipped", nil
	}

	var sites []models.SiteContent
	index := make(map[string]*models.PageUpdate)
	for i := range p.updates {
		u := &p.updates[i]
		if u.Category != "" {
			continue
		}
		if prev := p.existing[u.PageID]; prev != nil && prev.Category != "" {
			continue
		}
		sites = append(sites, models.SiteContent{
			PageID:      u.PageID,
			PageName:    u.PageName,
			Website:     u.Website,
			Title:       u.SiteTitle,
			Description: u.SiteDescription,
			H1:          u.SiteH1,
			Keywords:    u.SiteKeywords,
		})
		index[u.PageID] = u
	}

	if len(sites) == 0 {
		return "no pages to classify", nil
	}

	results, err := p.exec.classifier.ClassifyBatch(ctx, sites)
	if err != nil {
		// Classification is an enrichment: a batch failure is recorded,
		// not fatal.
		p.logger.Warn("Classification batch failed", "error", err)
		p.recordError(models.ChannelScraperAPI, fmt.Sprintf("classification failed: %v", err), "", "")
		return "classification failed, skipped", nil
	}

	classified := 0
	for pageID, c := range results {
		u := index[pageID]
		if u == nil {
			continue
		}
		if c.Error != "" {
			p.recordError(models.ChannelScraperAPI, c.Error, "", u.Website)
			continue
		}
		u.Category = c.Category
		u.Subcategory = c.Subcategory
		u.Confidence = c.Confidence
		u.ClassifiedAt = time.Now()
		classified++
	}

	p.tracker.AddStat("classified", classified)
	return fmt.Sprintf("%d pages classified", classified), nil
}

// ────────────────────────────────────────────────────────────
// Phase 6 — Winning-ad scoring
// ────────────────────────────────────────────────────────────

func (p *pipeline) phaseScoring(_ context.Context) (string, error) {
	websites := make(map[string]string, len(p.updates))
	for i := range p.updates {
		websites[p.updates[i].PageID] = p.updates[i].Website
	}
	for id, prev := range p.existing {
		if _, ok := websites[id]; !ok && prev.Website != "" {
			websites[id] = prev.Website
		}
	}

	// Every ad is scored, not only those on surviving pages.
	byCriterion := make(map[string]int)
	for _, ad := range p.ads {
		criterion, ok := p.scorer.Score(ad, p.refDate)
		if !ok {
			continue
		}
		p.candidates = append(p.candidates, models.WinningAdCandidate{
			Ad:        ad,
			Criterion: criterion,
			AgeDays:   ad.AgeDays(p.refDate),
			Reach:     ad.Reach.Value,
			Website:   websites[ad.PageID],
		})
		byCriterion[criterion]++
	}

	p.tracker.AddStat("ads_scored", len(p.ads))
	p.tracker.AddStat("winning_ads", len(p.candidates))
	p.tracker.AddStat("by_criterion", byCriterion)

	return fmt.Sprintf("%d winning ads out of %d", len(p.candidates), len(p.ads)), nil
}

// ────────────────────────────────────────────────────────────
// Phase 7 — Persistence
// ────────────────────────────────────────────────────────────

func (p *pipeline) phasePersist(ctx context.Context) (string, error) {
	// (a) upsert pages
	newPages, updatedPages, err := p.pageService.UpsertPages(ctx, p.userID, p.run.ID, p.updates)
	if err != nil {
		return "", fmt.Errorf("upserting pages: %w", err)
	}
	p.counts.NewPages = newPages
	p.counts.UpdatedPages = updatedPages

	// (b) run↔page lineage
	if err := p.pageService.RecordRunPages(ctx, p.userID, p.run.ID, p.updates); err != nil {
		return "", fmt.Errorf("recording page lineage: %w", err)
	}

	// (c) upsert winning ads. was_new on the lineage row reflects the
	// outcome of the commit race: only ads this run actually inserted
	// count as new.
	newWinnerIDs, updatedWinners, err := p.winningAdService.UpsertWinningAds(ctx, p.userID, p.run.ID, p.candidates)
	if err != nil {
		return "", fmt.Errorf("upserting winning ads: %w", err)
	}
	p.newWinnerIDs = newWinnerIDs
	p.counts.NewWinningAds = len(newWinnerIDs)
	p.counts.UpdatedWinningAds = updatedWinners

	// (d) run↔winning-ad lineage
	if err := p.winningAdService.RecordRunWinningAds(ctx, p.userID, p.run.ID, p.candidates, newWinnerIDs); err != nil {
		return "", fmt.Errorf("recording winning-ad lineage: %w", err)
	}

	// (e) ad detail rows for pages at or above the detail threshold
	for i := range p.updates {
		u := &p.updates[i]
		if u.ActiveAdCount < p.minAdsDetail {
			continue
		}
		saved, err := p.adService.InsertAds(ctx, p.userID, u.Ads)
		if err != nil {
			return "", fmt.Errorf("inserting ads for page %s: %w", u.PageID, err)
		}
		p.adsSaved += saved
	}
	p.counts.AdsSaved = p.adsSaved

	p.tracker.AddStat("new_pages", newPages)
	p.tracker.AddStat("updated_pages", updatedPages)
	p.tracker.AddStat("new_winning_ads", len(newWinnerIDs))
	p.tracker.AddStat("updated_winning_ads", updatedWinners)
	p.tracker.AddStat("ads_saved", p.adsSaved)

	return fmt.Sprintf("%d new / %d updated pages, %d new / %d updated winning ads",
		newPages, updatedPages, len(newWinnerIDs), updatedWinners), nil
}

// ────────────────────────────────────────────────────────────
// Phase 8 — Run-log finalization
// ────────────────────────────────────────────────────────────

func (p *pipeline) phaseRunLog(ctx context.Context) (string, error) {
	status := searchrun.StatusCompleted
	if len(p.updates) == 0 {
		status = searchrun.StatusNoResults
	}

	in := p.runLogInput()
	in.Status = string(status)

	log, err := p.runLogService.Create(ctx, in)
	if err != nil {
		return "", fmt.Errorf("writing run log: %w", err)
	}

	p.finalStatus = status
	p.runLogID = log.ID
	return fmt.Sprintf("run log %d written", log.ID), nil
}
