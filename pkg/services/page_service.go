package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/ent/page"
	"github.com/adscout/adscout/ent/runpagehistory"
	"github.com/adscout/adscout/pkg/models"
)

// PageService manages discovered advertiser pages and their run lineage.
type PageService struct {
	client *ent.Client
}

// NewPageService creates a new PageService.
func NewPageService(client *ent.Client) *PageService {
	return &PageService{client: client}
}

// ExistingPages returns the tenant's pages for the given archive page ids,
// keyed by page id.
func (s *PageService) ExistingPages(ctx context.Context, userID string, pageIDs []string) (map[string]*ent.Page, error) {
	if len(pageIDs) == 0 {
		return map[string]*ent.Page{}, nil
	}
	pages, err := s.client.Page.Query().
		Where(page.UserIDEQ(userID), page.PageIDIn(pageIDs...)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	out := make(map[string]*ent.Page, len(pages))
	for _, p := range pages {
		out[p.PageID] = p
	}
	return out, nil
}

// UpsertPages writes the staged page updates, returning (new, updated)
// counts. Upserts race-safe against concurrent runs: a create losing to a
// concurrent insert falls back to an update.
func (s *PageService) UpsertPages(ctx context.Context, userID string, runID int, updates []models.PageUpdate) (int, int, error) {
	var newCount, updatedCount int

	for i := range updates {
		u := &updates[i]
		existing, err := s.client.Page.Query().
			Where(page.UserIDEQ(userID), page.PageIDEQ(u.PageID)).
			Only(ctx)
		switch {
		case err == nil:
			if err := s.applyUpdate(ctx, existing, runID, u); err != nil {
				return newCount, updatedCount, err
			}
			updatedCount++
		case ent.IsNotFound(err):
			err := s.createPage(ctx, userID, runID, u)
			if err == nil {
				newCount++
				continue
			}
			if !ent.IsConstraintError(err) {
				return newCount, updatedCount, err
			}
			// Lost the race to a concurrent run; update instead.
			existing, qerr := s.client.Page.Query().
				Where(page.UserIDEQ(userID), page.PageIDEQ(u.PageID)).
				Only(ctx)
			if qerr != nil {
				return newCount, updatedCount, fmt.Errorf("failed to re-query page after conflict: %w", qerr)
			}
			slog.Debug("Page insert lost race, updating instead", "page_id", u.PageID)
			if err := s.applyUpdate(ctx, existing, runID, u); err != nil {
				return newCount, updatedCount, err
			}
			updatedCount++
		default:
			return newCount, updatedCount, fmt.Errorf("failed to query page %s: %w", u.PageID, err)
		}
	}
	return newCount, updatedCount, nil
}

func (s *PageService) createPage(ctx context.Context, userID string, runID int, u *models.PageUpdate) error {
	builder := s.client.Page.Create().
		SetUserID(userID).
		SetPageID(u.PageID).
		SetPageName(u.PageName).
		SetActiveAdCount(u.ActiveAdCount).
		SetSizeBucket(u.SizeBucket).
		SetKeywords(dedupeSorted(u.Keywords)).
		SetCountries(dedupeSorted(u.Countries)).
		SetLastScanned(time.Now()).
		SetLastRunID(runID).
		SetWasCreatedInLastRun(true)

	if u.Website != "" {
		builder.SetWebsite(u.Website)
	}
	if u.CMS != "" {
		builder.SetCms(page.Cms(u.CMS))
	}
	if u.Theme != "" {
		builder.SetTheme(u.Theme)
	}
	if u.ProductCount > 0 {
		builder.SetProductCount(u.ProductCount)
	}
	if u.Currency != "" {
		builder.SetCurrency(u.Currency)
	}
	if u.Category != "" {
		builder.SetCategory(u.Category).
			SetSubcategory(u.Subcategory).
			SetClassificationConfidence(u.Confidence).
			SetClassifiedAt(u.ClassifiedAt)
	}
	if u.SiteTitle != "" {
		builder.SetSiteTitle(u.SiteTitle)
	}
	if u.SiteDescription != "" {
		builder.SetSiteDescription(u.SiteDescription)
	}
	if u.SiteH1 != "" {
		builder.SetSiteH1(u.SiteH1)
	}
	if u.SiteKeywords != "" {
		builder.SetSiteKeywords(u.SiteKeywords)
	}

	return builder.Exec(ctx)
}

func (s *PageService) applyUpdate(ctx context.Context, existing *ent.Page, runID int, u *models.PageUpdate) error {
	update := existing.Update().
		SetActiveAdCount(u.ActiveAdCount).
		SetSizeBucket(u.SizeBucket).
		SetKeywords(unionSorted(existing.Keywords, u.Keywords)).
		SetCountries(unionSorted(existing.Countries, u.Countries)).
		SetLastScanned(time.Now()).
		SetLastRunID(runID).
		SetWasCreatedInLastRun(false)

	// Keep the existing page name unless it is empty; never overwrite a
	// non-empty snapshot with an empty one.
	if existing.PageName == "" && u.PageName != "" {
		update = update.SetPageName(u.PageName)
	}
	if u.Website != "" {
		update = update.SetWebsite(u.Website)
	}
	// A known CMS is never downgraded to Unknown.
	if u.CMS != "" && u.CMS != string(page.CmsUnknown) {
		update = update.SetCms(page.Cms(u.CMS))
	}
	if u.Theme != "" {
		update = update.SetTheme(u.Theme)
	}
	if u.ProductCount > 0 {
		update = update.SetProductCount(u.ProductCount)
	}
	if u.Currency != "" {
		update = update.SetCurrency(u.Currency)
	}
	if u.Category != "" {
		update = update.SetCategory(u.Category).
			SetSubcategory(u.Subcategory).
			SetClassificationConfidence(u.Confidence).
			SetClassifiedAt(u.ClassifiedAt)
	}
	if u.SiteTitle != "" {
		update = update.SetSiteTitle(u.SiteTitle)
	}
	if u.SiteDescription != "" {
		update = update.SetSiteDescription(u.SiteDescription)
	}
	if u.SiteH1 != "" {
		update = update.SetSiteH1(u.SiteH1)
	}
	if u.SiteKeywords != "" {
		update = update.SetSiteKeywords(u.SiteKeywords)
	}

	if err := update.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update page %s: %w", u.PageID, err)
	}
	return nil
}

// RecordRunPages appends the run↔page lineage rows. Safe to replay: rows
// that already exist are skipped.
func (s *PageService) RecordRunPages(ctx context.Context, userID string, runID int, updates []models.PageUpdate) error {
	for i := range updates {
		u := &updates[i]
		err := s.client.RunPageHistory.Create().
			SetUserID(userID).
			SetSearchRunID(runID).
			SetPageID(u.PageID).
			SetWasNew(u.WasNew).
			SetKeywordMatched(u.KeywordMatched).
			SetAdCountAtDiscovery(u.ActiveAdCount).
			Exec(ctx)
		if err != nil && !ent.IsConstraintError(err) {
			return fmt.Errorf("failed to record run page history for %s: %w", u.PageID, err)
		}
	}
	return nil
}

// PagesByRun returns the pages a run discovered, via the lineage table.
func (s *PageService) PagesByRun(ctx context.Context, userID string, runID int) ([]*ent.Page, error) {
	rows, err := s.client.RunPageHistory.Query().
		Where(runpagehistory.UserIDEQ(userID), runpagehistory.SearchRunIDEQ(runID)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query run page history: %w", err)
	}
	if len(rows) == 0 {
		return []*ent.Page{}, nil
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.PageID
	}
	pages, err := s.client.Page.Query().
		Where(page.UserIDEQ(userID), page.PageIDIn(ids...)).
		Order(ent.Desc(page.FieldActiveAdCount)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	return pages, nil
}

// RunsForPage returns the lineage rows of all runs that discovered a page,
// newest first.
func (s *PageService) RunsForPage(ctx context.Context, userID, pageID string) ([]*ent.RunPageHistory, error) {
	rows, err := s.client.RunPageHistory.Query().
		Where(runpagehistory.UserIDEQ(userID), runpagehistory.PageIDEQ(pageID)).
		Order(ent.Desc(runpagehistory.FieldFoundAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs for page: %w", err)
	}
	return rows, nil
}

// Get returns one page by archive page id.
func (s *PageService) Get(ctx context.Context, userID, pageID string) (*ent.Page, error) {
	p, err := s.client.Page.Query().
		Where(page.UserIDEQ(userID), page.PageIDEQ(pageID)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query page: %w", err)
	}
	return p, nil
}

// List returns a tenant's pages, most active first.
func (s *PageService) List(ctx context.Context, userID string, limit int) ([]*ent.Page, error) {
	if limit <= 0 {
		limit = 200
	}
	pages, err := s.client.Page.Query().
		Where(page.UserIDEQ(userID)).
		Order(ent.Desc(page.FieldActiveAdCount)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	return pages, nil
}

// unionSorted merges two keyword/country sets into a sorted, deduplicated
// slice. Unions are append-only: existing entries are always kept.
func unionSorted(existing, additions []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(additions))
	out := make([]string, 0, len(existing)+len(additions))
	for _, lists := range [][]string{existing, additions} {
		for _, v := range lists {
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func dedupeSorted(values []string) []string {
	return unionSorted(nil, values)
}
