package api

import (
	"time"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/pkg/models"
)

// runResponse is the API view of a SearchRun.
type runResponse struct {
	ID           int        `json:"id"`
	Status       string     `json:"status"`
	Keywords     []string   `json:"keywords"`
	Countries    []string   `json:"countries"`
	Languages    []string   `json:"languages"`
	MinActiveAds int        `json:"min_active_ads"`
	CMSFilter    []string   `json:"cms_filter,omitempty"`
	Priority     int        `json:"priority"`
	Phase        int        `json:"phase"`
	PhaseName    string     `json:"phase_name,omitempty"`
	Percent      int        `json:"percent"`
	Message      string     `json:"message,omitempty"`
	Error        string     `json:"error,omitempty"`
	RunLogID     *int       `json:"run_log_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`

	Phases []models.PhaseRecord `json:"phases,omitempty"`
}

func toRunResponse(run *ent.SearchRun, withPhases bool) runResponse {
	out := runResponse{
		ID:           run.ID,
		Status:       string(run.Status),
		Keywords:     run.Keywords,
		Countries:    run.Countries,
		Languages:    run.Languages,
		MinActiveAds: run.MinActiveAds,
		CMSFilter:    run.CmsFilter,
		Priority:     run.Priority,
		Phase:        run.CurrentPhase,
		PhaseName:    run.CurrentPhaseName,
		Percent:      run.ProgressPercent,
		Message:      run.ProgressMessage,
		RunLogID:     run.RunLogID,
		CreatedAt:    run.CreatedAt,
		StartedAt:    run.StartedAt,
		EndedAt:      run.EndedAt,
	}
	if run.ErrorMessage != nil {
		out.Error = *run.ErrorMessage
	}
	if withPhases {
		out.Phases = run.PhasesData
	}
	return out
}

func toRunResponses(runs []*ent.SearchRun) []runResponse {
	out := make([]runResponse, len(runs))
	for i, r := range runs {
		out[i] = toRunResponse(r, false)
	}
	return out
}

// pageResponse is the API view of a Page.
type pageResponse struct {
	PageID        string     `json:"page_id"`
	PageName      string     `json:"page_name,omitempty"`
	Website       string     `json:"website,omitempty"`
	CMS           string     `json:"cms"`
	Theme         string     `json:"theme,omitempty"`
	ProductCount  int        `json:"product_count"`
	ActiveAdCount int        `json:"active_ad_count"`
	SizeBucket    string     `json:"size_bucket"`
	Category      string     `json:"category,omitempty"`
	Subcategory   string     `json:"subcategory,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	Keywords      []string   `json:"keywords,omitempty"`
	Countries     []string   `json:"countries,omitempty"`
	FirstSeen     time.Time  `json:"first_seen"`
	LastScanned   *time.Time `json:"last_scanned,omitempty"`
	LastRunID     *int       `json:"last_run_id,omitempty"`
	WasNew        bool       `json:"was_created_in_last_run"`
}

func toPageResponse(p *ent.Page) pageResponse {
	return pageResponse{
		PageID:        p.PageID,
		PageName:      p.PageName,
		Website:       p.Website,
		CMS:           string(p.Cms),
		Theme:         p.Theme,
		ProductCount:  p.ProductCount,
		ActiveAdCount: p.ActiveAdCount,
		SizeBucket:    p.SizeBucket,
		Category:      p.Category,
		Subcategory:   p.Subcategory,
		Currency:      p.Currency,
		Keywords:      p.Keywords,
		Countries:     p.Countries,
		FirstSeen:     p.FirstSeen,
		LastScanned:   p.LastScanned,
		LastRunID:     p.LastRunID,
		WasNew:        p.WasCreatedInLastRun,
	}
}

func toPageResponses(pages []*ent.Page) []pageResponse {
	out := make([]pageResponse, len(pages))
	for i, p := range pages {
		out[i] = toPageResponse(p)
	}
	return out
}

// winningAdResponse is the API view of a WinningAd.
type winningAdResponse struct {
	AdID             string     `json:"ad_id"`
	PageID           string     `json:"page_id"`
	PageName         string     `json:"page_name,omitempty"`
	MatchedCriterion string     `json:"matched_criterion"`
	Reach            int64      `json:"reach_at_detection"`
	AgeDays          int        `json:"age_at_detection"`
	CreationDate     *time.Time `json:"creation_date,omitempty"`
	SnapshotURL      string     `json:"snapshot_url,omitempty"`
	Website          string     `json:"website,omitempty"`
	IsNew            bool       `json:"is_new"`
	SearchRunID      int        `json:"search_run_id,omitempty"`
	DetectedAt       time.Time  `json:"detected_at"`
	LastSeenAt       time.Time  `json:"last_seen_at"`
}

func toWinningAdResponse(w *ent.WinningAd) winningAdResponse {
	return winningAdResponse{
		AdID:             w.AdID,
		PageID:           w.PageID,
		PageName:         w.PageName,
		MatchedCriterion: w.MatchedCriterion,
		Reach:            w.ReachAtDetection,
		AgeDays:          w.AgeAtDetection,
		CreationDate:     w.CreationDate,
		SnapshotURL:      w.SnapshotURL,
		Website:          w.Website,
		IsNew:            w.IsNew,
		SearchRunID:      w.SearchRunID,
		DetectedAt:       w.DetectedAt,
		LastSeenAt:       w.LastSeenAt,
	}
}

func toWinningAdResponses(ads []*ent.WinningAd) []winningAdResponse {
	out := make([]winningAdResponse, len(ads))
	for i, w := range ads {
		out[i] = toWinningAdResponse(w)
	}
	return out
}

// credentialResponse is the API view of a Credential. The token itself is
// never returned.
type credentialResponse struct {
	ID               int        `json:"id"`
	Name             string     `json:"name,omitempty"`
	ProxyURL         string     `json:"proxy_url,omitempty"`
	Active           bool       `json:"active"`
	TotalCalls       int64      `json:"total_calls"`
	TotalErrors      int64      `json:"total_errors"`
	RateLimitHits    int64      `json:"rate_limit_hits"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty"`
	LastErrorAt      *time.Time `json:"last_error_at,omitempty"`
	LastError        string     `json:"last_error,omitempty"`
	RateLimitedUntil *time.Time `json:"rate_limited_until,omitempty"`
}

func toCredentialResponse(c *ent.Credential) credentialResponse {
	out := credentialResponse{
		ID:               c.ID,
		Name:             c.Name,
		Active:           c.Active,
		TotalCalls:       c.TotalCalls,
		TotalErrors:      c.TotalErrors,
		RateLimitHits:    c.RateLimitHits,
		LastUsedAt:       c.LastUsedAt,
		LastErrorAt:      c.LastErrorAt,
		RateLimitedUntil: c.RateLimitedUntil,
	}
	if c.ProxyURL != nil {
		out.ProxyURL = *c.ProxyURL
	}
	if c.LastErrorMessage != nil {
		out.LastError = *c.LastErrorMessage
	}
	return out
}
