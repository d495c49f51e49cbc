package models

// CreateRunRequest carries the inputs of one submitted search.
type CreateRunRequest struct {
	UserID       string   `json:"user_id"`
	Keywords     []string `json:"keywords"`
	Countries    []string `json:"countries"`
	Languages    []string `json:"languages"`
	MinActiveAds int      `json:"min_active_ads"`
	CMSFilter    []string `json:"cms_filter,omitempty"`
	Priority     int      `json:"priority"`
}

// RunCounts are the final persistence counters accumulated in phase 7.
type RunCounts struct {
	NewPages          int `json:"new_pages"`
	UpdatedPages      int `json:"updated_pages"`
	NewWinningAds     int `json:"new_winning_ads"`
	UpdatedWinningAds int `json:"updated_winning_ads"`
	AdsSaved          int `json:"ads_saved"`
}
