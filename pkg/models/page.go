package models

import "time"

// PageUpdate is the staged mutation for one page, accumulated across
// phases 3-5 and flushed to the repository in phase 7. A zero-value
// optional field means "leave the stored value alone".
type PageUpdate struct {
	PageID   string
	PageName string
	Website  string

	CMS          string
	Theme        string
	ProductCount int
	Currency     string

	ActiveAdCount int
	SizeBucket    string

	Category        string
	Subcategory     string
	Confidence      float64
	ClassifiedAt    time.Time
	SiteTitle       string
	SiteDescription string
	SiteH1          string
	SiteKeywords    string

	// Union additions; merged into the stored sets, never replacing them.
	Keywords  []string
	Countries []string

	// WasNew is true when the page had never been seen by this tenant
	// before the current run.
	WasNew bool

	// KeywordMatched is the first keyword that surfaced the page in this
	// run, recorded on the lineage row.
	KeywordMatched string

	// Ads are the run's ads for this page, kept for the detail insert.
	Ads []AdRecord
}

// WebsiteAnalysis is what the website analyzer returns for one URL.
// Every field may be absent; failures are carried in Error, never raised.
type WebsiteAnalysis struct {
	CMS          string `json:"cms,omitempty"`
	Theme        string `json:"theme,omitempty"`
	ProductCount int    `json:"product_count,omitempty"`
	Currency     string `json:"currency,omitempty"`
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	H1           string `json:"h1,omitempty"`
	Keywords     string `json:"keywords,omitempty"`
	Error        string `json:"error,omitempty"`

	// How the analysis was obtained, for the run's per-channel counters.
	Channel   string  `json:"channel,omitempty"` // scraper_api or web_direct
	LatencyMS float64 `json:"latency_ms,omitempty"`
	Cost      float64 `json:"cost,omitempty"`
}

// SiteContent is the classifier input for one page.
type SiteContent struct {
	PageID      string `json:"page_id"`
	PageName    string `json:"page_name,omitempty"`
	Website     string `json:"website,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	H1          string `json:"h1,omitempty"`
	Keywords    string `json:"keywords,omitempty"`
}

// Classification is the classifier output for one page.
type Classification struct {
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory,omitempty"`
	Confidence  float64 `json:"confidence"`
	Error       string  `json:"error,omitempty"`
}
