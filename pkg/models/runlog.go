package models

import "time"

// API channel names used in counters and error records.
const (
	ChannelArchiveAPI = "archive_api"
	ChannelScraperAPI = "scraper_api"
	ChannelWebDirect  = "web_direct"
)

// PhaseRecord is the canonical on-disk record of one completed phase.
// The array of these, serialized as JSON, is written to the run row on
// every phase boundary and copied into the RunLog at finalization.
type PhaseRecord struct {
	Number          int            `json:"number"`
	Name            string         `json:"name"`
	StartedAt       time.Time      `json:"started_at"`
	DurationSeconds float64        `json:"duration_seconds"`
	Message         string         `json:"message,omitempty"`
	Stats           map[string]any `json:"stats,omitempty"`
}

// ChannelCounters aggregates per-channel API usage for one run.
type ChannelCounters struct {
	Calls         int64   `json:"calls"`
	Errors        int64   `json:"errors"`
	RateLimitHits int64   `json:"rate_limit_hits"`
	AvgLatencyMS  float64 `json:"avg_latency_ms"`
	Cost          float64 `json:"cost,omitempty"`
}

// APICounters splits usage by channel.
type APICounters struct {
	Archive ChannelCounters `json:"archive_api"`
	Scraper ChannelCounters `json:"scraper_api"`
	Web     ChannelCounters `json:"web_direct"`
}

// ErrorRecord is one structured error captured during a run. Items with
// errors are skipped; the record is the only trace they leave.
type ErrorRecord struct {
	Channel   string    `json:"channel"`
	Message   string    `json:"message"`
	Keyword   string    `json:"keyword,omitempty"`
	URL       string    `json:"url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
