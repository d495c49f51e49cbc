package config

import (
	"time"

	"github.com/adscout/adscout/pkg/scoring"
)

// SearchConfig contains the orchestrator's pipeline knobs.
type SearchConfig struct {
	// WebAnalysisParallelism bounds the phase-4 website fan-out (P_web).
	WebAnalysisParallelism int `yaml:"web_analysis_parallelism"`

	// MinAdsDetail is the active-ad threshold at or above which a page's
	// individual ads are written to the detail table.
	MinAdsDetail int `yaml:"min_ads_detail"`

	// RateLimitCooldown is the default credential back-off applied when
	// the archive reports a rate limit without a retry-after hint.
	RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown"`

	// MaxRetries bounds transient-error retries per archive call.
	MaxRetries uint64 `yaml:"max_retries"`

	// RetryInitialInterval and RetryMaxInterval shape the exponential
	// back-off between transient retries.
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `yaml:"retry_max_interval"`

	// WinningCriteria overrides the built-in scoring rules when set.
	// Order matters: the first matching pair wins.
	WinningCriteria []scoring.Criterion `yaml:"winning_criteria"`

	// SizeThresholds are the fallback bucket bounds, overridable
	// per-tenant through settings.
	SizeThresholds scoring.SizeThresholds `yaml:"size_thresholds"`
}

// DefaultSearchConfig returns the built-in pipeline defaults.
func DefaultSearchConfig() *SearchConfig {
	return &SearchConfig{
		WebAnalysisParallelism: 5,
		MinAdsDetail:           20,
		RateLimitCooldown:      60 * time.Second,
		MaxRetries:             3,
		RetryInitialInterval:   1 * time.Second,
		RetryMaxInterval:       4 * time.Second,
		WinningCriteria:        scoring.DefaultCriteria(),
		SizeThresholds:         scoring.DefaultSizeThresholds(),
	}
}
