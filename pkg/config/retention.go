package config

import "time"

// RetentionConfig controls background data retention.
type RetentionConfig struct {
	// RunRetentionDays is how long terminal runs and their logs are kept.
	RunRetentionDays int `yaml:"run_retention_days"`

	// AdRetentionDays is how long ad detail rows are kept.
	AdRetentionDays int `yaml:"ad_retention_days"`

	// CleanupInterval is how often the retention pass runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		RunRetentionDays: 90,
		AdRetentionDays:  90,
		CleanupInterval:  12 * time.Hour,
	}
}
