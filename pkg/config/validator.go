package config

import "fmt"

// Validate checks the whole configuration for consistency.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}
	if err := validateQueue(cfg.Queue); err != nil {
		return err
	}
	if err := validateSearch(cfg.Search); err != nil {
		return err
	}
	if cfg.Retention != nil {
		if cfg.Retention.RunRetentionDays < 1 {
			return fmt.Errorf("run_retention_days must be at least 1")
		}
		if cfg.Retention.AdRetentionDays < 1 {
			return fmt.Errorf("ad_retention_days must be at least 1")
		}
		if cfg.Retention.CleanupInterval <= 0 {
			return fmt.Errorf("cleanup_interval must be positive")
		}
	}
	if cfg.Classifier != nil && cfg.Classifier.Enabled && cfg.Classifier.Address == "" {
		return fmt.Errorf("classifier.address is required when classifier is enabled")
	}
	if cfg.Slack != nil && cfg.Slack.Enabled && cfg.Slack.Channel == "" {
		return fmt.Errorf("slack.channel is required when slack is enabled")
	}
	return nil
}

func validateQueue(q *QueueConfig) error {
	if q == nil {
		return fmt.Errorf("queue configuration is nil")
	}
	if q.WorkerCount < 1 || q.WorkerCount > 50 {
		return fmt.Errorf("worker_count must be between 1 and 50, got %d", q.WorkerCount)
	}
	if q.MaxConcurrentRuns < 1 {
		return fmt.Errorf("max_concurrent_runs must be at least 1, got %d", q.MaxConcurrentRuns)
	}
	if q.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if q.PollIntervalJitter < 0 {
		return fmt.Errorf("poll_interval_jitter must be non-negative")
	}
	if q.PollIntervalJitter >= q.PollInterval {
		return fmt.Errorf("poll_interval_jitter must be less than poll_interval")
	}
	if q.PhaseTimeout <= 0 {
		return fmt.Errorf("phase_timeout must be positive")
	}
	if q.GracefulShutdownTimeout <= 0 {
		return fmt.Errorf("graceful_shutdown_timeout must be positive")
	}
	if q.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive")
	}
	if q.OrphanDetectionInterval <= 0 {
		return fmt.Errorf("orphan_detection_interval must be positive")
	}
	if q.OrphanThreshold <= 0 {
		return fmt.Errorf("orphan_threshold must be positive")
	}
	if q.HeartbeatInterval >= q.OrphanThreshold {
		return fmt.Errorf("heartbeat_interval must be less than orphan_threshold")
	}
	return nil
}

func validateSearch(s *SearchConfig) error {
	if s == nil {
		return fmt.Errorf("search configuration is nil")
	}
	if s.WebAnalysisParallelism < 1 || s.WebAnalysisParallelism > 100 {
		return fmt.Errorf("web_analysis_parallelism must be between 1 and 100, got %d", s.WebAnalysisParallelism)
	}
	if s.MinAdsDetail < 0 {
		return fmt.Errorf("min_ads_detail must be non-negative")
	}
	if s.RateLimitCooldown <= 0 {
		return fmt.Errorf("rate_limit_cooldown must be positive")
	}
	if s.RetryInitialInterval <= 0 {
		return fmt.Errorf("retry_initial_interval must be positive")
	}
	if s.RetryMaxInterval < s.RetryInitialInterval {
		return fmt.Errorf("retry_max_interval must be at least retry_initial_interval")
	}
	for i, c := range s.WinningCriteria {
		if c.MaxAgeDays < 0 {
			return fmt.Errorf("winning_criteria[%d]: max_age_days must be non-negative", i)
		}
		if c.MinReach <= 0 {
			return fmt.Errorf("winning_criteria[%d]: min_reach must be positive", i)
		}
	}
	t := s.SizeThresholds
	if !(0 < t.S && t.S < t.M && t.M < t.L && t.L < t.XL && t.XL < t.XXL) {
		return fmt.Errorf("size_thresholds must be strictly increasing, got %+v", t)
	}
	return nil
}
