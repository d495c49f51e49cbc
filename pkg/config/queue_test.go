package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultQueueConfig(t *testing.T) {
	cfg := DefaultQueueConfig()

	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, 2, cfg.MaxConcurrentRuns)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.PollIntervalJitter)
	assert.Equal(t, 30*time.Minute, cfg.PhaseTimeout)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 1*time.Minute, cfg.OrphanDetectionInterval)
	assert.Equal(t, 2*time.Minute, cfg.OrphanThreshold)
}

func TestValidateQueue(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*QueueConfig)
		wantErr string
	}{
		{"valid defaults", func(*QueueConfig) {}, ""},
		{"worker count too low", func(q *QueueConfig) { q.WorkerCount = 0 }, "worker_count must be between 1 and 50"},
		{"worker count too high", func(q *QueueConfig) { q.WorkerCount = 51 }, "worker_count must be between 1 and 50"},
		{"max concurrent runs zero", func(q *QueueConfig) { q.MaxConcurrentRuns = 0 }, "max_concurrent_runs must be at least 1"},
		{"poll interval zero", func(q *QueueConfig) { q.PollInterval = 0 }, "poll_interval must be positive"},
		{"negative jitter", func(q *QueueConfig) { q.PollIntervalJitter = -time.Second }, "poll_interval_jitter must be non-negative"},
		{"jitter >= poll interval", func(q *QueueConfig) { q.PollIntervalJitter = q.PollInterval }, "poll_interval_jitter must be less than poll_interval"},
		{"phase timeout zero", func(q *QueueConfig) { q.PhaseTimeout = 0 }, "phase_timeout must be positive"},
		{"heartbeat zero", func(q *QueueConfig) { q.HeartbeatInterval = 0 }, "heartbeat_interval must be positive"},
		{"heartbeat >= orphan threshold", func(q *QueueConfig) { q.HeartbeatInterval = q.OrphanThreshold }, "heartbeat_interval must be less than orphan_threshold"},
		{"orphan threshold zero", func(q *QueueConfig) { q.OrphanThreshold = 0 }, "orphan_threshold must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := DefaultQueueConfig()
			tt.mutate(q)
			err := validateQueue(q)
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}

	t.Run("nil queue", func(t *testing.T) {
		require.Error(t, validateQueue(nil))
	})
}

func TestValidateSearch(t *testing.T) {
	t.Run("valid defaults", func(t *testing.T) {
		require.NoError(t, validateSearch(DefaultSearchConfig()))
	})

	t.Run("parallelism out of range", func(t *testing.T) {
		s := DefaultSearchConfig()
		s.WebAnalysisParallelism = 0
		require.ErrorContains(t, validateSearch(s), "web_analysis_parallelism")
	})

	t.Run("non increasing thresholds", func(t *testing.T) {
		s := DefaultSearchConfig()
		s.SizeThresholds.M = s.SizeThresholds.S
		require.ErrorContains(t, validateSearch(s), "strictly increasing")
	})

	t.Run("criterion with zero reach", func(t *testing.T) {
		s := DefaultSearchConfig()
		s.WinningCriteria[0].MinReach = 0
		require.ErrorContains(t, validateSearch(s), "min_reach must be positive")
	})
}
