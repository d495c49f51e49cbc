package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeWithDefaultsOnly(t *testing.T) {
	cfg, err := Initialize(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Queue.WorkerCount)
	assert.Equal(t, 5, cfg.Search.WebAnalysisParallelism)
	assert.False(t, cfg.Slack.Enabled)
	assert.False(t, cfg.Classifier.Enabled)
}

func TestInitializeMergesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `
queue:
  worker_count: 4
  max_concurrent_runs: 4
search:
  web_analysis_parallelism: 10
classifier:
  enabled: true
  address: "localhost:50051"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(yaml), 0o644))

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Queue.WorkerCount)
	assert.Equal(t, 10, cfg.Search.WebAnalysisParallelism)
	// Untouched fields keep defaults.
	assert.Equal(t, 3*time.Second, cfg.Queue.PollInterval)
	assert.Equal(t, 20, cfg.Search.MinAdsDetail)
	assert.Equal(t, "localhost:50051", cfg.Classifier.Address)
}

func TestInitializeEnvOverrides(t *testing.T) {
	t.Setenv("WORKER_COUNT", "7")
	t.Setenv("PHASE_TIMEOUT", "10m")
	t.Setenv("WEB_ANALYSIS_PARALLELISM", "3")
	t.Setenv("RATE_LIMIT_BACKOFF_SECONDS", "90")

	cfg, err := Initialize(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Queue.WorkerCount)
	assert.Equal(t, 7, cfg.Queue.MaxConcurrentRuns)
	assert.Equal(t, 10*time.Minute, cfg.Queue.PhaseTimeout)
	assert.Equal(t, 3, cfg.Search.WebAnalysisParallelism)
	assert.Equal(t, 90*time.Second, cfg.Search.RateLimitCooldown)
}

func TestInitializeExpandsEnvInYAML(t *testing.T) {
	t.Setenv("TEST_SLACK_CHANNEL", "C123456")
	dir := t.TempDir()
	yaml := `
slack:
  enabled: true
  channel: "${TEST_SLACK_CHANNEL}"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(yaml), 0o644))

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "C123456", cfg.Slack.Channel)
}

func TestInitializeRejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte("queue: ["), 0o644))

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
}

func TestInitializeRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	yaml := `
queue:
  worker_count: 100
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(yaml), 0o644))

	_, err := Initialize(context.Background(), dir)
	require.ErrorContains(t, err, "worker_count")
}
