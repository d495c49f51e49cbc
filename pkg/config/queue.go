package config

import "time"

// QueueConfig contains queue and worker pool configuration.
// These values control how runs are polled, claimed, and processed.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines per replica/pod.
	// Each worker independently polls and processes runs.
	WorkerCount int `yaml:"worker_count"`

	// MaxConcurrentRuns is the global limit of concurrent runs being
	// processed across ALL replicas/pods. Enforced by database COUNT(*).
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`

	// PollInterval is the base interval for checking pending runs.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is the random jitter added to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// PhaseTimeout is the soft budget for a single orchestrator phase.
	// A phase that exceeds it fails the run.
	PhaseTimeout time.Duration `yaml:"phase_timeout"`

	// GracefulShutdownTimeout is the max time to wait for active runs
	// to complete during shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// HeartbeatInterval is how often a running orchestrator refreshes
	// last_heartbeat.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// OrphanDetectionInterval is how often to scan for stuck runs.
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval"`

	// OrphanThreshold is how long a run can go without a heartbeat before
	// it is considered interrupted.
	OrphanThreshold time.Duration `yaml:"orphan_threshold"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             2,
		MaxConcurrentRuns:       2,
		PollInterval:            3 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		PhaseTimeout:            30 * time.Minute,
		GracefulShutdownTimeout: 30 * time.Minute,
		HeartbeatInterval:       30 * time.Second,
		OrphanDetectionInterval: 1 * time.Minute,
		OrphanThreshold:         2 * time.Minute,
	}
}
