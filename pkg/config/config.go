// Package config loads and validates the application configuration:
// built-in defaults, merged with the optional adscout.yaml, with
// environment overrides for the deployment-level knobs.
package config

import (
	"context"
	"fmt"
	"log/slog"
)

// Config is the complete runtime configuration.
type Config struct {
	Queue      *QueueConfig      `yaml:"queue"`
	Search     *SearchConfig     `yaml:"search"`
	Retention  *RetentionConfig  `yaml:"retention"`
	Slack      *SlackConfig      `yaml:"slack"`
	Classifier *ClassifierConfig `yaml:"classifier"`
}

// SlackConfig holds notification settings.
type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	TokenEnv string `yaml:"token_env"` // defaults to SLACK_BOT_TOKEN
	Channel  string `yaml:"channel"`
}

// ClassifierConfig holds the external classifier service settings.
type ClassifierConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // host:port of the gRPC sidecar
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Queue:      DefaultQueueConfig(),
		Search:     DefaultSearchConfig(),
		Retention:  DefaultRetentionConfig(),
		Slack:      &SlackConfig{TokenEnv: "SLACK_BOT_TOKEN"},
		Classifier: &ClassifierConfig{},
	}
}

// Initialize loads, merges, and validates the configuration.
//
// Steps performed:
//  1. Start from built-in defaults
//  2. Expand ${ENV} references in the optional YAML file from configDir
//  3. Merge the parsed YAML (user overrides defaults)
//  4. Apply environment-variable overrides for deployment knobs
//  5. Validate everything
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized",
		"worker_count", cfg.Queue.WorkerCount,
		"max_concurrent_runs", cfg.Queue.MaxConcurrentRuns,
		"web_analysis_parallelism", cfg.Search.WebAnalysisParallelism,
		"slack_enabled", cfg.Slack.Enabled,
		"classifier_enabled", cfg.Classifier.Enabled)

	return cfg, nil
}
