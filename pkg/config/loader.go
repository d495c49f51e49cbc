package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// configFileName is the optional user configuration file inside configDir.
const configFileName = "adscout.yaml"

// load builds the configuration: defaults ← YAML file ← env overrides.
func load(_ context.Context, configDir string) (*Config, error) {
	cfg := Default()

	userCfg, err := loadYAML(filepath.Join(configDir, configFileName))
	if err != nil {
		return nil, err
	}
	if userCfg != nil {
		// User values override defaults; absent YAML fields keep defaults.
		if err := mergo.Merge(cfg, userCfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging configuration: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML reads and parses the user config file. A missing file is fine.
func loadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	data = ExpandEnv(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// applyEnvOverrides applies the deployment-level environment knobs on top
// of file configuration. These are read once at start-up.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("WORKER_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid WORKER_COUNT: %w", err)
		}
		cfg.Queue.WorkerCount = n
		cfg.Queue.MaxConcurrentRuns = n
	}
	if v := os.Getenv("PHASE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PHASE_TIMEOUT: %w", err)
		}
		cfg.Queue.PhaseTimeout = d
	}
	if v := os.Getenv("WEB_ANALYSIS_PARALLELISM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid WEB_ANALYSIS_PARALLELISM: %w", err)
		}
		cfg.Search.WebAnalysisParallelism = n
	}
	if v := os.Getenv("RATE_LIMIT_BACKOFF_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_BACKOFF_SECONDS: %w", err)
		}
		cfg.Search.RateLimitCooldown = time.Duration(n) * time.Second
	}
	return nil
}
