package slack

import (
	"context"
	"log/slog"
	"time"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token        string
	Channel      string
	DashboardURL string
}

// RunCompletedInput contains data for a terminal run notification.
type RunCompletedInput struct {
	RunID        int
	Keywords     []string
	Status       string // completed, no_results, failed, cancelled
	Pages        int
	WinningAds   int
	ErrorMessage string
}

// Service handles Slack notification delivery.
// Nil-safe: all methods are no-ops when the service is nil.
type Service struct {
	client       *Client
	dashboardURL string
	logger       *slog.Logger
}

// NewService creates a new Slack notification service.
// Returns nil if Token or Channel is empty.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client:       NewClient(cfg.Token, cfg.Channel),
		dashboardURL: cfg.DashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client, dashboardURL string) *Service {
	return &Service{
		client:       client,
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NotifyRunCompleted sends a terminal status notification.
// Fail-open: errors are logged, never returned, and never affect the run.
func (s *Service) NotifyRunCompleted(ctx context.Context, input RunCompletedInput) {
	if s == nil {
		return
	}

	blocks := BuildRunCompletedMessage(input, s.dashboardURL)
	if err := s.client.PostMessage(ctx, blocks, 10*time.Second); err != nil {
		s.logger.Error("Failed to send Slack notification",
			"run_id", input.RunID,
			"status", input.Status,
			"error", err)
	}
}
