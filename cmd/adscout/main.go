// adscout server — ad-archive search orchestration with a durable run
// queue, credential rotation, and winning-ad detection.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/adscout/adscout/pkg/api"
	"github.com/adscout/adscout/pkg/archive"
	"github.com/adscout/adscout/pkg/classify"
	"github.com/adscout/adscout/pkg/cleanup"
	"github.com/adscout/adscout/pkg/config"
	"github.com/adscout/adscout/pkg/database"
	"github.com/adscout/adscout/pkg/metrics"
	"github.com/adscout/adscout/pkg/queue"
	"github.com/adscout/adscout/pkg/rotator"
	"github.com/adscout/adscout/pkg/sched"
	"github.com/adscout/adscout/pkg/services"
	adslack "github.com/adscout/adscout/pkg/slack"
	"github.com/adscout/adscout/pkg/version"
	"github.com/adscout/adscout/pkg/website"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	gin.SetMode(getEnv("GIN_MODE", "release"))

	log.Printf("Starting adscout %s", version.Full())

	ctx := context.Background()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("Error closing database client: %v", err)
		}
	}()
	log.Println("✓ Connected to PostgreSQL database")

	podID := getEnv("POD_ID", "")
	if podID == "" {
		host, _ := os.Hostname()
		podID = host + "-" + uuid.New().String()[:8]
	}

	// Services
	svcs := api.Services{
		Runs:       services.NewRunService(dbClient.Client),
		RunLogs:    services.NewRunLogService(dbClient.Client),
		Pages:      services.NewPageService(dbClient.Client),
		Ads:        services.NewAdService(dbClient.Client),
		WinningAds: services.NewWinningAdService(dbClient.Client),
		Creds:      services.NewCredentialService(dbClient.Client),
		Blacklist:  services.NewBlacklistService(dbClient.Client),
		Settings:   services.NewSettingsService(dbClient.Client),
		Scans:      services.NewScheduledScanService(dbClient.Client),
	}
	log.Println("✓ Services initialized")

	// Collaborators
	rot := rotator.New(dbClient.Client, cfg.Search.RateLimitCooldown)

	var archiveClient archive.Client
	if base := os.Getenv("ARCHIVE_API_URL"); base != "" {
		archiveClient = archive.NewHTTPClient(archive.HTTPConfig{BaseURL: base})
	} else {
		slog.Warn("ARCHIVE_API_URL not set, using stub archive client (searches return no ads)")
		archiveClient = archive.NewStubClient()
	}

	var classifier classify.Classifier = classify.Disabled{}
	if cfg.Classifier.Enabled {
		grpcClassifier, err := classify.NewGRPCClassifier(cfg.Classifier.Address)
		if err != nil {
			log.Fatalf("Failed to create classifier client: %v", err)
		}
		defer func() { _ = grpcClassifier.Close() }()
		classifier = grpcClassifier
	}

	var slackService *adslack.Service
	if cfg.Slack.Enabled {
		slackService = adslack.NewService(adslack.ServiceConfig{
			Token:        os.Getenv(cfg.Slack.TokenEnv),
			Channel:      cfg.Slack.Channel,
			DashboardURL: os.Getenv("DASHBOARD_URL"),
		})
		if slackService == nil {
			slog.Warn("Slack enabled but token or channel missing, notifications disabled")
		}
	}

	m := metrics.New()

	// Queue: recover stuck runs from previous processes, then start workers.
	if err := queue.RecoverStartupOrphans(ctx, dbClient.Client, podID, cfg.Queue.OrphanThreshold); err != nil {
		log.Fatalf("Failed to recover interrupted runs: %v", err)
	}

	executor := queue.NewRealRunExecutor(cfg, dbClient.Client, archiveClient, website.Disabled{}, classifier, rot, m)
	pool := queue.NewWorkerPool(podID, dbClient.Client, cfg.Queue, executor, slackService)
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker pool: %v", err)
	}
	log.Printf("✓ Worker pool started (pod %s, %d workers)", podID, cfg.Queue.WorkerCount)

	// Scheduled scans
	scheduler := sched.New(svcs.Scans, svcs.Runs)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start scan scheduler: %v", err)
	}

	// Data retention
	retention := cleanup.NewService(cfg.Retention, svcs.Runs, svcs.RunLogs, svcs.Ads)
	retention.Start(ctx)

	// HTTP API
	server := api.NewServer(cfg, dbClient, svcs, pool, m, scheduler)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(":" + httpPort)
	}()
	log.Printf("✓ HTTP server listening on :%s", httpPort)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Printf("Received signal %s, shutting down", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("HTTP server error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	retention.Stop()
	scheduler.Stop()
	pool.Stop()
	log.Println("Shutdown complete")
}
