package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/ent/searchrun"
	"github.com/adscout/adscout/pkg/archive"
	"github.com/adscout/adscout/pkg/classify"
	"github.com/adscout/adscout/pkg/config"
	"github.com/adscout/adscout/pkg/metrics"
	"github.com/adscout/adscout/pkg/models"
	"github.com/adscout/adscout/pkg/progress"
	"github.com/adscout/adscout/pkg/rotator"
	"github.com/adscout/adscout/pkg/scoring"
	"github.com/adscout/adscout/pkg/services"
	"github.com/adscout/adscout/pkg/website"
)

// RealRunExecutor implements RunExecutor with the nine-phase search
// pipeline. Phases run strictly in order; progress is written to the run
// row on every phase boundary.
type RealRunExecutor struct {
	cfg        *config.Config
	dbClient   *ent.Client
	archive    archive.Client
	analyzer   website.Analyzer
	classifier classify.Classifier
	rotator    *rotator.Rotator
	metrics    *metrics.Metrics
}

// NewRealRunExecutor creates a run executor.
// analyzer may be nil (website analysis disabled).
// classifier may be nil (classification skipped).
func NewRealRunExecutor(cfg *config.Config, dbClient *ent.Client, archiveClient archive.Client, analyzer website.Analyzer, classifier classify.Classifier, rot *rotator.Rotator, m *metrics.Metrics) *RealRunExecutor {
	if analyzer == nil {
		analyzer = website.Disabled{}
	}
	if classifier == nil {
		classifier = classify.Disabled{}
	}
	return &RealRunExecutor{
		cfg:        cfg,
		dbClient:   dbClient,
		archive:    archiveClient,
		analyzer:   analyzer,
		classifier: classifier,
		rotator:    rot,
		metrics:    m,
	}
}

// pipelinePhase binds a phase number/name to its implementation and its
// slice of the overall progress bar.
type pipelinePhase struct {
	num      int
	name     string
	startPct int
	endPct   int
	fn       func(ctx context.Context) (string, error)
}

// Execute runs the pipeline for one claimed run.
func (e *RealRunExecutor) Execute(ctx context.Context, run *ent.SearchRun) *ExecutionResult {
	logger := slog.With(
		"run_id", run.ID,
		"user_id", run.UserID,
		"keywords", run.Keywords,
		"countries", run.Countries,
	)
	logger.Info("Run executor: starting execution")

	p := newPipeline(e, run, logger)

	phases := []pipelinePhase{
		{1, "Keyword search", 2, 15, p.phaseKeywordSearch},
		{2, "Blacklist filter", 16, 20, p.phaseBlacklist},
		{3, "Page aggregation", 21, 30, p.phaseAggregate},
		{4, "Website analysis", 32, 55, p.phaseWebsiteAnalysis},
		{5, "Classification", 56, 65, p.phaseClassification},
		{6, "Winning-ad scoring", 66, 75, p.phaseScoring},
		{7, "Persistence", 76, 90, p.phasePersist},
		{8, "Run log", 91, 100, p.phaseRunLog},
	}

	for _, ph := range phases {
		// Cooperative cancellation at every phase boundary: in-process
		// context plus the level-triggered status column.
		if res := p.checkCancelled(ctx); res != nil {
			logger.Info("Run cancelled at phase boundary", "next_phase", ph.name)
			return res
		}

		p.tracker.StartPhase(ph.num, ph.name, ph.startPct, ph.name+" started")
		p.writeProgress(ctx)

		phaseCtx, cancelPhase := context.WithTimeout(ctx, e.cfg.Queue.PhaseTimeout)
		msg, err := ph.fn(phaseCtx)
		cancelPhase()

		if err != nil {
			return p.failPhase(ctx, ph, err)
		}

		rec := p.tracker.EndPhase(ph.endPct, msg)
		if e.metrics != nil {
			e.metrics.PhaseDurations.WithLabelValues(ph.name).Observe(rec.DurationSeconds)
		}
		p.writeProgress(ctx)
		logger.Info("Phase completed",
			"phase", ph.num,
			"phase_name", ph.name,
			"duration_s", rec.DurationSeconds,
			"message", msg)
	}

	logger.Info("Run executor: execution completed",
		"status", p.finalStatus,
		"pages", len(p.updates),
		"winning_ads", len(p.candidates))

	return &ExecutionResult{
		Status:   p.finalStatus,
		RunLogID: p.runLogID,
	}
}

// failPhase maps a phase error to the run's terminal result, writing a
// failure run log when the run was not simply cancelled.
func (p *pipeline) failPhase(ctx context.Context, ph pipelinePhase, err error) *ExecutionResult {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return &ExecutionResult{
			Status: searchrun.StatusCancelled,
			Error:  context.Canceled,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("phase budget of %s exceeded", p.exec.cfg.Queue.PhaseTimeout)
	}

	p.logger.Warn("Phase failed, stopping run",
		"phase", ph.num,
		"phase_name", ph.name,
		"error", err)

	p.tracker.EndPhase(ph.startPct, fmt.Sprintf("failed: %v", err))
	p.writeProgress(context.Background())
	runLogID := p.writeFailureLog(context.Background(), ph.name, err)

	return &ExecutionResult{
		Status:      searchrun.StatusFailed,
		RunLogID:    runLogID,
		FailedPhase: ph.name,
		Error:       err,
	}
}

// ────────────────────────────────────────────────────────────
// Pipeline state
// ────────────────────────────────────────────────────────────

// pipeline carries the in-flight state of one run across phases.
type pipeline struct {
	exec   *RealRunExecutor
	run    *ent.SearchRun
	userID string
	logger *slog.Logger

	tracker *progress.Tracker
	refDate time.Time

	// Services (shared across phases)
	runService       *services.RunService
	pageService      *services.PageService
	adService        *services.AdService
	winningAdService *services.WinningAdService
	runLogService    *services.RunLogService
	settingsService  *services.SettingsService
	blacklistService *services.BlacklistService

	// Tenant-resolved parameters
	scorer       *scoring.Scorer
	thresholds   scoring.SizeThresholds
	minAdsDetail int

	// Phase outputs
	ads              []models.AdRecord
	blacklistSkipped int
	pagesFound       int
	updates          []models.PageUpdate
	existing         map[string]*ent.Page
	candidates       []models.WinningAdCandidate
	newWinnerIDs     map[string]bool
	counts           models.RunCounts
	adsSaved         int

	counters apiAccumulator
	errs     []models.ErrorRecord

	finalStatus searchrun.Status
	runLogID    int
}

func newPipeline(e *RealRunExecutor, run *ent.SearchRun, logger *slog.Logger) *pipeline {
	p := &pipeline{
		exec:    e,
		run:     run,
		userID:  run.UserID,
		logger:  logger,
		tracker: progress.NewTracker(),
		refDate: time.Now(),

		runService:       services.NewRunService(e.dbClient),
		pageService:      services.NewPageService(e.dbClient),
		adService:        services.NewAdService(e.dbClient),
		winningAdService: services.NewWinningAdService(e.dbClient),
		runLogService:    services.NewRunLogService(e.dbClient),
		settingsService:  services.NewSettingsService(e.dbClient),
		blacklistService: services.NewBlacklistService(e.dbClient),

		existing:     map[string]*ent.Page{},
		newWinnerIDs: map[string]bool{},
	}
	p.counters.init(e.metrics)

	// Tenant settings are read once per run; the run's own inputs
	// (min_active_ads, cms filter) always win over stored defaults.
	ctx := context.Background()
	p.thresholds = p.settingsService.SizeThresholds(ctx, run.UserID, e.cfg.Search.SizeThresholds)
	p.scorer = scoring.NewScorer(p.settingsService.WinningCriteria(ctx, run.UserID, e.cfg.Search.WinningCriteria))
	p.minAdsDetail = p.settingsService.MinAdsDetail(ctx, run.UserID, e.cfg.Search.MinAdsDetail)

	return p
}

// checkCancelled returns a cancelled result if the run context is dead or
// the status column requests cancellation, nil otherwise.
func (p *pipeline) checkCancelled(ctx context.Context) *ExecutionResult {
	if ctx.Err() != nil {
		return &ExecutionResult{
			Status: searchrun.StatusCancelled,
			Error:  context.Canceled,
		}
	}
	requested, err := p.runService.CancelRequested(ctx, p.run.ID)
	if err != nil {
		p.logger.Warn("Failed to read cancellation flag, continuing", "error", err)
		return nil
	}
	if requested {
		return &ExecutionResult{
			Status: searchrun.StatusCancelled,
			Error:  context.Canceled,
		}
	}
	return nil
}

// writeProgress persists the tracker snapshot. Best-effort: a write
// failure is logged and the pipeline continues.
func (p *pipeline) writeProgress(ctx context.Context) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := p.runService.WriteProgress(ctx, p.run.ID, p.tracker.Snapshot()); err != nil {
		p.logger.Warn("Failed to write run progress", "error", err)
	}
}

// recordError appends a structured error to the run's error list.
func (p *pipeline) recordError(channel, message, keyword, url string) {
	p.errs = append(p.errs, models.ErrorRecord{
		Channel:   channel,
		Message:   message,
		Keyword:   keyword,
		URL:       url,
		Timestamp: time.Now(),
	})
}

// writeFailureLog writes a run log for a failed run so the error list and
// counters survive. Returns the log id, or 0 when the write itself fails.
func (p *pipeline) writeFailureLog(ctx context.Context, phaseName string, phaseErr error) int {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	in := p.runLogInput()
	in.Status = string(searchrun.StatusFailed)
	in.ErrorMessage = fmt.Sprintf("%s: %v", phaseName, phaseErr)

	log, err := p.runLogService.Create(ctx, in)
	if err != nil {
		p.logger.Error("Failed to write failure run log", "error", err)
		return 0
	}
	return log.ID
}

// runLogInput assembles the RunLog fields from the current state.
func (p *pipeline) runLogInput() services.RunLogInput {
	var startedAt time.Time
	if p.run.StartedAt != nil {
		startedAt = *p.run.StartedAt
	} else {
		startedAt = p.refDate
	}

	pagesByCMS := make(map[string]int)
	for i := range p.updates {
		cms := p.updates[i].CMS
		if cms == "" {
			cms = "Unknown"
		}
		pagesByCMS[cms]++
	}

	return services.RunLogInput{
		UserID:             p.userID,
		SearchRunID:        p.run.ID,
		Keywords:           p.run.Keywords,
		Countries:          p.run.Countries,
		Languages:          p.run.Languages,
		MinActiveAds:       p.run.MinActiveAds,
		CMSFilter:          p.run.CmsFilter,
		Phases:             p.tracker.Completed(),
		AdsFound:           len(p.ads) + p.blacklistSkipped,
		PagesFound:         p.pagesFound,
		PagesAfterFilter:   len(p.updates),
		PagesByCMS:         pagesByCMS,
		WinningAdsCount:    len(p.candidates),
		BlacklistedSkipped: p.blacklistSkipped,
		Counts:             p.counts,
		APICounters:        p.counters.snapshot(),
		Errors:             p.errs,
		StartedAt:          startedAt,
		EndedAt:            time.Now(),
	}
}
