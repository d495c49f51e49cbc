package queue

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/adscout/adscout/pkg/archive"
	"github.com/adscout/adscout/pkg/metrics"
	"github.com/adscout/adscout/pkg/models"
	"github.com/adscout/adscout/pkg/rotator"
)

// ────────────────────────────────────────────────────────────
// Archive fan-out with credential rotation
// ────────────────────────────────────────────────────────────

// searchKeyword runs one keyword search against the archive, rotating
// credentials on rate limits and waiting out full-pool cooldowns. The
// returned error means the keyword is skipped (recorded by the caller),
// except context errors which abort the phase.
func (p *pipeline) searchKeyword(ctx context.Context, keyword string) ([]models.AdRecord, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lease, err := p.exec.rotator.Acquire(ctx)
		if errors.Is(err, rotator.ErrNoCredentialAvailable) {
			if err := p.waitForCredential(ctx); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("acquiring credential: %w", err)
		}

		ads, callErr := p.callArchiveSearch(ctx, keyword, lease.Cred)
		if callErr == nil {
			p.reportLease(ctx, lease, rotator.Success())
			return ads, nil
		}

		ae := archive.AsError(callErr)
		switch ae.Kind {
		case archive.KindRateLimited:
			// Put the credential in cooldown and immediately retry the
			// keyword with another eligible one.
			p.reportLease(ctx, lease, rotator.RateLimited(ae.RetryAfter))
			continue
		case archive.KindFatal:
			p.reportLease(ctx, lease, rotator.FatalError(ae.Message))
			return nil, callErr
		default:
			p.reportLease(ctx, lease, rotator.TransientError(ae.Message))
			return nil, callErr
		}
	}
}

// callArchiveSearch performs the archive call with exponential back-off
// on transient errors. Rate-limit and fatal errors break out immediately.
func (p *pipeline) callArchiveSearch(ctx context.Context, keyword string, cred models.CredentialRef) ([]models.AdRecord, error) {
	cfg := p.exec.cfg.Search

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.RetryInitialInterval
	bo.MaxInterval = cfg.RetryMaxInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	var ads []models.AdRecord
	op := func() error {
		// Cancellation is checked at every retry decision.
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		start := time.Now()
		result, err := p.exec.archive.SearchByKeyword(ctx, keyword, p.run.Countries, p.run.Languages, cred)
		latency := float64(time.Since(start).Milliseconds())

		if err != nil {
			ae := archive.AsError(err)
			p.counters.record(models.ChannelArchiveAPI, latency, true, ae.Kind == archive.KindRateLimited)
			if ae.Kind != archive.KindTransient {
				return backoff.Permanent(err)
			}
			p.logger.Warn("Archive call failed, retrying",
				"keyword", keyword,
				"credential_id", cred.ID,
				"error", err)
			return err
		}

		p.counters.record(models.ChannelArchiveAPI, latency, false, false)
		ads = result
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, cfg.MaxRetries), ctx)); err != nil {
		return nil, err
	}
	return ads, nil
}

// waitForCredential sleeps until the earliest credential cooldown expires.
// Fails when no credential can ever become eligible again.
func (p *pipeline) waitForCredential(ctx context.Context) error {
	until, found, err := p.exec.rotator.NextEligibleAt(ctx)
	if err != nil {
		return err
	}
	if !found {
		return errors.New("no eligible credentials")
	}

	wait := time.Until(until)
	if wait < time.Second {
		wait = time.Second
	}
	p.logger.Info("All credentials cooling down, waiting", "wait", wait.Round(time.Second))
	p.tracker.SetMessage(fmt.Sprintf("rate limited, waiting %s for a credential", wait.Round(time.Second)))
	p.writeProgress(ctx)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func (p *pipeline) reportLease(ctx context.Context, lease *rotator.Lease, outcome rotator.Outcome) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := p.exec.rotator.Report(ctx, lease, outcome); err != nil {
		p.logger.Warn("Failed to report credential outcome", "error", err)
	}
}

// ────────────────────────────────────────────────────────────
// API counters
// ────────────────────────────────────────────────────────────

type channelAcc struct {
	calls      int64
	errors     int64
	rateLimits int64
	latencySum float64
	cost       float64
}

// apiAccumulator aggregates per-channel API usage across phases.
// Thread-safe: phase 4 records from multiple goroutines.
type apiAccumulator struct {
	mu       sync.Mutex
	channels map[string]*channelAcc
	metrics  *metrics.Metrics
}

func (a *apiAccumulator) init(m *metrics.Metrics) {
	a.channels = make(map[string]*channelAcc)
	a.metrics = m
}

func (a *apiAccumulator) channel(name string) *channelAcc {
	acc, ok := a.channels[name]
	if !ok {
		acc = &channelAcc{}
		a.channels[name] = acc
	}
	return acc
}

func (a *apiAccumulator) record(channel string, latencyMS float64, isError, isRateLimit bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	acc := a.channel(channel)
	acc.calls++
	acc.latencySum += latencyMS
	if isError {
		acc.errors++
	}
	if isRateLimit {
		acc.rateLimits++
	}

	if a.metrics != nil {
		a.metrics.APICalls.WithLabelValues(channel).Inc()
		if isError {
			a.metrics.APIErrors.WithLabelValues(channel).Inc()
		}
		if isRateLimit {
			a.metrics.RateLimitHits.Inc()
		}
	}
}

func (a *apiAccumulator) addCost(channel string, cost float64) {
	if cost == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.channel(channel).cost += cost
}

func (a *apiAccumulator) snapshot() models.APICounters {
	a.mu.Lock()
	defer a.mu.Unlock()

	build := func(name string) models.ChannelCounters {
		acc, ok := a.channels[name]
		if !ok {
			return models.ChannelCounters{}
		}
		out := models.ChannelCounters{
			Calls:         acc.calls,
			Errors:        acc.errors,
			RateLimitHits: acc.rateLimits,
			Cost:          acc.cost,
		}
		if acc.calls > 0 {
			out.AvgLatencyMS = acc.latencySum / float64(acc.calls)
		}
		return out
	}

	return models.APICounters{
		Archive: build(models.ChannelArchiveAPI),
		Scraper: build(models.ChannelScraperAPI),
		Web:     build(models.ChannelWebDirect),
	}
}

// ────────────────────────────────────────────────────────────
// Website extraction
// ────────────────────────────────────────────────────────────

var domainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*\.[a-z]{2,}$`)

// excludedDomains are social networks, shorteners and platform hosts that
// never identify the advertiser's own shop.
var excludedDomains = map[string]struct{}{
	"facebook.com": {}, "instagram.com": {}, "fb.me": {}, "fb.com": {},
	"messenger.com": {}, "whatsapp.com": {}, "meta.com": {},
	"twitter.com": {}, "x.com": {}, "tiktok.com": {}, "pinterest.com": {},
	"linkedin.com": {}, "snapchat.com": {}, "threads.net": {},
	"google.com": {}, "youtube.com": {}, "youtu.be": {}, "goo.gl": {},
	"bit.ly": {}, "t.co": {}, "tinyurl.com": {},
	"linktr.ee": {}, "linkin.bio": {}, "beacons.ai": {},
	"shopify.com": {}, "myshopify.com": {},
	"wixsite.com": {}, "squarespace.com": {},
	"apple.com": {}, "apps.apple.com": {}, "play.google.com": {},
}

// extractWebsite pulls the advertiser's site from ad creatives: link
// captions usually carry the bare domain.
func extractWebsite(ads []models.AdRecord) string {
	for _, ad := range ads {
		for _, caption := range ad.CreativeLinkCaptions {
			if site := normalizeWebsite(caption); site != "" {
				return site
			}
		}
	}
	return ""
}

// normalizeWebsite validates and canonicalizes a candidate URL or domain:
// https scheme, no www., no path, excluded hosts rejected.
func normalizeWebsite(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if host == "" || !domainPattern.MatchString(host) {
		return ""
	}

	for excluded := range excludedDomains {
		if host == excluded || strings.HasSuffix(host, "."+excluded) {
			return ""
		}
	}
	return "https://" + host
}
