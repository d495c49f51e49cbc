// Package website defines the website-analyzer collaborator. The scraping
// implementation lives outside the core; the orchestrator only sees the
// interface. Analyzers never fail loudly — errors travel in the result.
package website

import (
	"context"

	"github.com/adscout/adscout/pkg/models"
)

// Analyzer inspects a shop website and extracts CMS, catalogue and text
// metadata. Implementations must be safe for concurrent use: phase 4 fans
// out up to P_web analyses at once.
type Analyzer interface {
	Analyze(ctx context.Context, url, countryHint string) models.WebsiteAnalysis
}

// Disabled is the analyzer used when website analysis is turned off.
// It returns an empty analysis, so page merges are no-ops.
type Disabled struct{}

// Analyze implements Analyzer.
func (Disabled) Analyze(context.Context, string, string) models.WebsiteAnalysis {
	return models.WebsiteAnalysis{}
}

// Func adapts a function to the Analyzer interface (used in tests).
type Func func(ctx context.Context, url, countryHint string) models.WebsiteAnalysis

// Analyze implements Analyzer.
func (f Func) Analyze(ctx context.Context, url, countryHint string) models.WebsiteAnalysis {
	return f(ctx, url, countryHint)
}
