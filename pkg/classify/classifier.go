// Package classify defines the thematic-classification collaborator. Pages
// without a category are batched to an external classifier service; when
// no classifier is configured the phase is skipped entirely.
package classify

import (
	"context"

	"github.com/adscout/adscout/pkg/models"
)

// Classifier categorizes pages from their scraped site metadata.
type Classifier interface {
	// Available reports whether classification can run. Callers skip the
	// phase when false; that is not an error.
	Available(ctx context.Context) bool

	// ClassifyBatch classifies all sites in one call. Per-page failures
	// are carried in the Classification's Error field.
	ClassifyBatch(ctx context.Context, sites []models.SiteContent) (map[string]models.Classification, error)
}

// Disabled is the classifier used when no service is configured.
type Disabled struct{}

// Available implements Classifier.
func (Disabled) Available(context.Context) bool { return false }

// ClassifyBatch implements Classifier.
func (Disabled) ClassifyBatch(context.Context, []models.SiteContent) (map[string]models.Classification, error) {
	return map[string]models.Classification{}, nil
}
