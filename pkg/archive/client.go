// Package archive defines the ad-archive client consumed by the
// orchestrator, with an HTTP implementation (HTTPClient) and an in-memory
// stub; the orchestrator only depends on this interface and its error
// taxonomy.
package archive

import (
	"context"

	"github.com/adscout/adscout/pkg/models"
)

// Client searches the external ad archive. Every call is made with a
// credential leased from the rotator; implementations must not retry or
// rotate internally — that policy belongs to the orchestrator.
type Client interface {
	// SearchByKeyword returns all ads matching a keyword in the given
	// countries and languages.
	SearchByKeyword(ctx context.Context, keyword string, countries, languages []string, cred models.CredentialRef) ([]models.AdRecord, error)

	// GetPageAds returns the active ads of a single page.
	GetPageAds(ctx context.Context, pageID string, countries, languages []string, cred models.CredentialRef) ([]models.AdRecord, error)
}
