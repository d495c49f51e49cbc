package services

import (
	"context"
	"fmt"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/ent/credential"
)

// CredentialService administers the installation's credential pool. The
// rotator owns dispatch; this service covers the admin surface.
type CredentialService struct {
	client *ent.Client
}

// NewCredentialService creates a new CredentialService.
func NewCredentialService(client *ent.Client) *CredentialService {
	return &CredentialService{client: client}
}

// Create registers a credential.
func (s *CredentialService) Create(ctx context.Context, name, token, proxyURL string) (*ent.Credential, error) {
	if token == "" {
		return nil, NewValidationError("token", "required")
	}
	builder := s.client.Credential.Create().
		SetName(name).
		SetToken(token)
	if proxyURL != "" {
		builder.SetProxyURL(proxyURL)
	}
	cred, err := builder.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential: %w", err)
	}
	return cred, nil
}

// Update changes name, token, proxy or active flag. Nil fields are left
// alone; an empty non-nil proxy clears it.
func (s *CredentialService) Update(ctx context.Context, id int, name, token, proxyURL *string, active *bool) (*ent.Credential, error) {
	update := s.client.Credential.UpdateOneID(id)
	if name != nil {
		update = update.SetName(*name)
	}
	if token != nil && *token != "" {
		update = update.SetToken(*token)
	}
	if proxyURL != nil {
		if *proxyURL == "" {
			update = update.ClearProxyURL()
		} else {
			update = update.SetProxyURL(*proxyURL)
		}
	}
	if active != nil {
		update = update.SetActive(*active)
	}
	cred, err := update.Save(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update credential: %w", err)
	}
	return cred, nil
}

// Delete removes a credential from the pool.
func (s *CredentialService) Delete(ctx context.Context, id int) error {
	err := s.client.Credential.DeleteOneID(id).Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// List returns all credentials, optionally only active ones.
func (s *CredentialService) List(ctx context.Context, activeOnly bool) ([]*ent.Credential, error) {
	query := s.client.Credential.Query().Order(ent.Asc(credential.FieldID))
	if activeOnly {
		query = query.Where(credential.Active(true))
	}
	creds, err := query.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return creds, nil
}

// ClearRateLimit lifts a credential's cooldown immediately.
func (s *CredentialService) ClearRateLimit(ctx context.Context, id int) error {
	err := s.client.Credential.UpdateOneID(id).
		ClearRateLimitedUntil().
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to clear rate limit: %w", err)
	}
	return nil
}

// ResetStats zeroes a credential's usage counters.
func (s *CredentialService) ResetStats(ctx context.Context, id int) error {
	err := s.client.Credential.UpdateOneID(id).
		SetTotalCalls(0).
		SetTotalErrors(0).
		SetRateLimitHits(0).
		ClearLastErrorAt().
		ClearLastErrorMessage().
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to reset credential stats: %w", err)
	}
	return nil
}
