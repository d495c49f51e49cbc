package services

import (
	"context"
	"fmt"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/ent/blacklistentry"
)

// BlacklistService manages the tenant-curated page exclusion list.
type BlacklistService struct {
	client *ent.Client
}

// NewBlacklistService creates a new BlacklistService.
func NewBlacklistService(client *ent.Client) *BlacklistService {
	return &BlacklistService{client: client}
}

// IsBlacklisted reports whether a page is excluded for a tenant.
func (s *BlacklistService) IsBlacklisted(ctx context.Context, userID, pageID string) (bool, error) {
	exists, err := s.client.BlacklistEntry.Query().
		Where(blacklistentry.UserIDEQ(userID), blacklistentry.PageIDEQ(pageID)).
		Exist(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return exists, nil
}

// PageIDs returns the tenant's full exclusion set for bulk filtering.
func (s *BlacklistService) PageIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	ids, err := s.client.BlacklistEntry.Query().
		Where(blacklistentry.UserIDEQ(userID)).
		Select(blacklistentry.FieldPageID).
		Strings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load blacklist: %w", err)
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// Add puts a page on the tenant's blacklist. Adding an existing entry is
// a no-op.
func (s *BlacklistService) Add(ctx context.Context, userID, pageID, pageName, reason string) error {
	err := s.client.BlacklistEntry.Create().
		SetUserID(userID).
		SetPageID(pageID).
		SetPageName(pageName).
		SetReason(reason).
		Exec(ctx)
	if err != nil && !ent.IsConstraintError(err) {
		return fmt.Errorf("failed to add blacklist entry: %w", err)
	}
	return nil
}

// Remove deletes a blacklist entry.
func (s *BlacklistService) Remove(ctx context.Context, userID, pageID string) error {
	_, err := s.client.BlacklistEntry.Delete().
		Where(blacklistentry.UserIDEQ(userID), blacklistentry.PageIDEQ(pageID)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove blacklist entry: %w", err)
	}
	return nil
}

// List returns a tenant's blacklist, newest first.
func (s *BlacklistService) List(ctx context.Context, userID string) ([]*ent.BlacklistEntry, error) {
	rows, err := s.client.BlacklistEntry.Query().
		Where(blacklistentry.UserIDEQ(userID)).
		Order(ent.Desc(blacklistentry.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list blacklist: %w", err)
	}
	return rows, nil
}
