package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/ent/setting"
	"github.com/adscout/adscout/pkg/scoring"
)

// Well-known setting keys.
const (
	SettingSizeThresholds  = "size_thresholds"
	SettingWinningCriteria = "winning_criteria"
	SettingMinAdsDetail    = "min_ads_detail"
)

// SettingsService is the per-tenant key/value store backing the tunable
// pipeline parameters.
type SettingsService struct {
	client *ent.Client
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(client *ent.Client) *SettingsService {
	return &SettingsService{client: client}
}

// Get returns the raw value of a key, or def when unset.
func (s *SettingsService) Get(ctx context.Context, userID, key, def string) (string, error) {
	row, err := s.client.Setting.Query().
		Where(setting.UserIDEQ(userID), setting.KeyEQ(key)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return def, nil
		}
		return "", fmt.Errorf("failed to query setting %s: %w", key, err)
	}
	return row.Value, nil
}

// Set upserts a key.
func (s *SettingsService) Set(ctx context.Context, userID, key, value string) error {
	n, err := s.client.Setting.Update().
		Where(setting.UserIDEQ(userID), setting.KeyEQ(key)).
		SetValue(value).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("failed to update setting %s: %w", key, err)
	}
	if n > 0 {
		return nil
	}
	err = s.client.Setting.Create().
		SetUserID(userID).
		SetKey(key).
		SetValue(value).
		Exec(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			// Raced with another writer; their write wins the insert, ours
			// the value.
			_, uerr := s.client.Setting.Update().
				Where(setting.UserIDEQ(userID), setting.KeyEQ(key)).
				SetValue(value).
				Save(ctx)
			return uerr
		}
		return fmt.Errorf("failed to create setting %s: %w", key, err)
	}
	return nil
}

// All returns every setting of a tenant.
func (s *SettingsService) All(ctx context.Context, userID string) (map[string]string, error) {
	rows, err := s.client.Setting.Query().
		Where(setting.UserIDEQ(userID)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// SizeThresholds returns the tenant's bucket bounds, or fallback when the
// tenant has no override or it does not parse.
func (s *SettingsService) SizeThresholds(ctx context.Context, userID string, fallback scoring.SizeThresholds) scoring.SizeThresholds {
	raw, err := s.Get(ctx, userID, SettingSizeThresholds, "")
	if err != nil || raw == "" {
		return fallback
	}
	var t scoring.SizeThresholds
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return fallback
	}
	if !(0 < t.S && t.S < t.M && t.M < t.L && t.L < t.XL && t.XL < t.XXL) {
		return fallback
	}
	return t
}

// WinningCriteria returns the tenant's scoring rules, or fallback.
func (s *SettingsService) WinningCriteria(ctx context.Context, userID string, fallback []scoring.Criterion) []scoring.Criterion {
	raw, err := s.Get(ctx, userID, SettingWinningCriteria, "")
	if err != nil || raw == "" {
		return fallback
	}
	var criteria []scoring.Criterion
	if err := json.Unmarshal([]byte(raw), &criteria); err != nil || len(criteria) == 0 {
		return fallback
	}
	return criteria
}

// MinAdsDetail returns the tenant's ad-detail threshold, or fallback.
func (s *SettingsService) MinAdsDetail(ctx context.Context, userID string, fallback int) int {
	raw, err := s.Get(ctx, userID, SettingMinAdsDetail, "")
	if err != nil || raw == "" {
		return fallback
	}
	var n int
	if err := json.Unmarshal([]byte(raw), &n); err != nil || n < 0 {
		return fallback
	}
	return n
}
