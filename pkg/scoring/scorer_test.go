package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adscout/adscout/pkg/models"
)

func adAt(ref time.Time, ageDays int, reach int64) models.AdRecord {
	return models.AdRecord{
		AdID:         "ad-1",
		PageID:       "page-1",
		CreationDate: ref.AddDate(0, 0, -ageDays),
		Reach:        models.Reach{Value: reach},
	}
}

func TestScoreFirstMatchingCriterionWins(t *testing.T) {
	ref := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s := NewScorer(nil)

	tests := []struct {
		name      string
		age       int
		reach     int64
		wantLabel string
		wantOK    bool
	}{
		{"young high reach", 2, 30_000, "≤4d & >15k", true},
		{"exact reach bound", 3, 15_000, "≤4d & >15k", true},
		{"exact age bound", 4, 15_000, "≤4d & >15k", true},
		{"older big reach", 20, 250_000, "≤22d & >200k", true},
		{"oldest window", 29, 400_000, "≤29d & >400k", true},
		{"too old", 30, 500_000, "", false},
		{"young low reach", 2, 14_999, "", false},
		{"mid window", 7, 40_000, "≤7d & >40k", true},
		{"mid window short", 7, 39_999, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, ok := s.Score(adAt(ref, tt.age, tt.reach), ref)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantLabel, label)
		})
	}
}

func TestScoreRejectsUnknownDateAndNoReach(t *testing.T) {
	ref := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	s := NewScorer(nil)

	noDate := models.AdRecord{AdID: "a", Reach: models.Reach{Value: 100_000}}
	_, ok := s.Score(noDate, ref)
	assert.False(t, ok)

	zeroReach := adAt(ref, 2, 0)
	_, ok = s.Score(zeroReach, ref)
	assert.False(t, ok)

	future := adAt(ref, -2, 100_000)
	_, ok = s.Score(future, ref)
	assert.False(t, ok)
}

func TestScoreIsDeterministic(t *testing.T) {
	ref := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	s := NewScorer(nil)
	ad := adAt(ref, 6, 31_000)

	first, ok := s.Score(ad, ref)
	require.True(t, ok)
	for i := 0; i < 100; i++ {
		label, ok := s.Score(ad, ref)
		require.True(t, ok)
		require.Equal(t, first, label)
	}
}

func TestScoreCustomCriteriaOrder(t *testing.T) {
	ref := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	// Deliberately overlapping: the first listed pair must win.
	s := NewScorer([]Criterion{{10, 1_000}, {10, 500}})

	label, ok := s.Score(adAt(ref, 5, 2_000), ref)
	require.True(t, ok)
	assert.Equal(t, "≤10d & >1k", label)
}

func TestExplain(t *testing.T) {
	ref := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	s := NewScorer(nil)

	assert.Contains(t, s.Explain(adAt(ref, 2, 30_000), ref), "WINNING: age 2 d, reach 30000")
	assert.Contains(t, s.Explain(adAt(ref, 2, 10_000), ref), "short by 5000 reach")
	assert.Contains(t, s.Explain(adAt(ref, 40, 10_000), ref), "age 40 d exceeds all criteria")
	assert.Contains(t, s.Explain(models.AdRecord{Reach: models.Reach{Value: 5}}, ref), "creation date unknown")
}
