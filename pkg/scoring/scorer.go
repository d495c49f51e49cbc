package scoring

import (
	"fmt"
	"time"

	"github.com/adscout/adscout/pkg/models"
)

// Criterion pairs a maximum age with a minimum reach. An ad matches when
// 0 <= age_days <= MaxAgeDays and reach >= MinReach.
type Criterion struct {
	MaxAgeDays int   `json:"max_age_days"`
	MinReach   int64 `json:"min_reach"`
}

// Label formats the criterion the way it is stored on winning ads.
func (c Criterion) Label() string {
	return fmt.Sprintf("≤%dd & >%dk", c.MaxAgeDays, c.MinReach/1000)
}

// DefaultCriteria returns the built-in rule set, ordered shortest window
// first. Ordering is significant: the first matching pair wins.
func DefaultCriteria() []Criterion {
	return []Criterion{
		{4, 15_000},
		{5, 20_000},
		{6, 30_000},
		{7, 40_000},
		{8, 50_000},
		{15, 100_000},
		{22, 200_000},
		{29, 400_000},
	}
}

// Scorer applies an ordered criteria list to ads. It performs no I/O and
// reads no clock; the reference date is always a parameter.
type Scorer struct {
	criteria []Criterion
}

// NewScorer creates a scorer; nil or empty criteria fall back to defaults.
func NewScorer(criteria []Criterion) *Scorer {
	if len(criteria) == 0 {
		criteria = DefaultCriteria()
	}
	return &Scorer{criteria: criteria}
}

// Criteria returns the active rule set.
func (s *Scorer) Criteria() []Criterion {
	return s.criteria
}

// Score returns the label of the first matching criterion and true, or
// ("", false) when the ad does not qualify. Ads with an unknown creation
// date or non-positive reach never win.
func (s *Scorer) Score(ad models.AdRecord, ref time.Time) (string, bool) {
	if ad.Reach.Value <= 0 || !ad.HasCreationDate() {
		return "", false
	}
	age := ad.AgeDays(ref)
	if age < 0 {
		return "", false
	}
	for _, c := range s.criteria {
		if age <= c.MaxAgeDays && ad.Reach.Value >= c.MinReach {
			return c.Label(), true
		}
	}
	return "", false
}

// Explain returns a human-readable reason for the scoring outcome.
func (s *Scorer) Explain(ad models.AdRecord, ref time.Time) string {
	if !ad.HasCreationDate() {
		return "NON-WINNING: creation date unknown"
	}
	if ad.Reach.Value <= 0 {
		return "NON-WINNING: no reach reported"
	}
	age := ad.AgeDays(ref)
	if age < 0 {
		return "NON-WINNING: creation date in the future"
	}

	if label, ok := s.Score(ad, ref); ok {
		return fmt.Sprintf("WINNING: age %d d, reach %d — criterion %s", age, ad.Reach.Value, label)
	}

	// Closest missed criterion among those the ad is young enough for.
	var closest *Criterion
	var closestGap int64
	for i := range s.criteria {
		c := s.criteria[i]
		if age > c.MaxAgeDays {
			continue
		}
		gap := c.MinReach - ad.Reach.Value
		if gap > 0 && (closest == nil || gap < closestGap) {
			closest = &s.criteria[i]
			closestGap = gap
		}
	}
	if closest != nil {
		return fmt.Sprintf("NON-WINNING: closest missed criterion was %s, short by %d reach", closest.Label(), closestGap)
	}
	return fmt.Sprintf("NON-WINNING: age %d d exceeds all criteria", age)
}
