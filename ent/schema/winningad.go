package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// WinningAd holds the schema definition for the WinningAd entity — an ad
// that passed the scoring rules. One row per (tenant, ad_id); re-detection
// updates snapshot fields, never duplicates.
type WinningAd struct {
	ent.Schema
}

// Fields of the WinningAd.
func (WinningAd) Fields() []ent.Field {
	return []ent.Field{
		field.String("user_id"),
		field.String("ad_id"),
		field.String("page_id"),
		field.String("page_name").
			Optional(),
		field.String("matched_criterion").
			Comment("First matching (max_age, min_reach) pair, formatted"),
		field.Int64("reach_at_detection").
			Default(0),
		field.Int("age_at_detection").
			Default(0),
		field.Time("creation_date").
			Optional().
			Nillable(),
		field.JSON("creative_bodies", []string{}).
			Optional(),
		field.JSON("creative_link_titles", []string{}).
			Optional(),
		field.JSON("creative_link_captions", []string{}).
			Optional(),
		field.String("snapshot_url").
			Optional(),
		field.String("website").
			Optional(),
		field.Bool("is_new").
			Default(true).
			Comment("True only on first-ever detection across all runs"),
		field.Int("search_run_id").
			Optional().
			Comment("The run that last detected this ad"),
		field.Time("detected_at").
			Default(time.Now),
		field.Time("last_seen_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Indexes of the WinningAd.
func (WinningAd) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "ad_id").
			Unique(),
		index.Fields("user_id", "page_id"),
		index.Fields("search_run_id"),
		index.Fields("detected_at"),
	}
}
