package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// RunWinningAdHistory is the many-to-many lineage between runs and the
// winning ads they detected. Append-only.
type RunWinningAdHistory struct {
	ent.Schema
}

// Fields of the RunWinningAdHistory.
func (RunWinningAdHistory) Fields() []ent.Field {
	return []ent.Field{
		field.String("user_id"),
		field.Int("search_run_id"),
		field.String("ad_id"),
		field.Bool("was_new").
			Default(true),
		field.Int64("reach_at_discovery").
			Default(0),
		field.Int("age_at_discovery").
			Default(0),
		field.String("matched_criterion").
			Optional(),
		field.Time("found_at").
			Default(time.Now),
	}
}

// Indexes of the RunWinningAdHistory.
func (RunWinningAdHistory) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("search_run_id", "ad_id").
			Unique(),
		index.Fields("ad_id"),
		index.Fields("user_id"),
	}
}
