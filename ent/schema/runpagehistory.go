package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// RunPageHistory is the many-to-many lineage between runs and the pages
// they discovered. Append-only.
type RunPageHistory struct {
	ent.Schema
}

// Fields of the RunPageHistory.
func (RunPageHistory) Fields() []ent.Field {
	return []ent.Field{
		field.String("user_id"),
		field.Int("search_run_id"),
		field.String("page_id"),
		field.Bool("was_new").
			Default(true).
			Comment("True if the page was first seen by this run"),
		field.String("keyword_matched").
			Optional(),
		field.Int("ad_count_at_discovery").
			Default(0),
		field.Time("found_at").
			Default(time.Now),
	}
}

// Indexes of the RunPageHistory.
func (RunPageHistory) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("search_run_id", "page_id").
			Unique(),
		index.Fields("page_id"),
		index.Fields("user_id"),
	}
}
