package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ScheduledScan is a recurring search definition. The scan scheduler
// submits a SearchRun whenever the cron expression fires.
type ScheduledScan struct {
	ent.Schema
}

// Fields of the ScheduledScan.
func (ScheduledScan) Fields() []ent.Field {
	return []ent.Field{
		field.String("user_id"),
		field.String("name"),
		field.String("cron_expr"),
		field.JSON("keywords", []string{}),
		field.JSON("countries", []string{}),
		field.JSON("languages", []string{}),
		field.Int("min_active_ads").
			Default(3),
		field.JSON("cms_filter", []string{}).
			Optional(),
		field.Int("priority").
			Default(0),
		field.Bool("active").
			Default(true),
		field.Time("last_run_at").
			Optional().
			Nillable(),
		field.Int("last_run_id").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the ScheduledScan.
func (ScheduledScan) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id"),
		index.Fields("active"),
	}
}
