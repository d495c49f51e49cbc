package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/adscout/adscout/pkg/models"
)

// RunLog holds the schema definition for the RunLog entity — the final,
// immutable record of an executed run. Append-only once ended_at is set.
type RunLog struct {
	ent.Schema
}

// Fields of the RunLog.
func (RunLog) Fields() []ent.Field {
	return []ent.Field{
		field.String("user_id"),
		field.Int("search_run_id"),
		field.JSON("keywords", []string{}),
		field.JSON("countries", []string{}).
			Optional(),
		field.JSON("languages", []string{}).
			Optional(),
		field.Int("min_active_ads").
			Default(0),
		field.JSON("cms_filter", []string{}).
			Optional(),
		field.String("status").
			Default("running"),
		field.Text("error_message").
			Optional(),
		field.JSON("phases", []models.PhaseRecord{}).
			Optional(),
		field.Int("ads_found").
			Default(0),
		field.Int("pages_found").
			Default(0),
		field.Int("pages_after_filter").
			Default(0),
		field.JSON("pages_by_cms", map[string]int{}).
			Optional(),
		field.Int("winning_ads_count").
			Default(0),
		field.Int("blacklisted_skipped").
			Default(0),
		field.Int("new_pages").
			Default(0),
		field.Int("updated_pages").
			Default(0),
		field.Int("new_winning_ads").
			Default(0),
		field.Int("updated_winning_ads").
			Default(0),
		field.JSON("api_counters", models.APICounters{}).
			Optional().
			Comment("Per-channel call/error/rate-limit/latency/cost counters"),
		field.JSON("errors", []models.ErrorRecord{}).
			Optional(),
		field.Time("started_at").
			Default(time.Now),
		field.Time("ended_at").
			Optional().
			Nillable(),
		field.Float("duration_seconds").
			Default(0),
	}
}

// Indexes of the RunLog.
func (RunLog) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id"),
		index.Fields("search_run_id"),
		index.Fields("status", "started_at"),
	}
}
