package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/adscout/adscout/pkg/models"
)

// SearchRun holds the schema definition for the SearchRun entity.
// One row per submitted search request; doubles as the durable work queue.
type SearchRun struct {
	ent.Schema
}

// Fields of the SearchRun.
func (SearchRun) Fields() []ent.Field {
	return []ent.Field{
		field.String("user_id").
			Comment("Tenant scope; every read and write is filtered on it"),
		field.JSON("keywords", []string{}),
		field.JSON("countries", []string{}),
		field.JSON("languages", []string{}),
		field.Int("min_active_ads").
			Default(3),
		field.JSON("cms_filter", []string{}).
			Optional().
			Comment("Subset of the CMS enum; empty means all"),
		field.Enum("status").
			Values("pending", "running", "cancelling", "completed", "failed", "cancelled", "interrupted", "no_results").
			Default("pending"),
		field.Int("priority").
			Default(0).
			Comment("Higher first; ties broken by created_at ascending"),
		field.Int("current_phase").
			Default(0),
		field.String("current_phase_name").
			Optional(),
		field.Int("progress_percent").
			Default(0),
		field.Text("progress_message").
			Optional(),
		field.JSON("phases_data", []models.PhaseRecord{}).
			Optional().
			Comment("Completed phase records, written on every phase boundary"),
		field.Int("run_log_id").
			Optional().
			Nillable().
			Comment("Back-pointer to the finalized RunLog"),
		field.Text("error_message").
			Optional().
			Nillable(),
		field.String("pod_id").
			Optional().
			Nillable().
			Comment("For multi-replica coordination"),
		field.Time("created_at").
			Default(time.Now).
			Comment("Reset on restart so re-queued runs join the tail"),
		field.Time("started_at").
			Optional().
			Nillable(),
		field.Time("ended_at").
			Optional().
			Nillable(),
		field.Time("last_heartbeat").
			Optional().
			Nillable().
			Comment("For stuck-run recovery"),
	}
}

// Indexes of the SearchRun.
func (SearchRun) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
		index.Fields("user_id"),
		index.Fields("status", "priority", "created_at"),
		index.Fields("status", "last_heartbeat"),
	}
}
