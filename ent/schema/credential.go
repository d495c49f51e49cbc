package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Credential holds the schema definition for the Credential entity — an
// ad-archive API token with optional proxy and rate-limit state. The pool
// belongs to the installation, not to a tenant.
type Credential struct {
	ent.Schema
}

// Fields of the Credential.
func (Credential) Fields() []ent.Field {
	return []ent.Field{
		field.String("name").
			Optional(),
		field.Text("token").
			NotEmpty().
			Sensitive(),
		field.String("proxy_url").
			Optional().
			Nillable(),
		field.Bool("active").
			Default(true),
		field.Int64("total_calls").
			Default(0),
		field.Int64("total_errors").
			Default(0),
		field.Int64("rate_limit_hits").
			Default(0),
		field.Time("last_used_at").
			Optional().
			Nillable(),
		field.Time("last_error_at").
			Optional().
			Nillable(),
		field.Text("last_error_message").
			Optional().
			Nillable(),
		field.Time("rate_limited_until").
			Optional().
			Nillable().
			Comment("Ineligible for dispatch until this instant"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Indexes of the Credential.
func (Credential) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("active"),
	}
}
