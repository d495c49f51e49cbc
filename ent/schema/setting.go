package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Setting is a per-tenant key/value store backing size-bucket thresholds,
// filter defaults and winning-criteria overrides.
type Setting struct {
	ent.Schema
}

// Fields of the Setting.
func (Setting) Fields() []ent.Field {
	return []ent.Field{
		field.String("user_id"),
		field.String("key"),
		field.Text("value"),
		field.String("description").
			Optional(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Indexes of the Setting.
func (Setting) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "key").
			Unique(),
	}
}
