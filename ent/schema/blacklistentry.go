package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// BlacklistEntry holds pages excluded from search results, per tenant.
type BlacklistEntry struct {
	ent.Schema
}

// Fields of the BlacklistEntry.
func (BlacklistEntry) Fields() []ent.Field {
	return []ent.Field{
		field.String("user_id"),
		field.String("page_id"),
		field.String("page_name").
			Optional(),
		field.String("reason").
			Optional(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the BlacklistEntry.
func (BlacklistEntry) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "page_id").
			Unique(),
	}
}
