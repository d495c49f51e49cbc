package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Ad holds the schema definition for the Ad entity — one advertisement
// pulled from the archive, recorded for pages at or above the detail threshold.
// Rows are immutable once saved except for snapshot fields.
type Ad struct {
	ent.Schema
}

// Fields of the Ad.
func (Ad) Fields() []ent.Field {
	return []ent.Field{
		field.String("user_id"),
		field.String("ad_id"),
		field.String("page_id"),
		field.String("page_name").
			Optional(),
		field.Time("creation_date").
			Optional().
			Nillable(),
		field.Int64("reach").
			Default(0),
		field.Int64("reach_lower").
			Optional(),
		field.Int64("reach_upper").
			Optional(),
		field.JSON("creative_bodies", []string{}).
			Optional(),
		field.JSON("creative_link_titles", []string{}).
			Optional(),
		field.JSON("creative_link_captions", []string{}).
			Optional(),
		field.String("snapshot_url").
			Optional(),
		field.String("currency").
			Optional(),
		field.JSON("languages", []string{}).
			Optional(),
		field.JSON("platforms", []string{}).
			Optional(),
		field.String("targeting").
			Optional().
			Comment("Free-form targeting summary from the archive"),
		field.String("keyword").
			Optional().
			Comment("The keyword that surfaced this ad, when known"),
		field.Time("scanned_at").
			Default(time.Now),
	}
}

// Indexes of the Ad.
func (Ad) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "ad_id").
			Unique(),
		index.Fields("user_id", "page_id"),
		index.Fields("scanned_at"),
	}
}
