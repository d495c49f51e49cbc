package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Page holds the schema definition for the Page entity — one discovered
// advertiser. The external page id is unique within a tenant.
type Page struct {
	ent.Schema
}

// Fields of the Page.
func (Page) Fields() []ent.Field {
	return []ent.Field{
		field.String("user_id"),
		field.String("page_id").
			Comment("Opaque id assigned by the ad archive"),
		field.String("page_name").
			Optional(),
		field.String("website").
			Optional().
			Comment("Normalized: https scheme, no www., no trailing slash"),
		field.Enum("cms").
			Values("Shopify", "WooCommerce", "PrestaShop", "Magento", "BigCommerce", "Wix", "Squarespace", "Unknown").
			Default("Unknown"),
		field.String("theme").
			Optional(),
		field.Int("product_count").
			Default(0),
		field.Int("active_ad_count").
			Default(0),
		field.String("size_bucket").
			Default("inactif").
			Comment("Pure function of active_ad_count given tenant thresholds"),
		field.String("category").
			Optional(),
		field.String("subcategory").
			Optional(),
		field.Float("classification_confidence").
			Optional(),
		field.Time("classified_at").
			Optional().
			Nillable(),
		field.String("currency").
			Optional(),
		field.JSON("keywords", []string{}).
			Optional().
			Comment("Append-only union of keywords that ever discovered this page"),
		field.JSON("countries", []string{}).
			Optional().
			Comment("Append-only union of country codes"),
		field.String("site_title").
			Optional(),
		field.Text("site_description").
			Optional(),
		field.String("site_h1").
			Optional(),
		field.String("site_keywords").
			Optional().
			Comment("Raw site metadata kept for classification, avoids re-scraping"),
		field.Time("first_seen").
			Default(time.Now).
			Immutable(),
		field.Time("last_updated").
			Default(time.Now).
			UpdateDefault(time.Now),
		field.Time("last_scanned").
			Optional().
			Nillable(),
		field.Int("last_run_id").
			Optional().
			Nillable(),
		field.Bool("was_created_in_last_run").
			Default(true),
	}
}

// Indexes of the Page.
func (Page) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "page_id").
			Unique(),
		index.Fields("user_id", "cms"),
		index.Fields("user_id", "size_bucket"),
		index.Fields("user_id", "category"),
		index.Fields("last_run_id"),
	}
}
