package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql"
)

// CreateSearchIndexes creates PostgreSQL indexes not expressible in the Ent
// schema: GIN indexes backing the page and winning-ad browse screens.
func CreateSearchIndexes(ctx context.Context, driver *sql.Driver) error {
	db := driver.DB()

	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_pages_page_name_gin
		ON pages USING gin(to_tsvector('simple', COALESCE(page_name, '')))`)
	if err != nil {
		return fmt.Errorf("failed to create page_name GIN index: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_winning_ads_page_name_gin
		ON winning_ads USING gin(to_tsvector('simple', COALESCE(page_name, '')))`)
	if err != nil {
		return fmt.Errorf("failed to create winning_ads page_name GIN index: %w", err)
	}

	return nil
}
