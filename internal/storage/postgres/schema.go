package postgres

import (
	"context"
	"fmt"
)

// NaturalKeyConstraint is the named unique constraint the upsert conflict
// target refers to. Dimension tables are seeded out of band; only the fact
// table is bootstrapped here, and only when auto-create is enabled in the
// run config.
const NaturalKeyConstraint = "uq_fact_prices_natural_key"

const factTableDDL = `
CREATE TABLE IF NOT EXISTS %s (
	price_id        BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	province_id     INTEGER NOT NULL REFERENCES dim_provinces (province_id),
	commodity_id    INTEGER NOT NULL REFERENCES dim_commodities (commodity_id),
	subcategory_id  INTEGER REFERENCES dim_subcategories (subcategory_id),
	market_type_id  INTEGER NOT NULL REFERENCES dim_market_types (market_type_id),
	tanggal         DATE NOT NULL,
	harga           DOUBLE PRECISION NOT NULL CHECK (harga >= 0),
	report_type     TEXT NOT NULL DEFAULT 'daily',
	scraped_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	source          TEXT NOT NULL DEFAULT 'PIHPS/BI',
	CONSTRAINT %s UNIQUE NULLS NOT DISTINCT
		(province_id, commodity_id, subcategory_id, market_type_id, tanggal, report_type)
)`

// EnsureFactTable creates the fact table and its natural-key constraint if
// they do not exist. NULLS NOT DISTINCT makes two category-level rows
// (subcategory_id IS NULL) collide, which the whole idempotence story
// depends on.
func EnsureFactTable(ctx context.Context, sess *Session, table string) error {
	stmt := fmt.Sprintf(factTableDDL, pgFQN(table), pgIdent(NaturalKeyConstraint))
	if _, err := sess.Pool().Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure fact table: %w", err)
	}
	return nil
}
