package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"foodwatch/internal/fact"
	"foodwatch/internal/pricetable"
)

// LegacyReader pages the old denormalized price table in stable-ordered
// windows for the migration driver. The legacy shape has no subcategory
// column, so every row it yields is a category-level observation.
type LegacyReader struct {
	sess  *Session
	table string // e.g. "harga_pangan"
}

// NewLegacyReader constructs a reader over the given legacy table.
func NewLegacyReader(sess *Session, table string) *LegacyReader {
	return &LegacyReader{sess: sess, table: table}
}

// Count returns the total legacy row count, read once before paging.
func (r *LegacyReader) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.sess.Pool().QueryRow(ctx, "SELECT COUNT(*) FROM "+pgFQN(r.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count legacy rows: %w", err)
	}
	return n, nil
}

// ReadChunk fetches one window ordered by the legacy surrogate id.
// Missing metadata falls back to the defaults the legacy writers assumed:
// daily granularity, current timestamp, the standard provenance tag.
func (r *LegacyReader) ReadChunk(ctx context.Context, offset, limit int64) ([]pricetable.Observation, error) {
	query := fmt.Sprintf(`
		SELECT
			provinsi,
			tanggal,
			harga,
			commodity_category,
			market_type_id,
			COALESCE(report_type, 'daily'),
			COALESCE(scraped_at, now()),
			COALESCE(source, '%s')
		FROM %s
		ORDER BY id
		LIMIT $1 OFFSET $2`, fact.DefaultSource, pgFQN(r.table))

	rows, err := r.sess.Pool().Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("read legacy chunk at offset %d: %w", offset, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (pricetable.Observation, error) {
		var obs pricetable.Observation
		err := row.Scan(
			&obs.Province, &obs.Date, &obs.Price, &obs.CommodityCode,
			&obs.MarketTypeCode, &obs.ReportType, &obs.ScrapedAt, &obs.Source,
		)
		return obs, err
	})
}
