package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"foodwatch/internal/dimension"
)

// DimensionReader performs the four bulk dimension reads used to build the
// per-run dimension cache. It implements dimension.Reader.
type DimensionReader struct {
	sess *Session
}

// NewDimensionReader constructs a reader bound to a session.
func NewDimensionReader(sess *Session) *DimensionReader {
	return &DimensionReader{sess: sess}
}

// Provinces loads (id, display name) for every province.
func (r *DimensionReader) Provinces(ctx context.Context) ([]dimension.Province, error) {
	rows, err := r.sess.Pool().Query(ctx, "SELECT province_id, province_name FROM dim_provinces")
	if err != nil {
		return nil, fmt.Errorf("select provinces: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (dimension.Province, error) {
		var p dimension.Province
		err := row.Scan(&p.ID, &p.Name)
		return p, err
	})
}

// Commodities loads (id, category code) for every commodity.
func (r *DimensionReader) Commodities(ctx context.Context) ([]dimension.Commodity, error) {
	rows, err := r.sess.Pool().Query(ctx, "SELECT commodity_id, category_code FROM dim_commodities")
	if err != nil {
		return nil, fmt.Errorf("select commodities: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (dimension.Commodity, error) {
		var c dimension.Commodity
		err := row.Scan(&c.ID, &c.Code)
		return c, err
	})
}

// Subcategories loads every quality variant joined to its owning
// commodity's category code, since variant names are only unique per
// commodity.
func (r *DimensionReader) Subcategories(ctx context.Context) ([]dimension.Subcategory, error) {
	rows, err := r.sess.Pool().Query(ctx, `
		SELECT s.subcategory_id, c.category_code, s.subcategory_name
		FROM dim_subcategories s
		JOIN dim_commodities c ON s.commodity_id = c.commodity_id`)
	if err != nil {
		return nil, fmt.Errorf("select subcategories: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (dimension.Subcategory, error) {
		var s dimension.Subcategory
		err := row.Scan(&s.ID, &s.CommodityCode, &s.Name)
		return s, err
	})
}

// MarketTypes loads (id, upstream numeric code) for every market channel.
func (r *DimensionReader) MarketTypes(ctx context.Context) ([]dimension.MarketType, error) {
	rows, err := r.sess.Pool().Query(ctx, "SELECT market_type_id, market_type_code FROM dim_market_types")
	if err != nil {
		return nil, fmt.Errorf("select market types: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (dimension.MarketType, error) {
		var m dimension.MarketType
		err := row.Scan(&m.ID, &m.Code)
		return m, err
	})
}
