// Package dimension loads the four reference-data tables into an in-memory
// cache for the lifetime of one pipeline run.
//
// Dimension rows are seeded out of band and read-only here. The cache is an
// explicit object passed by reference into the resolver; it is rebuilt
// wholesale after a reconnect and never patched partially, so a lookup can
// never observe a half-loaded state.
package dimension

import (
	"context"
	"fmt"
)

// Province is one dim_provinces row.
type Province struct {
	ID   int
	Name string
}

// Commodity is one dim_commodities row, keyed by its category code
// (e.g. "cat_1").
type Commodity struct {
	ID   int
	Code string
}

// Subcategory is one dim_subcategories row joined to its owning commodity's
// category code. Subcategory names are unique per commodity, not globally.
type Subcategory struct {
	ID            int
	CommodityCode string
	Name          string
}

// MarketType is one dim_market_types row, keyed by the upstream numeric
// market channel code (1=traditional, 2=modern, 3=wholesale, 4=producer).
type MarketType struct {
	ID   int
	Code int
}

// Reader performs the four bulk dimension reads, one SELECT each.
type Reader interface {
	Provinces(ctx context.Context) ([]Province, error)
	Commodities(ctx context.Context) ([]Commodity, error)
	Subcategories(ctx context.Context) ([]Subcategory, error)
	MarketTypes(ctx context.Context) ([]MarketType, error)
}

type subcategoryKey struct {
	commodityCode string
	name          string
}

// Cache holds the name/code → id mappings for one run. Lookups are pure:
// they return the id and a found flag, never a fallback value.
type Cache struct {
	provinces     map[string]int
	commodities   map[string]int
	subcategories map[subcategoryKey]int
	marketTypes   map[int]int
}

// Load bulk-reads all four dimensions and builds a fresh cache.
func Load(ctx context.Context, r Reader) (*Cache, error) {
	c := &Cache{}
	if err := c.Reload(ctx, r); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload rebuilds every mapping from scratch and swaps them in together.
// Callers registered as reconnect hooks use this to guarantee no stale
// partial cache survives a reconnect.
func (c *Cache) Reload(ctx context.Context, r Reader) error {
	provinces, err := r.Provinces(ctx)
	if err != nil {
		return fmt.Errorf("load provinces: %w", err)
	}
	commodities, err := r.Commodities(ctx)
	if err != nil {
		return fmt.Errorf("load commodities: %w", err)
	}
	subcategories, err := r.Subcategories(ctx)
	if err != nil {
		return fmt.Errorf("load subcategories: %w", err)
	}
	marketTypes, err := r.MarketTypes(ctx)
	if err != nil {
		return fmt.Errorf("load market types: %w", err)
	}

	pm := make(map[string]int, len(provinces))
	for _, p := range provinces {
		pm[normalizeName(p.Name)] = p.ID
	}
	cm := make(map[string]int, len(commodities))
	for _, co := range commodities {
		cm[co.Code] = co.ID
	}
	sm := make(map[subcategoryKey]int, len(subcategories))
	for _, s := range subcategories {
		sm[subcategoryKey{s.CommodityCode, normalizeName(s.Name)}] = s.ID
	}
	mm := make(map[int]int, len(marketTypes))
	for _, m := range marketTypes {
		mm[m.Code] = m.ID
	}

	c.provinces = pm
	c.commodities = cm
	c.subcategories = sm
	c.marketTypes = mm
	return nil
}

// ProvinceID looks up a province by display name. The name is normalized
// the same way load-time names are, so accent and spacing variants match.
func (c *Cache) ProvinceID(name string) (int, bool) {
	id, ok := c.provinces[normalizeName(name)]
	return id, ok
}

// CommodityID looks up a commodity by category code.
func (c *Cache) CommodityID(code string) (int, bool) {
	id, ok := c.commodities[code]
	return id, ok
}

// SubcategoryID looks up a quality variant by owning commodity code and
// display name.
func (c *Cache) SubcategoryID(commodityCode, name string) (int, bool) {
	id, ok := c.subcategories[subcategoryKey{commodityCode, normalizeName(name)}]
	return id, ok
}

// MarketTypeID looks up a market channel by its upstream numeric code.
func (c *Cache) MarketTypeID(code int) (int, bool) {
	id, ok := c.marketTypes[code]
	return id, ok
}

// Sizes reports the row count per dimension, for startup logging.
func (c *Cache) Sizes() (provinces, commodities, subcategories, marketTypes int) {
	return len(c.provinces), len(c.commodities), len(c.subcategories), len(c.marketTypes)
}
