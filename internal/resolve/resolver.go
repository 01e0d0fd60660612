// Package resolve joins flat observations against the dimension cache,
// producing either a fully-keyed fact record or a classified skip.
//
// Missing reference data is an expected, countable condition here, never an
// error: bad rows are tallied by reason and reported in the end-of-run
// summary while the run continues.
package resolve

import (
	"foodwatch/internal/dimension"
	"foodwatch/internal/fact"
	"foodwatch/internal/pricetable"
)

// SkipReason classifies why an observation could not be resolved.
type SkipReason string

// The closed set of skip reasons. SkipNone means the record resolved.
const (
	SkipNone                SkipReason = ""
	SkipNoProvince          SkipReason = "no_province"
	SkipNoCommodity         SkipReason = "no_commodity"
	SkipNoSubcategoryName   SkipReason = "no_subcategory_name"
	SkipUnmappedSubcategory SkipReason = "unmapped_subcategory"
	SkipNoMarketType        SkipReason = "no_market_type"
	SkipNoPrice             SkipReason = "no_price"
)

// Reasons lists every skip reason in reporting order.
var Reasons = []SkipReason{
	SkipNoProvince,
	SkipNoCommodity,
	SkipNoSubcategoryName,
	SkipUnmappedSubcategory,
	SkipNoMarketType,
	SkipNoPrice,
}

// SkipCounts tallies skips per reason across a run.
type SkipCounts map[SkipReason]int

// Add merges other into s.
func (s SkipCounts) Add(other SkipCounts) {
	for reason, n := range other {
		s[reason] += n
	}
}

// Total returns the sum over all reasons.
func (s SkipCounts) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// Resolve maps one observation to a fact record using the cache. It checks
// province, commodity, subcategory (subcommodity series only; category
// series always resolve to no subcategory), market type, then price, and
// short-circuits with the first failing reason.
func Resolve(obs pricetable.Observation, cache *dimension.Cache) (fact.Price, SkipReason) {
	provinceID, ok := cache.ProvinceID(obs.Province)
	if !ok {
		return fact.Price{}, SkipNoProvince
	}

	commodityID, ok := cache.CommodityID(obs.CommodityCode)
	if !ok {
		return fact.Price{}, SkipNoCommodity
	}

	var subcategoryID *int
	if obs.Subcommodity {
		if obs.SubcategoryName == "" {
			return fact.Price{}, SkipNoSubcategoryName
		}
		id, ok := cache.SubcategoryID(obs.CommodityCode, obs.SubcategoryName)
		if !ok {
			return fact.Price{}, SkipUnmappedSubcategory
		}
		subcategoryID = &id
	}

	marketTypeID, ok := cache.MarketTypeID(obs.MarketTypeCode)
	if !ok {
		return fact.Price{}, SkipNoMarketType
	}

	if obs.Price == nil {
		return fact.Price{}, SkipNoPrice
	}

	reportType := obs.ReportType
	if reportType == "" {
		reportType = fact.ReportDaily
	}
	source := obs.Source
	if source == "" {
		source = fact.DefaultSource
	}

	return fact.Price{
		ProvinceID:    provinceID,
		CommodityID:   commodityID,
		SubcategoryID: subcategoryID,
		MarketTypeID:  marketTypeID,
		Date:          obs.Date,
		Price:         *obs.Price,
		ReportType:    reportType,
		ScrapedAt:     obs.ScrapedAt,
		Source:        source,
	}, SkipNone
}

// Batch resolves a whole slice, returning the resolved records and the
// skip tally for the batch.
func Batch(observations []pricetable.Observation, cache *dimension.Cache) ([]fact.Price, SkipCounts) {
	resolved := make([]fact.Price, 0, len(observations))
	skips := SkipCounts{}
	for _, obs := range observations {
		rec, reason := Resolve(obs, cache)
		if reason != SkipNone {
			skips[reason]++
			continue
		}
		resolved = append(resolved, rec)
	}
	return resolved, skips
}
