// Package fact defines the normalized price record written to the fact store.
//
// A Price references every dimension by surrogate id; only the subcategory
// reference is optional (a nil SubcategoryID marks a category-level
// aggregate). The combination returned by appendKey is the natural key the
// database enforces as unique, and the only re-run safety net the pipeline
// relies on.
package fact

import (
	"strconv"
	"time"

	"github.com/zeebo/xxh3"
)

// Report granularities stored in the report_type column.
const (
	ReportDaily   = "daily"
	ReportMonthly = "monthly"
)

// DefaultSource is the provenance tag applied when a record carries none.
const DefaultSource = "PIHPS/BI"

// Price is one fully-resolved price observation.
type Price struct {
	ProvinceID    int
	CommodityID   int
	SubcategoryID *int // nil for category-level aggregates
	MarketTypeID  int
	Date          time.Time
	Price         float64
	ReportType    string
	ScrapedAt     time.Time
	Source        string
}

// KeyHash returns a 64-bit hash of the natural key
// (province, commodity, subcategory, market type, date, report type).
// Used for cheap in-memory de-duplication before a batch write; the
// database constraint remains the backstop.
func (p Price) KeyHash() uint64 {
	return xxh3.Hash(p.appendKey(make([]byte, 0, 64)))
}

func (p Price) appendKey(b []byte) []byte {
	b = strconv.AppendInt(b, int64(p.ProvinceID), 10)
	b = append(b, '|')
	b = strconv.AppendInt(b, int64(p.CommodityID), 10)
	b = append(b, '|')
	if p.SubcategoryID != nil {
		b = strconv.AppendInt(b, int64(*p.SubcategoryID), 10)
	}
	b = append(b, '|')
	b = strconv.AppendInt(b, int64(p.MarketTypeID), 10)
	b = append(b, '|')
	b = p.Date.AppendFormat(b, "2006-01-02")
	b = append(b, '|')
	b = append(b, p.ReportType...)
	return b
}
