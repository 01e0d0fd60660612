package pricetable

import (
	"log"
	"strconv"
	"strings"
	"time"
)

// aggregateSentinel marks the national all-provinces roll-up row, which is
// excluded from emission together with any row at hierarchy level 0.
const aggregateSentinel = "Semua"

// Series tags every observation parsed from one grid response with the
// request context the grid itself does not carry.
type Series struct {
	// CommodityCode is the owning category code, e.g. "cat_1".
	CommodityCode string
	// SubcategoryName is the quality-variant display name for
	// subcommodity series; empty for category-level series.
	SubcategoryName string
	// Subcommodity is true when the series is a quality variant rather
	// than a category aggregate.
	Subcommodity bool
	// MarketTypeCode is the upstream market channel code (1-4).
	MarketTypeCode int
	// Source is the provenance tag stored with each fact row.
	Source string
}

// Observation is one flat (province, date, price) data point.
type Observation struct {
	Province        string
	Date            time.Time
	Price           *float64 // nil when the source reported no price
	CommodityCode   string
	SubcategoryName string
	Subcommodity    bool
	MarketTypeCode  int
	ReportType      string // fact.ReportDaily or fact.ReportMonthly
	ScrapedAt       time.Time
	Source          string
}

// ParseStats counts what one Parse call saw. Anomalies are recoverable by
// definition: the offending column or value is dropped and the run goes on.
type ParseStats struct {
	Rows           int
	AggregateRows  int
	Observations   int
	BadDateKeys    int
	EmptyPrices    int
	BadPriceTokens int
}

var monthAbbrev = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// Parse flattens one grid response into observations for the given series.
// A nil or empty response yields an empty slice. Malformed date keys and
// unparsable price tokens drop only the affected column; they are counted
// in the returned stats and logged, never returned as errors.
func Parse(resp *Response, s Series, scrapedAt time.Time) ([]Observation, ParseStats) {
	var stats ParseStats
	if resp == nil || len(resp.Data) == 0 {
		return nil, stats
	}

	out := make([]Observation, 0, len(resp.Data)*7)
	for _, row := range resp.Data {
		stats.Rows++
		if row.Level == 0 || strings.Contains(row.Name, aggregateSentinel) {
			stats.AggregateRows++
			continue
		}

		for key, value := range row.Columns {
			date, report, ok := classifyDateKey(key)
			if !ok {
				// Non-date columns are ignored; keys that look dated
				// but fail to parse count as anomalies inside
				// classifyDateKey via the sentinel below.
				if looksDated(key) {
					stats.BadDateKeys++
					log.Printf("pricetable: dropping column with malformed date key %q (province=%s)", key, row.Name)
				}
				continue
			}

			price, pok := cleanPrice(value)
			if !pok {
				if value == "" || value == "-" {
					stats.EmptyPrices++
				} else {
					stats.BadPriceTokens++
					log.Printf("pricetable: dropping non-numeric price %q (province=%s key=%s)", value, row.Name, key)
				}
				continue
			}

			p := price
			out = append(out, Observation{
				Province:        row.Name,
				Date:            date,
				Price:           &p,
				CommodityCode:   s.CommodityCode,
				SubcategoryName: s.SubcategoryName,
				Subcommodity:    s.Subcommodity,
				MarketTypeCode:  s.MarketTypeCode,
				ReportType:      report,
				ScrapedAt:       scrapedAt,
				Source:          s.Source,
			})
			stats.Observations++
		}
	}
	return out, stats
}

// classifyDateKey recognizes the two upstream date-key shapes and returns
// the normalized date plus the report granularity. Daily keys keep their
// exact date; monthly keys anchor to the first day of the month. An
// unrecognized month abbreviation is a malformed key, not January.
func classifyDateKey(key string) (time.Time, string, bool) {
	if strings.Contains(key, "/") {
		d, ok := parseDailyKey(key)
		return d, "daily", ok
	}
	d, ok := parseMonthlyKey(key)
	return d, "monthly", ok
}

// looksDated reports whether a key that failed classification was at least
// shaped like a date column, so the drop is worth counting and logging.
func looksDated(key string) bool {
	if strings.Contains(key, "/") {
		return true
	}
	parts := strings.Fields(key)
	if len(parts) != 2 {
		return false
	}
	_, err := strconv.Atoi(parts[1])
	return err == nil && len(parts[1]) == 4
}

func parseDailyKey(key string) (time.Time, bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1900 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (e.g. 31/04 becomes 01/05); reject it.
	if d.Day() != day || d.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return d, true
}

func parseMonthlyKey(key string) (time.Time, bool) {
	parts := strings.Fields(key)
	if len(parts) != 2 {
		return time.Time{}, false
	}
	month, ok := monthAbbrev[parts[0]]
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || year < 1900 {
		return time.Time{}, false
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true
}

// cleanPrice strips digit-group commas and parses the remainder. The
// upstream sentinel for "no observation" is "-" or an empty cell.
func cleanPrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}
