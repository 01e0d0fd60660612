// Package pricetable converts the upstream wide price grid (one row per
// province, one column per observation date) into a flat sequence of
// observations.
//
// The grid arrives as JSON objects with three fixed keys ("no", "name",
// "level") plus one key per observed date. Date keys come in two shapes:
//
//	daily:   "20/11/2025"  (DD/MM/YYYY)
//	monthly: "Aug 2025"    (three-letter month + year)
//
// Everything else about a row is treated as an observation column. Values
// are price strings in Indonesian digit grouping ("14,500"); "-" or an
// empty string means no observation was reported.
package pricetable

import (
	"encoding/json"
	"strconv"
)

// Reserved grid keys that never denote an observation date.
const (
	keyNo    = "no"
	keyName  = "name"
	keyLevel = "level"
)

// Response is one decoded grid response for a single request item.
type Response struct {
	Data []Row `json:"data"`
}

// Row is one wide grid row: a province plus its dated observation columns.
type Row struct {
	Name  string
	Level int
	No    string

	// Columns maps a raw date key to its raw price string.
	Columns map[string]string
}

// UnmarshalJSON splits the fixed keys from the dated observation columns.
// Numeric JSON values are kept as their string form so the price cleaner
// sees a uniform input.
func (r *Row) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Columns = make(map[string]string, len(raw))
	for k, v := range raw {
		switch k {
		case keyName:
			r.Name, _ = v.(string)
		case keyLevel:
			r.Level = anyToInt(v)
		case keyNo:
			r.No = anyToString(v)
		default:
			r.Columns[k] = anyToString(v)
		}
	}
	return nil
}

func anyToInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	}
	return 0
}

func anyToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	b, _ := json.Marshal(v)
	return string(b)
}
