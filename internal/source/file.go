// Package source provides replay fetchers that feed the pipeline from
// saved grid responses instead of the live portal.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"foodwatch/internal/catalog"
	"foodwatch/internal/pricetable"
)

// Replay reads grid responses captured to disk, one JSON file per
// (series, market channel) pair, named like "cat_1_m1.json".
type Replay struct{ dir string }

// NewReplay returns a fetcher bound to the given directory.
func NewReplay(dir string) *Replay { return &Replay{dir: dir} }

// Filename maps a series and market channel to its capture file name.
func Filename(code string, marketType int) string {
	return fmt.Sprintf("%s_m%d.json", code, marketType)
}

// Fetch decodes the capture for one series.
//
// Behavior:
//   - If the context is already canceled or its deadline exceeded at the
//     time of the call, Fetch returns the context error immediately without
//     touching the filesystem.
//   - A missing capture file is returned as-is, so callers can distinguish
//     "not captured" via errors.Is(err, os.ErrNotExist).
//   - Malformed JSON is wrapped with the file path for context.
func (r *Replay) Fetch(ctx context.Context, item catalog.Item, marketType int) (*pricetable.Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	path := filepath.Join(r.dir, Filename(item.Code, marketType))
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var resp pricetable.Response
	if err := json.NewDecoder(f).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &resp, nil
}

// Available lists the (series code, market type) pairs the directory can
// serve, in catalog order, so a run can be scoped to what was captured.
func (r *Replay) Available(marketTypes []int) ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read replay dir %s: %w", r.dir, err)
	}
	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			present[e.Name()] = true
		}
	}

	var out []string
	items := append(catalog.Categories(), catalog.Subcommodities()...)
	for _, item := range items {
		for _, mt := range marketTypes {
			if present[Filename(item.Code, mt)] {
				out = append(out, Filename(item.Code, mt))
			}
		}
	}
	return out, nil
}
