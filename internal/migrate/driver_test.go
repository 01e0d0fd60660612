package migrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"foodwatch/internal/dimension"
	"foodwatch/internal/fact"
	"foodwatch/internal/pricetable"
)

type fakeDims struct{}

func (fakeDims) Provinces(context.Context) ([]dimension.Province, error) {
	return []dimension.Province{{ID: 1, Name: "Aceh"}}, nil
}
func (fakeDims) Commodities(context.Context) ([]dimension.Commodity, error) {
	return []dimension.Commodity{{ID: 1, Code: "cat_1"}}, nil
}
func (fakeDims) Subcategories(context.Context) ([]dimension.Subcategory, error) {
	return nil, nil
}
func (fakeDims) MarketTypes(context.Context) ([]dimension.MarketType, error) {
	return []dimension.MarketType{{ID: 1, Code: 1}}, nil
}

func testCache(t *testing.T) *dimension.Cache {
	t.Helper()
	cache, err := dimension.Load(context.Background(), fakeDims{})
	if err != nil {
		t.Fatalf("load cache: %v", err)
	}
	return cache
}

// legacyRows builds n observations with distinct natural keys; every row
// whose index is in badEvery's cycle carries an unknown province.
func legacyRows(n int, badEvery int) []pricetable.Observation {
	price := 14500.0
	out := make([]pricetable.Observation, n)
	for i := range out {
		province := "Aceh"
		if badEvery > 0 && i%badEvery == 0 {
			province = "Atlantis"
		}
		out[i] = pricetable.Observation{
			Province:       province,
			Date:           time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Price:          &price,
			CommodityCode:  "cat_1",
			MarketTypeCode: 1,
			ReportType:     "daily",
		}
	}
	return out
}

// fakeLegacy serves windows of a fixed slice. count can overstate the real
// data to exercise the empty-read stop, and failAt injects a read error.
type fakeLegacy struct {
	rows   []pricetable.Observation
	count  int64
	reads  int
	failAt int // 1-based read index that errors; 0 = never
}

func (f *fakeLegacy) Count(context.Context) (int64, error) {
	if f.count > 0 {
		return f.count, nil
	}
	return int64(len(f.rows)), nil
}

func (f *fakeLegacy) ReadChunk(_ context.Context, offset, limit int64) ([]pricetable.Observation, error) {
	f.reads++
	if f.failAt > 0 && f.reads == f.failAt {
		return nil, errors.New("read timeout")
	}
	if offset >= int64(len(f.rows)) {
		return nil, nil
	}
	end := offset + limit
	if end > int64(len(f.rows)) {
		end = int64(len(f.rows))
	}
	return f.rows[offset:end], nil
}

type fakeCounter struct{ n int64 }

func (f fakeCounter) Count(context.Context) (int64, error) { return f.n, nil }

func countingUpsert(total *int64) func(context.Context, []fact.Price) (int64, error) {
	return func(_ context.Context, batch []fact.Price) (int64, error) {
		*total += int64(len(batch))
		return int64(len(batch)), nil
	}
}

// TestRun_WindowAccounting drives 10,000 legacy rows in windows of 1,000
// with 1 in 20 rows unresolvable: exactly 10 reads, 9,500 rows migrated,
// 500 skips, and a clean verification.
func TestRun_WindowAccounting(t *testing.T) {
	t.Parallel()

	reader := &fakeLegacy{rows: legacyRows(10_000, 20)}
	var written int64
	d := New(reader, testCache(t), countingUpsert(&written), fakeCounter{n: 9_500}, Config{
		ChunkSize: 1_000,
		BatchSize: 10_000,
	})

	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reader.reads != 10 || res.ChunksRead != 10 {
		t.Errorf("chunk reads: reader=%d result=%d, want 10", reader.reads, res.ChunksRead)
	}
	if res.RowsRead != 10_000 {
		t.Errorf("rows read: %d", res.RowsRead)
	}
	if res.Migrated != 9_500 || written != 9_500 || res.Inserted != 9_500 {
		t.Errorf("migrated=%d written=%d inserted=%d, want 9500", res.Migrated, written, res.Inserted)
	}
	if res.Skips.Total() != 500 {
		t.Errorf("skips: %+v", res.Skips)
	}
	if res.Shortfall {
		t.Error("unexpected shortfall")
	}
	if res.DestinationCount != 9_500 {
		t.Errorf("destination count: %d", res.DestinationCount)
	}
}

// TestRun_DryRun verifies a dry run reads and resolves everything but never
// writes or verifies.
func TestRun_DryRun(t *testing.T) {
	t.Parallel()

	reader := &fakeLegacy{rows: legacyRows(2_000, 0)}
	var written int64
	d := New(reader, testCache(t), countingUpsert(&written), fakeCounter{n: 0}, Config{
		ChunkSize: 1_000,
		BatchSize: 10_000,
		DryRun:    true,
	})

	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if written != 0 || res.Inserted != 0 {
		t.Errorf("dry run wrote %d rows", written)
	}
	if res.Migrated != 2_000 {
		t.Errorf("migrated: %d", res.Migrated)
	}
	if res.DestinationCount != 0 || res.Shortfall {
		t.Errorf("dry run must skip verification: %+v", res)
	}
}

// TestRun_ShortfallWarning verifies the post-run count check flags a
// destination more than 5% short of the migrated total. The shortfall is a
// reported condition, never an error: the run still completes.
func TestRun_ShortfallWarning(t *testing.T) {
	t.Parallel()

	reader := &fakeLegacy{rows: legacyRows(1_000, 0)}
	var written int64
	d := New(reader, testCache(t), countingUpsert(&written), fakeCounter{n: 700}, Config{
		ChunkSize: 1_000,
		BatchSize: 10_000,
	})

	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Shortfall {
		t.Errorf("want shortfall at 700/1000, got %+v", res)
	}
}

// TestRun_EmptyReadStops verifies a source that shrank below its precount
// terminates on the first empty window instead of spinning.
func TestRun_EmptyReadStops(t *testing.T) {
	t.Parallel()

	reader := &fakeLegacy{rows: legacyRows(3_000, 0), count: 10_000}
	var written int64
	d := New(reader, testCache(t), countingUpsert(&written), nil, Config{
		ChunkSize: 1_000,
		BatchSize: 10_000,
	})

	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reader.reads != 4 {
		t.Errorf("reads: %d, want 4 (3 full + 1 empty)", reader.reads)
	}
	if res.Migrated != 3_000 {
		t.Errorf("migrated: %d", res.Migrated)
	}
}

// TestRun_AllSkippedChunkAdvances verifies a window with zero resolvable
// rows still advances to the next window.
func TestRun_AllSkippedChunkAdvances(t *testing.T) {
	t.Parallel()

	// Every row in the first window is unresolvable.
	rows := legacyRows(2_000, 0)
	for i := 0; i < 1_000; i++ {
		rows[i].Province = "Atlantis"
	}
	reader := &fakeLegacy{rows: rows}
	var written int64
	d := New(reader, testCache(t), countingUpsert(&written), fakeCounter{n: 1_000}, Config{
		ChunkSize: 1_000,
		BatchSize: 10_000,
	})

	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ChunksRead != 2 {
		t.Errorf("chunks read: %d, want 2", res.ChunksRead)
	}
	if res.Migrated != 1_000 || res.Skips.Total() != 1_000 {
		t.Errorf("migrated=%d skips=%d", res.Migrated, res.Skips.Total())
	}
}

// TestRun_ReadErrorPropagates verifies a failed window surfaces with its
// offset and keeps the partial result.
func TestRun_ReadErrorPropagates(t *testing.T) {
	t.Parallel()

	reader := &fakeLegacy{rows: legacyRows(3_000, 0), failAt: 2}
	var written int64
	d := New(reader, testCache(t), countingUpsert(&written), nil, Config{
		ChunkSize: 1_000,
		BatchSize: 10_000,
	})

	res, err := d.Run(context.Background())
	if err == nil {
		t.Fatal("want error")
	}
	if res.ChunksRead != 1 || res.Migrated != 1_000 {
		t.Errorf("partial result: %+v", res)
	}
}
