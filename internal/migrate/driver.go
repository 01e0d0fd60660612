// Package migrate moves the legacy denormalized price table into the
// normalized fact store in paged windows, so the table never has to fit in
// memory and an interrupted run can simply be restarted: committed chunks
// stay committed and re-running collides harmlessly on the natural key.
package migrate

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"foodwatch/internal/dimension"
	"foodwatch/internal/pricetable"
	"foodwatch/internal/resolve"
	"foodwatch/internal/storage"
)

// LegacyReader pages the source table in stable-ordered windows.
type LegacyReader interface {
	Count(ctx context.Context) (int64, error)
	ReadChunk(ctx context.Context, offset, limit int64) ([]pricetable.Observation, error)
}

// DestinationCounter re-counts the fact table for post-run verification.
type DestinationCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Config controls chunking, batching, and pacing.
type Config struct {
	ChunkSize int64 // rows per legacy read window
	BatchSize int   // rows per fact-store write batch
	// PauseEvery inserts a pacing sleep after this many chunks; 0
	// disables pacing.
	PauseEvery int
	Pause      time.Duration
	// DryRun resolves and counts but performs no writes.
	DryRun bool
}

// DefaultConfig is tuned for bulk migration: large read windows, large
// write batches, a breather every ten chunks.
func DefaultConfig() Config {
	return Config{
		ChunkSize:  100_000,
		BatchSize:  storage.MaxBatchSize,
		PauseEvery: 10,
		Pause:      5 * time.Second,
	}
}

// Result is the structured end-of-run summary. Partial success is the
// normal outcome: skips and a count shortfall are reported, not raised.
type Result struct {
	TotalRows  int64
	ChunksRead int
	RowsRead   int64
	Migrated   int64 // rows that resolved (and were submitted unless DryRun)
	Inserted   int64 // rows the destination reported as newly inserted
	Skips      resolve.SkipCounts
	// DestinationCount and Shortfall carry the post-run verification;
	// both stay zero-valued for dry runs.
	DestinationCount int64
	Shortfall        bool
	Elapsed          time.Duration
}

// Driver wires the legacy reader, the dimension cache, and the fact-store
// write path together. Writes always run in ignore mode: the natural-key
// constraint absorbs overlap between chunks and between runs.
type Driver struct {
	reader  LegacyReader
	cache   *dimension.Cache
	upsert  storage.UpsertFn
	counter DestinationCounter
	cfg     Config

	printer *message.Printer
}

// New constructs a driver. counter may be nil for dry runs.
func New(reader LegacyReader, cache *dimension.Cache, upsert storage.UpsertFn, counter DestinationCounter, cfg Config) *Driver {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = storage.MaxBatchSize
	}
	return &Driver{
		reader:  reader,
		cache:   cache,
		upsert:  upsert,
		counter: counter,
		cfg:     cfg,
		printer: message.NewPrinter(language.English),
	}
}

// Run migrates every legacy row. The window count is fixed up front from
// the source row count; a chunk whose rows all fail to resolve still
// advances the offset, because it is the legacy table that has to be
// exhausted, not the data quality. An empty read terminates early as a
// safety net against a shrinking source.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{Skips: resolve.SkipCounts{}}

	total, err := d.reader.Count(ctx)
	if err != nil {
		return res, err
	}
	res.TotalRows = total

	log.Printf("migrate: %s legacy rows, chunk_size=%s, dry_run=%v",
		d.printer.Sprintf("%d", total), d.printer.Sprintf("%d", d.cfg.ChunkSize), d.cfg.DryRun)

	for offset := int64(0); offset < total; offset += d.cfg.ChunkSize {
		observations, err := d.reader.ReadChunk(ctx, offset, d.cfg.ChunkSize)
		if err != nil {
			res.Elapsed = time.Since(start)
			return res, fmt.Errorf("chunk at offset %d: %w", offset, err)
		}
		res.ChunksRead++
		if len(observations) == 0 {
			log.Printf("migrate: empty chunk at offset %d, stopping", offset)
			break
		}
		res.RowsRead += int64(len(observations))

		resolved, skips := resolve.Batch(observations, d.cache)
		res.Skips.Add(skips)
		res.Migrated += int64(len(resolved))
		if n := skips.Total(); n > 0 {
			log.Printf("migrate: chunk #%d skipped %d rows (missing lookups or null prices)", res.ChunksRead, n)
		}

		if !d.cfg.DryRun && len(resolved) > 0 {
			n, err := storage.UpsertBatches(ctx, resolved, d.cfg.BatchSize, d.upsert)
			res.Inserted += n
			if err != nil {
				res.Elapsed = time.Since(start)
				return res, fmt.Errorf("chunk #%d: %w", res.ChunksRead, err)
			}
		}

		log.Printf("migrate: chunk #%d done, progress %.1f%% (%s rows migrated)",
			res.ChunksRead,
			float64(offset+int64(len(observations)))/float64(total)*100,
			d.printer.Sprintf("%d", res.Migrated))

		if d.cfg.PauseEvery > 0 && res.ChunksRead%d.cfg.PauseEvery == 0 && offset+d.cfg.ChunkSize < total {
			log.Printf("migrate: pausing %s", d.cfg.Pause)
			if err := sleep(ctx, d.cfg.Pause); err != nil {
				res.Elapsed = time.Since(start)
				return res, err
			}
		}
	}

	res.Elapsed = time.Since(start)

	if !d.cfg.DryRun && d.counter != nil {
		count, err := d.counter.Count(ctx)
		if err != nil {
			return res, fmt.Errorf("verify destination count: %w", err)
		}
		res.DestinationCount = count
		// Up to 5% shortfall is expected from natural-key collisions
		// across chunks and prior runs.
		if float64(count) < float64(res.Migrated)*0.95 {
			res.Shortfall = true
			log.Printf("migrate: WARNING destination has %s rows, migrated %s; investigate before dropping the legacy table",
				d.printer.Sprintf("%d", count), d.printer.Sprintf("%d", res.Migrated))
		}
	}

	d.logSummary(res)
	return res, nil
}

func (d *Driver) logSummary(res *Result) {
	log.Printf("migrate: finished in %s: chunks=%d read=%s migrated=%s inserted=%s skipped=%d",
		res.Elapsed.Truncate(time.Millisecond),
		res.ChunksRead,
		d.printer.Sprintf("%d", res.RowsRead),
		d.printer.Sprintf("%d", res.Migrated),
		d.printer.Sprintf("%d", res.Inserted),
		res.Skips.Total())
	for _, reason := range resolve.Reasons {
		if n := res.Skips[reason]; n > 0 {
			log.Printf("migrate:   skip %s: %d", reason, n)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
