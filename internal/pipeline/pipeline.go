// Package pipeline runs the live transform-and-load loop: for every
// requested series it fetches one wide grid response, flattens it, resolves
// the rows against the dimension cache, and upserts the survivors in
// batches. One bad series never aborts the run; it is counted and the loop
// moves on.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"foodwatch/internal/catalog"
	"foodwatch/internal/dimension"
	"foodwatch/internal/fact"
	"foodwatch/internal/metrics"
	"foodwatch/internal/pricetable"
	"foodwatch/internal/resolve"
	"foodwatch/internal/storage"
	"foodwatch/internal/storage/postgres"
)

// Fetcher obtains one grid response for a series and market channel. The
// live implementation talks to the upstream portal; the replay
// implementation reads saved responses from disk.
type Fetcher interface {
	Fetch(ctx context.Context, item catalog.Item, marketType int) (*pricetable.Response, error)
}

// Writer persists one batch of resolved records. The conflict policy is
// bound before the runner sees it.
type Writer interface {
	Upsert(ctx context.Context, batch []fact.Price) (int64, error)
}

// Verifier probes and, when needed, restores the storage connection. A nil
// verifier disables the liveness probe and the dead-connection retry.
type Verifier interface {
	Verify(ctx context.Context) error
}

// Config controls which series the run covers and how it paces itself.
type Config struct {
	// Job names the run in logs and metrics, e.g. "ingest-daily".
	Job string
	// BatchSize is rows per upsert batch.
	BatchSize int
	// MarketTypes selects the market channels to request, in order.
	MarketTypes []int
	// IncludeCategories and IncludeSubcommodities pick the catalog halves.
	// Both true is the normal full run.
	IncludeCategories     bool
	IncludeSubcommodities bool
	// Only restricts the sweep to these catalog items, overriding the
	// half-selection above. Empty means no restriction.
	Only []catalog.Item
	// RequestPause is slept between series requests. Zero disables pacing.
	RequestPause time.Duration
	// Source overrides the provenance tag; empty uses the default.
	Source string
}

// DefaultConfig covers the full catalog on all four market channels.
func DefaultConfig() Config {
	return Config{
		Job:                   "ingest",
		BatchSize:             storage.DefaultBatchSize,
		MarketTypes:           []int{1, 2, 3, 4},
		IncludeCategories:     true,
		IncludeSubcommodities: true,
		RequestPause:          2 * time.Second,
	}
}

// Summary is the end-of-run report. Skips and parse anomalies are normal
// operation; SeriesFailed > 0 means some fetches never produced data.
type Summary struct {
	Series         int
	SeriesFailed   int
	RowsParsed     int
	ParseAnomalies int
	EmptyPrices    int
	Resolved       int64
	Inserted       int64
	Skips          resolve.SkipCounts
	Elapsed        time.Duration
}

// Runner executes one pipeline run.
type Runner struct {
	fetcher  Fetcher
	cache    *dimension.Cache
	writer   Writer
	verifier Verifier
	cfg      Config
}

// New constructs a runner. verifier may be nil.
func New(fetcher Fetcher, cache *dimension.Cache, writer Writer, verifier Verifier, cfg Config) *Runner {
	if cfg.Job == "" {
		cfg.Job = "ingest"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = storage.DefaultBatchSize
	}
	if len(cfg.MarketTypes) == 0 {
		cfg.MarketTypes = []int{1, 2, 3, 4}
	}
	return &Runner{fetcher: fetcher, cache: cache, writer: writer, verifier: verifier, cfg: cfg}
}

// Run walks the selected catalog items across the selected market channels.
// Each (item, market) pair is one independent unit of work: a failed fetch
// or a failed batch is logged and counted, then the loop continues with the
// next pair.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	sum := &Summary{Skips: resolve.SkipCounts{}}

	items := r.items()
	log.Printf("%s: starting run: %d catalog items x %d market types", r.cfg.Job, len(items), len(r.cfg.MarketTypes))

	for _, item := range items {
		for _, marketType := range r.cfg.MarketTypes {
			if err := ctx.Err(); err != nil {
				sum.Elapsed = time.Since(start)
				return sum, err
			}
			sum.Series++
			if err := r.runSeries(ctx, item, marketType, sum); err != nil {
				sum.SeriesFailed++
				log.Printf("%s: series %s market=%d failed: %v", r.cfg.Job, item.Code, marketType, err)
			}
			if r.cfg.RequestPause > 0 {
				if err := sleep(ctx, r.cfg.RequestPause); err != nil {
					sum.Elapsed = time.Since(start)
					return sum, err
				}
			}
		}
	}

	sum.Elapsed = time.Since(start)
	r.logSummary(sum)
	return sum, nil
}

func (r *Runner) runSeries(ctx context.Context, item catalog.Item, marketType int, sum *Summary) error {
	if r.verifier != nil {
		if err := r.verifier.Verify(ctx); err != nil {
			return fmt.Errorf("verify connection: %w", err)
		}
	}

	fetchStart := time.Now()
	resp, err := r.fetcher.Fetch(ctx, item, marketType)
	metrics.RecordStep(r.cfg.Job, "fetch", err, time.Since(fetchStart))
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	series := pricetable.Series{
		CommodityCode:  item.CommodityCode,
		MarketTypeCode: marketType,
		Source:         r.cfg.Source,
	}
	if item.Subcommodity {
		series.SubcategoryName = item.Name
		series.Subcommodity = true
	}

	observations, stats := pricetable.Parse(resp, series, time.Now().UTC())
	sum.RowsParsed += stats.Observations
	sum.ParseAnomalies += stats.BadDateKeys + stats.BadPriceTokens
	sum.EmptyPrices += stats.EmptyPrices
	metrics.RecordRows(r.cfg.Job, "parsed", int64(stats.Observations))
	metrics.RecordRows(r.cfg.Job, "parse_anomalies", int64(stats.BadDateKeys+stats.BadPriceTokens))
	metrics.RecordRows(r.cfg.Job, "empty_prices", int64(stats.EmptyPrices))

	resolved, skips := resolve.Batch(observations, r.cache)
	sum.Skips.Add(skips)
	sum.Resolved += int64(len(resolved))
	metrics.RecordRows(r.cfg.Job, "resolved", int64(len(resolved)))
	for reason, n := range skips {
		metrics.RecordSkip(r.cfg.Job, string(reason), int64(n))
	}
	if len(resolved) == 0 {
		return nil
	}

	loadStart := time.Now()
	n, err := storage.UpsertBatches(ctx, resolved, r.cfg.BatchSize, r.upsertWithRecovery)
	metrics.RecordStep(r.cfg.Job, "load", err, time.Since(loadStart))
	sum.Inserted += n
	metrics.RecordRows(r.cfg.Job, "inserted", n)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return nil
}

// upsertWithRecovery retries one batch exactly once after a dead-connection
// failure, going through the verifier so the pool is rebuilt and the
// reconnect hooks (dimension cache reload) have run before the retry.
// Statement-level failures are never retried.
func (r *Runner) upsertWithRecovery(ctx context.Context, batch []fact.Price) (int64, error) {
	metrics.RecordBatches(r.cfg.Job, 1)
	n, err := r.writer.Upsert(ctx, batch)
	if err == nil || r.verifier == nil || !postgres.ConnectionLost(err) {
		return n, err
	}
	log.Printf("%s: batch hit dead connection (%v), recovering and retrying once", r.cfg.Job, err)
	if verr := r.verifier.Verify(ctx); verr != nil {
		return n, fmt.Errorf("recover connection: %w", verr)
	}
	return r.writer.Upsert(ctx, batch)
}

func (r *Runner) items() []catalog.Item {
	if len(r.cfg.Only) > 0 {
		return r.cfg.Only
	}
	var items []catalog.Item
	if r.cfg.IncludeCategories {
		items = append(items, catalog.Categories()...)
	}
	if r.cfg.IncludeSubcommodities {
		items = append(items, catalog.Subcommodities()...)
	}
	return items
}

func (r *Runner) logSummary(sum *Summary) {
	log.Printf("%s: finished in %s: series=%d failed=%d parsed=%d resolved=%d inserted=%d skipped=%d anomalies=%d empty=%d",
		r.cfg.Job, sum.Elapsed.Truncate(time.Millisecond),
		sum.Series, sum.SeriesFailed, sum.RowsParsed, sum.Resolved, sum.Inserted,
		sum.Skips.Total(), sum.ParseAnomalies, sum.EmptyPrices)
	for _, reason := range resolve.Reasons {
		if n := sum.Skips[reason]; n > 0 {
			log.Printf("%s:   skip %s: %d", r.cfg.Job, reason, n)
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
