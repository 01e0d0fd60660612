// Package storage contains storage-agnostic contracts and utilities.
// This file implements a generic, batched upsert driver: it slices resolved
// fact records into fixed-size batches and invokes a provided write function
// (UpsertFn) per batch, each batch committing independently.
//
// Backends implement UpsertFn with their most efficient primitive (the
// Postgres backend stages a COPY then upserts from the staging table).
//
// Logging: on every successful batch, a concise progress line is emitted
// with running totals and instantaneous rows/sec since the previous batch.
package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"foodwatch/internal/fact"
)

// DefaultBatchSize is the live-ingestion batch size. Bulk migration runs
// pass a much larger value, up to MaxBatchSize.
const (
	DefaultBatchSize = 500
	MaxBatchSize     = 100_000
)

// UpsertFn writes one batch under the backend's conflict handling and
// returns the number of rows actually inserted or updated (collisions the
// backend left untouched are excluded from the count).
type UpsertFn func(ctx context.Context, batch []fact.Price) (int64, error)

// BatchError reports a failed batch with its position and size so a caller
// can tell which slice of a run needs manual follow-up. Batches committed
// before the failure stay committed.
type BatchError struct {
	Batch int // 1-based batch index
	Size  int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch #%d (%d rows): %v", e.Batch, e.Size, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// UpsertBatches de-duplicates candidates on their natural key (keep-first),
// slices them into batches of batchSize, and calls upsertFn once per batch.
// It returns the total rows reported by upsertFn and the first error,
// wrapped with batch context. Rows written by earlier batches are not
// rolled back on a later failure.
func UpsertBatches(ctx context.Context, candidates []fact.Price, batchSize int, upsertFn UpsertFn) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if batchSize > MaxBatchSize {
		return 0, fmt.Errorf("batchSize %d exceeds maximum %d", batchSize, MaxBatchSize)
	}
	if upsertFn == nil {
		return 0, fmt.Errorf("upsertFn must not be nil")
	}

	candidates = dedupKeepFirst(candidates)

	var (
		total    int64
		batches  int
		start    = time.Now()
		lastTS   = start
		lastSize int64
	)

	for from := 0; from < len(candidates); from += batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		to := from + batchSize
		if to > len(candidates) {
			to = len(candidates)
		}
		batch := candidates[from:to]
		batches++

		n, err := upsertFn(ctx, batch)
		total += n
		if err != nil {
			return total, &BatchError{Batch: batches, Size: len(batch), Err: err}
		}

		now := time.Now()
		sinceLast := now.Sub(lastTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(total-lastSize) / sinceLast.Seconds()
		}
		log.Printf(
			"upsert batch #%d: rows=%d affected=%d total_affected=%d rps=%.0f elapsed=%s",
			batches, len(batch), n, total, rps,
			now.Sub(start).Truncate(time.Millisecond),
		)
		lastTS = now
		lastSize = total
	}

	return total, nil
}

// dedupKeepFirst drops candidates whose natural key already appeared
// earlier in the slice. Duplicates within one run would otherwise burn a
// round-trip just to collide on the database constraint.
func dedupKeepFirst(in []fact.Price) []fact.Price {
	if len(in) < 2 {
		return in
	}
	seen := make(map[uint64]struct{}, len(in))
	out := in[:0:0]
	for _, rec := range in {
		h := rec.KeyHash()
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, rec)
	}
	return out
}
