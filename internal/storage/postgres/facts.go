package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"foodwatch/internal/fact"
)

// ConflictPolicy decides what a natural-key collision does to the existing
// fact row.
type ConflictPolicy string

const (
	// ConflictIgnore keeps the existing row untouched; the collision does
	// not count toward the affected total.
	ConflictIgnore ConflictPolicy = "ignore"
	// ConflictOverwrite updates price and capture timestamp in place.
	ConflictOverwrite ConflictPolicy = "overwrite"
)

// factColumns is the write order for COPY and the staged insert. The
// surrogate id column is database-generated and never listed.
var factColumns = []string{
	"province_id", "commodity_id", "subcategory_id", "market_type_id",
	"tanggal", "harga", "report_type", "scraped_at", "source",
}

// FactRepository writes resolved price records into the fact table. Each
// batch is staged with COPY into a per-transaction temp table and then
// upserted in one statement, so the affected-rows count excludes ignored
// collisions.
type FactRepository struct {
	sess       *Session
	table      string // fully qualified fact table, e.g. "public.fact_prices"
	constraint string // named unique constraint on the natural key
}

// NewFactRepository constructs a repository bound to a session.
func NewFactRepository(sess *Session, table, constraint string) *FactRepository {
	return &FactRepository{sess: sess, table: table, constraint: constraint}
}

// Upsert writes one batch under the given policy inside its own
// transaction and returns the rows actually inserted or updated.
//
// Conflict handling is an explicit two-step contract: the upsert is first
// attempted with the declared ON CONFLICT clause; if Postgres reports the
// constraint as missing (42704 / 42P10), the batch is rolled back and
// retried exactly once as a plain insert. Any other failure rolls back
// only this batch and propagates.
func (r *FactRepository) Upsert(ctx context.Context, batch []fact.Price, policy ConflictPolicy) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	n, err := r.upsertOnce(ctx, batch, policy, true)
	if err != nil && undefinedConstraint(err) {
		log.Printf("postgres: conflict target %q missing, retrying batch as plain insert", r.constraint)
		return r.upsertOnce(ctx, batch, policy, false)
	}
	return n, err
}

func (r *FactRepository) upsertOnce(ctx context.Context, batch []fact.Price, policy ConflictPolicy, withConflict bool) (int64, error) {
	tx, err := r.sess.Pool().Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tmp := "staging_" + strings.ReplaceAll(r.table, ".", "_")
	create := fmt.Sprintf(
		"CREATE TEMP TABLE %s ON COMMIT DROP AS SELECT %s FROM %s WHERE false",
		pgIdent(tmp), strings.Join(mapIdent(factColumns), ","), pgFQN(r.table),
	)
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, fmt.Errorf("create staging table: %w", err)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tmp}, factColumns, pgx.CopyFromRows(copyRows(batch))); err != nil {
		return 0, fmt.Errorf("copy into staging: %w", err)
	}

	tag, err := tx.Exec(ctx, upsertSQL(r.table, tmp, r.constraint, policy, withConflict))
	if err != nil {
		return 0, fmt.Errorf("upsert from staging: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the current fact table row count; the migration driver
// uses it for post-run verification.
func (r *FactRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.sess.Pool().QueryRow(ctx, "SELECT COUNT(*) FROM "+pgFQN(r.table)).Scan(&n)
	return n, err
}

// upsertSQL builds the staged-insert statement. With withConflict false the
// statement is a plain insert, the one-shot fallback for a missing
// constraint definition.
func upsertSQL(table, tmp, constraint string, policy ConflictPolicy, withConflict bool) string {
	cols := strings.Join(mapIdent(factColumns), ",")
	stmt := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", pgFQN(table), cols, cols, pgIdent(tmp))
	if !withConflict {
		return stmt
	}
	switch policy {
	case ConflictOverwrite:
		return stmt + fmt.Sprintf(
			" ON CONFLICT ON CONSTRAINT %s DO UPDATE SET harga = EXCLUDED.harga, scraped_at = EXCLUDED.scraped_at",
			pgIdent(constraint),
		)
	default:
		return stmt + fmt.Sprintf(" ON CONFLICT ON CONSTRAINT %s DO NOTHING", pgIdent(constraint))
	}
}

func copyRows(batch []fact.Price) [][]any {
	rows := make([][]any, len(batch))
	for i, rec := range batch {
		var subcategory any
		if rec.SubcategoryID != nil {
			subcategory = *rec.SubcategoryID
		}
		rows[i] = []any{
			rec.ProvinceID, rec.CommodityID, subcategory, rec.MarketTypeID,
			rec.Date, rec.Price, rec.ReportType, rec.ScrapedAt, rec.Source,
		}
	}
	return rows
}

// undefinedConstraint matches the Postgres conditions for a missing or
// unusable ON CONFLICT target: undefined_object and the dedicated
// invalid_column_reference raised for ON CONFLICT specifications.
func undefinedConstraint(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "42704" || pgErr.Code == "42P10"
}
