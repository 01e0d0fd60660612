package postgres

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"foodwatch/internal/fact"
)

// TestUpsertSQL_Ignore verifies the staged insert carries DO NOTHING on the
// named constraint.
func TestUpsertSQL_Ignore(t *testing.T) {
	t.Parallel()

	got := upsertSQL("public.fact_prices", "staging_public_fact_prices", "uq_fact_prices_natural_key", ConflictIgnore, true)

	for _, want := range []string{
		`INSERT INTO "public"."fact_prices"`,
		`FROM "staging_public_fact_prices"`,
		`ON CONFLICT ON CONSTRAINT "uq_fact_prices_natural_key" DO NOTHING`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("statement missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "DO UPDATE") {
		t.Errorf("ignore policy must not update:\n%s", got)
	}
}

// TestUpsertSQL_Overwrite verifies the overwrite policy updates only price
// and capture timestamp, leaving the dimension references alone.
func TestUpsertSQL_Overwrite(t *testing.T) {
	t.Parallel()

	got := upsertSQL("public.fact_prices", "tmp", "uq_fact_prices_natural_key", ConflictOverwrite, true)

	if !strings.Contains(got, "DO UPDATE SET harga = EXCLUDED.harga, scraped_at = EXCLUDED.scraped_at") {
		t.Errorf("overwrite clause wrong:\n%s", got)
	}
	for _, col := range []string{"province_id =", "commodity_id =", "tanggal ="} {
		if strings.Contains(got, "SET "+col) {
			t.Errorf("overwrite must not touch %s:\n%s", col, got)
		}
	}
}

// TestUpsertSQL_PlainFallback verifies the withConflict=false form is a bare
// insert with no conflict clause at all.
func TestUpsertSQL_PlainFallback(t *testing.T) {
	t.Parallel()

	got := upsertSQL("public.fact_prices", "tmp", "uq_fact_prices_natural_key", ConflictIgnore, false)
	if strings.Contains(got, "ON CONFLICT") {
		t.Errorf("fallback must not carry a conflict clause:\n%s", got)
	}
}

// TestUndefinedConstraint covers the two Postgres codes that trigger the
// plain-insert retry, and the codes that must not.
func TestUndefinedConstraint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"undefined object", &pgconn.PgError{Code: "42704"}, true},
		{"invalid conflict target", &pgconn.PgError{Code: "42P10"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"wrapped", wrapErr(&pgconn.PgError{Code: "42704"}), true},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := undefinedConstraint(tc.err); got != tc.want {
				t.Errorf("undefinedConstraint = %v, want %v", got, tc.want)
			}
		})
	}
}

func wrapErr(err error) error {
	return errors.Join(errors.New("upsert from staging"), err)
}

// TestCopyRows verifies the COPY projection matches factColumns order and a
// nil subcategory becomes SQL NULL.
func TestCopyRows(t *testing.T) {
	t.Parallel()

	sub := 10
	date := time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC)
	batch := []fact.Price{
		{ProvinceID: 1, CommodityID: 2, SubcategoryID: &sub, MarketTypeID: 3, Date: date, Price: 14500, ReportType: "daily"},
		{ProvinceID: 4, CommodityID: 5, MarketTypeID: 6, Date: date, Price: 9000, ReportType: "monthly"},
	}

	rows := copyRows(batch)
	if len(rows) != 2 {
		t.Fatalf("rows: %d", len(rows))
	}
	if len(rows[0]) != len(factColumns) {
		t.Fatalf("row width %d, want %d", len(rows[0]), len(factColumns))
	}
	if rows[0][2] != 10 {
		t.Errorf("subcategory value: %v", rows[0][2])
	}
	if rows[1][2] != nil {
		t.Errorf("nil subcategory must map to NULL, got %v", rows[1][2])
	}
	if rows[0][0] != 1 || rows[0][4] != date || rows[0][5] != 14500.0 {
		t.Errorf("column order broken: %v", rows[0])
	}
}

// TestPgFQN covers identifier quoting for plain and schema-qualified names.
func TestPgFQN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"fact_prices", `"fact_prices"`},
		{"public.fact_prices", `"public"."fact_prices"`},
		{`odd"name`, `"odd""name"`},
	}
	for _, tc := range tests {
		if got := pgFQN(tc.in); got != tc.want {
			t.Errorf("pgFQN(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
