//go:build integration

package query

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"histdata/internal/model"
	"histdata/internal/rules"
	"histdata/internal/storage"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("histdata"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("container connection string: %v", err)
	}

	pool, err := storage.NewPool(ctx, storage.DefaultPoolConfig(dsn))
	if err != nil {
		t.Fatalf("storage.NewPool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// TestQueryOHLCVFallsBackToSymbolColumnWhenDefinitionsEmpty covers §4.5's
// graceful-fallback path against a real Postgres: with definitions_data
// absent, QueryOHLCV resolves directly against the denormalized symbol
// column instead of failing.
func TestQueryOHLCVFallsBackToSymbolColumnWhenDefinitionsEmpty(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	loader := &storage.OHLCVLoader{Pool: pool, SubBatchSize: storage.DefaultSubBatchSize}
	if err := loader.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	compiled, err := rules.Compile(rules.DefaultDocument())
	if err != nil {
		t.Fatalf("compile rules: %v", err)
	}
	raw := []model.Record{
		{
			"ts_event":      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			"instrument_id": 1,
			"symbol":        "ES.c.0",
			"open":          "4700.00",
			"high":          "4705.00",
			"low":           "4695.00",
			"close":         "4700.25",
			"volume":        "1000",
		},
		{
			"ts_event":      time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			"instrument_id": 1,
			"symbol":        "ES.c.0",
			"open":          "4700.25",
			"high":          "4710.00",
			"low":           "4698.00",
			"close":         "4705.50",
			"volume":        "1200",
		},
	}
	normalized, failed := compiled.TransformBatch(raw, model.KindOHLCV)
	if len(failed) != 0 {
		t.Fatalf("unexpected transform failures: %+v", failed)
	}
	for _, rec := range normalized {
		rec["granularity"] = "1d"
	}
	if _, err := loader.Insert(ctx, normalized, "databento"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	builder := NewBuilder(pool)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	rows, err := builder.QueryOHLCV(ctx, Filter{Symbols: []string{"ES.c.0"}, StartDate: &start, EndDate: &end})
	if err != nil {
		t.Fatalf("QueryOHLCV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Symbol != "ES.c.0" {
		t.Errorf("expected symbol fallback to the denormalized column, got %q", rows[0].Symbol)
	}
	if !rows[0].TsEvent.After(rows[1].TsEvent) {
		t.Errorf("expected descending ts_event ordering, got %s then %s", rows[0].TsEvent, rows[1].TsEvent)
	}
}

// TestQueryOHLCVEmptyForUnknownSymbol covers §4.5's empty-result path: a
// symbol that resolves to nothing yields zero rows, not an error.
func TestQueryOHLCVEmptyForUnknownSymbol(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	loader := &storage.OHLCVLoader{Pool: pool, SubBatchSize: storage.DefaultSubBatchSize}
	if err := loader.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	builder := NewBuilder(pool)
	rows, err := builder.QueryOHLCV(ctx, Filter{Symbols: []string{"DOES.NOT.EXIST"}})
	if err != nil {
		t.Fatalf("QueryOHLCV: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected 0 rows for an unresolved symbol, got %d", len(rows))
	}
}
