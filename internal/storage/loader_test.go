package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"histdata/internal/model"
)

// fakeConn is a minimal pgConn fake recording executed statements, letting
// sub-batching and SQL-shape logic be exercised without a real database.
type fakeConn struct {
	execs   []string
	argSets [][]any
	errOn   map[int]error // 0-indexed call number -> error to return
	calls   int
}

func (f *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	f.argSets = append(f.argSets, args)
	call := f.calls
	f.calls++
	if err, ok := f.errOn[call]; ok {
		return nil, err
	}
	return pgconn.CommandTag("INSERT"), nil
}

func (f *fakeConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return fakeRow{}
}

type fakeRow struct{}

func (fakeRow) Scan(dest ...any) error {
	if len(dest) > 0 {
		if b, ok := dest[0].(*bool); ok {
			*b = false
		}
	}
	return nil
}

func TestUpsertSpecBuildSQLTwoRows(t *testing.T) {
	sql := ohlcvSpec.buildSQL(2)
	if strings.Count(sql, "$") != 2*len(ohlcvSpec.columns) {
		t.Fatalf("expected %d placeholders, got sql: %s", 2*len(ohlcvSpec.columns), sql)
	}
	if !strings.Contains(sql, "ON CONFLICT (ts_event, instrument_id, granularity, data_source)") {
		t.Errorf("missing conflict clause: %s", sql)
	}
	if !strings.Contains(sql, "updated_at = NOW()") {
		t.Errorf("missing updated_at stamp: %s", sql)
	}
}

func TestUpsertBatchEmptyInputNoStoreInteraction(t *testing.T) {
	conn := &fakeConn{}
	result, err := upsertBatch(context.Background(), conn, tradeSpec, nil, "databento", buildTradeRow, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Inserted != 0 || result.Errors != 0 {
		t.Fatalf("expected zero result, got %+v", result)
	}
	if len(conn.execs) != 0 {
		t.Fatalf("expected no store interaction, got %d execs", len(conn.execs))
	}
}

func TestUpsertBatchSplitsExactlyTwoSubBatches(t *testing.T) {
	conn := &fakeConn{}
	records := make([]model.Record, 0, 5)
	for i := 0; i < 5; i++ {
		records = append(records, ohlcvRowFor(uint32(i+1)))
	}
	result, err := upsertBatch(context.Background(), conn, ohlcvSpec, records, "databento", buildOHLCVRow, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conn.execs) != 2 {
		t.Fatalf("expected 2 sub-batch execs for batch_size+1=5 records at sub-batch 4, got %d", len(conn.execs))
	}
	if result.Inserted != 5 {
		t.Fatalf("expected 5 inserted, got %d", result.Inserted)
	}
}

func TestUpsertBatchSubBatchErrorCountsAllRowsAndContinues(t *testing.T) {
	conn := &fakeConn{errOn: map[int]error{0: errors.New("constraint violation")}}
	records := []model.Record{ohlcvRowFor(1), ohlcvRowFor(2)}
	result, err := upsertBatch(context.Background(), conn, ohlcvSpec, records, "databento", buildOHLCVRow, 1)
	if err != nil {
		t.Fatalf("non-connection error should not escalate: %v", err)
	}
	if result.Errors != 1 || result.Inserted != 1 {
		t.Fatalf("expected 1 error (first sub-batch) + 1 inserted (second), got %+v", result)
	}
}

func TestUpsertBatchRowConversionFailureCountsAsError(t *testing.T) {
	conn := &fakeConn{}
	bad := model.Record{"instrument_id": uint32(1)} // missing required fields
	result, err := upsertBatch(context.Background(), conn, ohlcvSpec, []model.Record{bad}, "databento", buildOHLCVRow, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Errors != 1 || result.Inserted != 0 {
		t.Fatalf("expected the malformed row counted as an error, got %+v", result)
	}
}

func TestIsConnectionErrorClassification(t *testing.T) {
	if isConnectionError(nil) {
		t.Error("nil should not be a connection error")
	}
	if isConnectionError(errors.New("constraint violation")) {
		t.Error("generic error should not be classified as connection error")
	}
}
