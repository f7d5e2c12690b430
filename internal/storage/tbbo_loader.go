package storage

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"histdata/internal/model"
)

// TBBOLoader persists top-of-book quotes into tbbo_data, deriving the
// is_crossed flag per §4.4.
type TBBOLoader struct {
	Pool         *pgxpool.Pool
	SubBatchSize int
}

var _ Loader = (*TBBOLoader)(nil)

var tbboSpec = upsertSpec{
	table: "tbbo_data",
	columns: []string{
		"ts_event", "ts_recv", "instrument_id", "symbol",
		"bid_px", "ask_px", "bid_sz", "ask_sz", "bid_ct", "ask_ct",
		"sequence", "is_crossed", "data_source", "publisher_id",
	},
	conflictOn: []string{"instrument_id", "ts_event", "sequence"},
	updateSet: []string{
		"symbol", "bid_px", "ask_px", "bid_sz", "ask_sz", "bid_ct", "ask_ct",
		"is_crossed", "ts_recv", "publisher_id",
	},
}

const tbboCreateSQL = `
CREATE TABLE IF NOT EXISTS tbbo_data (
	ts_event TIMESTAMPTZ NOT NULL,
	ts_recv TIMESTAMPTZ,
	instrument_id INTEGER NOT NULL,
	symbol VARCHAR(64),
	bid_px DECIMAL(20,8),
	ask_px DECIMAL(20,8),
	bid_sz INTEGER,
	ask_sz INTEGER,
	bid_ct INTEGER,
	ask_ct INTEGER,
	sequence BIGINT NOT NULL DEFAULT 0,
	is_crossed BOOLEAN NOT NULL DEFAULT FALSE,
	data_source VARCHAR(50) NOT NULL,
	publisher_id INTEGER,
	created_at TIMESTAMPTZ DEFAULT NOW(),
	updated_at TIMESTAMPTZ DEFAULT NOW(),
	CONSTRAINT uq_tbbo_unique UNIQUE (instrument_id, ts_event, sequence)
)%s`

var tbboIndexSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_tbbo_instrument_time ON tbbo_data (instrument_id, ts_event DESC)`,
}

func (l *TBBOLoader) EnsureSchema(ctx context.Context) error {
	_, err := bootstrapTable(ctx, l.Pool, tbboSpec.table, tbboCreateSQL, tbboIndexSQL)
	return err
}

func (l *TBBOLoader) Insert(ctx context.Context, records []model.Record, dataSource string) (InsertResult, error) {
	if len(records) == 0 {
		return InsertResult{}, nil
	}
	if err := ensurePartitionsFor(ctx, l.Pool, tbboSpec.table, records); err != nil {
		return InsertResult{}, err
	}
	return upsertBatch(ctx, l.Pool, tbboSpec, records, dataSource, buildTBBORow, l.SubBatchSize)
}

func buildTBBORow(rec model.Record, dataSource string) ([]any, error) {
	tsEvent, err := getTime(rec, "ts_event")
	if err != nil {
		return nil, err
	}
	instrumentID, err := getUint32(rec, "instrument_id")
	if err != nil {
		return nil, err
	}
	symbol, err := getString(rec, "symbol")
	if err != nil {
		return nil, err
	}
	sequence, _ := getUint64(rec, "sequence")
	publisherID, _ := getUint16(rec, "publisher_id")

	bidPx := getOptDecimal(rec, "bid_px")
	askPx := getOptDecimal(rec, "ask_px")
	isCrossed := false
	if bidPx != nil && askPx != nil {
		isCrossed = bidPx.GreaterThan(*askPx)
	}
	if v, ok := rec["is_crossed"].(bool); ok {
		isCrossed = v
	}

	return []any{
		tsEvent, getOptTime(rec, "ts_recv"), instrumentID, symbol,
		nullableDecimal(bidPx), nullableDecimal(askPx),
		getOptUint32(rec, "bid_sz"), getOptUint32(rec, "ask_sz"),
		getOptUint32(rec, "bid_ct"), getOptUint32(rec, "ask_ct"),
		sequence, isCrossed, dataSource, publisherID,
	}, nil
}

func nullableDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}
