package storage

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"histdata/internal/model"
)

// TradeLoader persists trade prints into trades_data.
type TradeLoader struct {
	Pool         *pgxpool.Pool
	SubBatchSize int
}

var _ Loader = (*TradeLoader)(nil)

var tradeSpec = upsertSpec{
	table: "trades_data",
	columns: []string{
		"ts_event", "ts_recv", "instrument_id", "symbol",
		"price", "size", "side", "sequence", "action",
		"data_source", "publisher_id",
	},
	conflictOn: []string{"instrument_id", "ts_event", "sequence", "price", "size", "side"},
	updateSet:  []string{"symbol", "action", "ts_recv", "publisher_id"},
}

const tradeCreateSQL = `
CREATE TABLE IF NOT EXISTS trades_data (
	ts_event TIMESTAMPTZ NOT NULL,
	ts_recv TIMESTAMPTZ,
	instrument_id INTEGER NOT NULL,
	symbol VARCHAR(64),
	price DECIMAL(20,8) NOT NULL,
	size INTEGER NOT NULL,
	side VARCHAR(1) NOT NULL DEFAULT 'N',
	sequence BIGINT NOT NULL DEFAULT 0,
	action VARCHAR(16),
	data_source VARCHAR(50) NOT NULL,
	publisher_id INTEGER,
	created_at TIMESTAMPTZ DEFAULT NOW(),
	updated_at TIMESTAMPTZ DEFAULT NOW(),
	CONSTRAINT uq_trades_unique UNIQUE (instrument_id, ts_event, sequence, price, size, side)
)%s`

var tradeIndexSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_trades_instrument_time ON trades_data (instrument_id, ts_event DESC)`,
}

func (l *TradeLoader) EnsureSchema(ctx context.Context) error {
	_, err := bootstrapTable(ctx, l.Pool, tradeSpec.table, tradeCreateSQL, tradeIndexSQL)
	return err
}

func (l *TradeLoader) Insert(ctx context.Context, records []model.Record, dataSource string) (InsertResult, error) {
	if len(records) == 0 {
		return InsertResult{}, nil
	}
	if err := ensurePartitionsFor(ctx, l.Pool, tradeSpec.table, records); err != nil {
		return InsertResult{}, err
	}
	return upsertBatch(ctx, l.Pool, tradeSpec, records, dataSource, buildTradeRow, l.SubBatchSize)
}

func buildTradeRow(rec model.Record, dataSource string) ([]any, error) {
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
	price, err := getDecimal(rec, "price")
	if err != nil {
		return nil, err
	}
	size, err := getUint32(rec, "size")
	if err != nil {
		return nil, err
	}
	side := "N"
	if s, ok := rec["side"].(model.TradeSide); ok {
		side = string(s)
	} else if s, ok := rec["side"].(string); ok && s != "" {
		side = s
	}
	sequence, _ := getUint64(rec, "sequence")
	publisherID, _ := getUint16(rec, "publisher_id")

	return []any{
		tsEvent, getOptTime(rec, "ts_recv"), instrumentID, symbol,
		price, size, side, sequence, getOptString(rec, "action"),
		dataSource, publisherID,
	}, nil
}
