package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"histdata/internal/model"
)

// OHLCVLoader persists OHLCV aggregates into daily_ohlcv_data.
type OHLCVLoader struct {
	Pool         *pgxpool.Pool
	SubBatchSize int
}

var _ Loader = (*OHLCVLoader)(nil)

var ohlcvSpec = upsertSpec{
	table: "daily_ohlcv_data",
	columns: []string{
		"ts_event", "ts_recv", "instrument_id", "symbol",
		"open_price", "high_price", "low_price", "close_price", "volume",
		"trade_count", "vwap", "granularity", "data_source",
		"rtype", "publisher_id",
	},
	conflictOn: []string{"ts_event", "instrument_id", "granularity", "data_source"},
	updateSet: []string{
		"symbol", "open_price", "high_price", "low_price", "close_price",
		"volume", "trade_count", "vwap", "ts_recv", "rtype", "publisher_id",
	},
}

const ohlcvCreateSQL = `
CREATE TABLE IF NOT EXISTS daily_ohlcv_data (
	ts_event TIMESTAMPTZ NOT NULL,
	ts_recv TIMESTAMPTZ,
	instrument_id INTEGER NOT NULL,
	symbol VARCHAR(64),
	open_price DECIMAL(20,8) NOT NULL,
	high_price DECIMAL(20,8) NOT NULL,
	low_price DECIMAL(20,8) NOT NULL,
	close_price DECIMAL(20,8) NOT NULL,
	volume BIGINT NOT NULL,
	trade_count INTEGER,
	vwap DECIMAL(20,8),
	granularity VARCHAR(10) NOT NULL DEFAULT '1d',
	data_source VARCHAR(50) NOT NULL,
	rtype INTEGER,
	publisher_id INTEGER,
	created_at TIMESTAMPTZ DEFAULT NOW(),
	updated_at TIMESTAMPTZ DEFAULT NOW(),
	CONSTRAINT chk_price_relationships CHECK (
		high_price >= low_price AND
		high_price >= open_price AND
		high_price >= close_price AND
		low_price <= open_price AND
		low_price <= close_price
	),
	CONSTRAINT chk_vwap_range CHECK (
		vwap IS NULL OR (vwap >= low_price AND vwap <= high_price)
	),
	CONSTRAINT uq_daily_ohlcv_unique UNIQUE (ts_event, instrument_id, granularity, data_source)
)%s`

var ohlcvIndexSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_daily_ohlcv_instrument_time ON daily_ohlcv_data (instrument_id, ts_event DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_ohlcv_symbol_time ON daily_ohlcv_data (symbol, ts_event DESC)`,
}

func (l *OHLCVLoader) EnsureSchema(ctx context.Context) error {
	_, err := bootstrapTable(ctx, l.Pool, ohlcvSpec.table, ohlcvCreateSQL, ohlcvIndexSQL)
	return err
}

func (l *OHLCVLoader) Insert(ctx context.Context, records []model.Record, dataSource string) (InsertResult, error) {
	if len(records) == 0 {
		return InsertResult{}, nil
	}
	if err := ensurePartitionsFor(ctx, l.Pool, ohlcvSpec.table, records); err != nil {
		return InsertResult{}, err
	}
	return upsertBatch(ctx, l.Pool, ohlcvSpec, records, dataSource, buildOHLCVRow, l.SubBatchSize)
}

func buildOHLCVRow(rec model.Record, dataSource string) ([]any, error) {
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
	open, err := getDecimal(rec, "open")
	if err != nil {
		return nil, err
	}
	high, err := getDecimal(rec, "high")
	if err != nil {
		return nil, err
	}
	low, err := getDecimal(rec, "low")
	if err != nil {
		return nil, err
	}
	closePrice, err := getDecimal(rec, "close")
	if err != nil {
		return nil, err
	}
	volume, err := getUint64(rec, "volume")
	if err != nil {
		return nil, err
	}
	granularity, err := getString(rec, "granularity")
	if err != nil {
		return nil, fmt.Errorf("storage: ohlcv row missing granularity: %w", err)
	}
	publisherID, _ := getUint16(rec, "publisher_id")

	return []any{
		tsEvent, getOptTime(rec, "ts_recv"), instrumentID, symbol,
		open, high, low, closePrice, volume,
		getOptUint64(rec, "trade_count"), getOptDecimal(rec, "vwap"), granularity, dataSource,
		getInt32(rec, "rtype", 0), publisherID,
	}, nil
}
