package storage

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"histdata/internal/model"
)

// StatisticsLoader persists end-of-session/session-boundary values into
// statistics_data.
type StatisticsLoader struct {
	Pool         *pgxpool.Pool
	SubBatchSize int
}

var _ Loader = (*StatisticsLoader)(nil)

var statisticsSpec = upsertSpec{
	table: "statistics_data",
	columns: []string{
		"ts_event", "ts_recv", "instrument_id", "symbol",
		"stat_type", "stat_value", "open_interest", "settlement_price",
		"high_limit", "low_limit", "sequence", "flags",
		"data_source", "publisher_id",
	},
	conflictOn: []string{"instrument_id", "ts_event", "stat_type", "sequence"},
	updateSet: []string{
		"symbol", "stat_value", "open_interest", "settlement_price",
		"high_limit", "low_limit", "flags", "ts_recv", "publisher_id",
	},
}

const statisticsCreateSQL = `
CREATE TABLE IF NOT EXISTS statistics_data (
	ts_event TIMESTAMPTZ NOT NULL,
	ts_recv TIMESTAMPTZ,
	instrument_id INTEGER NOT NULL,
	symbol VARCHAR(64),
	stat_type VARCHAR(32) NOT NULL,
	stat_value DECIMAL(20,8),
	open_interest DECIMAL(20,8),
	settlement_price DECIMAL(20,8),
	high_limit DECIMAL(20,8),
	low_limit DECIMAL(20,8),
	sequence BIGINT NOT NULL DEFAULT 0,
	flags INTEGER,
	data_source VARCHAR(50) NOT NULL,
	publisher_id INTEGER,
	created_at TIMESTAMPTZ DEFAULT NOW(),
	updated_at TIMESTAMPTZ DEFAULT NOW(),
	CONSTRAINT uq_statistics_unique UNIQUE (instrument_id, ts_event, stat_type, sequence)
)%s`

var statisticsIndexSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_statistics_instrument_time_type ON statistics_data (instrument_id, ts_event, stat_type)`,
}

func (l *StatisticsLoader) EnsureSchema(ctx context.Context) error {
	_, err := bootstrapTable(ctx, l.Pool, statisticsSpec.table, statisticsCreateSQL, statisticsIndexSQL)
	return err
}

func (l *StatisticsLoader) Insert(ctx context.Context, records []model.Record, dataSource string) (InsertResult, error) {
	if len(records) == 0 {
		return InsertResult{}, nil
	}
	if err := ensurePartitionsFor(ctx, l.Pool, statisticsSpec.table, records); err != nil {
		return InsertResult{}, err
	}
	return upsertBatch(ctx, l.Pool, statisticsSpec, records, dataSource, buildStatisticsRow, l.SubBatchSize)
}

func buildStatisticsRow(rec model.Record, dataSource string) ([]any, error) {
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
	statType, err := getString(rec, "stat_type")
	if err != nil {
		return nil, err
	}
	sequence, _ := getUint64(rec, "sequence")
	publisherID, _ := getUint16(rec, "publisher_id")

	return []any{
		tsEvent, getOptTime(rec, "ts_recv"), instrumentID, symbol,
		statType, nullableDecimal(getOptDecimal(rec, "stat_value")),
		nullableDecimal(getOptDecimal(rec, "open_interest")),
		nullableDecimal(getOptDecimal(rec, "settlement_price")),
		nullableDecimal(getOptDecimal(rec, "high_limit")),
		nullableDecimal(getOptDecimal(rec, "low_limit")),
		sequence, getOptUint32(rec, "flags"), dataSource, publisherID,
	}, nil
}
