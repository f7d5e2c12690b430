package storage

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"histdata/internal/model"
)

// DefinitionLoader persists reference-data rows into definitions_data.
type DefinitionLoader struct {
	Pool         *pgxpool.Pool
	SubBatchSize int
}

var _ Loader = (*DefinitionLoader)(nil)

var definitionSpec = upsertSpec{
	table: "definitions_data",
	columns: []string{
		"ts_event", "ts_recv", "instrument_id", "raw_symbol", "symbol",
		"security_update_action", "instrument_class", "min_price_increment",
		"expiration", "activation", "group_name", "asset", "exchange",
		"currency", "rtype", "inst_attrib_value",
		"min_lot_size", "min_lot_size_block", "min_lot_size_round_lot",
		"data_source", "publisher_id",
	},
	conflictOn: []string{"instrument_id", "ts_event"},
	updateSet: []string{
		"raw_symbol", "symbol", "security_update_action", "instrument_class",
		"min_price_increment", "expiration", "activation", "group_name",
		"asset", "exchange", "currency", "rtype", "inst_attrib_value",
		"min_lot_size", "min_lot_size_block", "min_lot_size_round_lot",
		"publisher_id",
	},
}

const definitionCreateSQL = `
CREATE TABLE IF NOT EXISTS definitions_data (
	ts_event TIMESTAMPTZ NOT NULL,
	ts_recv TIMESTAMPTZ,
	instrument_id INTEGER NOT NULL,
	raw_symbol VARCHAR(64) NOT NULL,
	symbol VARCHAR(64),
	security_update_action VARCHAR(1) NOT NULL DEFAULT 'A',
	instrument_class VARCHAR(16),
	min_price_increment DECIMAL(20,8),
	expiration TIMESTAMPTZ,
	activation TIMESTAMPTZ,
	group_name VARCHAR(32) NOT NULL DEFAULT '',
	asset VARCHAR(32) NOT NULL DEFAULT '',
	exchange VARCHAR(16),
	currency VARCHAR(8),
	rtype INTEGER NOT NULL DEFAULT 19,
	inst_attrib_value INTEGER NOT NULL DEFAULT 0,
	min_lot_size INTEGER NOT NULL DEFAULT 0,
	min_lot_size_block INTEGER NOT NULL DEFAULT 0,
	min_lot_size_round_lot INTEGER NOT NULL DEFAULT 0,
	data_source VARCHAR(50) NOT NULL,
	publisher_id INTEGER,
	created_at TIMESTAMPTZ DEFAULT NOW(),
	updated_at TIMESTAMPTZ DEFAULT NOW(),
	CONSTRAINT uq_definitions_unique UNIQUE (instrument_id, ts_event)
)%s`

var definitionIndexSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_definitions_raw_symbol ON definitions_data (raw_symbol)`,
	`CREATE INDEX IF NOT EXISTS idx_definitions_asset_exchange ON definitions_data (asset, exchange)`,
}

func (l *DefinitionLoader) EnsureSchema(ctx context.Context) error {
	_, err := bootstrapTable(ctx, l.Pool, definitionSpec.table, definitionCreateSQL, definitionIndexSQL)
	return err
}

func (l *DefinitionLoader) Insert(ctx context.Context, records []model.Record, dataSource string) (InsertResult, error) {
	if len(records) == 0 {
		return InsertResult{}, nil
	}
	if err := ensurePartitionsFor(ctx, l.Pool, definitionSpec.table, records); err != nil {
		return InsertResult{}, err
	}
	return upsertBatch(ctx, l.Pool, definitionSpec, records, dataSource, buildDefinitionRow, l.SubBatchSize)
}

func buildDefinitionRow(rec model.Record, dataSource string) ([]any, error) {
	tsEvent, err := getTime(rec, "ts_event")
	if err != nil {
		return nil, err
	}
	instrumentID, err := getUint32(rec, "instrument_id")
	if err != nil {
		return nil, err
	}
	rawSymbol, err := getString(rec, "raw_symbol")
	if err != nil {
		return nil, err
	}
	publisherID, _ := getUint16(rec, "publisher_id")

	return []any{
		tsEvent, getOptTime(rec, "ts_recv"), instrumentID, rawSymbol, getOptString(rec, "symbol"),
		stringOr(getOptString(rec, "security_update_action"), "A"),
		getOptString(rec, "instrument_class"),
		nullableDecimal(getOptDecimal(rec, "min_price_increment")),
		getOptTime(rec, "expiration"), getOptTime(rec, "activation"),
		stringOr(getOptString(rec, "group"), ""), stringOr(getOptString(rec, "asset"), ""),
		getOptString(rec, "exchange"), getOptString(rec, "currency"),
		getInt32(rec, "rtype", 19), getInt32(rec, "inst_attrib_value", 0),
		getInt32(rec, "min_lot_size", 0), getInt32(rec, "min_lot_size_block", 0),
		getInt32(rec, "min_lot_size_round_lot", 0),
		dataSource, publisherID,
	}, nil
}

func stringOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
