package storage

import (
	"context"
	"fmt"
	"time"

	"histdata/internal/model"
)

// hasTimescaleDB reports whether the timescaledb extension is installed in
// the connected database.
func hasTimescaleDB(ctx context.Context, pool pgConn) (bool, error) {
	var present bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'timescaledb')`,
	).Scan(&present)
	if err != nil {
		return false, fmt.Errorf("storage: check timescaledb extension: %w", err)
	}
	return present, nil
}

// ensureHypertable converts table into a TimescaleDB hypertable chunked on
// ts_event with a one-day interval, matching §6's "one-day chunk interval"
// requirement. Safe to call repeatedly.
func ensureHypertable(ctx context.Context, pool pgConn, table string) error {
	_, err := pool.Exec(ctx, fmt.Sprintf(
		`SELECT create_hypertable('%s', 'ts_event', chunk_time_interval => INTERVAL '1 day', if_not_exists => TRUE)`,
		table,
	))
	if err != nil {
		return fmt.Errorf("storage: create_hypertable(%s): %w", table, err)
	}
	return nil
}

// ensureMonthlyPartition creates, if absent, a native-Postgres range
// partition of parentTable covering the calendar month containing ts, used
// as the TimescaleDB fallback when the extension is not installed. This
// mirrors the original loader's hypertable-vs-hardcoded-DDL fallback, using
// monthly rather than daily boundaries since native partitions (unlike
// hypertable chunks) are not pruned automatically and a one-day boundary
// would create an impractical number of child tables.
func ensureMonthlyPartition(ctx context.Context, pool pgConn, parentTable string, ts time.Time) error {
	monthStart := time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)
	partitionName := fmt.Sprintf("%s_%04d_%02d", parentTable, monthStart.Year(), monthStart.Month())

	_, err := pool.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM ('%s') TO ('%s')`,
		partitionName, parentTable,
		monthStart.Format("2006-01-02"), monthEnd.Format("2006-01-02"),
	))
	if err != nil {
		return fmt.Errorf("storage: create partition %s: %w", partitionName, err)
	}
	return nil
}

// ensureMonthlyPartitionsForBatch creates every monthly partition needed to
// hold ts values, deduplicating by (year, month).
func ensureMonthlyPartitionsForBatch(ctx context.Context, pool pgConn, parentTable string, ts []time.Time) error {
	seen := make(map[string]bool)
	for _, t := range ts {
		key := fmt.Sprintf("%04d-%02d", t.Year(), t.Month())
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := ensureMonthlyPartition(ctx, pool, parentTable, t); err != nil {
			return err
		}
	}
	return nil
}

// ensurePartitionsFor creates the native-Postgres monthly partitions needed
// to hold records' ts_event values. It is a no-op when TimescaleDB is
// installed, since hypertables chunk automatically; every loader's Insert
// calls this before upsertBatch so a record never lands on an unpartitioned
// parent table.
func ensurePartitionsFor(ctx context.Context, pool pgConn, table string, records []model.Record) error {
	hasTSDB, err := hasTimescaleDB(ctx, pool)
	if err != nil || hasTSDB {
		return err
	}
	ts := make([]time.Time, 0, len(records))
	for _, rec := range records {
		if t, err := getTime(rec, "ts_event"); err == nil {
			ts = append(ts, t)
		}
	}
	return ensureMonthlyPartitionsForBatch(ctx, pool, table, ts)
}

// bootstrapTable creates table (if absent) from createSQLTemplate — which
// must already contain "IF NOT EXISTS" and end with a "%s" verb where a
// trailing "PARTITION BY RANGE (ts_event)" clause is substituted in. Native
// Postgres partitioning and TimescaleDB hypertables are mutually exclusive
// ways of chunking the same table, so which one applies is decided before
// the table is created: when TimescaleDB is installed the table is created
// as a plain table and promoted via create_hypertable; when absent, the
// PARTITION BY clause is substituted in and the caller is responsible for
// creating partitions via ensurePartitionsFor before insert. indexSQL
// statements run last, each independently tolerant of already existing.
func bootstrapTable(ctx context.Context, pool pgConn, table, createSQLTemplate string, indexSQL []string) (usesHypertable bool, err error) {
	hasTSDB, err := hasTimescaleDB(ctx, pool)
	if err != nil {
		return false, err
	}

	partitionClause := ""
	if !hasTSDB {
		partitionClause = "\nPARTITION BY RANGE (ts_event)"
	}
	createSQL := fmt.Sprintf(createSQLTemplate, partitionClause)

	if _, err := pool.Exec(ctx, createSQL); err != nil {
		return false, fmt.Errorf("storage: create table %s: %w", table, err)
	}

	if hasTSDB {
		if err := ensureHypertable(ctx, pool, table); err != nil {
			return false, err
		}
	}

	for _, stmt := range indexSQL {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return hasTSDB, fmt.Errorf("storage: create index on %s: %w", table, err)
		}
	}
	return hasTSDB, nil
}

// bootstrapPlainTable creates table (if absent) from createSQL as-is, with
// no partition substitution and no hypertable promotion. Use this for
// tables that are not keyed on ts_event — quarantined_records is chunked by
// nothing, so it is neither a candidate for native RANGE partitioning nor
// for create_hypertable.
func bootstrapPlainTable(ctx context.Context, pool pgConn, table, createSQL string, indexSQL []string) error {
	if _, err := pool.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("storage: create table %s: %w", table, err)
	}
	for _, stmt := range indexSQL {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("storage: create index on %s: %w", table, err)
		}
	}
	return nil
}
