package storage

import (
	"context"
	"fmt"
	"strings"

	"histdata/internal/model"
)

// InsertResult is the outcome of one Insert call, per §4.4's contract.
type InsertResult struct {
	Inserted int
	Errors   int
}

// Loader is the common contract every per-kind storage loader satisfies.
type Loader interface {
	EnsureSchema(ctx context.Context) error
	Insert(ctx context.Context, records []model.Record, dataSource string) (InsertResult, error)
}

// DefaultSubBatchSize is the sub-batch size used when splitting an Insert
// call's records into individual multi-row upserts, per §4.4's default.
const DefaultSubBatchSize = 1000

// rowBuilder converts one normalized record into the positional column
// values an upsert statement expects, in column order. A record that
// cannot be converted (missing/mistyped required field — should already
// have been caught by validate.Validate) returns an error and is counted
// as a sub-batch-level error rather than panicking the loader.
type rowBuilder func(rec model.Record, dataSource string) ([]any, error)

// upsertSpec describes one kind's upsert shape: target table, full column
// list (in the order rowBuilder emits values), the upsert conflict target,
// and the SET clause for the columns refreshed on conflict.
type upsertSpec struct {
	table      string
	columns    []string
	conflictOn []string
	updateSet  []string // column names refreshed via EXCLUDED.<col>; always includes updated_at = NOW()
}

func (s upsertSpec) buildSQL(rowCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", s.table, strings.Join(s.columns, ", "))

	nCols := len(s.columns)
	for r := 0; r < rowCount; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for c := 0; c < nCols; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", r*nCols+c+1)
		}
		b.WriteString(")")
	}

	fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET updated_at = NOW()", strings.Join(s.conflictOn, ", "))
	for _, col := range s.updateSet {
		fmt.Fprintf(&b, ", %s = EXCLUDED.%s", col, col)
	}
	return b.String()
}

// upsertBatch builds rows via build, splits them into sub-batches of
// subBatchSize, and executes one multi-row upsert per sub-batch. A
// sub-batch that fails rolls back to its own start (a single statement
// execution is already atomic) and counts as Errors for every row in that
// sub-batch; the loader proceeds with the next sub-batch.
func upsertBatch(ctx context.Context, pool pgConn, spec upsertSpec, records []model.Record, dataSource string, build rowBuilder, subBatchSize int) (InsertResult, error) {
	if len(records) == 0 {
		return InsertResult{}, nil
	}
	if subBatchSize <= 0 {
		subBatchSize = DefaultSubBatchSize
	}

	var result InsertResult
	for start := 0; start < len(records); start += subBatchSize {
		end := start + subBatchSize
		if end > len(records) {
			end = len(records)
		}
		sub := records[start:end]

		args := make([]any, 0, len(sub)*len(spec.columns))
		goodRows := 0
		for _, rec := range sub {
			row, err := build(rec, dataSource)
			if err != nil {
				result.Errors++
				continue
			}
			args = append(args, row...)
			goodRows++
		}
		if goodRows == 0 {
			continue
		}

		sql := spec.buildSQL(goodRows)
		if _, err := pool.Exec(ctx, sql, args...); err != nil {
			// The whole sub-batch rolls back atomically with the statement;
			// count every row in it as failed and continue with the next
			// sub-batch, per §4.4's failure semantics. A connection-level
			// failure (pool exhausted, network down) is returned to the
			// caller, which escalates per §4.1/§7.
			if isConnectionError(err) {
				return result, fmt.Errorf("storage: upsert into %s: %w", spec.table, err)
			}
			result.Errors += goodRows
			continue
		}
		result.Inserted += goodRows
	}
	return result, nil
}

// getString, getDecimal, and friends extract a typed field from a
// model.Record, returning an error the caller counts as a row-level
// conversion failure rather than a connection-level one.
func getString(rec model.Record, field string) (string, error) {
	v, ok := rec[field]
	if !ok || v == nil {
		return "", fmt.Errorf("storage: field %q absent", field)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("storage: field %q is not a string (got %T)", field, v)
	}
	return s, nil
}

func getOptString(rec model.Record, field string) *string {
	v, ok := rec[field]
	if !ok || v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}
