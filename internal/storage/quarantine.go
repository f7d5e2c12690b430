package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"histdata/internal/validate"
)

// QuarantineSink persists quarantined records for later inspection. §4.3
// does not prescribe a medium for this; PostgresQuarantineSink is the
// concrete implementation wired by default in cmd/ingestctl.
type QuarantineSink interface {
	Write(ctx context.Context, jobName string, records []validate.QuarantinedRecord) error
}

const quarantineCreateSQL = `
CREATE TABLE IF NOT EXISTS quarantined_records (
	id BIGSERIAL PRIMARY KEY,
	job_name VARCHAR(128) NOT NULL,
	kind VARCHAR(32) NOT NULL,
	reason TEXT NOT NULL,
	record JSONB NOT NULL,
	quarantined_at TIMESTAMPTZ DEFAULT NOW()
)`

var quarantineIndexSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_quarantined_job_time ON quarantined_records (job_name, quarantined_at DESC)`,
}

// PostgresQuarantineSink persists quarantined records to a side table,
// keeping the fact tables free of rejected rows per §4.3.
type PostgresQuarantineSink struct {
	Pool *pgxpool.Pool
}

var _ QuarantineSink = (*PostgresQuarantineSink)(nil)

func (s *PostgresQuarantineSink) EnsureSchema(ctx context.Context) error {
	return bootstrapPlainTable(ctx, s.Pool, "quarantined_records", quarantineCreateSQL, quarantineIndexSQL)
}

func (s *PostgresQuarantineSink) Write(ctx context.Context, jobName string, records []validate.QuarantinedRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, q := range records {
		payload, err := json.Marshal(stringifyRecord(q.Record))
		if err != nil {
			return fmt.Errorf("storage: marshal quarantined record: %w", err)
		}
		_, err = s.Pool.Exec(ctx,
			`INSERT INTO quarantined_records (job_name, kind, reason, record) VALUES ($1, $2, $3, $4)`,
			jobName, q.Kind.String(), q.Reason, payload,
		)
		if err != nil {
			return fmt.Errorf("storage: insert quarantined record: %w", err)
		}
	}
	return nil
}

// stringifyRecord converts every field value (numbers, time.Time,
// decimal.Decimal, nil included) to its %v string form so json.Marshal never
// fails on an unsupported type.
func stringifyRecord(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
