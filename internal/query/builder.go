// Package query implements the point-in-time range query layer: symbol
// resolution with graceful fallback and one read method per record kind.
package query

import (
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"histdata/internal/model"
)

// Builder serves range queries directly against pgx, with no ORM, following
// the teacher's small-function-per-query style.
type Builder struct {
	Pool *pgxpool.Pool
}

func NewBuilder(pool *pgxpool.Pool) *Builder {
	return &Builder{Pool: pool}
}

// DefaultHighVolumeLimit is applied to Trade and TBBO queries when the
// caller does not override it, per §4.5.
const DefaultHighVolumeLimit = 10_000

// Filter carries the common parameters every query_<kind> method accepts.
type Filter struct {
	Symbols   []string
	StartDate *time.Time // inclusive
	EndDate   *time.Time // inclusive
	Limit     int        // 0 means unlimited, except where a kind default applies
}

// Row is one resolved fact-table row, shaped identically across kinds
// except for the Payload, which holds the kind-specific struct.
type Row struct {
	InstrumentID uint32
	TsEvent      time.Time
	Symbol       string
	Kind         model.Kind
	Payload      any
}
