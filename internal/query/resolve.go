package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgconn"
)

// ErrNoSymbolsResolved names the case where neither resolution path in §4.5
// matches any input symbol. The Query<Kind> methods do not return it: that
// case yields an empty result with a nil error.
var ErrNoSymbolsResolved = errors.New("query: no symbols resolved")

// resolution is the outcome of resolving a set of business symbols to
// internal instrument ids.
type resolution struct {
	usedDefinitions bool
	instrumentIDs   []uint32
	// symbolForInstrument enriches result rows when definitions were used.
	symbolForInstrument map[uint32]string
}

// resolveSymbols implements §4.5's three-step resolution: definitions table
// lookup when present and populated, denormalized symbol-column fallback
// otherwise, and an empty result when neither path matches.
func (b *Builder) resolveSymbols(ctx context.Context, symbols []string) (resolution, error) {
	hasDefs, err := b.definitionsPopulated(ctx)
	if err != nil {
		return resolution{}, err
	}
	if !hasDefs {
		return resolution{usedDefinitions: false}, nil
	}

	placeholders := make([]string, len(symbols))
	args := make([]any, len(symbols))
	for i, s := range symbols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = s
	}
	sql := fmt.Sprintf(
		`SELECT DISTINCT instrument_id, raw_symbol FROM definitions_data WHERE raw_symbol IN (%s)`,
		strings.Join(placeholders, ", "),
	)
	rows, err := b.Pool.Query(ctx, sql, args...)
	if err != nil {
		return resolution{}, fmt.Errorf("query: resolve symbols via definitions: %w", err)
	}
	defer rows.Close()

	res := resolution{usedDefinitions: true, symbolForInstrument: make(map[uint32]string)}
	for rows.Next() {
		var id uint32
		var sym string
		if err := rows.Scan(&id, &sym); err != nil {
			return resolution{}, fmt.Errorf("query: scan resolved symbol: %w", err)
		}
		res.instrumentIDs = append(res.instrumentIDs, id)
		res.symbolForInstrument[id] = sym
	}
	if err := rows.Err(); err != nil {
		return resolution{}, fmt.Errorf("query: iterate resolved symbols: %w", err)
	}
	return res, nil
}

// definitionsPopulated reports whether definitions_data exists and has at
// least one row. A missing table (undefined_table, SQLSTATE 42P01) is
// treated as "not populated" rather than an error, matching §4.5 step 2.
func (b *Builder) definitionsPopulated(ctx context.Context) (bool, error) {
	var exists bool
	err := b.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM definitions_data LIMIT 1)`).Scan(&exists)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
			return false, nil
		}
		return false, fmt.Errorf("query: check definitions_data: %w", err)
	}
	return exists, nil
}

// AvailableSymbols returns distinct raw_symbol from definitions_data,
// falling back to distinct symbol from daily_ohlcv_data when Definitions is
// empty or absent, per §4.5's expansion.
func (b *Builder) AvailableSymbols(ctx context.Context) ([]string, error) {
	hasDefs, err := b.definitionsPopulated(ctx)
	if err != nil {
		return nil, err
	}

	table, column := "daily_ohlcv_data", "symbol"
	if hasDefs {
		table, column = "definitions_data", "raw_symbol"
	}

	rows, err := b.Pool.Query(ctx, fmt.Sprintf(`SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL`, column, table, column))
	if err != nil {
		return nil, fmt.Errorf("query: available symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("query: scan available symbol: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// enrichSymbol returns the symbol the result row should carry: when
// definitions resolution was used, the looked-up symbol for instrumentID;
// otherwise the fallback symbol already present on the fact row.
// Lookup misses are not fatal: they resolve to "UNKNOWN" per §4.5.
func (r resolution) enrichSymbol(instrumentID uint32, fallback string) string {
	if !r.usedDefinitions {
		return fallback
	}
	if s, ok := r.symbolForInstrument[instrumentID]; ok {
		return s
	}
	return "UNKNOWN"
}
