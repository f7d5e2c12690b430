package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"histdata/internal/model"
)

// QueryOHLCV returns daily_ohlcv_data rows for filter, ordered by
// (instrument_id, ts_event DESC).
func (b *Builder) QueryOHLCV(ctx context.Context, filter Filter) ([]Row, error) {
	res, err := b.resolveSymbols(ctx, filter.Symbols)
	if err != nil {
		return nil, err
	}

	qb := newClauseBuilder(res, filter)
	sql := qb.build("daily_ohlcv_data",
		"instrument_id, ts_event, symbol, open_price, high_price, low_price, close_price, volume, trade_count, vwap, granularity",
		0)

	rows, err := b.Pool.Query(ctx, sql, qb.args...)
	if err != nil {
		return nil, fmt.Errorf("query: QueryOHLCV: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var rec model.OHLCVRecord
		var vwap *decimal.Decimal
		var tradeCount *uint64
		if err := rows.Scan(&rec.InstrumentID, &rec.TsEvent, &rec.Symbol, &rec.Open, &rec.High, &rec.Low, &rec.Close, &rec.Volume, &tradeCount, &vwap, &rec.Granularity); err != nil {
			return nil, fmt.Errorf("query: scan OHLCV row: %w", err)
		}
		rec.TradeCount = tradeCount
		rec.VWAP = vwap
		rec.Symbol = res.enrichSymbol(rec.InstrumentID, rec.Symbol)
		out = append(out, Row{InstrumentID: rec.InstrumentID, TsEvent: rec.TsEvent, Symbol: rec.Symbol, Kind: model.KindOHLCV, Payload: rec})
	}
	return out, rows.Err()
}

// QueryTrade returns trades_data rows for filter, optionally restricted to
// a single side (empty means no restriction). Limit defaults to
// DefaultHighVolumeLimit per §4.5.
func (b *Builder) QueryTrade(ctx context.Context, filter Filter, side model.TradeSide) ([]Row, error) {
	res, err := b.resolveSymbols(ctx, filter.Symbols)
	if err != nil {
		return nil, err
	}

	qb := newClauseBuilder(res, filter)
	if side != "" {
		qb.addEquals("side", string(side))
	}
	sql := qb.build("trades_data", "instrument_id, ts_event, symbol, price, size, side, sequence, action", DefaultHighVolumeLimit)

	rows, err := b.Pool.Query(ctx, sql, qb.args...)
	if err != nil {
		return nil, fmt.Errorf("query: QueryTrade: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var rec model.TradeRecord
		if err := rows.Scan(&rec.InstrumentID, &rec.TsEvent, &rec.Symbol, &rec.Price, &rec.Size, &rec.Side, &rec.Sequence, &rec.Action); err != nil {
			return nil, fmt.Errorf("query: scan trade row: %w", err)
		}
		rec.Symbol = res.enrichSymbol(rec.InstrumentID, rec.Symbol)
		out = append(out, Row{InstrumentID: rec.InstrumentID, TsEvent: rec.TsEvent, Symbol: rec.Symbol, Kind: model.KindTrade, Payload: rec})
	}
	return out, rows.Err()
}

// QueryTBBO returns tbbo_data rows for filter, defaulting Limit to
// DefaultHighVolumeLimit per §4.5.
func (b *Builder) QueryTBBO(ctx context.Context, filter Filter) ([]Row, error) {
	res, err := b.resolveSymbols(ctx, filter.Symbols)
	if err != nil {
		return nil, err
	}

	qb := newClauseBuilder(res, filter)
	sql := qb.build("tbbo_data", "instrument_id, ts_event, symbol, bid_px, ask_px, bid_sz, ask_sz, bid_ct, ask_ct, sequence, is_crossed", DefaultHighVolumeLimit)

	rows, err := b.Pool.Query(ctx, sql, qb.args...)
	if err != nil {
		return nil, fmt.Errorf("query: QueryTBBO: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var rec model.TBBORecord
		if err := rows.Scan(&rec.InstrumentID, &rec.TsEvent, &rec.Symbol, &rec.BidPx, &rec.AskPx, &rec.BidSz, &rec.AskSz, &rec.BidCt, &rec.AskCt, &rec.Sequence, &rec.IsCrossed); err != nil {
			return nil, fmt.Errorf("query: scan TBBO row: %w", err)
		}
		rec.Symbol = res.enrichSymbol(rec.InstrumentID, rec.Symbol)
		out = append(out, Row{InstrumentID: rec.InstrumentID, TsEvent: rec.TsEvent, Symbol: rec.Symbol, Kind: model.KindTBBO, Payload: rec})
	}
	return out, rows.Err()
}

// QueryStatistics returns statistics_data rows for filter, optionally
// restricted to a single stat_type (empty means no restriction).
func (b *Builder) QueryStatistics(ctx context.Context, filter Filter, statType model.StatType) ([]Row, error) {
	res, err := b.resolveSymbols(ctx, filter.Symbols)
	if err != nil {
		return nil, err
	}

	qb := newClauseBuilder(res, filter)
	if statType != "" {
		qb.addEquals("stat_type", string(statType))
	}
	sql := qb.build("statistics_data",
		"instrument_id, ts_event, symbol, stat_type, stat_value, open_interest, settlement_price, high_limit, low_limit, sequence",
		0)

	rows, err := b.Pool.Query(ctx, sql, qb.args...)
	if err != nil {
		return nil, fmt.Errorf("query: QueryStatistics: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var rec model.StatisticsRecord
		if err := rows.Scan(&rec.InstrumentID, &rec.TsEvent, &rec.Symbol, &rec.StatType, &rec.StatValue, &rec.OpenInterest, &rec.SettlementPrice, &rec.HighLimit, &rec.LowLimit, &rec.Sequence); err != nil {
			return nil, fmt.Errorf("query: scan statistics row: %w", err)
		}
		rec.Symbol = res.enrichSymbol(rec.InstrumentID, rec.Symbol)
		out = append(out, Row{InstrumentID: rec.InstrumentID, TsEvent: rec.TsEvent, Symbol: rec.Symbol, Kind: model.KindStatistics, Payload: rec})
	}
	return out, rows.Err()
}

// QueryDefinition returns definitions_data rows for filter, optionally
// restricted by asset, exchange, and/or instrument class (empty strings
// mean no restriction on that dimension).
func (b *Builder) QueryDefinition(ctx context.Context, filter Filter, asset, exchange, instrumentClass string) ([]Row, error) {
	res, err := b.resolveSymbols(ctx, filter.Symbols)
	if err != nil {
		return nil, err
	}

	qb := newClauseBuilder(res, filter)
	if asset != "" {
		qb.addEquals("asset", asset)
	}
	if exchange != "" {
		qb.addEquals("exchange", exchange)
	}
	if instrumentClass != "" {
		qb.addEquals("instrument_class", instrumentClass)
	}
	sql := qb.build("definitions_data",
		"instrument_id, ts_event, raw_symbol, asset, exchange, instrument_class, currency, security_type, min_price_increment, expiration, activation",
		0)

	rows, err := b.Pool.Query(ctx, sql, qb.args...)
	if err != nil {
		return nil, fmt.Errorf("query: QueryDefinition: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var rec model.DefinitionRecord
		if err := rows.Scan(&rec.InstrumentID, &rec.TsEvent, &rec.RawSymbol, &rec.Asset, &rec.Exchange, &rec.InstrumentClass, &rec.Currency, &rec.SecurityType, &rec.MinPriceIncrement, &rec.Expiration, &rec.Activation); err != nil {
			return nil, fmt.Errorf("query: scan definition row: %w", err)
		}
		rec.Symbol = res.enrichSymbol(rec.InstrumentID, rec.RawSymbol)
		out = append(out, Row{InstrumentID: rec.InstrumentID, TsEvent: rec.TsEvent, Symbol: rec.Symbol, Kind: model.KindDefinition, Payload: rec})
	}
	return out, rows.Err()
}

// clauseBuilder accumulates WHERE conjuncts and their positional args for a
// range query, so each Query<Kind> method only supplies its table, its
// column list, and any kind-specific equality filters.
type clauseBuilder struct {
	where []string
	args  []any
	limit int
}

func newClauseBuilder(res resolution, filter Filter) *clauseBuilder {
	qb := &clauseBuilder{limit: filter.Limit}

	if res.usedDefinitions {
		if len(res.instrumentIDs) == 0 {
			// No requested symbol resolved to a known instrument: force an
			// empty result rather than returning every instrument's rows.
			qb.where = append(qb.where, "1 = 0")
		} else {
			placeholders := make([]string, len(res.instrumentIDs))
			for i, id := range res.instrumentIDs {
				qb.args = append(qb.args, id)
				placeholders[i] = fmt.Sprintf("$%d", len(qb.args))
			}
			qb.where = append(qb.where, fmt.Sprintf("instrument_id IN (%s)", strings.Join(placeholders, ", ")))
		}
	} else if len(filter.Symbols) > 0 {
		placeholders := make([]string, len(filter.Symbols))
		for i, s := range filter.Symbols {
			qb.args = append(qb.args, s)
			placeholders[i] = fmt.Sprintf("$%d", len(qb.args))
		}
		qb.where = append(qb.where, fmt.Sprintf("symbol IN (%s)", strings.Join(placeholders, ", ")))
	}

	if filter.StartDate != nil {
		qb.args = append(qb.args, *filter.StartDate)
		qb.where = append(qb.where, fmt.Sprintf("ts_event >= $%d", len(qb.args)))
	}
	if filter.EndDate != nil {
		qb.args = append(qb.args, *filter.EndDate)
		qb.where = append(qb.where, fmt.Sprintf("ts_event <= $%d", len(qb.args)))
	}
	return qb
}

func (qb *clauseBuilder) addEquals(column string, value any) {
	qb.args = append(qb.args, value)
	qb.where = append(qb.where, fmt.Sprintf("%s = $%d", column, len(qb.args)))
}

func (qb *clauseBuilder) build(table, columns string, defaultLimit int) string {
	limit := qb.limit
	if limit == 0 {
		limit = defaultLimit
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", columns, table)
	if len(qb.where) > 0 {
		fmt.Fprintf(&sb, " WHERE %s", strings.Join(qb.where, " AND "))
	}
	sb.WriteString(" ORDER BY instrument_id, ts_event DESC")
	if limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	}
	return sb.String()
}
