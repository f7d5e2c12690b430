package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Header carries the fields common to every record kind.
type Header struct {
	TsEvent      time.Time
	TsRecv       time.Time
	InstrumentID uint32
	PublisherID  uint16
	Symbol       string
	DataSource   string
}

// OHLCVRecord is an open/high/low/close/volume aggregate for one bucket.
type OHLCVRecord struct {
	Header
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
	Volume      uint64
	TradeCount  *uint64
	VWAP        *decimal.Decimal
	Granularity string
}

// TradeSide enumerates the aggressor side of a trade print.
type TradeSide string

const (
	SideBuy     TradeSide = "B"
	SideSell    TradeSide = "S"
	SideNeutral TradeSide = "N"
)

// TradeRecord is a single executed print.
type TradeRecord struct {
	Header
	Price    decimal.Decimal
	Size     uint32
	Side     TradeSide
	Sequence uint64
	Action   *string
}

// TBBORecord is a top-of-book bid/offer snapshot.
type TBBORecord struct {
	Header
	BidPx     *decimal.Decimal
	AskPx     *decimal.Decimal
	BidSz     *uint32
	AskSz     *uint32
	BidCt     *uint32
	AskCt     *uint32
	Sequence  uint64
	IsCrossed bool
}

// StatType enumerates the kind of session-boundary value a StatisticsRecord carries.
type StatType string

const (
	StatSettlement  StatType = "settlement"
	StatOpenInterest StatType = "open_interest"
	StatHighLimit   StatType = "high_limit"
	StatLowLimit    StatType = "low_limit"
)

// StatisticsRecord is an end-of-session or session-boundary value.
type StatisticsRecord struct {
	Header
	StatType        StatType
	StatValue       *decimal.Decimal
	OpenInterest    *decimal.Decimal
	SettlementPrice *decimal.Decimal
	HighLimit       *decimal.Decimal
	LowLimit        *decimal.Decimal
	Sequence        uint64
	Flags           *uint32
}

// DefinitionRecord is reference data for an instrument. Field set matches
// SPEC_FULL's enumeration of the commonly-queried subset of the vendor's
// definition schema.
type DefinitionRecord struct {
	Header
	RawSymbol              string
	SecurityUpdateAction   string
	InstrumentClass        string
	MinPriceIncrement      *decimal.Decimal
	DisplayFactor          *decimal.Decimal
	Expiration             *time.Time
	Activation             *time.Time
	HighLimitPrice         *decimal.Decimal
	LowLimitPrice          *decimal.Decimal
	MaxPriceVariation      *decimal.Decimal
	UnitOfMeasureQty       *decimal.Decimal
	MainFraction           *int32
	PriceDisplayFormat     *int32
	SubFraction            *int32
	UnderlyingProduct      *int32
	Rtype                  int32
	InstAttribValue        int32
	UnderlyingID            *uint32
	MarketDepthImplied      *int32
	MarketDepth             *int32
	MarketSegmentID         *uint32
	MaxTradeVol             *uint64
	MinLotSize              int32
	MinLotSizeBlock         int32
	MinLotSizeRoundLot      int32
	MinTradeVol             *uint64
	ContractMultiplier      *int32
	DecayQuantity           *int32
	OriginalContractSize    *int32
	TradingReferencePrice   *decimal.Decimal
	ApplID                  *int16
	MaturityYear            *int16
	DecayStartDate          *time.Time
	ChannelID               *uint16
	Currency                string
	SettlCurrency           string
	SecSubType              string
	Group                   string
	Exchange                string
	Asset                   string
	CFI                     string
	SecurityType            string
	UnitOfMeasure           string
	StrikePrice             *decimal.Decimal
	StrikePriceCurrency     string
	LegCount                *int32
	LegIndex                *int32
	LegInstrumentID         *uint32
	LegRatioQtyNumerator    *int32
	LegRatioQtyDenominator  *int32
	LegPrice                *decimal.Decimal
	LegDelta                *decimal.Decimal
	TradingReferenceDate    *time.Time
	MDSecurityTradingStatus *int16
	SecurityGroup           string
}

// Record is a raw or normalized record of any kind, carried through the
// pipeline as a plain map until the rule engine binds it to a concrete
// struct. Keeping the raw shape as a map lets the rule engine apply
// declarative field rules without compile-time knowledge of the vendor's
// wire format.
type Record map[string]any

// UniqueKey returns the tuple of column names forming the upsert identity
// for kind, matching invariant 3 of the data model.
func UniqueKey(k Kind) []string {
	switch k {
	case KindOHLCV:
		return []string{"instrument_id", "ts_event", "granularity", "data_source"}
	case KindTrade:
		return []string{"instrument_id", "ts_event", "sequence", "price", "size", "side"}
	case KindTBBO:
		// §3 invariant 3 says "same as Trade" but TBBO rows carry no
		// price/size/side columns; the structurally meaningful subset of
		// that tuple is instrument_id/ts_event/sequence.
		return []string{"instrument_id", "ts_event", "sequence"}
	case KindStatistics:
		return []string{"instrument_id", "ts_event", "stat_type", "sequence"}
	case KindDefinition:
		return []string{"instrument_id", "ts_event"}
	default:
		return nil
	}
}

// RequiredFields returns the required-field floor for kind, per §4.3.
func RequiredFields(k Kind) []string {
	switch k {
	case KindOHLCV:
		return []string{"ts_event", "instrument_id", "symbol", "open", "high", "low", "close"}
	case KindTrade:
		return []string{"ts_event", "instrument_id", "price", "size", "symbol"}
	case KindTBBO:
		return []string{"ts_event", "instrument_id", "symbol"}
	case KindStatistics:
		return []string{"ts_event", "instrument_id", "symbol", "stat_type"}
	case KindDefinition:
		return []string{"ts_event", "instrument_id", "raw_symbol"}
	default:
		return nil
	}
}

// TableName returns the fact table backing kind, per §6's bit-exact schema.
func TableName(k Kind) string {
	switch k {
	case KindOHLCV:
		return "daily_ohlcv_data"
	case KindTrade:
		return "trades_data"
	case KindTBBO:
		return "tbbo_data"
	case KindStatistics:
		return "statistics_data"
	case KindDefinition:
		return "definitions_data"
	default:
		return ""
	}
}
