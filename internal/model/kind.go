// Package model defines the tagged-union record kinds that flow through the
// rule engine, validator, storage loaders, and query builder.
package model

import "fmt"

// Kind identifies which concrete record shape a Record carries.
type Kind int

const (
	KindUnknown Kind = iota
	KindOHLCV
	KindTrade
	KindTBBO
	KindStatistics
	KindDefinition
)

func (k Kind) String() string {
	switch k {
	case KindOHLCV:
		return "ohlcv"
	case KindTrade:
		return "trade"
	case KindTBBO:
		return "tbbo"
	case KindStatistics:
		return "statistics"
	case KindDefinition:
		return "definition"
	default:
		return "unknown"
	}
}

// ParseSchema normalizes a job's schema string via the fixed alias table
// (definitions -> definition, stats -> statistics, ohlcv -> ohlcv-1d) and
// returns the resolved kind plus, for OHLCV, the trailing granularity token.
// An ohlcv schema with no granularity suffix defaults to "1d".
func ParseSchema(schema string) (Kind, string, error) {
	s := schema
	switch s {
	case "definitions":
		s = "definition"
	case "stats":
		s = "statistics"
	case "ohlcv":
		s = "ohlcv-1d"
	}

	switch {
	case s == "definition":
		return KindDefinition, "", nil
	case s == "statistics":
		return KindStatistics, "", nil
	case s == "trade":
		return KindTrade, "", nil
	case s == "tbbo":
		return KindTBBO, "", nil
	case len(s) > 6 && s[:6] == "ohlcv-":
		g := s[6:]
		if !validGranularity(g) {
			return KindUnknown, "", fmt.Errorf("model: unknown granularity %q in schema %q", g, schema)
		}
		return KindOHLCV, g, nil
	default:
		return KindUnknown, "", fmt.Errorf("model: unrecognized schema %q", schema)
	}
}

func validGranularity(g string) bool {
	switch g {
	case "1s", "1m", "1h", "1d":
		return true
	default:
		return false
	}
}
