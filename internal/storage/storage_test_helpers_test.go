package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"histdata/internal/model"
)

func ohlcvRowFor(instrumentID uint32) model.Record {
	return model.Record{
		"ts_event":      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		"instrument_id": instrumentID,
		"symbol":        "ES.c.0",
		"open":          decimal.RequireFromString("10"),
		"high":          decimal.RequireFromString("12"),
		"low":           decimal.RequireFromString("9"),
		"close":         decimal.RequireFromString("11"),
		"volume":        uint64(100),
		"granularity":   "1d",
	}
}
