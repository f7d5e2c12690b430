package validate

import (
	"testing"

	"github.com/shopspring/decimal"

	"histdata/internal/model"
)

func ohlcvRecord(instrumentID uint32, symbol string) model.Record {
	return model.Record{
		"ts_event":      1,
		"instrument_id": instrumentID,
		"symbol":        symbol,
		"open":          decimal.RequireFromString("10"),
		"high":          decimal.RequireFromString("12"),
		"low":           decimal.RequireFromString("9"),
		"close":         decimal.RequireFromString("11"),
	}
}

func TestValidateGoodRecordPassesThrough(t *testing.T) {
	res := Validate([]model.Record{ohlcvRecord(1, "ES.c.0")}, model.KindOHLCV, JobContext{})
	if len(res.Good) != 1 || len(res.Quarantined) != 0 {
		t.Fatalf("expected 1 good, 0 quarantined; got %d/%d", len(res.Good), len(res.Quarantined))
	}
}

func TestValidateRepairsMissingSymbolFromSingleJobSymbol(t *testing.T) {
	rec := ohlcvRecord(1, "")
	res := Validate([]model.Record{rec}, model.KindOHLCV, JobContext{Symbols: []string{"ES.c.0"}})
	if len(res.Good) != 1 {
		t.Fatalf("expected repaired record to be good, got %d good / %d quarantined", len(res.Good), len(res.Quarantined))
	}
	if res.Good[0]["symbol"] != "ES.c.0" {
		t.Errorf("expected symbol repaired to ES.c.0, got %v", res.Good[0]["symbol"])
	}
	if res.Repaired != 1 {
		t.Errorf("expected Repaired=1, got %d", res.Repaired)
	}
}

func TestValidateRepairsMissingSymbolFromInstrumentID(t *testing.T) {
	rec := ohlcvRecord(12345, "")
	res := Validate([]model.Record{rec}, model.KindOHLCV, JobContext{})
	if len(res.Good) != 1 {
		t.Fatalf("expected repaired record to be good")
	}
	if res.Good[0]["symbol"] != "INSTRUMENT_12345" {
		t.Errorf("expected synthetic placeholder symbol, got %v", res.Good[0]["symbol"])
	}
}

func TestValidateQuarantinesMissingTsEvent(t *testing.T) {
	rec := model.Record{
		"instrument_id": uint32(1),
		"symbol":        "ES.c.0",
		"price":         decimal.RequireFromString("1"),
		"size":          uint32(1),
	}
	res := Validate([]model.Record{rec}, model.KindTrade, JobContext{})
	if len(res.Good) != 0 || len(res.Quarantined) != 1 {
		t.Fatalf("expected quarantine for missing ts_event, got %d good / %d quarantined", len(res.Good), len(res.Quarantined))
	}
}

func TestValidateStatisticsPriceRenamedToStatValue(t *testing.T) {
	rec := model.Record{
		"ts_event":      1,
		"instrument_id": uint32(1),
		"symbol":        "ES.c.0",
		"stat_type":     "settlement",
		"price":         decimal.RequireFromString("100"),
	}
	res := Validate([]model.Record{rec}, model.KindStatistics, JobContext{})
	if len(res.Good) != 1 {
		t.Fatalf("expected record repaired and stored")
	}
	if _, present := res.Good[0]["price"]; present {
		t.Error("expected price field removed after rename")
	}
	if res.Good[0]["stat_value"] == nil {
		t.Error("expected stat_value populated from price")
	}
}

func TestValidateDefinitionDefaultsInjected(t *testing.T) {
	rec := model.Record{
		"ts_event":      1,
		"instrument_id": uint32(1),
		"raw_symbol":    "ES",
	}
	res := Validate([]model.Record{rec}, model.KindDefinition, JobContext{})
	if len(res.Good) != 1 {
		t.Fatalf("expected record repaired and stored")
	}
	if res.Good[0]["rtype"] != int32(19) {
		t.Errorf("expected default rtype=19, got %v", res.Good[0]["rtype"])
	}
	if res.Good[0]["security_update_action"] != "A" {
		t.Errorf("expected default security_update_action='A', got %v", res.Good[0]["security_update_action"])
	}
}

func TestValidateQuarantinesOHLCVPriceViolation(t *testing.T) {
	rec := ohlcvRecord(1, "ES.c.0")
	rec["close"] = decimal.RequireFromString("999")
	res := Validate([]model.Record{rec}, model.KindOHLCV, JobContext{})
	if len(res.Good) != 0 || len(res.Quarantined) != 1 {
		t.Fatalf("expected quarantine for price violation, got %d good / %d quarantined", len(res.Good), len(res.Quarantined))
	}
}

func TestValidatePreservesCountInvariant(t *testing.T) {
	records := []model.Record{
		ohlcvRecord(1, "ES.c.0"),
		ohlcvRecord(2, ""),
	}
	res := Validate(records, model.KindOHLCV, JobContext{Symbols: []string{"ES.c.0"}})
	if len(res.Good)+len(res.Quarantined) != len(records) {
		t.Fatalf("|good|+|quarantined| must equal |transformed|: got %d+%d != %d",
			len(res.Good), len(res.Quarantined), len(records))
	}
}
