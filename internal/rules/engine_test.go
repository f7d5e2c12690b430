package rules

import (
	"testing"

	"histdata/internal/model"
)

func compileDefault(t *testing.T) *CompiledDocument {
	t.Helper()
	c, err := Compile(DefaultDocument())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return c
}

func TestCompileRejectsEmptySource(t *testing.T) {
	doc := Document{Rules: map[model.Kind][]FieldRule{
		model.KindTrade: {{Source: "", Target: "price"}},
	}}
	if _, err := Compile(doc); err == nil {
		t.Fatal("expected error for empty Source")
	}
}

func TestCompileRejectsDuplicateTarget(t *testing.T) {
	doc := Document{Rules: map[model.Kind][]FieldRule{
		model.KindTrade: {
			{Source: "a", Target: "price"},
			{Source: "b", Target: "price"},
		},
	}}
	if _, err := Compile(doc); err == nil {
		t.Fatal("expected error for duplicate target")
	}
}

func TestTransformBatchPreservesOrderAndLength(t *testing.T) {
	c := compileDefault(t)
	records := []model.Record{
		{"ts_event": int64(1), "instrument_id": "1", "symbol": "ES.c.0", "open": "1", "high": "2", "low": "0.5", "close": "1.5"},
		{"ts_event": int64(2), "instrument_id": "2", "symbol": "ES.c.0", "open": "3", "high": "4", "low": "2.5", "close": "3.5"},
	}
	out, failed := c.TransformBatch(records, model.KindOHLCV)
	if len(out) != len(records) {
		t.Fatalf("expected %d outputs, got %d", len(records), len(out))
	}
	if len(failed) != 0 {
		t.Fatalf("expected no failures, got %v", failed)
	}
	if out[0]["instrument_id"].(uint32) != 1 {
		t.Errorf("expected instrument_id 1, got %v", out[0]["instrument_id"])
	}
}

func TestTransformBatchCoercionFailurePassesThrough(t *testing.T) {
	c := compileDefault(t)
	records := []model.Record{
		{"ts_event": int64(1), "instrument_id": "1", "symbol": "ES.c.0", "open": "not-a-number", "high": "2", "low": "0.5", "close": "1.5"},
	}
	out, failed := c.TransformBatch(records, model.KindOHLCV)
	if len(failed) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failed))
	}
	if out[0]["open"] != "not-a-number" {
		t.Errorf("expected raw value forwarded, got %v", out[0]["open"])
	}
}

func TestTransformBatchDoesNotMutateInput(t *testing.T) {
	c := compileDefault(t)
	records := []model.Record{
		{"ts_event": int64(1), "instrument_id": "1", "symbol": "ES.c.0", "open": "1", "high": "2", "low": "0.5", "close": "1.5"},
	}
	_, _ = c.TransformBatch(records, model.KindOHLCV)
	if records[0]["instrument_id"] != "1" {
		t.Fatal("input record was mutated")
	}
}

func TestAliasRenameAppliedBeforeCoercion(t *testing.T) {
	c := compileDefault(t)
	records := []model.Record{
		{"ts_event": int64(1), "instrument_id": "7", "record_type": "19"},
	}
	out, failed := c.TransformBatch(records, model.KindDefinition)
	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}
	if out[0]["rtype"].(int32) != 19 {
		t.Errorf("expected rtype aliased from record_type, got %v", out[0]["rtype"])
	}
}

func TestStatTypeEnumCanonicalization(t *testing.T) {
	c := compileDefault(t)
	records := []model.Record{
		{"ts_event": int64(1), "instrument_id": "1", "symbol": "ES.c.0", "stat_type": "Settlement"},
	}
	out, failed := c.TransformBatch(records, model.KindStatistics)
	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}
	if out[0]["stat_type"] != "settlement" {
		t.Errorf("expected canonical stat_type, got %v", out[0]["stat_type"])
	}
}
