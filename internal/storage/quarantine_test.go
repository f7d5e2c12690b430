package storage

import (
	"strings"
	"testing"
)

func TestStringifyRecordHandlesArbitraryValues(t *testing.T) {
	rec := map[string]any{"a": 1, "b": "x", "c": nil}
	out := stringifyRecord(rec)
	if out["a"] != "1" || out["b"] != "x" {
		t.Fatalf("unexpected stringified record: %+v", out)
	}
}

func TestQuarantineCreateSQLHasExpectedShape(t *testing.T) {
	if quarantineCreateSQL == "" {
		t.Fatal("expected non-empty create SQL")
	}
	if !strings.Contains(quarantineCreateSQL, "CREATE TABLE IF NOT EXISTS quarantined_records") {
		t.Fatalf("expected an idempotent create of quarantined_records, got: %s", quarantineCreateSQL)
	}
}
