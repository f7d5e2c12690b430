package main

import (
	"os"
	"path/filepath"
	"testing"

	"histdata/internal/pipeline"
)

func writeJobFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write job file: %v", err)
	}
	return path
}

func TestLoadJobConfigValid(t *testing.T) {
	path := writeJobFile(t, `{
		"name": "es-daily",
		"api": "databento",
		"dataset": "GLBX.MDP3",
		"schema": "ohlcv-1d",
		"symbols": ["ES.c.0"],
		"stype_in": "continuous",
		"start_date": "2024-01-01",
		"end_date": "2024-02-01",
		"batch_size": 500
	}`)

	job, err := loadJobConfig(path)
	if err != nil {
		t.Fatalf("loadJobConfig: %v", err)
	}
	if job.Name != "es-daily" || job.BatchSize != 500 {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestLoadJobConfigRejectsUnknownOption(t *testing.T) {
	path := writeJobFile(t, `{
		"name": "es-daily",
		"api": "databento",
		"dataset": "GLBX.MDP3",
		"schema": "ohlcv-1d",
		"symbols": ["ES.c.0"],
		"stype_in": "continuous",
		"start_date": "2024-01-01",
		"end_date": "2024-02-01",
		"not_a_real_option": true
	}`)

	if _, err := loadJobConfig(path); err == nil {
		t.Fatal("expected an error for an unrecognized job option")
	}
}

func TestLoadJobConfigRejectsBadDates(t *testing.T) {
	path := writeJobFile(t, `{
		"name": "es-daily",
		"api": "databento",
		"dataset": "GLBX.MDP3",
		"schema": "ohlcv-1d",
		"symbols": ["ES.c.0"],
		"stype_in": "continuous",
		"start_date": "not-a-date",
		"end_date": "2024-02-01"
	}`)

	if _, err := loadJobConfig(path); err == nil {
		t.Fatal("expected an error for a malformed start_date")
	}
}

func TestLoadJobConfigRejectsInvalidJob(t *testing.T) {
	path := writeJobFile(t, `{
		"name": "",
		"api": "databento",
		"dataset": "GLBX.MDP3",
		"schema": "ohlcv-1d",
		"symbols": ["ES.c.0"],
		"stype_in": "continuous",
		"start_date": "2024-01-01",
		"end_date": "2024-02-01"
	}`)

	if _, err := loadJobConfig(path); err == nil {
		t.Fatal("expected job.Validate to reject a missing name")
	}
}

func TestExitCodeForResult(t *testing.T) {
	cases := []struct {
		name   string
		result pipeline.Result
		want   int
	}{
		{"clean completion", pipeline.Result{Status: "completed"}, 0},
		{"quarantined records", pipeline.Result{Status: "completed", Stats: pipeline.Statistics{RecordsQuarantined: 1}}, 2},
		{"errors encountered", pipeline.Result{Status: "completed", Stats: pipeline.Statistics{ErrorsEncountered: 1}}, 2},
		{"cancelled run", pipeline.Result{Status: "cancelled"}, 2},
		{"failed run", pipeline.Result{Status: "failed"}, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCodeForResult(tc.result); got != tc.want {
				t.Errorf("exitCodeForResult(%+v) = %d, want %d", tc.result, got, tc.want)
			}
		})
	}
}
