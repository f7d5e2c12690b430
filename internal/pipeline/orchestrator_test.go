package pipeline

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"histdata/internal/adapter"
	"histdata/internal/config"
	"histdata/internal/jobstate"
	"histdata/internal/logging"
	"histdata/internal/model"
	"histdata/internal/rules"
	"histdata/internal/storage"
)

// fakeLoader is a storage.Loader test double recording every Insert call.
type fakeLoader struct {
	insertErr error
	batches   [][]model.Record
}

func (f *fakeLoader) EnsureSchema(ctx context.Context) error { return nil }

func (f *fakeLoader) Insert(ctx context.Context, records []model.Record, dataSource string) (storage.InsertResult, error) {
	if f.insertErr != nil {
		return storage.InsertResult{}, f.insertErr
	}
	f.batches = append(f.batches, records)
	return storage.InsertResult{Inserted: len(records)}, nil
}

func ohlcvJob(symbols []string, batchSize int) config.JobConfig {
	return config.JobConfig{
		Name:      "test-job",
		API:       "databento",
		Dataset:   "GLBX.MDP3",
		Schema:    "ohlcv-1d",
		Symbols:   symbols,
		StypeIn:   config.StypeContinuous,
		StartDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		BatchSize: batchSize,
	}
}

func ohlcvFixtureRecord(day int) model.Record {
	return model.Record{
		"ts_event":      time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		"instrument_id": 1,
		"symbol":        "ES.c.0",
		"open":          "4700.00",
		"high":          "4705.00",
		"low":           "4695.00",
		"close":         "4700.25",
		"volume":        "1000",
	}
}

func newTestOrchestrator(t *testing.T, fixture *adapter.FixtureAdapter, loader *fakeLoader) *Orchestrator {
	t.Helper()
	compiled, err := rules.Compile(rules.DefaultDocument())
	if err != nil {
		t.Fatalf("compile rules: %v", err)
	}
	return &Orchestrator{
		Adapter:     fixture,
		Rules:       compiled,
		Loader:      loader,
		CursorStore: jobstate.NewMemoryStore(),
		Logger:      zap.NewNop(),
	}
}

func TestExecuteOHLCVRoundTrip(t *testing.T) {
	fixture := &adapter.FixtureAdapter{
		Batches: []adapter.Batch{
			{Kind: model.KindOHLCV, Records: []model.Record{ohlcvFixtureRecord(2), ohlcvFixtureRecord(3), ohlcvFixtureRecord(4)}},
		},
	}
	loader := &fakeLoader{}
	o := newTestOrchestrator(t, fixture, loader)

	result := o.Execute(context.Background(), ohlcvJob([]string{"ES.c.0"}, 1000))

	if result.Status != "completed" {
		t.Fatalf("expected completed, got %s (err=%s)", result.Status, result.Error)
	}
	if result.Stats.RecordsStored != 3 {
		t.Fatalf("expected 3 stored, got %+v", result.Stats)
	}
	if result.Stats.RecordsQuarantined != 0 {
		t.Fatalf("expected 0 quarantined, got %+v", result.Stats)
	}
	if len(loader.batches) != 1 || len(loader.batches[0]) != 3 {
		t.Fatalf("expected a single 3-record batch to storage, got %+v", loader.batches)
	}
	for _, rec := range loader.batches[0] {
		if rec["granularity"] != "1d" {
			t.Errorf("expected granularity injected onto OHLCV record, got %+v", rec)
		}
	}
}

func TestExecuteQuarantinesStructurallyInvalidOHLCV(t *testing.T) {
	bad := ohlcvFixtureRecord(2)
	bad["high"] = "4690.00" // high below low: structurally invalid

	fixture := &adapter.FixtureAdapter{
		Batches: []adapter.Batch{{Kind: model.KindOHLCV, Records: []model.Record{bad}}},
	}
	loader := &fakeLoader{}
	o := newTestOrchestrator(t, fixture, loader)

	result := o.Execute(context.Background(), ohlcvJob([]string{"ES.c.0"}, 1000))

	if result.Status != "completed" {
		t.Fatalf("a quarantined record should not fail the job, got %s", result.Status)
	}
	if result.Stats.RecordsQuarantined != 1 {
		t.Fatalf("expected 1 quarantined, got %+v", result.Stats)
	}
	if result.Stats.RecordsStored != 0 {
		t.Fatalf("expected 0 stored, got %+v", result.Stats)
	}
}

func TestExecuteSplitsIntoBatchSizeChunks(t *testing.T) {
	records := []model.Record{ohlcvFixtureRecord(2), ohlcvFixtureRecord(3), ohlcvFixtureRecord(4), ohlcvFixtureRecord(5), ohlcvFixtureRecord(6)}
	fixture := &adapter.FixtureAdapter{Batches: []adapter.Batch{{Kind: model.KindOHLCV, Records: records}}}
	loader := &fakeLoader{}
	o := newTestOrchestrator(t, fixture, loader)

	result := o.Execute(context.Background(), ohlcvJob([]string{"ES.c.0"}, 2))

	if result.Status != "completed" {
		t.Fatalf("expected completed, got %s", result.Status)
	}
	if result.Stats.ChunksProcessed != 3 {
		t.Fatalf("expected 3 chunks (2,2,1) for 5 records at batch_size 2, got %d", result.Stats.ChunksProcessed)
	}
	if result.Stats.RecordsStored != 5 {
		t.Fatalf("expected 5 stored across chunks, got %d", result.Stats.RecordsStored)
	}
}

func TestExecuteFatalOnAdapterConnectFailure(t *testing.T) {
	fixture := &adapter.FixtureAdapter{ConnectErr: context.DeadlineExceeded}
	loader := &fakeLoader{}
	o := newTestOrchestrator(t, fixture, loader)

	result := o.Execute(context.Background(), ohlcvJob([]string{"ES.c.0"}, 1000))

	if result.Status != "failed" {
		t.Fatalf("expected failed status on connect error, got %s", result.Status)
	}
	if result.Error == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestExecuteFatalOnInvalidJobConfig(t *testing.T) {
	fixture := &adapter.FixtureAdapter{}
	loader := &fakeLoader{}
	o := newTestOrchestrator(t, fixture, loader)

	job := ohlcvJob([]string{"ES.c.0"}, 1000)
	job.Name = "" // invalid: required field missing

	result := o.Execute(context.Background(), job)

	if result.Status != "failed" {
		t.Fatalf("expected failed status on invalid config, got %s", result.Status)
	}
}

func TestExecuteStorageBatchErrorCountsAndContinues(t *testing.T) {
	fixture := &adapter.FixtureAdapter{
		Batches: []adapter.Batch{{Kind: model.KindOHLCV, Records: []model.Record{ohlcvFixtureRecord(2)}}},
	}
	loader := &fakeLoader{insertErr: context.Canceled}
	o := newTestOrchestrator(t, fixture, loader)

	result := o.Execute(context.Background(), ohlcvJob([]string{"ES.c.0"}, 1000))

	if result.Status != "completed" {
		t.Fatalf("a storage error should not fail the overall job, got %s", result.Status)
	}
	if result.Stats.ErrorsEncountered == 0 {
		t.Fatal("expected storage error to be counted")
	}
	if result.Stats.RecordsStored != 0 {
		t.Fatalf("expected 0 stored when the insert call errored, got %d", result.Stats.RecordsStored)
	}
}

func TestExecuteUsesNoOpLoggerSafely(t *testing.T) {
	fixture := &adapter.FixtureAdapter{Batches: []adapter.Batch{{Kind: model.KindOHLCV, Records: []model.Record{ohlcvFixtureRecord(2)}}}}
	loader := &fakeLoader{}
	compiled, err := rules.Compile(rules.DefaultDocument())
	if err != nil {
		t.Fatalf("compile rules: %v", err)
	}
	o := &Orchestrator{
		Adapter: fixture,
		Rules:   compiled,
		Loader:  loader,
		Logger:  logging.NoOp(),
	}
	result := o.Execute(context.Background(), ohlcvJob([]string{"ES.c.0"}, 1000))
	if result.Status != "completed" {
		t.Fatalf("expected completed, got %s", result.Status)
	}
}
