// Package pipeline implements the chunked EXTRACT -> TRANSFORM -> VALIDATE ->
// STORE state machine that drives a single ingestion job end-to-end, per
// §4.1. It never returns a Go error from its public entry point: every
// failure is reported in the returned Result, matching the REDESIGN FLAGS
// decision to replace exception-driven control flow with explicit results.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"histdata/internal/adapter"
	"histdata/internal/config"
	"histdata/internal/jobstate"
	"histdata/internal/model"
	"histdata/internal/rules"
	"histdata/internal/storage"
	"histdata/internal/validate"
)

// overlapDepth is the buffered-channel depth between EXTRACT and
// TRANSFORM/VALIDATE/STORE, per §5's "bounded channel, depth ≈ batch_size
// × small constant" allowance.
const overlapDepth = 2

// Orchestrator wires one job's collaborators: the vendor adapter, the
// compiled mapping document, the kind's storage loader, and the optional
// quarantine sink / cursor cache / structured logger. None of these fields
// are owned by Orchestrator — callers construct and close them.
type Orchestrator struct {
	Adapter        adapter.Adapter
	Rules          *rules.CompiledDocument
	Loader         storage.Loader
	QuarantineSink storage.QuarantineSink // optional
	CursorStore    jobstate.Store         // optional
	Logger         *zap.Logger            // required; use logging.NoOp() if unwanted
	Progress       ProgressFunc           // optional
	Tracer         trace.Tracer           // optional; defaults to the global no-op tracer
}

// Result is the execute() contract from §4.1's public interface: status,
// a record count, duration, warnings, and an optional error string.
type Result struct {
	Status           string // "completed" | "failed" | "cancelled"
	RecordsProcessed int
	Duration         time.Duration
	Warnings         []string
	Error            string
	RunID            string
	Stats            Statistics
}

func (o *Orchestrator) tracer() trace.Tracer {
	if o.Tracer != nil {
		return o.Tracer
	}
	return otel.Tracer("histdata/internal/pipeline")
}

// Execute runs job end-to-end: validates configuration, connects the
// adapter, pulls batches lazily into job.BatchSize-sized chunks, and drives
// each chunk through TRANSFORM -> VALIDATE -> STORE. Cleanup (adapter
// disconnect, cursor close) runs on every exit path.
func (o *Orchestrator) Execute(ctx context.Context, job config.JobConfig) Result {
	start := time.Now()
	runID := uuid.New()
	logger := o.Logger.With(zap.String("job", job.Name), zap.String("run_id", runID.String()))

	ctx, span := o.tracer().Start(ctx, "pipeline.execute", trace.WithAttributes(
		attribute.String("job", job.Name),
		attribute.String("run_id", runID.String()),
	))
	defer span.End()

	if err := job.Validate(); err != nil {
		return o.failResult(runID, start, &PipelineError{Kind: ConfigError, Message: "invalid job configuration", Cause: err})
	}

	kind, granularity, err := model.ParseSchema(job.Schema)
	if err != nil {
		return o.failResult(runID, start, &PipelineError{Kind: ConfigError, Message: "unrecognized schema", Cause: err})
	}

	if err := o.Adapter.ValidateConfig(job); err != nil {
		return o.failResult(runID, start, &PipelineError{Kind: AdapterError, Message: "adapter rejected job configuration", Cause: err})
	}

	if err := o.Adapter.Connect(ctx); err != nil {
		return o.failResult(runID, start, &PipelineError{Kind: AdapterError, Message: "adapter connect failed", Cause: err})
	}
	defer func() {
		if err := o.Adapter.Disconnect(context.Background()); err != nil {
			logger.Warn("adapter disconnect failed", zap.Error(err))
		}
	}()

	cursor, err := o.Adapter.Fetch(ctx, job)
	if err != nil {
		return o.failResult(runID, start, &PipelineError{Kind: AdapterError, Message: "adapter fetch initialization failed", Cause: err})
	}
	defer func() {
		if err := cursor.Close(); err != nil {
			logger.Warn("cursor close failed", zap.Error(err))
		}
	}()

	stats := newStatsCollector(start)
	var warnings []string

	status, runErr := o.drive(ctx, job, kind, granularity, cursor, stats, logger, runID, &warnings)

	final := stats.snapshot()
	final.EndTime = time.Now()

	result := Result{
		Status:           status,
		RecordsProcessed: final.RecordsStored,
		Duration:         final.EndTime.Sub(final.StartTime),
		Warnings:         warnings,
		RunID:            runID.String(),
		Stats:            final,
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}
	return result
}

// drive runs the overlapped producer/consumer loop. The producer pulls
// batches from cursor and forwards them on a bounded channel; the consumer
// accumulates records into job.BatchSize chunks and runs each through
// TRANSFORM/VALIDATE/STORE. Cancellation stops the producer from pulling
// further, lets any in-flight chunk finish storing, and returns "cancelled".
func (o *Orchestrator) drive(ctx context.Context, job config.JobConfig, kind model.Kind, granularity string, cursor adapter.Cursor, stats *statsCollector, logger *zap.Logger, runID uuid.UUID, warnings *[]string) (string, error) {
	batches := make(chan adapter.Batch, overlapDepth)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(batches)
		for {
			select {
			case <-gctx.Done():
				return nil
			default:
			}

			batch, ok, err := cursor.Next(gctx)
			if err != nil {
				logger.Warn("extract error, skipping batch", zap.Error(err))
				stats.addErrors(1)
				continue
			}
			if !ok {
				return nil
			}

			select {
			case batches <- batch:
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		// A chunk that has started runs to the end of STORE even if ctx is
		// cancelled meanwhile; no new chunk starts after cancellation.
		storeCtx := context.WithoutCancel(gctx)
		var pending []model.Record
		for batch := range batches {
			pending = append(pending, batch.Records...)
			for len(pending) >= job.BatchSize && gctx.Err() == nil {
				chunk := pending[:job.BatchSize]
				pending = pending[job.BatchSize:]
				o.processChunk(storeCtx, job, kind, granularity, chunk, stats, logger, runID)
			}
			if gctx.Err() != nil {
				return nil
			}
		}
		if len(pending) > 0 && gctx.Err() == nil {
			o.processChunk(storeCtx, job, kind, granularity, pending, stats, logger, runID)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return "failed", &PipelineError{Kind: InternalError, Message: "pipeline loop failed", Cause: err}
	}
	if ctx.Err() != nil {
		*warnings = append(*warnings, "run cancelled before all chunks were processed")
		return "cancelled", ctx.Err()
	}
	return "completed", nil
}

// processChunk runs one chunk through TRANSFORM -> VALIDATE -> STORE,
// updating stats and persisting the resumable cursor on success. Failures
// at any stage are logged and counted; they never abort the job.
func (o *Orchestrator) processChunk(ctx context.Context, job config.JobConfig, kind model.Kind, granularity string, chunk []model.Record, stats *statsCollector, logger *zap.Logger, runID uuid.UUID) {
	stats.incChunks()
	stats.addFetched(len(chunk))

	_, chunkSpan := o.tracer().Start(ctx, "pipeline.chunk")
	defer chunkSpan.End()

	o.report("transform", len(chunk), stats, StageTransform)
	normalized, failed := o.Rules.TransformBatch(chunk, kind)
	stats.addTransformed(len(normalized))
	if len(failed) > 0 {
		stats.addErrors(len(failed))
		logger.Debug("transform errors in chunk", zap.Int("count", len(failed)))
	}

	if kind == model.KindOHLCV {
		for _, rec := range normalized {
			if _, ok := rec["granularity"]; !ok {
				rec["granularity"] = granularity
			}
		}
	}

	o.report("validate", len(normalized), stats, StageValidate)
	result := validate.Validate(normalized, kind, validate.JobContext{Symbols: job.Symbols})
	stats.addValidated(len(normalized))
	stats.addQuarantined(len(result.Quarantined))

	for _, q := range result.Quarantined {
		logger.Warn("record quarantined", zap.String("kind", q.Kind.String()), zap.String("reason", q.Reason))
	}
	if len(result.Quarantined) > 0 && o.QuarantineSink != nil {
		if err := o.QuarantineSink.Write(ctx, job.Name, result.Quarantined); err != nil {
			logger.Warn("quarantine sink write failed", zap.Error(err))
		}
	}

	if len(result.Good) == 0 {
		return
	}

	o.report("store", len(result.Good), stats, StageStore)
	insertResult, err := o.Loader.Insert(ctx, result.Good, job.API)
	if err != nil {
		logger.Error("storage batch failed", zap.Error(err))
		stats.addErrors(1)
		return
	}
	stats.addStored(insertResult.Inserted)
	stats.addErrors(insertResult.Errors)

	o.saveCursor(ctx, job, result.Good, stats.snapshot().ChunksProcessed, runID, logger)
}

// saveCursor persists the resumable cursor after a successful STORE,
// falling back silently (logged, not fatal) when CursorStore is unset or
// errors, per §4's InternalError handling of cursor-cache failures.
func (o *Orchestrator) saveCursor(ctx context.Context, job config.JobConfig, stored []model.Record, chunkIndex int, runID uuid.UUID, logger *zap.Logger) {
	if o.CursorStore == nil {
		return
	}
	var latest time.Time
	for _, rec := range stored {
		if ts, ok := rec["ts_event"].(time.Time); ok && ts.After(latest) {
			latest = ts
		}
	}
	if latest.IsZero() {
		return
	}
	cur := jobstate.Cursor{ChunkIndex: chunkIndex, ChunkEnd: latest, RunID: runID.String(), RecordedAt: time.Now()}
	if err := o.CursorStore.SaveCursor(ctx, job.Name, cur); err != nil {
		logger.Warn("cursor save failed", zap.Error(err))
	}
}

func (o *Orchestrator) report(description string, n int, stats *statsCollector, stage Stage) {
	if o.Progress == nil {
		return
	}
	snap := stats.snapshot()
	o.Progress(description, n, snap.RecordsFetched, stage, map[string]any{
		"chunks_processed": snap.ChunksProcessed,
	})
}

func (o *Orchestrator) failResult(runID uuid.UUID, start time.Time, perr *PipelineError) Result {
	o.Logger.Error(perr.Message, zap.String("run_id", runID.String()), zap.String("kind", perr.Kind.String()), zap.Error(perr.Cause))
	return Result{
		Status:   "failed",
		Duration: time.Since(start),
		RunID:    runID.String(),
		Error:    perr.Error(),
		Stats:    Statistics{StartTime: start, EndTime: time.Now()},
	}
}
