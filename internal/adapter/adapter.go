// Package adapter defines the extract-side contract the pipeline
// orchestrator consumes (§4.6), plus two non-networked implementations used
// by tests and demos.
package adapter

import (
	"context"

	"histdata/internal/config"
	"histdata/internal/model"
)

// Batch is one logical unit of records the orchestrator pulls from an
// Adapter. Every record in a batch shares the same kind; the orchestrator
// resolves the kind once per job from the job's schema and never inspects
// Kind itself, so a batch that disagrees with the job's schema is not
// detected here — it surfaces downstream as per-field coercion failures in
// TRANSFORM/VALIDATE.
type Batch struct {
	Kind    model.Kind
	Records []model.Record
}

// Adapter is the contract any extractor plugged into the orchestrator must
// satisfy. Implementations own retry/backoff against their vendor; the
// orchestrator never retries a vendor call itself.
type Adapter interface {
	ValidateConfig(job config.JobConfig) error
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// Fetch returns a finite, lazily-pulled sequence of batches for job.
	// The sequence must be finite and must not interleave kinds within a
	// single batch. Cancellation of ctx is a first-class input: Fetch must
	// stop yielding promptly once ctx is done, rather than being killed by
	// an injected exception.
	Fetch(ctx context.Context, job config.JobConfig) (Cursor, error)
}

// Cursor is a bounded producer of batches: the consumer pulls with Next,
// back-pressure is the consumer's pull rate, and end-of-stream is explicit
// via the ok return rather than a panic or sentinel error.
type Cursor interface {
	Next(ctx context.Context) (Batch, bool, error)
	Close() error
}
