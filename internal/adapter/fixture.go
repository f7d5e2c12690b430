package adapter

import (
	"context"
	"sync"

	"histdata/internal/config"
)

// FixtureAdapter is a deterministic, in-memory Adapter used by unit and
// integration tests to exercise the orchestrator without a vendor
// dependency. Batches is yielded in order, once per Fetch call.
type FixtureAdapter struct {
	mu        sync.Mutex
	Batches   []Batch
	connected bool

	// ConnectErr, if set, is returned by Connect.
	ConnectErr error
}

var _ Adapter = (*FixtureAdapter)(nil)

func (f *FixtureAdapter) ValidateConfig(job config.JobConfig) error {
	return job.Validate()
}

func (f *FixtureAdapter) Connect(ctx context.Context) error {
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *FixtureAdapter) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *FixtureAdapter) Fetch(ctx context.Context, job config.JobConfig) (Cursor, error) {
	batches := make([]Batch, len(f.Batches))
	copy(batches, f.Batches)
	return &sliceCursor{batches: batches}, nil
}

// sliceCursor walks a pre-built slice of batches, honoring ctx cancellation
// at each pull per §5.
type sliceCursor struct {
	mu      sync.Mutex
	batches []Batch
	idx     int
}

func (c *sliceCursor) Next(ctx context.Context) (Batch, bool, error) {
	select {
	case <-ctx.Done():
		return Batch{}, false, ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idx >= len(c.batches) {
		return Batch{}, false, nil
	}
	b := c.batches[c.idx]
	c.idx++
	return b, true, nil
}

func (c *sliceCursor) Close() error { return nil }

// ChannelAdapter wraps a channel of pre-produced batches, demonstrating the
// bounded-producer / explicit-end-of-stream model from REDESIGN FLAGS: the
// producer side closes Channel to signal end-of-stream; back-pressure is
// the consumer's pull rate against the channel's buffer depth.
type ChannelAdapter struct {
	Channel chan Batch
}

var _ Adapter = (*ChannelAdapter)(nil)

func (c *ChannelAdapter) ValidateConfig(job config.JobConfig) error {
	return job.Validate()
}

func (c *ChannelAdapter) Connect(ctx context.Context) error    { return nil }
func (c *ChannelAdapter) Disconnect(ctx context.Context) error { return nil }

func (c *ChannelAdapter) Fetch(ctx context.Context, job config.JobConfig) (Cursor, error) {
	return &channelCursor{ch: c.Channel}, nil
}

type channelCursor struct {
	ch <-chan Batch
}

func (c *channelCursor) Next(ctx context.Context) (Batch, bool, error) {
	select {
	case <-ctx.Done():
		return Batch{}, false, ctx.Err()
	case b, ok := <-c.ch:
		if !ok {
			return Batch{}, false, nil
		}
		return b, true, nil
	}
}

func (c *channelCursor) Close() error { return nil }
