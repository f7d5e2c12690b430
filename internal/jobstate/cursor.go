// Package jobstate persists the orchestrator's resumable cursor so a
// cancelled or crashed run can pick up from the last fully-stored chunk.
// Key naming follows the teacher's job:<kind>:<name> convention from
// cmd/jobctl (job:lastrun:<name>), generalized to job:cursor:<name>.
package jobstate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cursor is the orchestrator's resumable position within a job: the index
// of the last chunk fully stored, and that chunk's end date.
type Cursor struct {
	ChunkIndex  int       `json:"chunk_index"`
	ChunkEnd    time.Time `json:"chunk_end"`
	RunID       string    `json:"run_id"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Store persists and retrieves cursors for named jobs.
type Store interface {
	SaveCursor(ctx context.Context, jobName string, c Cursor) error
	LoadCursor(ctx context.Context, jobName string) (Cursor, bool, error)
}

func cursorKey(jobName string) string {
	return fmt.Sprintf("job:cursor:%s", jobName)
}

// RedisStore persists cursors in Redis. It never returns an error from
// SaveCursor when Redis itself is reachable but the TTL write otherwise
// succeeds; a Redis outage is reported to the caller, which per §4.1 logs
// it and falls back to the in-memory store rather than failing the job.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) SaveCursor(ctx context.Context, jobName string, c Cursor) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("jobstate: marshal cursor: %w", err)
	}
	ttl := s.TTL
	if ttl == 0 {
		ttl = 30 * 24 * time.Hour
	}
	if err := s.Client.Set(ctx, cursorKey(jobName), payload, ttl).Err(); err != nil {
		return fmt.Errorf("jobstate: save cursor for %q: %w", jobName, err)
	}
	return nil
}

func (s *RedisStore) LoadCursor(ctx context.Context, jobName string) (Cursor, bool, error) {
	raw, err := s.Client.Get(ctx, cursorKey(jobName)).Bytes()
	if err == redis.Nil {
		return Cursor{}, false, nil
	}
	if err != nil {
		return Cursor{}, false, fmt.Errorf("jobstate: load cursor for %q: %w", jobName, err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, false, fmt.Errorf("jobstate: unmarshal cursor: %w", err)
	}
	return c, true, nil
}

// MemoryStore is the in-memory fallback used when Redis is unavailable, per
// §4.1's "logged, not fatal" handling of cursor-cache failures.
type MemoryStore struct {
	mu      sync.Mutex
	cursors map[string]Cursor
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cursors: make(map[string]Cursor)}
}

func (m *MemoryStore) SaveCursor(ctx context.Context, jobName string, c Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[jobName] = c
	return nil
}

func (m *MemoryStore) LoadCursor(ctx context.Context, jobName string) (Cursor, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cursors[jobName]
	return c, ok, nil
}

// FallbackStore tries primary first; if it errors, it logs via OnError (may
// be nil) and serves from secondary instead.
type FallbackStore struct {
	Primary   Store
	Secondary Store
	OnError   func(op string, err error)
}

var _ Store = (*FallbackStore)(nil)

func (f *FallbackStore) SaveCursor(ctx context.Context, jobName string, c Cursor) error {
	if err := f.Primary.SaveCursor(ctx, jobName, c); err != nil {
		if f.OnError != nil {
			f.OnError("save_cursor", err)
		}
		return f.Secondary.SaveCursor(ctx, jobName, c)
	}
	return nil
}

func (f *FallbackStore) LoadCursor(ctx context.Context, jobName string) (Cursor, bool, error) {
	c, ok, err := f.Primary.LoadCursor(ctx, jobName)
	if err != nil {
		if f.OnError != nil {
			f.OnError("load_cursor", err)
		}
		return f.Secondary.LoadCursor(ctx, jobName)
	}
	return c, ok, nil
}
