package jobstate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	want := Cursor{ChunkIndex: 2, ChunkEnd: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), RunID: "r1"}

	if err := m.SaveCursor(ctx, "daily-es", want); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}
	got, ok, err := m.LoadCursor(ctx, "daily-es")
	if err != nil || !ok {
		t.Fatalf("LoadCursor: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestMemoryStoreMissingJob(t *testing.T) {
	m := NewMemoryStore()
	_, ok, err := m.LoadCursor(context.Background(), "nonexistent")
	if err != nil || ok {
		t.Fatalf("expected ok=false err=nil, got ok=%v err=%v", ok, err)
	}
}

type failingStore struct {
	saveErr error
	loadErr error
}

func (f failingStore) SaveCursor(ctx context.Context, jobName string, c Cursor) error {
	return f.saveErr
}
func (f failingStore) LoadCursor(ctx context.Context, jobName string) (Cursor, bool, error) {
	return Cursor{}, false, f.loadErr
}

func TestFallbackStoreUsesSecondaryOnPrimaryError(t *testing.T) {
	secondary := NewMemoryStore()
	var loggedErr error
	fb := &FallbackStore{
		Primary:   failingStore{saveErr: errors.New("redis down")},
		Secondary: secondary,
		OnError:   func(op string, err error) { loggedErr = err },
	}

	want := Cursor{ChunkIndex: 1, RunID: "r2"}
	if err := fb.SaveCursor(context.Background(), "job-a", want); err != nil {
		t.Fatalf("SaveCursor via fallback: %v", err)
	}
	if loggedErr == nil {
		t.Fatal("expected OnError to be invoked")
	}
	got, ok, _ := secondary.LoadCursor(context.Background(), "job-a")
	if !ok || got != want {
		t.Errorf("expected cursor persisted to secondary, got %+v ok=%v", got, ok)
	}
}
