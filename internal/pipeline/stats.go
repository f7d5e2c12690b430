package pipeline

import (
	"sync"
	"time"
)

// Statistics is the counters snapshot for one job run, per §4's Pipeline
// Statistics type. records_fetched >= records_transformed >=
// records_validated >= records_stored holds at every observation point
// (§5's ordering invariant), since each stage only ever drops or
// quarantines records, never invents them.
type Statistics struct {
	RecordsFetched     int
	RecordsTransformed int
	RecordsValidated   int
	RecordsStored      int
	RecordsQuarantined int
	ChunksProcessed    int
	ErrorsEncountered  int
	StartTime          time.Time
	EndTime            time.Time
}

// statsCollector serializes concurrent updates to Statistics from the
// overlapping EXTRACT and TRANSFORM/VALIDATE/STORE goroutines.
type statsCollector struct {
	mu    sync.Mutex
	stats Statistics
}

func newStatsCollector(start time.Time) *statsCollector {
	return &statsCollector{stats: Statistics{StartTime: start}}
}

func (c *statsCollector) snapshot() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *statsCollector) addFetched(n int) {
	c.mu.Lock()
	c.stats.RecordsFetched += n
	c.mu.Unlock()
}

func (c *statsCollector) addTransformed(n int) {
	c.mu.Lock()
	c.stats.RecordsTransformed += n
	c.mu.Unlock()
}

func (c *statsCollector) addValidated(n int) {
	c.mu.Lock()
	c.stats.RecordsValidated += n
	c.mu.Unlock()
}

func (c *statsCollector) addStored(n int) {
	c.mu.Lock()
	c.stats.RecordsStored += n
	c.mu.Unlock()
}

func (c *statsCollector) addQuarantined(n int) {
	c.mu.Lock()
	c.stats.RecordsQuarantined += n
	c.mu.Unlock()
}

func (c *statsCollector) addErrors(n int) {
	c.mu.Lock()
	c.stats.ErrorsEncountered += n
	c.mu.Unlock()
}

func (c *statsCollector) incChunks() {
	c.mu.Lock()
	c.stats.ChunksProcessed++
	c.mu.Unlock()
}
