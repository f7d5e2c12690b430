// Package config defines the external, process-wide configuration surface:
// job configuration (validated at submission) and environment-variable
// driven connection config, loaded once at process start and passed down
// explicitly. The core never reads the environment directly.
package config

import (
	"fmt"
	"regexp"
	"time"
)

// SymbolType enumerates how a job's symbols should be interpreted.
type SymbolType string

const (
	StypeContinuous SymbolType = "continuous"
	StypeParent     SymbolType = "parent"
	StypeNative     SymbolType = "native"
)

// AllSymbols is the reserved literal accepted with any SymbolType.
const AllSymbols = "ALL_SYMBOLS"

var symbolPatterns = map[SymbolType]*regexp.Regexp{
	StypeContinuous: regexp.MustCompile(`^[A-Z0-9]+\.(c|n)\.\d+$`),
	StypeParent:     regexp.MustCompile(`^[A-Z0-9]+\.(FUT|OPT|IVX|MLP)$`),
	StypeNative:     regexp.MustCompile(`^[A-Z0-9]+$`),
}

// knownJobOptions is the recognized-option allowlist from §6; used by
// decoders that accept job config from an untyped source (e.g. JSON) to
// reject unknown options at submission time.
var knownJobOptions = map[string]bool{
	"name": true, "api": true, "dataset": true, "schema": true,
	"symbols": true, "stype_in": true, "start_date": true, "end_date": true,
	"chunk_interval_days": true, "batch_size": true,
	"enable_market_calendar_filtering": true, "exchange_name": true,
}

// JobConfig is a single ingestion job's configuration.
type JobConfig struct {
	Name                         string
	API                          string
	Dataset                      string
	Schema                       string
	Symbols                      []string
	StypeIn                      SymbolType
	StartDate                    time.Time
	EndDate                      time.Time
	ChunkIntervalDays            int
	BatchSize                    int
	EnableMarketCalendarFiltering bool
	ExchangeName                 string
}

// DefaultChunkIntervalDays and DefaultBatchSize are applied by Validate when
// the caller leaves the corresponding field at its zero value.
const (
	DefaultChunkIntervalDays = 1
	DefaultBatchSize         = 1000
)

// ValidateOptionNames rejects a raw, untyped job definition (e.g. decoded
// from JSON) carrying any key outside §6's recognized-option allowlist.
func ValidateOptionNames(raw map[string]any) error {
	for k := range raw {
		if !knownJobOptions[k] {
			return fmt.Errorf("config: unrecognized job option %q", k)
		}
	}
	return nil
}

// Validate checks job-level invariants and symbol syntax, applying defaults
// for ChunkIntervalDays and BatchSize when left unset. It returns a plain
// error; callers that need the §7 ConfigError kind wrap the result.
func (j *JobConfig) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("config: job name is required")
	}
	if j.API == "" {
		return fmt.Errorf("config: job api is required")
	}
	if j.Schema == "" {
		return fmt.Errorf("config: job schema is required")
	}
	if len(j.Symbols) == 0 {
		return fmt.Errorf("config: job must specify at least one symbol")
	}
	if j.StartDate.IsZero() || j.EndDate.IsZero() {
		return fmt.Errorf("config: start_date and end_date are required")
	}
	if !j.StartDate.Before(j.EndDate) {
		return fmt.Errorf("config: start_date must be strictly before end_date")
	}

	for _, s := range j.Symbols {
		if s == AllSymbols {
			continue
		}
		pattern, ok := symbolPatterns[j.StypeIn]
		if !ok {
			return fmt.Errorf("config: unknown stype_in %q", j.StypeIn)
		}
		if !pattern.MatchString(s) {
			return fmt.Errorf("config: symbol %q does not match pattern for stype_in %q", s, j.StypeIn)
		}
	}

	if j.ChunkIntervalDays == 0 {
		j.ChunkIntervalDays = DefaultChunkIntervalDays
	}
	if j.BatchSize == 0 {
		j.BatchSize = DefaultBatchSize
	}
	return nil
}
