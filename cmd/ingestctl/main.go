// Command ingestctl is the thin CLI shell over the ingestion/query core:
// submit a job, inspect its resumable cursor, or run a range query against
// the store. It is a shell — all real logic lives in internal/pipeline and
// internal/query.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"histdata/internal/adapter"
	"histdata/internal/config"
	"histdata/internal/jobstate"
	"histdata/internal/logging"
	"histdata/internal/model"
	"histdata/internal/pipeline"
	"histdata/internal/query"
	"histdata/internal/rules"
	"histdata/internal/storage"
)

// Command mirrors the teacher's usage/description/execute command table.
type Command struct {
	usage       string
	description string
	execute     func(args []string) int
}

func commands() map[string]Command {
	return map[string]Command{
		"run": {
			usage:       "run <job.json>",
			description: "Run an ingestion job described by a JSON job file",
			execute:     runCommand,
		},
		"status": {
			usage:       "status <job_name>",
			description: "Show the last resumable cursor recorded for a job",
			execute:     statusCommand,
		},
		"query": {
			usage:       "query <kind> <symbol> <start> <end>",
			description: "Run a range query against the store (kind: ohlcv|trade|tbbo|statistics|definition)",
			execute:     queryCommand,
		},
		"symbols": {
			usage:       "symbols",
			description: "List symbols available in the store",
			execute:     symbolsCommand,
		},
		"help": {
			usage:       "help",
			description: "Show this help message",
			execute:     func(args []string) int { printUsage(); return 0 },
		},
	}
}

func printUsage() {
	fmt.Println("Usage: ingestctl <command> [arguments]")
	fmt.Println("\nAvailable commands:")
	cmds := commands()
	var names []string
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd := cmds[name]
		fmt.Printf("  %-40s %s\n", cmd.usage, cmd.description)
	}
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	command, ok := commands()[cmd]
	if !ok {
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	os.Exit(command.execute(args))
}

// jobFile is the on-disk shape a job JSON file is decoded into before
// conversion to config.JobConfig; dates are plain YYYY-MM-DD strings.
type jobFile struct {
	Name                          string   `json:"name"`
	API                           string   `json:"api"`
	Dataset                       string   `json:"dataset"`
	Schema                        string   `json:"schema"`
	Symbols                       []string `json:"symbols"`
	StypeIn                       string   `json:"stype_in"`
	StartDate                     string   `json:"start_date"`
	EndDate                       string   `json:"end_date"`
	ChunkIntervalDays             int      `json:"chunk_interval_days"`
	BatchSize                     int      `json:"batch_size"`
	EnableMarketCalendarFiltering bool     `json:"enable_market_calendar_filtering"`
	ExchangeName                  string   `json:"exchange_name"`
}

func loadJobConfig(path string) (config.JobConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return config.JobConfig{}, fmt.Errorf("ingestctl: read job file: %w", err)
	}

	var untyped map[string]any
	if err := json.Unmarshal(raw, &untyped); err != nil {
		return config.JobConfig{}, fmt.Errorf("ingestctl: parse job file: %w", err)
	}
	if err := config.ValidateOptionNames(untyped); err != nil {
		return config.JobConfig{}, err
	}

	var jf jobFile
	if err := json.Unmarshal(raw, &jf); err != nil {
		return config.JobConfig{}, fmt.Errorf("ingestctl: decode job file: %w", err)
	}

	start, err := time.Parse("2006-01-02", jf.StartDate)
	if err != nil {
		return config.JobConfig{}, fmt.Errorf("ingestctl: parse start_date: %w", err)
	}
	end, err := time.Parse("2006-01-02", jf.EndDate)
	if err != nil {
		return config.JobConfig{}, fmt.Errorf("ingestctl: parse end_date: %w", err)
	}

	job := config.JobConfig{
		Name:                          jf.Name,
		API:                           jf.API,
		Dataset:                       jf.Dataset,
		Schema:                        jf.Schema,
		Symbols:                       jf.Symbols,
		StypeIn:                       config.SymbolType(jf.StypeIn),
		StartDate:                     start,
		EndDate:                       end,
		ChunkIntervalDays:             jf.ChunkIntervalDays,
		BatchSize:                     jf.BatchSize,
		EnableMarketCalendarFiltering: jf.EnableMarketCalendarFiltering,
		ExchangeName:                  jf.ExchangeName,
	}
	if err := job.Validate(); err != nil {
		return config.JobConfig{}, err
	}
	return job, nil
}

// runCommand wires the full orchestrator stack and executes one job.
// Exit codes follow §6/§7: 0 success, 1 validation/parameter error,
// 2 partial success (quarantine/errors observed), 3 fatal.
func runCommand(args []string) int {
	if len(args) < 1 {
		fmt.Println("Error: job file path is required")
		return 1
	}

	job, err := loadJobConfig(args[0])
	if err != nil {
		fmt.Printf("Invalid job configuration: %v\n", err)
		return 1
	}

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Printf("Invalid environment configuration: %v\n", err)
		return 1
	}

	logger, err := logging.New(env.LogLevel, env.LogFile)
	if err != nil {
		fmt.Printf("Invalid logging configuration: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx := context.Background()

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s", env.DBUser, env.DBPassword, env.DBHost, env.DBPort, env.DBName)
	pool, err := storage.NewPool(ctx, storage.DefaultPoolConfig(dsn))
	if err != nil {
		fmt.Printf("Storage unavailable: %v\n", err)
		return 3
	}
	defer pool.Close()

	kind, _, err := model.ParseSchema(job.Schema)
	if err != nil {
		fmt.Printf("Invalid job configuration: %v\n", err)
		return 1
	}

	loader, err := storage.LoaderFor(kind, pool, storage.DefaultSubBatchSize)
	if err != nil {
		fmt.Printf("Storage unavailable: %v\n", err)
		return 3
	}
	if err := loader.EnsureSchema(ctx); err != nil {
		fmt.Printf("Storage unavailable: %v\n", err)
		return 3
	}

	quarantineSink := &storage.PostgresQuarantineSink{Pool: pool}
	if err := quarantineSink.EnsureSchema(ctx); err != nil {
		fmt.Printf("Storage unavailable: %v\n", err)
		return 3
	}

	cursorStore := newCursorStore(env, logger)

	compiled, err := rules.Compile(rules.DefaultDocument())
	if err != nil {
		fmt.Printf("Invalid mapping document: %v\n", err)
		return 1
	}

	// A real vendor adapter is out of core scope (§1/§4.6); ingestctl drives
	// the orchestrator with the in-memory fixture so the CLI shell is
	// exercisable end-to-end without a live vendor connection.
	fixture := &adapter.FixtureAdapter{}

	orch := &pipeline.Orchestrator{
		Adapter:        fixture,
		Rules:          compiled,
		Loader:         loader,
		QuarantineSink: quarantineSink,
		CursorStore:    cursorStore,
		Logger:         logger,
		Progress: func(description string, completed, total int, stage pipeline.Stage, extra map[string]any) {
			fmt.Printf("[%s] %s: %d/%d\n", stage, description, completed, total)
		},
	}

	result := orch.Execute(ctx, job)
	fmt.Printf("status=%s records_processed=%d duration=%s\n", result.Status, result.RecordsProcessed, result.Duration)
	for _, w := range result.Warnings {
		fmt.Printf("warning: %s\n", w)
	}

	if result.Status != "completed" && result.Status != "cancelled" {
		fmt.Printf("error: %s\n", result.Error)
	}
	return exitCodeForResult(result)
}

// exitCodeForResult maps a pipeline.Result to the run exit codes: 0 success,
// 2 partial success (quarantine or errors observed, or a cancelled run), 3
// fatal.
func exitCodeForResult(result pipeline.Result) int {
	switch result.Status {
	case "completed":
		if result.Stats.RecordsQuarantined > 0 || result.Stats.ErrorsEncountered > 0 {
			return 2
		}
		return 0
	case "cancelled":
		return 2
	default:
		return 3
	}
}

// newCursorStore wires a Redis-backed cursor cache with an in-memory
// fallback, so a Redis outage is logged and does not fail the job, per
// §4.1's cursor-cache failure handling.
func newCursorStore(env config.EnvConfig, logger *zap.Logger) jobstate.Store {
	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", env.RedisHost, env.RedisPort)})
	return &jobstate.FallbackStore{
		Primary:   &jobstate.RedisStore{Client: client},
		Secondary: jobstate.NewMemoryStore(),
		OnError: func(op string, err error) {
			logger.Warn("cursor store fell back to memory", zap.String("op", op), zap.Error(err))
		},
	}
}

func statusCommand(args []string) int {
	if len(args) < 1 {
		fmt.Println("Error: job name is required")
		return 1
	}
	env, err := config.LoadEnv()
	if err != nil {
		fmt.Printf("Invalid environment configuration: %v\n", err)
		return 1
	}
	store := newCursorStore(env, logging.NoOp())
	cur, ok, err := store.LoadCursor(context.Background(), args[0])
	if err != nil {
		fmt.Printf("Cursor lookup failed: %v\n", err)
		return 3
	}
	if !ok {
		fmt.Printf("No recorded cursor for job %q\n", args[0])
		return 0
	}
	fmt.Printf("chunk_index=%d chunk_end=%s run_id=%s recorded_at=%s\n", cur.ChunkIndex, cur.ChunkEnd.Format(time.RFC3339), cur.RunID, cur.RecordedAt.Format(time.RFC3339))
	return 0
}

func queryCommand(args []string) int {
	if len(args) < 4 {
		fmt.Println("Error: usage: query <kind> <symbol> <start> <end>")
		return 1
	}
	kindArg, symbol, startArg, endArg := args[0], args[1], args[2], args[3]

	start, err := time.Parse("2006-01-02", startArg)
	if err != nil {
		fmt.Printf("Invalid start date: %v\n", err)
		return 1
	}
	end, err := time.Parse("2006-01-02", endArg)
	if err != nil {
		fmt.Printf("Invalid end date: %v\n", err)
		return 1
	}

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Printf("Invalid environment configuration: %v\n", err)
		return 1
	}
	ctx := context.Background()
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s", env.DBUser, env.DBPassword, env.DBHost, env.DBPort, env.DBName)
	pool, err := storage.NewPool(ctx, storage.DefaultPoolConfig(dsn))
	if err != nil {
		fmt.Printf("Storage unavailable: %v\n", err)
		return 3
	}
	defer pool.Close()

	builder := query.NewBuilder(pool)
	filter := query.Filter{Symbols: []string{symbol}, StartDate: &start, EndDate: &end}

	var rows []query.Row
	switch kindArg {
	case "ohlcv":
		rows, err = builder.QueryOHLCV(ctx, filter)
	case "trade":
		rows, err = builder.QueryTrade(ctx, filter, "")
	case "tbbo":
		rows, err = builder.QueryTBBO(ctx, filter)
	case "statistics":
		rows, err = builder.QueryStatistics(ctx, filter, "")
	case "definition":
		rows, err = builder.QueryDefinition(ctx, filter, "", "", "")
	default:
		fmt.Printf("Unknown kind: %s\n", kindArg)
		return 1
	}
	if err != nil {
		fmt.Printf("Query failed: %v\n", err)
		return 3
	}

	for _, r := range rows {
		fmt.Printf("%s %s %+v\n", r.Symbol, r.TsEvent.Format(time.RFC3339), r.Payload)
	}
	return 0
}

func symbolsCommand(args []string) int {
	env, err := config.LoadEnv()
	if err != nil {
		fmt.Printf("Invalid environment configuration: %v\n", err)
		return 1
	}
	ctx := context.Background()
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s", env.DBUser, env.DBPassword, env.DBHost, env.DBPort, env.DBName)
	pool, err := storage.NewPool(ctx, storage.DefaultPoolConfig(dsn))
	if err != nil {
		fmt.Printf("Storage unavailable: %v\n", err)
		return 3
	}
	defer pool.Close()

	builder := query.NewBuilder(pool)
	symbols, err := builder.AvailableSymbols(ctx)
	if err != nil {
		fmt.Printf("Query failed: %v\n", err)
		return 3
	}
	for _, s := range symbols {
		fmt.Println(s)
	}
	return 0
}
