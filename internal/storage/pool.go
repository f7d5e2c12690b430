// Package storage implements the per-kind batch upsert loaders and schema
// bootstrap into the time-partitioned analytical store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// PoolConfig configures the shared connection pool used by every loader.
// MaxConns/MinConns stand in for §5's "pool size of 5 with max overflow 10"
// (pgxpool has no separate overflow knob, so MaxConns plays that role).
type PoolConfig struct {
	DSN               string
	MaxConns          int32
	MinConns          int32
	HealthCheckPeriod time.Duration
	StatementTimeout  time.Duration
	ConnectRetries    int
	ConnectBackoff    time.Duration
}

// DefaultPoolConfig returns the tuning matching §4.4's expansion.
func DefaultPoolConfig(dsn string) PoolConfig {
	return PoolConfig{
		DSN:               dsn,
		MaxConns:          15,
		MinConns:          5,
		HealthCheckPeriod: 30 * time.Second,
		StatementTimeout:  5 * time.Minute,
		ConnectRetries:    5,
		ConnectBackoff:    2 * time.Second,
	}
}

// NewPool builds a pgxpool.Pool from cfg, retrying the initial connection
// with exponential backoff on transient network errors. This retry lives
// strictly at connection establishment — per REDESIGN FLAGS, no retry is
// ever applied around a loader's insert path.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("storage: parse pool config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	stmtTimeoutMs := int(cfg.StatementTimeout / time.Millisecond)
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET statement_timeout = %d", stmtTimeoutMs))
		return err
	}

	var pool *pgxpool.Pool
	backoff := cfg.ConnectBackoff
	for attempt := 0; attempt <= cfg.ConnectRetries; attempt++ {
		pool, err = pgxpool.ConnectConfig(ctx, poolCfg)
		if err == nil {
			return pool, nil
		}
		if !isConnectionError(err) || attempt == cfg.ConnectRetries {
			return nil, fmt.Errorf("storage: connect pool: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return pool, err
}

// isConnectionError reports whether err looks like a transient connectivity
// problem worth retrying, mirroring the teacher's retry.go classification.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "57P01", "57P02", "57P03", "08000", "08003", "08006":
			return true
		}
	}
	return false
}
