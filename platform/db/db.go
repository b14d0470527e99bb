// Package db owns the Postgres pool, the goose migrations and the
// transaction helper shared by the repositories.
package db

import (
	"context"
	"fmt"
	"time"

	"travel_crm_backend/platform/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	maxConnLifetime   = time.Hour
	maxConnIdleTime   = 30 * time.Minute
	healthCheckPeriod = time.Minute
)

// NewPool opens the pool and pings once so a bad DATABASE_URL fails at
// startup instead of on the first request.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func poolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}

	if n := cfg.GetDatabaseMaxConns(); n > 0 {
		pc.MaxConns = int32(n)
	}
	if n := cfg.GetDatabaseMinConns(); n >= 0 && int32(n) <= pc.MaxConns {
		pc.MinConns = int32(n)
	}
	pc.MaxConnLifetime = maxConnLifetime
	pc.MaxConnIdleTime = maxConnIdleTime
	pc.HealthCheckPeriod = healthCheckPeriod
	return pc, nil
}
