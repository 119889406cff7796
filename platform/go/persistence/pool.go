package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig configures the shared Harmony pool. TimeZone sets the session zone so now()
// agrees with the audit clock. ConnectWait bounds how long NewPool retries the first ping;
// zero pings once.
type PoolConfig struct {
	ConnString      string
	ApplicationName string
	TimeZone        string
	MaxConns        int32
	ConnectWait     time.Duration
}

const defaultApplicationName = "harmony"

// NewPool builds the pool and waits until Postgres answers a ping.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.ConnString == "" {
		return nil, fmt.Errorf("database url is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	name := cfg.ApplicationName
	if name == "" {
		name = defaultApplicationName
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = name
	if cfg.TimeZone != "" {
		poolConfig.ConnConfig.RuntimeParams["timezone"] = cfg.TimeZone
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := waitForPing(ctx, pool, cfg.ConnectWait); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func waitForPing(ctx context.Context, pool *pgxpool.Pool, wait time.Duration) error {
	if wait <= 0 {
		return pool.Ping(ctx)
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = wait
	return backoff.Retry(func() error {
		return pool.Ping(ctx)
	}, backoff.WithContext(b, ctx))
}

// ClosePool closes pool if it is non-nil.
func ClosePool(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}
