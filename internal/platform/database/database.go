// Package database owns the PostgreSQL side of progress tracking: the pgx
// pool shared by the postgres progress store and the progress event log, and
// the embedded migrations that create user_progress and progress_events.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplicationName tags tracker connections in pg_stat_activity.
const ApplicationName = "pai-courses"

const (
	maxConnLifetime = 30 * time.Minute
	maxConnIdleTime = 5 * time.Minute
)

// ErrSchemaMissing is returned by HealthCheck when the progress tables are absent.
var ErrSchemaMissing = errors.New("progress schema is not migrated (set TRACKER_DATABASE_MIGRATE=true)")

// DB holds the pool used by the progress store and the event log.
type DB struct {
	Pool *pgxpool.Pool
}

// ParseURL validates a PostgreSQL connection URL.
func ParseURL(url string) (*pgxpool.Config, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is empty")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	return cfg, nil
}

// poolConfig applies the tracker's pool sizing to url. Zero sizes keep the
// pgx defaults and minConns never exceeds maxConns.
func poolConfig(url string, maxConns, minConns int) (*pgxpool.Config, error) {
	cfg, err := ParseURL(url)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	if minConns > 0 {
		cfg.MinConns = int32(minConns)
	}
	if cfg.MinConns > cfg.MaxConns {
		cfg.MinConns = cfg.MaxConns
	}
	cfg.MaxConnLifetime = maxConnLifetime
	cfg.MaxConnIdleTime = maxConnIdleTime
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}
	return cfg, nil
}

// New opens the pool and pings it.
func New(ctx context.Context, url string, maxConns, minConns int) (*DB, error) {
	cfg, err := poolConfig(url, maxConns, minConns)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// HealthCheck reports the database ready once it answers and user_progress
// exists, so readyz fails on an unmigrated database instead of on the first toggle.
func (db *DB) HealthCheck(ctx context.Context) error {
	var exists bool
	if err := db.Pool.QueryRow(ctx, `SELECT to_regclass('user_progress') IS NOT NULL`).Scan(&exists); err != nil {
		return fmt.Errorf("checking progress schema: %w", err)
	}
	if !exists {
		return ErrSchemaMissing
	}
	return nil
}
