// Package db owns connection-pool construction. Every entry point and
// the integration tests build their pools here, so connection settings
// live in exactly one place.
package db

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool connects using the DATABASE_URL environment variable. This is
// the path the commands take.
func NewPool(ctx context.Context) (*pgxpool.Pool, error) {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	return NewPoolFromURL(ctx, connStr)
}

// NewPoolFromURL connects to the given URL and verifies the connection
// with a ping before handing the pool out. Integration tests call this
// directly with TEST_DATABASE_URL so they never touch DATABASE_URL.
func NewPoolFromURL(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}
