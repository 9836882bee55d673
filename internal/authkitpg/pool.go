package authkitpg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// BuildPool creates a pgx pool with sane defaults and checks connectivity.
func BuildPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("user_store_pg.parse_url: %w", err)
	}
	config.MinConns = 1
	config.MaxConns = 8
	config.MaxConnLifetime = 30 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("user_store_pg.open: %w", err)
	}
	if pingErr := pool.Ping(ctx); pingErr != nil {
		pool.Close()
		return nil, fmt.Errorf("user_store_pg.ping: %w", pingErr)
	}
	return pool, nil
}

// OpenUserStore builds a pool, applies migrations, and returns the store with its pool.
func OpenUserStore(ctx context.Context, databaseURL string) (*PostgresUserStore, *pgxpool.Pool, error) {
	pool, err := BuildPool(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	if schemaErr := EnsureSchema(ctx, pool); schemaErr != nil {
		pool.Close()
		return nil, nil, schemaErr
	}
	return NewPostgresUserStore(pool), pool, nil
}
