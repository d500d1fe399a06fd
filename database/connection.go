package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/justbri/moviesync/config"
	"github.com/justbri/moviesync/logger"
)

// Store owns the Postgres pool used for migrations and upserts.
type Store struct {
	pool          *pgxpool.Pool
	sqlDB         *sql.DB
	watchInterval time.Duration
}

func Connect(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Str("user", cfg.User).
		Int32("max_conns", cfg.MaxConns).
		Msg("Connected to database")

	return NewStore(pool, cfg.WatchInterval), nil
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool, watchInterval time.Duration) *Store {
	return &Store{
		pool:          pool,
		sqlDB:         stdlib.OpenDBFromPool(pool),
		watchInterval: watchInterval,
	}
}

func (s *Store) Close() error {
	err := s.sqlDB.Close()
	s.pool.Close()
	return err
}
