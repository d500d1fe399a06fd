package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/justbri/moviesync/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// gooseLogger routes goose output through the application logger.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	logger.Debug().Msgf(format, v...)
}

func (gooseLogger) Fatalf(format string, v ...any) {
	logger.Error().Msgf(format, v...)
}

func init() {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{})
}

// Migrate brings the schema to the latest embedded version.
func (s *Store) Migrate(ctx context.Context) error {
	logger.Info().Msg("Running migrations")

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, s.sqlDB, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, s.sqlDB)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	logger.Info().Int64("version", version).Msg("Migrations complete")
	return nil
}
