package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/justbri/moviesync/config"
	"github.com/justbri/moviesync/database"
	"github.com/justbri/moviesync/logger"
	"github.com/justbri/moviesync/models"
	"github.com/justbri/moviesync/services"
)

func main() {
	if err := run(); err != nil {
		logger.Error().Err(err).Msg("Sync failed")
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		RunID:  uuid.NewString(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue := make(chan models.Packet, cfg.Pipeline.QueueSize)

	// Connect to database
	store, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	writer := services.NewWriter(store, store, queue)

	tmdb, err := services.NewTMDBClient(cfg.TMDB)
	if err != nil {
		return err
	}

	pipeline := services.NewPipeline(tmdb, writer, store, queue, services.PipelineOptions{
		Drain:     cfg.Pipeline.Drain,
		MaxMovies: cfg.Pipeline.MaxMovies,
		Progress:  os.Stdout,
	})

	if err := pipeline.Run(ctx); err != nil {
		return err
	}

	logger.Info().Int64("written", writer.Written()).Msg("Sync complete")
	return nil
}
