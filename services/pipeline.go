package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/justbri/moviesync/logger"
	"github.com/justbri/moviesync/models"
)

type MovieSource interface {
	LoadMovieIDs(ctx context.Context) ([]models.MovieIDEntry, error)
	FetchPacket(ctx context.Context, id uint64) (models.Packet, error)
}

type ConnectionWatcher interface {
	Watch(ctx context.Context) error
}

type PipelineOptions struct {
	// Drain waits for the writer to persist everything queued before returning.
	Drain bool
	// MaxMovies caps the number of ids processed; 0 processes all of them.
	MaxMovies int
	// Progress receives one "sender progress" line per sent packet.
	Progress io.Writer
}

// Pipeline fetches movies sequentially and hands them to the writer through
// a bounded queue.
type Pipeline struct {
	source  MovieSource
	writer  *Writer
	watcher ConnectionWatcher
	queue   chan models.Packet
	opts    PipelineOptions
}

func NewPipeline(source MovieSource, writer *Writer, watcher ConnectionWatcher, queue chan models.Packet, opts PipelineOptions) *Pipeline {
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	return &Pipeline{
		source:  source,
		writer:  writer,
		watcher: watcher,
		queue:   queue,
		opts:    opts,
	}
}

func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.writer.RunMigrations(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	var produced atomic.Bool

	g.Go(func() error {
		return p.watcher.Watch(gctx)
	})

	g.Go(func() error {
		err := p.writer.Run(gctx)
		switch {
		case errors.Is(err, ErrQueueClosed) && produced.Load():
			logger.Info().Int64("written", p.writer.Written()).Msg("Writer drained queue")
			cancel()
			return nil
		case errors.Is(err, context.Canceled) && produced.Load() && !p.opts.Drain:
			return nil
		}
		return err
	})

	g.Go(func() error {
		if err := p.produce(gctx); err != nil {
			return err
		}
		produced.Store(true)

		if p.opts.Drain {
			close(p.queue)
			return nil
		}
		if n := len(p.queue); n > 0 {
			logger.Warn().Int("abandoned", n).Msg("Exiting without draining queued packets")
		}
		cancel()
		return nil
	})

	return g.Wait()
}

func (p *Pipeline) produce(ctx context.Context) error {
	logger.Info().Msg("Loading movie ids")
	ids, err := p.source.LoadMovieIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load movie ids: %w", err)
	}
	logger.Info().Int("count", len(ids)).Msg("Fetched movie ids")

	if p.opts.MaxMovies > 0 && len(ids) > p.opts.MaxMovies {
		ids = ids[:p.opts.MaxMovies]
	}

	for i, entry := range ids {
		packet, err := p.source.FetchPacket(ctx, entry.ID)
		if err != nil {
			return fmt.Errorf("failed to fetch movie %d: %w", entry.ID, err)
		}

		select {
		case p.queue <- packet:
		case <-ctx.Done():
			return ctx.Err()
		}

		fmt.Fprintf(p.opts.Progress, "sender progress: %.4f%%\n", float64(i+1)/float64(len(ids))*100)
	}

	return nil
}
