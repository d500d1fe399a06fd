package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/justbri/moviesync/logger"
	"github.com/justbri/moviesync/models"
)

var (
	// ErrQueueClosed is returned by Writer.Run when the sending side closed the queue.
	ErrQueueClosed = errors.New("packet queue closed")
	ErrNotMigrated = errors.New("writer started before migrations completed")
)

type PacketStore interface {
	SavePacket(ctx context.Context, p models.Packet) error
}

type Migrator interface {
	Migrate(ctx context.Context) error
}

// Writer drains the packet queue into the store. It must finish
// RunMigrations before Run accepts packets; any error is terminal.
type Writer struct {
	store    PacketStore
	migrator Migrator
	queue    <-chan models.Packet

	migrated atomic.Bool
	written  atomic.Int64
}

func NewWriter(store PacketStore, migrator Migrator, queue <-chan models.Packet) *Writer {
	return &Writer{
		store:    store,
		migrator: migrator,
		queue:    queue,
	}
}

func (w *Writer) RunMigrations(ctx context.Context) error {
	if err := w.migrator.Migrate(ctx); err != nil {
		return err
	}
	w.migrated.Store(true)
	return nil
}

func (w *Writer) Run(ctx context.Context) error {
	if !w.migrated.Load() {
		return ErrNotMigrated
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-w.queue:
			if !ok {
				logger.Debug().Int64("written", w.written.Load()).Msg("Packet queue closed")
				return ErrQueueClosed
			}
			if err := w.store.SavePacket(ctx, p); err != nil {
				return fmt.Errorf("failed to save movie %d: %w", p.MovieDetails.ID, err)
			}
			n := w.written.Add(1)
			logger.Debug().Int64("tmdb_id", p.MovieDetails.ID).Int64("written", n).Msg("Saved movie")
		}
	}
}

// Written reports how many packets have been persisted.
func (w *Writer) Written() int64 {
	return w.written.Load()
}
