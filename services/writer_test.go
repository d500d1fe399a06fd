package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justbri/moviesync/models"
)

// memoryStore records saved packets; the first save optionally waits on release.
type memoryStore struct {
	mu      sync.Mutex
	saved   []int64
	release chan struct{}
	failOn  int64
}

func (s *memoryStore) SavePacket(ctx context.Context, p models.Packet) error {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.failOn != 0 && p.MovieDetails.ID == s.failOn {
		return errors.New("insert returned no row")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, p.MovieDetails.ID)
	return nil
}

func (s *memoryStore) Saved() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.saved...)
}

type fakeMigrator struct {
	err   error
	calls int
}

func (m *fakeMigrator) Migrate(context.Context) error {
	m.calls++
	return m.err
}

func packet(id int64) models.Packet {
	return models.Packet{MovieDetails: models.MovieDetails{ID: id}}
}

func TestWriter_RunBeforeMigrations(t *testing.T) {
	w := NewWriter(&memoryStore{}, &fakeMigrator{}, make(chan models.Packet))
	assert.ErrorIs(t, w.Run(context.Background()), ErrNotMigrated)
}

func TestWriter_MigrationFailureKeepsWriterStopped(t *testing.T) {
	boom := errors.New("migration 2 failed")
	w := NewWriter(&memoryStore{}, &fakeMigrator{err: boom}, make(chan models.Packet))

	require.ErrorIs(t, w.RunMigrations(context.Background()), boom)
	assert.ErrorIs(t, w.Run(context.Background()), ErrNotMigrated)
}

func TestWriter_DrainsInOrderThenReportsClosedQueue(t *testing.T) {
	store := &memoryStore{}
	queue := make(chan models.Packet, 3)
	w := NewWriter(store, &fakeMigrator{}, queue)
	require.NoError(t, w.RunMigrations(context.Background()))

	queue <- packet(3)
	queue <- packet(1)
	queue <- packet(2)
	close(queue)

	err := w.Run(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.Equal(t, []int64{3, 1, 2}, store.Saved())
	assert.Equal(t, int64(3), w.Written())
}

func TestWriter_StoreErrorIsTerminal(t *testing.T) {
	store := &memoryStore{failOn: 2}
	queue := make(chan models.Packet, 3)
	w := NewWriter(store, &fakeMigrator{}, queue)
	require.NoError(t, w.RunMigrations(context.Background()))

	queue <- packet(1)
	queue <- packet(2)
	queue <- packet(3)

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "movie 2")
	assert.Equal(t, []int64{1}, store.Saved())
	assert.Len(t, queue, 1)
}

func TestWriter_StopsOnCancel(t *testing.T) {
	w := NewWriter(&memoryStore{}, &fakeMigrator{}, make(chan models.Packet))
	require.NoError(t, w.RunMigrations(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Run(ctx), context.Canceled)
}
