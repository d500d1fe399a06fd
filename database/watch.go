package database

import (
	"context"
	"fmt"
	"time"

	"github.com/justbri/moviesync/logger"
)

// Watch pings the database every watch interval until ctx is done. A failed
// ping is logged and returned wrapped in ErrConnectionLost; cancellation
// returns nil.
func (s *Store) Watch(ctx context.Context) error {
	ticker := time.NewTicker(s.watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, s.watchInterval)
			err := s.pool.Ping(pingCtx)
			cancel()
			if err == nil {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			logger.Error().Err(err).Msg("Database connection lost")
			return fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}
	}
}
