package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/justbri/moviesync/models"
)

const (
	upsertMovieSQL = `
		INSERT INTO movies (tmdb_id, title, release_date, runtime_minutes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tmdb_id) DO UPDATE
		SET title = EXCLUDED.title,
			release_date = EXCLUDED.release_date,
			runtime_minutes = EXCLUDED.runtime_minutes
		RETURNING movie_id`

	upsertPersonSQL = `
		INSERT INTO persons (tmdb_id, name)
		VALUES ($1, $2)
		ON CONFLICT (tmdb_id) DO UPDATE
		SET name = EXCLUDED.name
		RETURNING person_id`

	upsertMovieCastSQL = `
		INSERT INTO movie_cast (movie_id, person_id, character_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (movie_id, person_id) DO UPDATE
		SET character_name = EXCLUDED.character_name`

	movieIDByTMDBSQL = `SELECT movie_id FROM movies WHERE tmdb_id = $1`
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SavePacket upserts the movie and, when present, its cast in one transaction.
func (s *Store) SavePacket(ctx context.Context, p models.Packet) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		movieID, err := upsertMovie(ctx, tx, p.MovieDetails)
		if err != nil {
			return err
		}
		if p.Cast == nil {
			return nil
		}
		return upsertCastMembers(ctx, tx, movieID, p.Cast.Cast)
	})
}

// UpsertMovie writes one movie row and returns its internal id.
func (s *Store) UpsertMovie(ctx context.Context, d models.MovieDetails) (int64, error) {
	return upsertMovie(ctx, s.pool, d)
}

// UpsertCast links cast members to an already stored movie. It fails with
// ErrMovieNotFound when no row exists for tmdbMovieID.
func (s *Store) UpsertCast(ctx context.Context, tmdbMovieID int64, cast models.Cast) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var movieID int64
		err := tx.QueryRow(ctx, movieIDByTMDBSQL, tmdbMovieID).Scan(&movieID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: tmdb_id %d", ErrMovieNotFound, tmdbMovieID)
		}
		if err != nil {
			return queryError("look up movie", err)
		}
		return upsertCastMembers(ctx, tx, movieID, cast.Cast)
	})
}

func upsertMovie(ctx context.Context, q querier, d models.MovieDetails) (int64, error) {
	releaseDate, err := parseReleaseDate(d.ReleaseDate)
	if err != nil {
		return 0, fmt.Errorf("movie %d: %w", d.ID, err)
	}

	var movieID int64
	err = q.QueryRow(ctx, upsertMovieSQL, d.ID, d.StoredTitle(), releaseDate, d.Runtime).Scan(&movieID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("upsert movie %d: %w", d.ID, ErrNoRowReturned)
	}
	if err != nil {
		return 0, queryError(fmt.Sprintf("upsert movie %d", d.ID), err)
	}
	return movieID, nil
}

// upsertCastMembers writes one link per (movie, person). A person credited
// twice for the same movie keeps the character of the last credit.
func upsertCastMembers(ctx context.Context, q querier, movieID int64, members []models.CastMember) error {
	for _, m := range members {
		var personID int64
		err := q.QueryRow(ctx, upsertPersonSQL, m.ID, m.Name).Scan(&personID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("upsert person %d: %w", m.ID, ErrNoRowReturned)
		}
		if err != nil {
			return queryError(fmt.Sprintf("upsert person %d", m.ID), err)
		}

		if _, err := q.Exec(ctx, upsertMovieCastSQL, movieID, personID, m.Character); err != nil {
			return queryError(fmt.Sprintf("link person %d to movie %d", m.ID, movieID), err)
		}
	}
	return nil
}

// parseReleaseDate maps TMDB's empty release date to NULL.
func parseReleaseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("invalid release date %q: %w", s, err)
	}
	return &t, nil
}
