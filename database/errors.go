package database

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNoRowReturned  = errors.New("insert returned no row")
	ErrMovieNotFound  = errors.New("movie not found")
	ErrConnectionLost = errors.New("database connection lost")
)

// PostgreSQL error codes
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeNotNullViolation    = "23502"
)

func IsUniqueViolation(err error) bool {
	return hasCode(err, CodeUniqueViolation)
}

func IsForeignKeyViolation(err error) bool {
	return hasCode(err, CodeForeignKeyViolation)
}

func IsNotNullViolation(err error) bool {
	return hasCode(err, CodeNotNullViolation)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// queryError annotates err with the failing operation and, for Postgres
// errors, the SQLSTATE and constraint involved.
func queryError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName != "" {
		return fmt.Errorf("%s (SQLSTATE %s, constraint %s): %w", op, pgErr.Code, pgErr.ConstraintName, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
