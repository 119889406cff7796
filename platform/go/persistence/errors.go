package persistence

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/harmony-hq/harmony/platform/go/apperr"
)

const uniqueViolation = "23505"

// IsUniqueViolation reports whether err carries SQLSTATE 23505.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ConstraintName returns the violated constraint, if any.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// MapError translates driver failures into the shared taxonomy, keeping the cause in the chain.
// Errors already classified by a repository pass through unchanged.
func MapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	case IsUniqueViolation(err):
		return fmt.Errorf("%s: %w (%s): %w", op, apperr.ErrAlreadyExists, ConstraintName(err), err)
	case errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrAlreadyExists),
		errors.Is(err, apperr.ErrUnauthorized),
		errors.Is(err, apperr.ErrInvalidSequence),
		errors.Is(err, apperr.ErrStorage):
		return err
	default:
		var validationErr *apperr.ValidationError
		if errors.As(err, &validationErr) {
			return err
		}
		return apperr.Storage(op, err)
	}
}
