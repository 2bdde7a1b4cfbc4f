package database

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapPostgresError translates driver errors into domain sentinels so
// services can branch with errors.Is.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.ErrConflict
		case "23503": // foreign_key_violation
			return models.ErrBadRequest
		case "23502": // not_null_violation
			return models.ErrBadRequest
		}
	}

	return err
}

// IsTransient reports whether an operation failure is worth retrying.
// Authentication and domain decisions are terminal; infrastructure failures
// (connection loss, timeouts, resource exhaustion) are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	for _, terminal := range []error{
		models.ErrNotFound, models.ErrConflict, models.ErrBadRequest,
		models.ErrUnauthorized, models.ErrForbidden,
		models.ErrInvalidCredentials, models.ErrMFAInvalid,
	} {
		if errors.Is(err, terminal) {
			return false
		}
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) < 2 {
			return false
		}
		switch pgErr.Code[:2] {
		// 08 connection exception, 53 insufficient resources,
		// 57 operator intervention (e.g. admin shutdown)
		case "08", "53", "57":
			return true
		}
		return false
	}

	// Timeouts and anything else that looks like I/O is retried.
	return true
}

// isConnectionError reports whether the cached handle itself should be
// dropped and re-established before the next attempt.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "57")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "failed to connect") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "closed pool")
}
