package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// Common errors for repository operations.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailExists     = errors.New("email already exists")
	ErrGroupNotFound   = errors.New("group not found")
	ErrCreatorNotFound = errors.New("creator user does not exist")

	// ErrOutcomeUnknown marks a write whose commit status could not be determined,
	// e.g. a timeout or a dropped connection after the statement was sent.
	ErrOutcomeUnknown = errors.New("write outcome unknown")
)

// PostgreSQL SQLSTATE codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// isForeignKeyViolation checks if the error is a PostgreSQL foreign key violation.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// isOutcomeUnknown reports whether a failed write may still have been committed.
// A server-side error means the statement was rejected; an error raised before
// anything was sent is safe to retry. Everything else that looks like a timeout
// or a broken connection is ambiguous.
func isOutcomeUnknown(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	if pgconn.SafeToRetry(err) {
		return false
	}
	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// wrapWriteError wraps a failed write, tagging it with ErrOutcomeUnknown when
// the commit status cannot be known.
func wrapWriteError(op string, err error) error {
	if isOutcomeUnknown(err) {
		return fmt.Errorf("failed to %s: %w: %w", op, ErrOutcomeUnknown, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
