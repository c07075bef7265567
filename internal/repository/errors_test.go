package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unique", &pgconn.PgError{Code: pgUniqueViolation}, true},
		{"wrapped unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgUniqueViolation}), true},
		{"foreign key", &pgconn.PgError{Code: pgForeignKeyViolation}, false},
		{"plain error mentioning unique", errors.New("unique"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	if !isForeignKeyViolation(&pgconn.PgError{Code: pgForeignKeyViolation}) {
		t.Error("expected FK violation to be detected")
	}
	if isForeignKeyViolation(&pgconn.PgError{Code: pgUniqueViolation}) {
		t.Error("unique violation is not an FK violation")
	}
}

func TestIsOutcomeUnknown(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server rejected", &pgconn.PgError{Code: "40001"}, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("exec: %w", context.DeadlineExceeded), true},
		{"canceled", context.Canceled, true},
		{"connection reset mid-flight", io.ErrUnexpectedEOF, true},
		{"generic", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isOutcomeUnknown(tt.err); got != tt.want {
				t.Errorf("isOutcomeUnknown(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWrapWriteError(t *testing.T) {
	err := wrapWriteError("create user", context.DeadlineExceeded)
	if !errors.Is(err, ErrOutcomeUnknown) {
		t.Errorf("expected ErrOutcomeUnknown in chain, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected cause in chain, got %v", err)
	}

	err = wrapWriteError("create user", &pgconn.PgError{Code: "22001"})
	if errors.Is(err, ErrOutcomeUnknown) {
		t.Errorf("server error must be a definite failure, got %v", err)
	}
}
