package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/fairshare/fairshare/internal/model"
)

const userColumns = `user_id, user_name, user_email, user_created_at, deleted_at`

// CreateUser inserts a new user and assigns its ID.
// Outside a transaction a lost connection can hide a committed insert, so such
// failures carry ErrOutcomeUnknown.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	err := insertUser(ctx, r.pool, user)
	if isOutcomeUnknown(err) {
		return fmt.Errorf("%w: %w", ErrOutcomeUnknown, err)
	}
	return err
}

// GetUserByID retrieves a non-deleted user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE user_id = $1 AND deleted_at IS NULL
	`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

// GetUserByEmail retrieves a non-deleted user by normalized email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE user_email = $1 AND deleted_at IS NULL
	`

	user, err := scanUser(r.pool.QueryRow(ctx, query, model.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// ListUsers returns every non-deleted user, oldest first.
func (r *Repository) ListUsers(ctx context.Context) ([]*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE deleted_at IS NULL
		ORDER BY user_id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return collectUsers(rows)
}

// ListOrphanedUsers returns non-deleted users that created no group, oldest first.
func (r *Repository) ListOrphanedUsers(ctx context.Context) ([]*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		WHERE u.deleted_at IS NULL
		  AND NOT EXISTS (SELECT 1 FROM groups g WHERE g.creator_user_id = u.user_id)
		ORDER BY u.user_id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphaned users: %w", err)
	}
	return collectUsers(rows)
}

func collectUsers(rows pgx.Rows) ([]*model.User, error) {
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// DiscardOrphanedUsers soft-deletes the given users that still own no group
// and returns the IDs that were actually discarded.
//
// The candidate rows are locked first so a concurrent CreateGroup either
// commits before the ownership check (and the user is kept) or sees the
// deletion and fails with ErrCreatorNotFound.
func (r *Repository) DiscardOrphanedUsers(ctx context.Context, ids []int64, at time.Time) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lock := `
		SELECT user_id
		FROM users
		WHERE user_id = ANY($1) AND deleted_at IS NULL
		FOR UPDATE
	`
	if _, err := tx.Exec(ctx, lock, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to lock users: %w", err)
	}

	update := `
		UPDATE users u
		SET deleted_at = $2
		WHERE u.user_id = ANY($1)
		  AND u.deleted_at IS NULL
		  AND NOT EXISTS (SELECT 1 FROM groups g WHERE g.creator_user_id = u.user_id)
		RETURNING u.user_id
	`

	rows, err := tx.Query(ctx, update, pq.Array(ids), at)
	if err != nil {
		return nil, fmt.Errorf("failed to discard orphaned users: %w", err)
	}

	var discarded []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan discarded user ID: %w", err)
		}
		discarded = append(discarded, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to discard orphaned users: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapWriteError("commit orphan discard", err)
	}

	return discarded, nil
}

// insertUser inserts a user using either the pool or an open transaction.
func insertUser(ctx context.Context, q querier, user *model.User) error {
	query := `
		INSERT INTO users (user_name, user_email, user_created_at)
		VALUES ($1, $2, $3)
		RETURNING user_id
	`

	err := q.QueryRow(ctx, query, user.Name, user.Email, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// scanUser scans a single row into a User model.
func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.CreatedAt,
		&user.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}
