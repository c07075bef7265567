package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairshare/fairshare/internal/model"
)

// querier is the subset of pgxpool.Pool and pgx.Tx used by shared helpers.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreateGroup inserts a group together with the creator's ADMIN membership.
// Returns ErrCreatorNotFound if the creator does not exist or was discarded.
func (r *Repository) CreateGroup(ctx context.Context, group *model.Group) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// FOR SHARE blocks a concurrent orphan discard of the creator until we commit.
	lock := `
		SELECT user_id
		FROM users
		WHERE user_id = $1 AND deleted_at IS NULL
		FOR SHARE
	`
	var creatorID int64
	if err := tx.QueryRow(ctx, lock, group.CreatorUserID).Scan(&creatorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCreatorNotFound
		}
		return fmt.Errorf("failed to lock creator: %w", err)
	}

	if err := insertGroup(ctx, tx, group); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapWriteError("commit group", err)
	}

	return nil
}

// GetGroupByID retrieves a group by its ID.
func (r *Repository) GetGroupByID(ctx context.Context, id int64) (*model.Group, error) {
	query := `
		SELECT group_id, group_name, creator_user_id, group_created_at
		FROM groups
		WHERE group_id = $1
	`

	group, err := scanGroup(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group by ID: %w", err)
	}

	return group, nil
}

// ListGroups returns every group in creation order.
func (r *Repository) ListGroups(ctx context.Context) ([]*model.Group, error) {
	query := `
		SELECT group_id, group_name, creator_user_id, group_created_at
		FROM groups
		ORDER BY group_id ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups := make([]*model.Group, 0)
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}

	return groups, nil
}

// ListMembers returns the memberships of a group ordered by join order.
func (r *Repository) ListMembers(ctx context.Context, groupID int64) ([]*model.Membership, error) {
	query := `
		SELECT membership_id, user_id, group_id, role, joined_at
		FROM memberships
		WHERE group_id = $1
		ORDER BY membership_id ASC
	`

	rows, err := r.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := make([]*model.Membership, 0)
	for rows.Next() {
		var m model.Membership
		var role string
		if err := rows.Scan(&m.ID, &m.UserID, &m.GroupID, &role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		m.Role = model.Role(role)
		m.JoinedAt = m.JoinedAt.UTC()
		members = append(members, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}

	return members, nil
}

// insertGroup writes the group row and the creator's ADMIN membership.
func insertGroup(ctx context.Context, q querier, group *model.Group) error {
	query := `
		INSERT INTO groups (group_name, creator_user_id, group_created_at)
		VALUES ($1, $2, $3)
		RETURNING group_id
	`

	err := q.QueryRow(ctx, query, group.Name, group.CreatorUserID, group.CreatedAt).Scan(&group.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCreatorNotFound
		}
		return fmt.Errorf("failed to create group: %w", err)
	}

	membership := `
		INSERT INTO memberships (user_id, group_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err = q.Exec(ctx, membership, group.CreatorUserID, group.ID, string(model.RoleAdmin), group.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCreatorNotFound
		}
		return fmt.Errorf("failed to create admin membership: %w", err)
	}

	return nil
}

// scanGroup scans a single row into a Group model.
func scanGroup(row pgx.Row) (*model.Group, error) {
	var group model.Group
	err := row.Scan(
		&group.ID,
		&group.Name,
		&group.CreatorUserID,
		&group.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	group.CreatedAt = group.CreatedAt.UTC()
	return &group, nil
}
