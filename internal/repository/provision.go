package repository

import (
	"context"
	"fmt"

	"github.com/fairshare/fairshare/internal/model"
)

// ProvisionGroup creates the user, the group and the ADMIN membership in a
// single transaction. Either all three rows are committed or none are.
func (r *Repository) ProvisionGroup(ctx context.Context, user *model.User, group *model.Group) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertUser(ctx, tx, user); err != nil {
		return err
	}

	group.CreatorUserID = user.ID
	if err := insertGroup(ctx, tx, group); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapWriteError("commit provisioning", err)
	}

	return nil
}
