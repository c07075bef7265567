// Package service provides business logic for the application.
package service

import (
	"context"
	"time"

	"github.com/fairshare/fairshare/internal/model"
)

// UserRepository is the Identity Store's storage contract.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	ListOrphanedUsers(ctx context.Context) ([]*model.User, error)
	DiscardOrphanedUsers(ctx context.Context, ids []int64, at time.Time) ([]int64, error)
}

// GroupRepository is the Group Store's storage contract.
type GroupRepository interface {
	CreateGroup(ctx context.Context, group *model.Group) error
	GetGroupByID(ctx context.Context, id int64) (*model.Group, error)
	ListGroups(ctx context.Context) ([]*model.Group, error)
	ListMembers(ctx context.Context, groupID int64) ([]*model.Membership, error)
}

// TxProvisioner is implemented by stores that can create a user and its
// group in one transaction.
type TxProvisioner interface {
	ProvisionGroup(ctx context.Context, user *model.User, group *model.Group) error
}

// GroupCache is an optional read-through cache of groups.
type GroupCache interface {
	GetGroup(ctx context.Context, id int64) (*model.Group, error)
	SetGroup(ctx context.Context, group *model.Group) error
	IsNegativelyCached(ctx context.Context, id int64) (bool, error)
	SetNegativeCache(ctx context.Context, id int64) error
}

// now returns the creation timestamp stored for new rows. PostgreSQL keeps
// microseconds, so the value is truncated to match what reads return.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// withTimeout bounds a single store call. A non-positive timeout leaves ctx unchanged.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
