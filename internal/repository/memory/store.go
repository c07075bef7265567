// Package memory provides an in-process store with the same contract as the
// PostgreSQL repository. It backs STORE_BACKEND=memory and the service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fairshare/fairshare/internal/model"
	"github.com/fairshare/fairshare/internal/repository"
)

// Store keeps users, groups and memberships in memory.
// A single mutex serializes identifier assignment and every write.
type Store struct {
	mu sync.RWMutex

	nextUserID       int64
	nextGroupID      int64
	nextMembershipID int64

	users       map[int64]*model.User
	groups      []*model.Group
	memberships []*model.Membership
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		nextUserID:       1,
		nextGroupID:      1,
		nextMembershipID: 1,
		users:            make(map[int64]*model.User),
	}
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// CreateUser stores a user and assigns its ID.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertUserLocked(user)
}

// GetUserByID returns a copy of a non-deleted user.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok || user.IsDeleted() {
		return nil, repository.ErrUserNotFound
	}

	copy := *user
	return &copy, nil
}

// GetUserByEmail returns a copy of the non-deleted user with the given email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user := s.activeUserByEmailLocked(model.NormalizeEmail(email))
	if user == nil {
		return nil, repository.ErrUserNotFound
	}

	copy := *user
	return &copy, nil
}

// ListUsers returns every non-deleted user, oldest first.
func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.User
	for id := int64(1); id < s.nextUserID; id++ {
		if user, ok := s.users[id]; ok && !user.IsDeleted() {
			copy := *user
			result = append(result, &copy)
		}
	}
	return result, nil
}

// ListOrphanedUsers returns non-deleted users that created no group, oldest first.
func (s *Store) ListOrphanedUsers(ctx context.Context) ([]*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.User
	for id := int64(1); id < s.nextUserID; id++ {
		user, ok := s.users[id]
		if !ok || user.IsDeleted() || s.ownsGroupLocked(id) {
			continue
		}
		copy := *user
		result = append(result, &copy)
	}
	return result, nil
}

// DiscardOrphanedUsers soft-deletes the given users that own no group.
func (s *Store) DiscardOrphanedUsers(ctx context.Context, ids []int64, at time.Time) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var discarded []int64
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		user, ok := s.users[id]
		if !ok || user.IsDeleted() || s.ownsGroupLocked(id) {
			continue
		}
		deletedAt := at
		user.DeletedAt = &deletedAt
		discarded = append(discarded, id)
	}
	return discarded, nil
}

// CreateGroup stores a group with the creator's ADMIN membership.
func (s *Store) CreateGroup(ctx context.Context, group *model.Group) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertGroupLocked(group)
}

// GetGroupByID returns a copy of a group.
func (s *Store) GetGroupByID(ctx context.Context, id int64) (*model.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, group := range s.groups {
		if group.ID == id {
			copy := *group
			return &copy, nil
		}
	}
	return nil, repository.ErrGroupNotFound
}

// ListGroups returns a snapshot of all groups in creation order.
func (s *Store) ListGroups(ctx context.Context) ([]*model.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.Group, 0, len(s.groups))
	for _, group := range s.groups {
		copy := *group
		result = append(result, &copy)
	}
	return result, nil
}

// ListMembers returns the memberships of a group in join order.
func (s *Store) ListMembers(ctx context.Context, groupID int64) ([]*model.Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.Membership, 0)
	for _, m := range s.memberships {
		if m.GroupID == groupID {
			copy := *m
			result = append(result, &copy)
		}
	}
	return result, nil
}

// ProvisionGroup creates user, group and membership as one atomic step.
func (s *Store) ProvisionGroup(ctx context.Context, user *model.User, group *model.Group) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertUserLocked(user); err != nil {
		return err
	}
	group.CreatorUserID = user.ID
	return s.insertGroupLocked(group)
}

// Counts returns the number of stored users (including discarded) and groups.
func (s *Store) Counts() (users, groups int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), len(s.groups)
}

func (s *Store) insertUserLocked(user *model.User) error {
	if s.activeUserByEmailLocked(user.Email) != nil {
		return repository.ErrEmailExists
	}

	stored := *user
	stored.ID = s.nextUserID
	s.nextUserID++
	s.users[stored.ID] = &stored

	user.ID = stored.ID
	return nil
}

func (s *Store) insertGroupLocked(group *model.Group) error {
	creator, ok := s.users[group.CreatorUserID]
	if !ok || creator.IsDeleted() {
		return repository.ErrCreatorNotFound
	}

	stored := *group
	stored.ID = s.nextGroupID
	s.nextGroupID++
	s.groups = append(s.groups, &stored)

	s.memberships = append(s.memberships, &model.Membership{
		ID:       s.nextMembershipID,
		UserID:   stored.CreatorUserID,
		GroupID:  stored.ID,
		Role:     model.RoleAdmin,
		JoinedAt: stored.CreatedAt,
	})
	s.nextMembershipID++

	group.ID = stored.ID
	return nil
}

func (s *Store) activeUserByEmailLocked(email string) *model.User {
	for _, user := range s.users {
		if !user.IsDeleted() && user.Email == email {
			return user
		}
	}
	return nil
}

func (s *Store) ownsGroupLocked(userID int64) bool {
	for _, group := range s.groups {
		if group.CreatorUserID == userID {
			return true
		}
	}
	return false
}
