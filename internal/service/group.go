package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fairshare/fairshare/internal/metrics"
	"github.com/fairshare/fairshare/internal/model"
	"github.com/fairshare/fairshare/internal/repository"
)

// GroupService implements the Group Store.
type GroupService struct {
	repo         GroupRepository
	cache        GroupCache
	metrics      metrics.Recorder
	storeTimeout time.Duration
	clock        func() time.Time
}

// NewGroupService creates a new GroupService. cache may be nil.
func NewGroupService(repo GroupRepository, cache GroupCache, recorder metrics.Recorder, storeTimeout time.Duration) *GroupService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &GroupService{
		repo:         repo,
		cache:        cache,
		metrics:      recorder,
		storeTimeout: storeTimeout,
		clock:        now,
	}
}

func validateGroup(name string, creatorUserID int64) (string, error) {
	trimmed := strings.TrimSpace(name)
	if err := validateStruct(groupFields{Name: trimmed, CreatorUserID: creatorUserID}); err != nil {
		return "", err
	}
	return trimmed, nil
}

// CreateGroup creates a group owned by an existing user. The creator is
// checked inside the storage write, so a concurrently discarded creator
// yields ErrDanglingReference rather than a dangling group.
func (s *GroupService) CreateGroup(ctx context.Context, name string, creatorUserID int64) (*model.Group, error) {
	trimmed, err := validateGroup(name, creatorUserID)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, trimmed, creatorUserID)
}

func (s *GroupService) create(ctx context.Context, name string, creatorUserID int64) (*model.Group, error) {
	group := &model.Group{
		Name:          name,
		CreatorUserID: creatorUserID,
		CreatedAt:     s.clock(),
	}

	storeCtx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.repo.CreateGroup(storeCtx, group); err != nil {
		switch {
		case errors.Is(err, repository.ErrCreatorNotFound):
			return nil, ErrDanglingReference
		case errors.Is(err, repository.ErrOutcomeUnknown):
			return nil, &AmbiguousOutcomeError{Step: StepCreateGroup, Cause: err}
		default:
			return nil, fmt.Errorf("failed to create group: %w", err)
		}
	}

	s.created(ctx, group)
	return group, nil
}

// created records a committed group and warms the read cache.
func (s *GroupService) created(ctx context.Context, group *model.Group) {
	s.metrics.IncGroupCreated()
	slog.InfoContext(ctx, "group_created",
		"group_id", group.ID,
		"creator_user_id", group.CreatorUserID,
	)

	if s.cache != nil {
		if err := s.cache.SetGroup(ctx, group); err != nil {
			slog.WarnContext(ctx, "group cache fill failed", "group_id", group.ID, "error", err)
		}
	}
}

// GetGroup returns a group from storage.
func (s *GroupService) GetGroup(ctx context.Context, id int64) (*model.Group, error) {
	storeCtx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()

	group, err := s.repo.GetGroupByID(storeCtx, id)
	if err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// ListGroups returns all groups in creation order.
func (s *GroupService) ListGroups(ctx context.Context) ([]*model.Group, error) {
	storeCtx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()

	groups, err := s.repo.ListGroups(storeCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	if groups == nil {
		groups = []*model.Group{}
	}
	return groups, nil
}

// ListMembers returns the memberships of an existing group.
func (s *GroupService) ListMembers(ctx context.Context, groupID int64) ([]*model.Membership, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}

	storeCtx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()

	members, err := s.repo.ListMembers(storeCtx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	if members == nil {
		members = []*model.Membership{}
	}
	return members, nil
}
