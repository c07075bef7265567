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

// UserService implements the Identity Store.
type UserService struct {
	repo         UserRepository
	metrics      metrics.Recorder
	storeTimeout time.Duration
	clock        func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(repo UserRepository, recorder metrics.Recorder, storeTimeout time.Duration) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &UserService{
		repo:         repo,
		metrics:      recorder,
		storeTimeout: storeTimeout,
		clock:        now,
	}
}

// validateUser trims the inputs and checks them.
func validateUser(userName, userEmail string) (string, string, error) {
	name := strings.TrimSpace(userName)
	email := model.NormalizeEmail(userEmail)
	if err := validateStruct(userFields{UserName: name, UserEmail: email}); err != nil {
		return "", "", err
	}
	return name, email, nil
}

// CreateUser validates and stores a new user.
func (s *UserService) CreateUser(ctx context.Context, userName, userEmail string) (*model.User, error) {
	name, email, err := validateUser(userName, userEmail)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, name, email)
}

// create stores an already validated user.
func (s *UserService) create(ctx context.Context, name, email string) (*model.User, error) {
	user := &model.User{
		Name:      name,
		Email:     email,
		CreatedAt: s.clock(),
	}

	storeCtx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.repo.CreateUser(storeCtx, user); err != nil {
		return nil, mapUserWriteError(err)
	}

	s.metrics.IncUserCreated()
	slog.InfoContext(ctx, "user_created", "user_id", user.ID)

	return user, nil
}

// GetUser returns a non-deleted user.
func (s *UserService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	storeCtx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.repo.GetUserByID(storeCtx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByEmail returns the non-deleted user holding email. The address is
// normalized first, so lookups match however the caller cased it.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	if err := validateStruct(emailLookup{Email: email}); err != nil {
		return nil, err
	}

	storeCtx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.repo.GetUserByEmail(storeCtx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// ListUsers returns every non-deleted user in creation order.
func (s *UserService) ListUsers(ctx context.Context) ([]*model.User, error) {
	storeCtx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()

	users, err := s.repo.ListUsers(storeCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ListOrphanedUsers returns users that own no group.
func (s *UserService) ListOrphanedUsers(ctx context.Context) ([]*model.User, error) {
	storeCtx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()

	users, err := s.repo.ListOrphanedUsers(storeCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphaned users: %w", err)
	}
	return users, nil
}

// DiscardOrphanedUsers soft-deletes the listed users that own no group and
// returns the IDs actually discarded. Unknown, already discarded and
// group-owning users are skipped.
func (s *UserService) DiscardOrphanedUsers(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return []int64{}, nil
	}

	storeCtx, cancel := withTimeout(ctx, s.storeTimeout)
	defer cancel()

	discarded, err := s.repo.DiscardOrphanedUsers(storeCtx, dedupeIDs(ids), s.clock())
	if err != nil {
		return nil, fmt.Errorf("failed to discard orphaned users: %w", err)
	}
	if discarded == nil {
		discarded = []int64{}
	}

	s.metrics.IncUsersDiscarded(len(discarded))
	if len(discarded) > 0 {
		slog.InfoContext(ctx, "orphaned_users_discarded", "user_ids", discarded)
	}
	return discarded, nil
}

// DiscardUser soft-deletes a single orphaned user.
func (s *UserService) DiscardUser(ctx context.Context, id int64) error {
	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}

	discarded, err := s.DiscardOrphanedUsers(ctx, []int64{id})
	if err != nil {
		return err
	}
	if len(discarded) == 0 {
		// The user exists, so the only reason to keep it is group ownership.
		return ErrUserOwnsGroups
	}
	return nil
}

func mapUserWriteError(err error) error {
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return ErrEmailTaken
	case errors.Is(err, repository.ErrOutcomeUnknown):
		return &AmbiguousOutcomeError{Step: StepCreateUser, Cause: err}
	default:
		return fmt.Errorf("failed to create user: %w", err)
	}
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
