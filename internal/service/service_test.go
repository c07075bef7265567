package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fairshare/fairshare/internal/metrics"
	"github.com/fairshare/fairshare/internal/model"
	"github.com/fairshare/fairshare/internal/repository"
	"github.com/fairshare/fairshare/internal/repository/memory"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store    *memory.Store
	users    *UserService
	groups   *GroupService
	workflow *ProvisioningWorkflow
	recorder *metrics.InMemoryRecorder
}

// newFixture wires the services over a memory store. groupRepo overrides the
// Group Store's repository when non-nil.
func newFixture(t *testing.T, mode ProvisionMode, groupRepo GroupRepository) *fixture {
	t.Helper()

	store := memory.New()
	recorder := metrics.NewInMemory()

	if groupRepo == nil {
		groupRepo = store
	}

	users := NewUserService(store, recorder, time.Second)
	users.clock = func() time.Time { return fixedNow }
	groups := NewGroupService(groupRepo, nil, recorder, time.Second)
	groups.clock = func() time.Time { return fixedNow }

	var tx TxProvisioner
	if mode == ModeAtomic {
		tx = store
	}

	return &fixture{
		store:    store,
		users:    users,
		groups:   groups,
		workflow: NewProvisioningWorkflow(users, groups, tx, mode, recorder),
		recorder: recorder,
	}
}

func (f *fixture) assertCounts(t *testing.T, wantUsers, wantGroups int) {
	t.Helper()

	users, groups := f.store.Counts()
	if users != wantUsers || groups != wantGroups {
		t.Errorf("store counts = (%d users, %d groups), want (%d, %d)", users, groups, wantUsers, wantGroups)
	}
}

func assertValidationFields(t *testing.T, err error, fields ...string) {
	t.Helper()

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("validation error should match ErrInvalidInput")
	}
	if len(verr.Fields) != len(fields) {
		t.Fatalf("invalid fields = %+v, want %v", verr.Fields, fields)
	}
	for _, field := range fields {
		if !verr.HasField(field) {
			t.Errorf("invalid fields %+v missing %q", verr.Fields, field)
		}
	}
}

// failingGroupRepo fails every CreateGroup call with err.
type failingGroupRepo struct {
	*memory.Store
	err error
}

func (f *failingGroupRepo) CreateGroup(ctx context.Context, group *model.Group) error {
	return f.err
}

// failingUserRepo fails every CreateUser call with err.
type failingUserRepo struct {
	*memory.Store
	err error
}

func (f *failingUserRepo) CreateUser(ctx context.Context, user *model.User) error {
	return f.err
}

// failingTx fails ProvisionGroup with err.
type failingTx struct {
	err error
}

func (f failingTx) ProvisionGroup(ctx context.Context, user *model.User, group *model.Group) error {
	return f.err
}

func outcomeUnknown(op string) error {
	return fmt.Errorf("failed to %s: %w: %w", op, repository.ErrOutcomeUnknown, context.DeadlineExceeded)
}
