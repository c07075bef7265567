//go:build integration

package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fairshare/fairshare/internal/model"
	"github.com/fairshare/fairshare/internal/testutil"
)

func newTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	pool := testutil.OpenDB(t)
	return context.Background(), NewWithPool(pool)
}

// ============================================================================
// Migrations
// ============================================================================

func TestIntegrationMigrate_Idempotent(t *testing.T) {
	ctx, repo := newTestEnv(t)

	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("Migrate on up-to-date schema failed: %v", err)
	}

	for _, table := range []string{"users", "groups", "memberships"} {
		var exists bool
		err := repo.Pool().QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table,
		).Scan(&exists)
		if err != nil {
			t.Fatalf("check table %s: %v", table, err)
		}
		if !exists {
			t.Errorf("table %q should exist after migrations", table)
		}
	}
}

// ============================================================================
// Users
// ============================================================================

func TestIntegrationUser_CreateAndGet(t *testing.T) {
	ctx, repo := newTestEnv(t)

	user := testutil.NewTestUser(t, "alice")
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.ID <= 0 {
		t.Fatalf("expected assigned ID, got %d", user.ID)
	}

	got, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.Name != user.Name || got.Email != user.Email {
		t.Errorf("got %+v, want %+v", got, user)
	}
	if !got.CreatedAt.Equal(user.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, user.CreatedAt)
	}

	byEmail, err := repo.GetUserByEmail(ctx, user.Email)
	if err != nil || byEmail.ID != user.ID {
		t.Errorf("GetUserByEmail = (%v, %v), want user %d", byEmail, err, user.ID)
	}

	if _, err := repo.GetUserByID(ctx, user.ID+1000); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestIntegrationUser_DuplicateEmail(t *testing.T) {
	ctx, repo := newTestEnv(t)

	first := testutil.NewTestUser(t, "dup")
	if err := repo.CreateUser(ctx, first); err != nil {
		t.Fatalf("CreateUser (first) failed: %v", err)
	}

	second := testutil.NewTestUser(t, "dup")
	second.Email = first.Email
	if err := repo.CreateUser(ctx, second); !errors.Is(err, ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}
}

func TestIntegrationUser_DiscardOrphans(t *testing.T) {
	ctx, repo := newTestEnv(t)

	orphan := testutil.NewTestUser(t, "orphan")
	owner := testutil.NewTestUser(t, "owner")
	for _, u := range []*model.User{orphan, owner} {
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}
	if err := repo.CreateGroup(ctx, testutil.NewTestGroup(t, "Trip", owner.ID)); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	orphans, err := repo.ListOrphanedUsers(ctx)
	if err != nil {
		t.Fatalf("ListOrphanedUsers failed: %v", err)
	}
	if len(orphans) != 1 || orphans[0].ID != orphan.ID {
		t.Fatalf("orphans = %+v, want only user %d", orphans, orphan.ID)
	}

	discarded, err := repo.DiscardOrphanedUsers(ctx, []int64{orphan.ID, owner.ID}, time.Now().UTC())
	if err != nil {
		t.Fatalf("DiscardOrphanedUsers failed: %v", err)
	}
	if len(discarded) != 1 || discarded[0] != orphan.ID {
		t.Errorf("discarded = %v, want [%d]", discarded, orphan.ID)
	}

	if _, err := repo.GetUserByID(ctx, orphan.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("discarded user should not be readable, got %v", err)
	}
	if _, err := repo.GetUserByEmail(ctx, orphan.Email); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("discarded user should not be found by email, got %v", err)
	}
	active, err := repo.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != owner.ID {
		t.Errorf("active users = %+v, want only user %d", active, owner.ID)
	}

	// A discarded user's email can be registered again.
	again := testutil.NewTestUser(t, "orphan")
	again.Email = orphan.Email
	if err := repo.CreateUser(ctx, again); err != nil {
		t.Errorf("re-registering a discarded email failed: %v", err)
	}

	// A discarded user can no longer create groups.
	err = repo.CreateGroup(ctx, testutil.NewTestGroup(t, "Late", orphan.ID))
	if !errors.Is(err, ErrCreatorNotFound) {
		t.Errorf("expected ErrCreatorNotFound, got %v", err)
	}
}

// ============================================================================
// Groups
// ============================================================================

func TestIntegrationGroup_CreateWithAdminMembership(t *testing.T) {
	ctx, repo := newTestEnv(t)

	creator := testutil.NewTestUser(t, "creator")
	if err := repo.CreateUser(ctx, creator); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	group := testutil.NewTestGroup(t, "Flatmates", creator.ID)
	if err := repo.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	got, err := repo.GetGroupByID(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetGroupByID failed: %v", err)
	}
	if got.Name != "Flatmates" || got.CreatorUserID != creator.ID {
		t.Errorf("group = %+v", got)
	}

	members, err := repo.ListMembers(ctx, group.ID)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(members) != 1 || members[0].UserID != creator.ID || members[0].Role != model.RoleAdmin {
		t.Errorf("members = %+v, want one ADMIN for creator", members)
	}
}

func TestIntegrationGroup_DanglingCreator(t *testing.T) {
	ctx, repo := newTestEnv(t)

	err := repo.CreateGroup(ctx, testutil.NewTestGroup(t, "Ghost", 424242))
	if !errors.Is(err, ErrCreatorNotFound) {
		t.Fatalf("expected ErrCreatorNotFound, got %v", err)
	}

	groups, err := repo.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("expected no groups, got %d", len(groups))
	}
}

func TestIntegrationGroup_ListInCreationOrder(t *testing.T) {
	ctx, repo := newTestEnv(t)

	creator := testutil.NewTestUser(t, "creator")
	if err := repo.CreateUser(ctx, creator); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	names := []string{"first", "second", "third"}
	for _, name := range names {
		if err := repo.CreateGroup(ctx, testutil.NewTestGroup(t, name, creator.ID)); err != nil {
			t.Fatalf("CreateGroup(%s) failed: %v", name, err)
		}
	}

	groups, err := repo.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(groups) != len(names) {
		t.Fatalf("got %d groups, want %d", len(groups), len(names))
	}
	for i, g := range groups {
		if g.Name != names[i] {
			t.Errorf("groups[%d] = %s, want %s", i, g.Name, names[i])
		}
	}
}

// ============================================================================
// Provisioning
// ============================================================================

func TestIntegrationProvision_AllOrNothing(t *testing.T) {
	ctx, repo := newTestEnv(t)

	user := testutil.NewTestUser(t, "alice")
	group := testutil.NewTestGroup(t, "Trip to Lisbon", 0)
	if err := repo.ProvisionGroup(ctx, user, group); err != nil {
		t.Fatalf("ProvisionGroup failed: %v", err)
	}
	if group.CreatorUserID != user.ID {
		t.Errorf("creator = %d, want %d", group.CreatorUserID, user.ID)
	}

	// Same email again: the user insert fails and no group is written.
	dup := testutil.NewTestUser(t, "alice")
	dup.Email = user.Email
	if err := repo.ProvisionGroup(ctx, dup, testutil.NewTestGroup(t, "Other", 0)); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}

	groups, err := repo.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(groups) != 1 {
		t.Errorf("expected exactly one group, got %d", len(groups))
	}
}

func TestIntegrationProvision_ConcurrentSameEmail(t *testing.T) {
	ctx, repo := newTestEnv(t)

	email := testutil.UniqueID("race") + "@example.com"
	const n = 8

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := testutil.NewTestUser(t, "racer")
			user.Email = email
			errs <- repo.ProvisionGroup(ctx, user, testutil.NewTestGroup(t, "race", 0))
		}()
	}
	wg.Wait()
	close(errs)

	var ok, taken int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrEmailExists):
			taken++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || taken != n-1 {
		t.Errorf("ok=%d taken=%d, want 1 and %d", ok, taken, n-1)
	}
}

func TestIntegrationCreateUser_CancelledContext(t *testing.T) {
	_, repo := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.CreateUser(ctx, testutil.NewTestUser(t, "cancelled"))
	if err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
	if errors.Is(err, ErrEmailExists) {
		t.Errorf("unexpected classification: %v", err)
	}
}
