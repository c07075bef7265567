// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fairshare/fairshare/internal/model"
	"github.com/fairshare/fairshare/migrations"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 731001

// AcquireDBLock grabs a global advisory lock to serialize DB tests across packages.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema runs every down migration newest first, then every up
// migration, leaving empty tables with fresh identity sequences.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	all, err := migrations.All()
	if err != nil {
		return err
	}

	for i := len(all) - 1; i >= 0; i-- {
		if _, err := pool.Exec(ctx, all[i].Down); err != nil {
			return fmt.Errorf("apply %s down migration: %w", all[i].Name, err)
		}
	}
	for _, m := range all {
		if _, err := pool.Exec(ctx, m.Up); err != nil {
			return fmt.Errorf("apply %s up migration: %w", m.Name, err)
		}
	}

	return nil
}

// OpenDB connects to DATABASE_URL, serializes the test against other DB
// tests and resets the schema. The test is skipped without DATABASE_URL.
func OpenDB(t testing.TB) *pgxpool.Pool {
	t.Helper()

	dsn := RequireEnv(t, "DATABASE_URL")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect to database: %v", err)
	}

	unlock, err := AcquireDBLock(ctx, pool)
	if err != nil {
		pool.Close()
		t.Fatalf("lock database: %v", err)
	}
	t.Cleanup(func() {
		if err := unlock(); err != nil {
			t.Errorf("unlock database: %v", err)
		}
		pool.Close()
	})

	if err := ResetSchema(ctx, pool); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return pool
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), "..", "..")), nil
}

var seq atomic.Int64

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), seq.Add(1))
}

// NewTestUser returns an unsaved user with a unique email.
func NewTestUser(t testing.TB, name string) *model.User {
	t.Helper()
	return &model.User{
		Name:      name,
		Email:     UniqueID(name) + "@example.com",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// NewTestGroup returns an unsaved group created by creatorID.
func NewTestGroup(t testing.TB, name string, creatorID int64) *model.Group {
	t.Helper()
	return &model.Group{
		Name:          name,
		CreatorUserID: creatorID,
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}
