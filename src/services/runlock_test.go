package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/capitolwatch/backend/src/database/dbtest"
)

func TestSQLiteRunLock(t *testing.T) {
	ctx := context.Background()
	lock := NewSQLiteRunLock(dbtest.New(t))

	ok, err := lock.Acquire(ctx, "run-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock.Acquire(ctx, "run-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lock is held by run-a")

	// Only the holder can release.
	require.NoError(t, lock.Release(ctx, "run-b"))
	ok, err = lock.Acquire(ctx, "run-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Release(ctx, "run-a"))
	ok, err = lock.Acquire(ctx, "run-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteRunLock_StaleLockIsTakenOver(t *testing.T) {
	ctx := context.Background()
	lock := NewSQLiteRunLock(dbtest.New(t))
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	lock.now = func() time.Time { return now }

	ok, err := lock.Acquire(ctx, "crashed", 10*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(11 * time.Minute)
	ok, err = lock.Acquire(ctx, "next", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestRedisRunLock_Integration requires a running Redis.
// We skip if connection fails.
func TestRedisRunLock_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	lock := NewRedisRunLock(addr, "", 0)
	defer lock.Close()
	ctx := context.Background()
	if _, err := lock.client.Ping(ctx).Result(); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}
	lock.key = "capitolwatch:test:" + t.Name()
	defer lock.client.Del(ctx, lock.key)

	ok, err := lock.Acquire(ctx, "run-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock.Acquire(ctx, "run-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Release(ctx, "run-b"))
	assert.Equal(t, "run-a", lock.client.Get(ctx, lock.key).Val())

	require.NoError(t, lock.Release(ctx, "run-a"))
	ok, err = lock.Acquire(ctx, "run-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
