package lock

import (
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djlord-it/easy-meetings/internal/testutil"
)

func TestKeyFromName(t *testing.T) {
	assert.Equal(t, KeyFromName("easymeetings:generate"), KeyFromName("easymeetings:generate"))
	assert.NotEqual(t, KeyFromName("easymeetings:generate"), KeyFromName("easymeetings:other"))
}

func TestRedis_BackendDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	release, ok, err := NewRedis(client, "easymeetings:generate", time.Minute, nil).TryLock(testutil.TestContext(t))
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Nil(t, release)
}

func TestRedis_Integration(t *testing.T) {
	addr := os.Getenv("EASYMEETINGS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("EASYMEETINGS_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := testutil.TestContext(t)
	key := "easymeetings:test:" + t.Name()
	require.NoError(t, client.Del(ctx, key).Err())

	first := NewRedis(client, key, time.Minute, nil)
	second := NewRedis(client, key, time.Minute, nil)

	release, ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "lock is held")

	release()
	releaseAgain, ok, err := second.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "lock is free after release")
	releaseAgain()
}

func TestAdvisory_Integration(t *testing.T) {
	dsn := os.Getenv("EASYMEETINGS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("EASYMEETINGS_TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()
	ctx := testutil.TestContext(t)
	key := KeyFromName("easymeetings:test:" + t.Name())

	first := NewAdvisory(db, key, nil)
	second := NewAdvisory(db, key, nil)

	release, ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "lock is held by another session")

	release()
	releaseAgain, ok, err := second.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	releaseAgain()
}
