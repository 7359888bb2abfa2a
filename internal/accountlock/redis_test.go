package accountlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRedisLock(t *testing.T, timeout time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, timeout, 5*time.Second, zap.NewNop()), mr
}

func TestRedisAcquireAndRelease(t *testing.T) {
	lock, mr := setupRedisLock(t, 100*time.Millisecond)

	release, err := lock.Acquire(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"acct-1"))

	_, err = lock.Acquire(context.Background(), "acct-1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	release()
	assert.False(t, mr.Exists(keyPrefix+"acct-1"))

	again, err := lock.Acquire(context.Background(), "acct-1")
	require.NoError(t, err)
	again()
}

func TestRedisReleaseKeepsForeignToken(t *testing.T) {
	lock, mr := setupRedisLock(t, 100*time.Millisecond)

	release, err := lock.Acquire(context.Background(), "acct-1")
	require.NoError(t, err)

	// Simulate TTL expiry followed by another holder taking the key.
	require.NoError(t, mr.Set(keyPrefix+"acct-1", "someone-else"))
	release()

	got, err := mr.Get(keyPrefix + "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisWaitsForHolder(t *testing.T) {
	lock, _ := setupRedisLock(t, time.Second)

	release, err := lock.Acquire(context.Background(), "acct-1")
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		release()
	}()

	start := time.Now()
	second, err := lock.Acquire(context.Background(), "acct-1")
	require.NoError(t, err)
	second()
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestRedisLockSetsTTL(t *testing.T) {
	lock, mr := setupRedisLock(t, 100*time.Millisecond)

	release, err := lock.Acquire(context.Background(), "acct-1")
	require.NoError(t, err)
	defer release()

	assert.Equal(t, 5*time.Second, mr.TTL(keyPrefix+"acct-1"))
}

func TestRedisUnavailable(t *testing.T) {
	lock, mr := setupRedisLock(t, 50*time.Millisecond)
	mr.Close()

	_, err := lock.Acquire(context.Background(), "acct-1")
	assert.Error(t, err)
}
