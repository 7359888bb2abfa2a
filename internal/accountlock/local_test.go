package accountlock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSerializesSameAccount(t *testing.T) {
	l := NewLocal(time.Second)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "acct-1")
			require.NoError(t, err)
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.size())
}

func TestLocalDoesNotBlockOtherAccounts(t *testing.T) {
	l := NewLocal(50 * time.Millisecond)

	release, err := l.Acquire(context.Background(), "acct-1")
	require.NoError(t, err)
	defer release()

	other, err := l.Acquire(context.Background(), "acct-2")
	require.NoError(t, err)
	other()
}

func TestLocalTimesOut(t *testing.T) {
	l := NewLocal(20 * time.Millisecond)

	release, err := l.Acquire(context.Background(), "acct-1")
	require.NoError(t, err)

	_, err = l.Acquire(context.Background(), "acct-1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	release()
	release()
	assert.Equal(t, 0, l.size())

	again, err := l.Acquire(context.Background(), "acct-1")
	require.NoError(t, err)
	again()
}

func TestLocalHonoursCallerCancellation(t *testing.T) {
	l := NewLocal(time.Second)
	release, err := l.Acquire(context.Background(), "acct-1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, "acct-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalRejectsEmptyAccount(t *testing.T) {
	_, err := NewLocal(time.Second).Acquire(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyAccount)
}
