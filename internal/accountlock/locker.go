// Package accountlock serializes balance mutations per account.
//
// A Locker never blocks callers working on other accounts. Acquisition is
// bounded: callers get ErrLockTimeout once the configured wait elapses and are
// expected to surface that as a retryable conflict.
package accountlock

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrLockTimeout  = errors.New("account_lock_timeout")
	ErrEmptyAccount = errors.New("account_lock_empty_key")
)

// Release gives up the lock. It is safe to call more than once.
type Release func()

type Locker interface {
	Acquire(ctx context.Context, accountID string) (Release, error)
	// Backend names the implementation for metrics labels.
	Backend() string
}

// boundedContext derives the wait context and reports whether a cancellation
// came from the wait bound rather than the caller.
func boundedContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func waitError(parent, bounded context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	if errors.Is(bounded.Err(), context.DeadlineExceeded) {
		return ErrLockTimeout
	}
	return bounded.Err()
}

func normalizeKey(accountID string) (string, error) {
	key := strings.TrimSpace(accountID)
	if key == "" {
		return "", ErrEmptyAccount
	}
	return key, nil
}
