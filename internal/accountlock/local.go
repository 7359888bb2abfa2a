package accountlock

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/creditledger/internal/observability/metrics"
)

type slot struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process keyed lock. Slots are reference counted so idle
// accounts do not accumulate memory.
type Local struct {
	mu      sync.Mutex
	slots   map[string]*slot
	timeout time.Duration
}

func NewLocal(timeout time.Duration) *Local {
	return &Local{
		slots:   make(map[string]*slot),
		timeout: timeout,
	}
}

func (l *Local) Backend() string { return metrics.LockBackendLocal }

func (l *Local) Acquire(ctx context.Context, accountID string) (Release, error) {
	key, err := normalizeKey(accountID)
	if err != nil {
		return nil, err
	}

	s := l.ref(key)
	waitCtx, cancel := boundedContext(ctx, l.timeout)
	defer cancel()

	select {
	case s.ch <- struct{}{}:
	case <-waitCtx.Done():
		l.unref(key)
		return nil, waitError(ctx, waitCtx)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(key)
		})
	}, nil
}

func (l *Local) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		return
	}
	s.refs--
	if s.refs <= 0 {
		delete(l.slots, key)
	}
}

func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
