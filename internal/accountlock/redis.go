package accountlock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/creditledger/internal/observability/metrics"
	"go.uber.org/zap"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const (
	keyPrefix      = "creditledger:lock:account:"
	minPollBackoff = 5 * time.Millisecond
	maxPollBackoff = 100 * time.Millisecond
)

// Redis is a token lock shared by every instance pointing at the same server.
// The TTL only protects against crashed holders; it must exceed the longest
// ledger transaction.
type Redis struct {
	client  *redis.Client
	script  *redis.Script
	timeout time.Duration
	ttl     time.Duration
	log     *zap.Logger
}

func NewRedis(client *redis.Client, timeout, ttl time.Duration, log *zap.Logger) *Redis {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Redis{
		client:  client,
		script:  redis.NewScript(lockReleaseScript),
		timeout: timeout,
		ttl:     ttl,
		log:     log.Named("accountlock.redis"),
	}
}

func (r *Redis) Backend() string { return metrics.LockBackendRedis }

func (r *Redis) Acquire(ctx context.Context, accountID string) (Release, error) {
	if r == nil || r.client == nil {
		return nil, errors.New("lock client not configured")
	}
	id, err := normalizeKey(accountID)
	if err != nil {
		return nil, err
	}
	key := keyPrefix + id

	waitCtx, cancel := boundedContext(ctx, r.timeout)
	defer cancel()

	backoff := minPollBackoff
	for {
		token, ok, err := r.tryLock(waitCtx, key)
		if err != nil {
			if waitCtx.Err() != nil {
				return nil, waitError(ctx, waitCtx)
			}
			return nil, err
		}
		if ok {
			return r.releaser(key, token), nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			return nil, waitError(ctx, waitCtx)
		case <-timer.C:
		}
		backoff *= 2
		if backoff > maxPollBackoff {
			backoff = maxPollBackoff
		}
	}
}

func (r *Redis) tryLock(ctx context.Context, key string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// releaser uses a detached context so a cancelled request still frees the key.
func (r *Redis) releaser(key, token string) Release {
	var once sync.Once
	return func() {
		once.Do(func() { r.release(key, token) })
	}
}

func (r *Redis) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.script.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
		r.log.Warn("failed to release account lock", zap.String("key", key), zap.Error(err))
	}
}
