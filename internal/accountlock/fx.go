package accountlock

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/creditledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("accountlock",
	fx.Provide(NewRedisClient),
	fx.Provide(New),
)

// NewRedisClient returns nil when no Redis address is configured.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

type Params struct {
	fx.In

	Config config.Config
	Client *redis.Client `optional:"true"`
	Log    *zap.Logger
}

func New(p Params) Locker {
	timeout := p.Config.Ledger.LockTimeout
	if p.Client == nil {
		p.Log.Info("account lock backend selected", zap.String("backend", "local"))
		return NewLocal(timeout)
	}
	p.Log.Info("account lock backend selected", zap.String("backend", "redis"))
	return NewRedis(p.Client, timeout, p.Config.Ledger.LockTTL, p.Log)
}
