package costcatalog

import (
	"context"
	"time"

	"github.com/smallbiznis/creditledger/internal/config"
	costdomain "github.com/smallbiznis/creditledger/internal/costcatalog/domain"
	"github.com/smallbiznis/creditledger/internal/costcatalog/repository"
	"github.com/smallbiznis/creditledger/internal/costcatalog/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("costcatalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(provideRulesHolder),
	fx.Invoke(registerSeedSync),
	fx.Invoke(registerInvalidationListener),
)

func provideRulesHolder(cfg config.Config) (*config.CostRulesHolder, error) {
	return config.NewCostRulesHolder(cfg.Ledger.CostRulesFile)
}

// registerSeedSync loads the seed file once the database is reachable and
// re-syncs on every valid reload.
func registerSeedSync(lc fx.Lifecycle, holder *config.CostRulesHolder, svc costdomain.Service, log *zap.Logger) {
	if holder.Path() == "" {
		return
	}
	log = log.Named("costcatalog.seed")

	syncRules := func(ctx context.Context, seeds []config.CostRuleSeed) error {
		n, err := svc.SyncRules(ctx, SeedRequests(seeds))
		if err != nil {
			return err
		}
		log.Info("cost rules synced", zap.String("path", holder.Path()), zap.Int("rules", n))
		return nil
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			holder.OnChange(func(seeds []config.CostRuleSeed) {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := syncRules(ctx, seeds); err != nil {
					log.Error("cost rule reload failed", zap.Error(err))
				}
			})
			return syncRules(ctx, holder.Get())
		},
	})
}

type invalidationListener interface {
	ListenInvalidations(ctx context.Context) (func(), error)
}

// registerInvalidationListener keeps this replica's cost cache in step with
// rule changes made elsewhere. Without Redis the cache TTL bounds staleness.
func registerInvalidationListener(lc fx.Lifecycle, svc costdomain.Service, log *zap.Logger) {
	listener, ok := svc.(invalidationListener)
	if !ok {
		return
	}
	var stop func()
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			stop, err = listener.ListenInvalidations(ctx)
			return err
		},
		OnStop: func(context.Context) error {
			if stop != nil {
				stop()
			}
			log.Named("costcatalog.cache").Debug("cost cache invalidation listener stopped")
			return nil
		},
	})
}

// SeedRequests converts file entries into catalog upserts.
func SeedRequests(seeds []config.CostRuleSeed) []costdomain.UpsertRuleRequest {
	reqs := make([]costdomain.UpsertRuleRequest, 0, len(seeds))
	for _, seed := range seeds {
		active := seed.IsActive()
		reqs = append(reqs, costdomain.UpsertRuleRequest{
			ModelName:        seed.Model,
			QuestionCategory: seed.Category,
			Cost:             seed.Cost,
			Active:           &active,
			Description:      seed.Description,
		})
	}
	return reqs
}
