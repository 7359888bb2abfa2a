package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/creditledger/internal/cache"
	"github.com/smallbiznis/creditledger/internal/clock"
	"github.com/smallbiznis/creditledger/internal/config"
	costdomain "github.com/smallbiznis/creditledger/internal/costcatalog/domain"
	"github.com/smallbiznis/creditledger/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultCacheTTL = 30 * time.Second

	// InvalidationChannel carries cache keys evicted by any replica; "*"
	// purges every entry.
	InvalidationChannel = "creditledger:cost_rules:invalidate"
	purgeAll            = "*"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          costdomain.Repository
	Config        config.Config
	Redis         *redis.Client          `optional:"true"`
	Clock         clock.Clock            `optional:"true"`
	Metrics       *metrics.Metrics       `optional:"true"`
	LedgerMetrics *metrics.LedgerMetrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          costdomain.Repository
	clock         clock.Clock
	redis         *redis.Client
	costs         cache.Cache[string, int64]
	ttl           time.Duration
	metrics       *metrics.Metrics
	ledgerMetrics *metrics.LedgerMetrics

	// gen advances on every eviction; a lookup only caches what it read if
	// no eviction happened in between.
	mu  sync.Mutex
	gen uint64
}

func New(p Params) costdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	ttl := p.Config.Ledger.CostCacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("costcatalog.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		clock:         clk,
		redis:         p.Redis,
		costs:         cache.NewTTLCacheWithClock[string, int64](clk.Now),
		ttl:           ttl,
		metrics:       p.Metrics,
		ledgerMetrics: p.LedgerMetrics,
	}
}

// LookupCost returns the credit cost of one question. Misses are not cached so
// a newly added rule is visible immediately. Hits may lag a change made on
// another replica by at most the cache TTL, and only while Redis is
// unreachable.
func (s *Service) LookupCost(ctx context.Context, modelName string, category costdomain.QuestionCategory) (int64, error) {
	name, err := costdomain.NormalizeModelName(modelName)
	if err != nil {
		return 0, err
	}
	cat, err := costdomain.ParseQuestionCategory(string(category))
	if err != nil {
		return 0, err
	}

	key := cacheKey(name, cat)
	if cost, ok := s.costs.Get(key); ok {
		s.metrics.RecordCostLookup(ctx, "hit")
		return cost, nil
	}

	gen := s.generation()
	rule, err := s.repo.Find(ctx, s.db, name, cat)
	if err != nil {
		return 0, fmt.Errorf("lookup cost rule: %w", err)
	}
	if rule == nil || !rule.Active {
		s.metrics.RecordCostLookup(ctx, "unknown")
		s.log.Warn("no active cost rule",
			zap.String("model_name", name),
			zap.String("question_category", string(cat)),
		)
		return 0, costdomain.ErrUnknownPricing
	}

	s.metrics.RecordCostLookup(ctx, "miss")
	s.cacheIfCurrent(gen, key, rule.Cost)
	return rule.Cost, nil
}

func (s *Service) UpsertRule(ctx context.Context, req costdomain.UpsertRuleRequest) (*costdomain.Response, error) {
	rule, err := s.buildRule(req)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Upsert(ctx, s.db, rule); err != nil {
		return nil, fmt.Errorf("upsert cost rule: %w", err)
	}
	s.invalidate(ctx, cacheKey(rule.ModelName, rule.QuestionCategory))

	stored, err := s.repo.Find(ctx, s.db, rule.ModelName, rule.QuestionCategory)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, costdomain.ErrNotFound
	}

	s.log.Info("cost rule upserted",
		zap.String("model_name", stored.ModelName),
		zap.String("question_category", string(stored.QuestionCategory)),
		zap.Int64("cost", stored.Cost),
		zap.Bool("active", stored.Active),
	)
	s.refreshActiveCount(ctx)
	return toResponse(stored), nil
}

func (s *Service) DeactivateRule(ctx context.Context, modelName, category string) error {
	name, err := costdomain.NormalizeModelName(modelName)
	if err != nil {
		return err
	}
	cat, err := costdomain.ParseQuestionCategory(category)
	if err != nil {
		return err
	}

	affected, err := s.repo.SetActive(ctx, s.db, name, cat, false, s.clock.Now())
	if err != nil {
		return fmt.Errorf("deactivate cost rule: %w", err)
	}
	s.invalidate(ctx, cacheKey(name, cat))
	if affected == 0 {
		return costdomain.ErrNotFound
	}

	s.log.Info("cost rule deactivated",
		zap.String("model_name", name),
		zap.String("question_category", string(cat)),
	)
	s.refreshActiveCount(ctx)
	return nil
}

func (s *Service) ListRules(ctx context.Context, req costdomain.ListRulesRequest) ([]costdomain.Response, error) {
	items, err := s.repo.List(ctx, s.db, req.IncludeInactive)
	if err != nil {
		return nil, err
	}
	resp := make([]costdomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, *toResponse(&items[i]))
	}
	return resp, nil
}

// SyncRules upserts every request in one transaction. Rules absent from reqs
// are left untouched so admin-managed rules survive a file reload.
func (s *Service) SyncRules(ctx context.Context, reqs []costdomain.UpsertRuleRequest) (int, error) {
	rules := make([]*costdomain.CostRule, 0, len(reqs))
	for i, req := range reqs {
		rule, err := s.buildRule(req)
		if err != nil {
			return 0, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, rule)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rule := range rules {
			if err := s.repo.Upsert(ctx, tx, rule); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sync cost rules: %w", err)
	}

	s.invalidate(ctx, purgeAll)
	s.refreshActiveCount(ctx)
	return len(rules), nil
}

// ListenInvalidations subscribes to evictions published by other replicas.
// The local cache is purged once the subscription is confirmed so nothing
// cached before it can outlive a missed message. stop unsubscribes and waits
// for the consumer to exit.
func (s *Service) ListenInvalidations(ctx context.Context) (stop func(), err error) {
	if s.redis == nil {
		return func() {}, nil
	}
	sub := s.redis.Subscribe(ctx, InvalidationChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", InvalidationChannel, err)
	}
	s.evict(purgeAll)

	ch := sub.Channel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ch {
			s.evict(msg.Payload)
		}
	}()
	return func() {
		_ = sub.Close()
		<-done
	}, nil
}

// invalidate evicts key here and on every subscribed replica.
func (s *Service) invalidate(ctx context.Context, key string) {
	s.evict(key)
	if s.redis == nil {
		return
	}
	if err := s.redis.Publish(ctx, InvalidationChannel, key).Err(); err != nil {
		s.log.Warn("cost cache invalidation not published",
			zap.String("key", key),
			zap.Duration("ttl", s.ttl),
			zap.Error(err),
		)
	}
}

func (s *Service) evict(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if key == purgeAll {
		s.costs.Purge()
		return
	}
	s.costs.Delete(key)
}

func (s *Service) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Service) cacheIfCurrent(gen uint64, key string, cost int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.costs.Set(key, cost, s.ttl)
}

func (s *Service) buildRule(req costdomain.UpsertRuleRequest) (*costdomain.CostRule, error) {
	name, err := costdomain.NormalizeModelName(req.ModelName)
	if err != nil {
		return nil, err
	}
	cat, err := costdomain.ParseQuestionCategory(req.QuestionCategory)
	if err != nil {
		return nil, err
	}
	if req.Cost <= 0 {
		return nil, costdomain.ErrInvalidCost
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := s.clock.Now()
	return &costdomain.CostRule{
		ID:               s.genID.Generate(),
		ModelName:        name,
		QuestionCategory: cat,
		Cost:             req.Cost,
		Active:           active,
		Description:      req.Description,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (s *Service) refreshActiveCount(ctx context.Context) {
	if s.ledgerMetrics == nil {
		return
	}
	count, err := s.repo.CountActive(ctx, s.db)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.log.Warn("failed to count active cost rules", zap.Error(err))
		}
		return
	}
	s.ledgerMetrics.SetActiveCostRules(int(count))
}

func toResponse(rule *costdomain.CostRule) *costdomain.Response {
	return &costdomain.Response{
		ID:               rule.ID,
		ModelName:        rule.ModelName,
		QuestionCategory: rule.QuestionCategory,
		Cost:             rule.Cost,
		Active:           rule.Active,
		Description:      rule.Description,
		CreatedAt:        rule.CreatedAt,
		UpdatedAt:        rule.UpdatedAt,
	}
}

func cacheKey(modelName string, category costdomain.QuestionCategory) string {
	return modelName + "|" + string(category)
}
