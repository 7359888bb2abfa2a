package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/creditledger/internal/clock"
	"github.com/smallbiznis/creditledger/internal/config"
	costdomain "github.com/smallbiznis/creditledger/internal/costcatalog/domain"
	"github.com/smallbiznis/creditledger/internal/costcatalog/repository"
	"github.com/smallbiznis/creditledger/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc   *Service
	db    *gorm.DB
	clock *clock.FakeClock
	reg   *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:costcatalog_%d?mode=memory&cache=shared", time.Now().UnixNano())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&costdomain.CostRule{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	reg := prometheus.NewRegistry()
	lm := metrics.NewLedgerMetrics(reg, metrics.Config{})
	svc := New(Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Repo:          repository.Provide(),
		Config:        config.Config{Ledger: config.LedgerConfig{CostCacheTTL: time.Minute}},
		Clock:         clk,
		LedgerMetrics: lm,
	}).(*Service)

	return &fixture{svc: svc, db: db, clock: clk, reg: reg}
}

func boolPtr(v bool) *bool { return &v }

func TestLookupCost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpsertRule(ctx, costdomain.UpsertRuleRequest{ModelName: "GPT-4o", QuestionCategory: "programming", Cost: 5})
	require.NoError(t, err)

	cost, err := f.svc.LookupCost(ctx, " gpt-4o ", costdomain.CategoryProgramming)
	require.NoError(t, err)
	assert.Equal(t, int64(5), cost)

	_, err = f.svc.LookupCost(ctx, "gpt-4o", costdomain.CategoryMultipleChoice)
	assert.ErrorIs(t, err, costdomain.ErrUnknownPricing)

	_, err = f.svc.LookupCost(ctx, "gpt-4o", "essay")
	assert.ErrorIs(t, err, costdomain.ErrInvalidCategory)

	_, err = f.svc.LookupCost(ctx, "   ", costdomain.CategoryProgramming)
	assert.ErrorIs(t, err, costdomain.ErrInvalidModel)
}

func TestLookupCostUsesCacheUntilExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpsertRule(ctx, costdomain.UpsertRuleRequest{ModelName: "deepseek", QuestionCategory: "multiple_choice", Cost: 2})
	require.NoError(t, err)

	cost, err := f.svc.LookupCost(ctx, "deepseek", costdomain.CategoryMultipleChoice)
	require.NoError(t, err)
	require.Equal(t, int64(2), cost)

	// Out-of-band change is invisible until the cached entry expires.
	require.NoError(t, f.db.Exec(`UPDATE cost_rules SET cost = 3`).Error)
	cost, _ = f.svc.LookupCost(ctx, "deepseek", costdomain.CategoryMultipleChoice)
	assert.Equal(t, int64(2), cost)

	f.clock.Advance(time.Minute)
	cost, _ = f.svc.LookupCost(ctx, "deepseek", costdomain.CategoryMultipleChoice)
	assert.Equal(t, int64(3), cost)
}

func TestUpsertRuleInvalidatesCacheAndKeepsID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.UpsertRule(ctx, costdomain.UpsertRuleRequest{ModelName: "qwen", QuestionCategory: "programming", Cost: 4})
	require.NoError(t, err)
	_, err = f.svc.LookupCost(ctx, "qwen", costdomain.CategoryProgramming)
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	second, err := f.svc.UpsertRule(ctx, costdomain.UpsertRuleRequest{ModelName: "QWEN", QuestionCategory: "Programming", Cost: 6, Description: "bumped"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(6), second.Cost)
	assert.Equal(t, "bumped", second.Description)

	cost, err := f.svc.LookupCost(ctx, "qwen", costdomain.CategoryProgramming)
	require.NoError(t, err)
	assert.Equal(t, int64(6), cost)
}

func TestUpsertRuleValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpsertRule(ctx, costdomain.UpsertRuleRequest{ModelName: "m", QuestionCategory: "programming", Cost: 0})
	assert.ErrorIs(t, err, costdomain.ErrInvalidCost)
	_, err = f.svc.UpsertRule(ctx, costdomain.UpsertRuleRequest{ModelName: "", QuestionCategory: "programming", Cost: 1})
	assert.ErrorIs(t, err, costdomain.ErrInvalidModel)
	_, err = f.svc.UpsertRule(ctx, costdomain.UpsertRuleRequest{ModelName: "m", QuestionCategory: "poetry", Cost: 1})
	assert.ErrorIs(t, err, costdomain.ErrInvalidCategory)
}

func TestDeactivateRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpsertRule(ctx, costdomain.UpsertRuleRequest{ModelName: "gpt-4o", QuestionCategory: "programming", Cost: 5})
	require.NoError(t, err)
	_, err = f.svc.LookupCost(ctx, "gpt-4o", costdomain.CategoryProgramming)
	require.NoError(t, err)
	assert.Equal(t, float64(1), activeRules(t, f.reg))

	require.NoError(t, f.svc.DeactivateRule(ctx, "gpt-4o", "programming"))

	_, err = f.svc.LookupCost(ctx, "gpt-4o", costdomain.CategoryProgramming)
	assert.ErrorIs(t, err, costdomain.ErrUnknownPricing)
	assert.Equal(t, float64(0), activeRules(t, f.reg))

	assert.ErrorIs(t, f.svc.DeactivateRule(ctx, "missing", "programming"), costdomain.ErrNotFound)
}

func TestListRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpsertRule(ctx, costdomain.UpsertRuleRequest{ModelName: "b-model", QuestionCategory: "programming", Cost: 5})
	require.NoError(t, err)
	_, err = f.svc.UpsertRule(ctx, costdomain.UpsertRuleRequest{ModelName: "a-model", QuestionCategory: "multiple_choice", Cost: 1, Active: boolPtr(false)})
	require.NoError(t, err)

	active, err := f.svc.ListRules(ctx, costdomain.ListRulesRequest{})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "b-model", active[0].ModelName)

	all, err := f.svc.ListRules(ctx, costdomain.ListRulesRequest{IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a-model", all[0].ModelName)
}

func TestSyncRulesIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.svc.SyncRules(ctx, []costdomain.UpsertRuleRequest{
		{ModelName: "gpt-4o", QuestionCategory: "programming", Cost: 5},
		{ModelName: "gpt-4o", QuestionCategory: "multiple_choice", Cost: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.svc.SyncRules(ctx, []costdomain.UpsertRuleRequest{
		{ModelName: "gpt-4o", QuestionCategory: "programming", Cost: 9},
		{ModelName: "gpt-4o", QuestionCategory: "multiple_choice", Cost: -1},
	})
	assert.ErrorIs(t, err, costdomain.ErrInvalidCost)

	cost, err := f.svc.LookupCost(ctx, "gpt-4o", costdomain.CategoryProgramming)
	require.NoError(t, err)
	assert.Equal(t, int64(5), cost)
}

func activeRules(t *testing.T, reg *prometheus.Registry) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "creditledger_cost_rules_active" && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	return -1
}
