package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	ledgerdomain "github.com/smallbiznis/creditledger/internal/ledger/domain"
	"github.com/smallbiznis/creditledger/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fixture struct {
	db   *gorm.DB
	repo ledgerdomain.Repository
	node *snowflake.Node
	now  time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:ledger_repo_%d?mode=memory&cache=shared", time.Now().UnixNano())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&ledgerdomain.LedgerEntry{}))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	return &fixture{db: conn, repo: Provide(), node: node, now: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)}
}

func (f *fixture) entry(account string, seq int64, kind ledgerdomain.EntryKind, amount, after int64, key string) *ledgerdomain.LedgerEntry {
	return &ledgerdomain.LedgerEntry{
		ID:             f.node.Generate(),
		AccountID:      account,
		Seq:            seq,
		Kind:           kind,
		Amount:         amount,
		BalanceAfter:   after,
		IdempotencyKey: key,
		CreatedAt:      f.now,
	}
}

func (f *fixture) insert(t *testing.T, e *ledgerdomain.LedgerEntry) *ledgerdomain.LedgerEntry {
	t.Helper()
	require.NoError(t, f.repo.Insert(context.Background(), f.db, e))
	return e
}

func TestInsertAndFind(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	e := f.entry("acct-1", 1, ledgerdomain.KindConsume, -4, 96, "q-1")
	e.ModelName = "gpt-4o"
	e.QuestionCategory = "programming"
	e.Metadata = datatypes.JSONMap{"correlation_id": "c-1"}
	f.insert(t, e)

	byKey, err := f.repo.FindByKey(ctx, f.db, ledgerdomain.KindConsume, "q-1")
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, e.ID, byKey.ID)
	assert.Equal(t, int64(-4), byKey.Amount)
	assert.Equal(t, int64(100), byKey.PriorBalance())
	assert.Equal(t, "gpt-4o", byKey.ModelName)
	assert.Equal(t, "c-1", byKey.Metadata["correlation_id"])
	assert.Nil(t, byKey.RelatedEntryID)

	byID, err := f.repo.FindByID(ctx, f.db, e.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "q-1", byID.IdempotencyKey)
}

func TestFindMissingReturnsNil(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	got, err := f.repo.FindByKey(ctx, f.db, ledgerdomain.KindConsume, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Keys are scoped per kind.
	f.insert(t, f.entry("acct-1", 1, ledgerdomain.KindRecharge, 10, 10, "shared"))
	got, err = f.repo.FindByKey(ctx, f.db, ledgerdomain.KindConsume, "shared")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = f.repo.FindByID(ctx, f.db, f.node.Generate())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInsertRejectsDuplicates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.insert(t, f.entry("acct-1", 1, ledgerdomain.KindRecharge, 10, 10, "r-1"))

	err := f.repo.Insert(ctx, f.db, f.entry("acct-1", 2, ledgerdomain.KindRecharge, 10, 20, "r-1"))
	require.Error(t, err)
	assert.True(t, db.IsDuplicateKeyErr(err))

	err = f.repo.Insert(ctx, f.db, f.entry("acct-1", 1, ledgerdomain.KindRecharge, 10, 20, "r-2"))
	require.Error(t, err)
	assert.True(t, db.IsDuplicateKeyErr(err))
}

func TestSumRefunds(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.insert(t, f.entry("acct-1", 1, ledgerdomain.KindRecharge, 20, 20, "r-1"))
	orig := f.insert(t, f.entry("acct-1", 2, ledgerdomain.KindConsume, -10, 10, "q-1"))

	total, err := f.repo.SumRefunds(ctx, f.db, orig.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	first := f.entry("acct-1", 3, ledgerdomain.KindRefund, 3, 13, "rf-1")
	first.RelatedEntryID = &orig.ID
	f.insert(t, first)
	second := f.entry("acct-1", 4, ledgerdomain.KindRefund, 4, 17, "rf-2")
	second.RelatedEntryID = &orig.ID
	f.insert(t, second)

	total, err = f.repo.SumRefunds(ctx, f.db, orig.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)

	total, err = f.repo.SumRefunds(ctx, f.db, orig.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	got, err := f.repo.FindByKey(ctx, f.db, ledgerdomain.KindRefund, "rf-2")
	require.NoError(t, err)
	require.NotNil(t, got.RelatedEntryID)
	assert.Equal(t, orig.ID, *got.RelatedEntryID)
}

func TestListByAccountAndRange(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	balance := int64(0)
	for i := int64(1); i <= 5; i++ {
		kind := ledgerdomain.KindRecharge
		amount := int64(10)
		if i%2 == 0 {
			kind = ledgerdomain.KindConsume
			amount = -3
		}
		balance += amount
		f.insert(t, f.entry("acct-1", i, kind, amount, balance, fmt.Sprintf("k-%d", i)))
	}
	f.insert(t, f.entry("acct-2", 1, ledgerdomain.KindRecharge, 1, 1, "other"))

	items, err := f.repo.ListByAccount(ctx, f.db, ledgerdomain.ListFilter{AccountID: "acct-1", Limit: 3})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []int64{5, 4, 3}, []int64{items[0].Seq, items[1].Seq, items[2].Seq})

	items, err = f.repo.ListByAccount(ctx, f.db, ledgerdomain.ListFilter{AccountID: "acct-1", BeforeSeq: 3, Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(2), items[0].Seq)

	items, err = f.repo.ListByAccount(ctx, f.db, ledgerdomain.ListFilter{AccountID: "acct-1", Kind: ledgerdomain.KindConsume, Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, ledgerdomain.KindConsume, item.Kind)
	}

	ranged, err := f.repo.Range(ctx, f.db, "acct-1", 1, 4, 10)
	require.NoError(t, err)
	require.Len(t, ranged, 3)
	assert.Equal(t, int64(2), ranged[0].Seq)
	assert.Equal(t, int64(4), ranged[2].Seq)

	ranged, err = f.repo.Range(ctx, f.db, "acct-1", 0, 5, 2)
	require.NoError(t, err)
	assert.Len(t, ranged, 2)
}
