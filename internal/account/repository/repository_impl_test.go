package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	accountdomain "github.com/smallbiznis/creditledger/internal/account/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:accounts_%d?mode=memory&cache=shared", time.Now().UnixNano())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&accountdomain.Account{}))
	return db
}

func newAccount(id string, now time.Time) *accountdomain.Account {
	return &accountdomain.Account{AccountID: id, Status: accountdomain.StatusActive, CreatedAt: now, UpdatedAt: now}
}

func TestInsertIsIdempotent(t *testing.T) {
	db := setupDB(t)
	r := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	created, err := r.Insert(ctx, db, newAccount("u-1", now))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = r.Insert(ctx, db, newAccount("u-1", now))
	require.NoError(t, err)
	assert.False(t, created)

	got, err := r.FindByID(ctx, db, "u-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(0), got.Balance)
	assert.Equal(t, accountdomain.StatusActive, got.Status)
}

func TestFindByIDMissing(t *testing.T) {
	db := setupDB(t)
	got, err := Provide().FindByID(context.Background(), db, "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateBalanceGuardsVersion(t *testing.T) {
	db := setupDB(t)
	r := Provide()
	ctx := context.Background()
	now := time.Now().UTC()
	_, err := r.Insert(ctx, db, newAccount("u-1", now))
	require.NoError(t, err)

	require.NoError(t, r.UpdateBalance(ctx, db, "u-1", 0, 100, now))
	err = r.UpdateBalance(ctx, db, "u-1", 0, 50, now)
	assert.ErrorIs(t, err, accountdomain.ErrVersionMismatch)

	got, err := r.FindForUpdate(ctx, db, "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Balance)
	assert.Equal(t, int64(1), got.Version)
}

func TestBalanceCannotGoNegative(t *testing.T) {
	db := setupDB(t)
	r := Provide()
	ctx := context.Background()
	now := time.Now().UTC()
	_, err := r.Insert(ctx, db, newAccount("u-1", now))
	require.NoError(t, err)

	err = r.UpdateBalance(ctx, db, "u-1", 0, -1, now)
	assert.Error(t, err)
}

func TestSetStatus(t *testing.T) {
	db := setupDB(t)
	r := Provide()
	ctx := context.Background()
	now := time.Now().UTC()
	_, err := r.Insert(ctx, db, newAccount("u-1", now))
	require.NoError(t, err)

	n, err := r.SetStatus(ctx, db, "u-1", accountdomain.StatusFrozen, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := r.FindByID(ctx, db, "u-1")
	require.NoError(t, err)
	assert.True(t, got.Frozen())

	n, err = r.SetStatus(ctx, db, "missing", accountdomain.StatusFrozen, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
