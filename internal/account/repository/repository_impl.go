package repository

import (
	"context"
	"time"

	accountdomain "github.com/smallbiznis/creditledger/internal/account/domain"
	"github.com/smallbiznis/creditledger/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() accountdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, a *accountdomain.Account) (bool, error) {
	res := conn.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "account_id"}}, DoNothing: true}).
		Create(a)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, accountID string) (*accountdomain.Account, error) {
	return r.find(conn.WithContext(ctx), accountID)
}

func (r *repo) FindForUpdate(ctx context.Context, conn *gorm.DB, accountID string) (*accountdomain.Account, error) {
	q := conn.WithContext(ctx)
	if db.SupportsRowLocking(conn) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.find(q, accountID)
}

func (r *repo) find(q *gorm.DB, accountID string) (*accountdomain.Account, error) {
	var a accountdomain.Account
	err := q.Model(&accountdomain.Account{}).
		Where("account_id = ?", accountID).
		Limit(1).
		Find(&a).Error
	if err != nil {
		return nil, err
	}
	if a.AccountID == "" {
		return nil, nil
	}
	return &a, nil
}

func (r *repo) UpdateBalance(ctx context.Context, conn *gorm.DB, accountID string, expectedVersion, newBalance int64, now time.Time) error {
	res := conn.WithContext(ctx).Exec(
		`UPDATE ledger_accounts
		 SET balance = ?, version = version + 1, updated_at = ?
		 WHERE account_id = ? AND version = ?`,
		newBalance,
		now,
		accountID,
		expectedVersion,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return accountdomain.ErrVersionMismatch
	}
	return nil
}

func (r *repo) SetStatus(ctx context.Context, conn *gorm.DB, accountID string, status accountdomain.Status, now time.Time) (int64, error) {
	res := conn.WithContext(ctx).Exec(
		`UPDATE ledger_accounts SET status = ?, updated_at = ? WHERE account_id = ?`,
		status,
		now,
		accountID,
	)
	return res.RowsAffected, res.Error
}
