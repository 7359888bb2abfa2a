package domain

import (
	"errors"
	"time"
)

type Status string

const (
	StatusActive Status = "active"
	StatusFrozen Status = "frozen"
)

// Account is the balance projection of one user's ledger. Version equals the
// seq of the most recent entry and guards every update.
type Account struct {
	AccountID string    `gorm:"column:account_id;primaryKey;type:varchar(64)"`
	Balance   int64     `gorm:"column:balance;not null;default:0;check:chk_ledger_accounts_balance_non_negative,balance >= 0"`
	Version   int64     `gorm:"column:version;not null;default:0"`
	Status    Status    `gorm:"column:status;type:varchar(16);not null;default:active"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (Account) TableName() string { return "ledger_accounts" }

func (a Account) Frozen() bool { return a.Status == StatusFrozen }

// ErrVersionMismatch means the row moved since it was read.
var ErrVersionMismatch = errors.New("account_version_mismatch")
