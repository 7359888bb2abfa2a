package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type EntryKind string

const (
	KindConsume  EntryKind = "CONSUME"
	KindRefund   EntryKind = "REFUND"
	KindRecharge EntryKind = "RECHARGE"
)

// ParseEntryKind accepts any casing; an empty value means no filter.
func ParseEntryKind(value string) (EntryKind, error) {
	switch EntryKind(strings.ToUpper(strings.TrimSpace(value))) {
	case "":
		return "", nil
	case KindConsume:
		return KindConsume, nil
	case KindRefund:
		return KindRefund, nil
	case KindRecharge:
		return KindRecharge, nil
	default:
		return "", ErrInvalidKind
	}
}

// LedgerEntry is one immutable change to an account balance. Rows are only
// ever inserted.
type LedgerEntry struct {
	ID               snowflake.ID      `gorm:"primaryKey"`
	AccountID        string            `gorm:"column:account_id;type:varchar(64);not null;uniqueIndex:ux_ledger_entries_account_seq,priority:1"`
	Seq              int64             `gorm:"column:seq;not null;uniqueIndex:ux_ledger_entries_account_seq,priority:2"`
	Kind             EntryKind         `gorm:"column:kind;type:varchar(16);not null;uniqueIndex:ux_ledger_entries_kind_key,priority:1"`
	Amount           int64             `gorm:"column:amount;not null"`
	BalanceAfter     int64             `gorm:"column:balance_after;not null"`
	IdempotencyKey   string            `gorm:"column:idempotency_key;type:varchar(191);not null;uniqueIndex:ux_ledger_entries_kind_key,priority:2"`
	RelatedEntryID   *snowflake.ID     `gorm:"column:related_entry_id;index:ix_ledger_entries_related"`
	ModelName        string            `gorm:"column:model_name;type:varchar(128)"`
	QuestionCategory string            `gorm:"column:question_category;type:varchar(32)"`
	Description      string            `gorm:"column:description;type:text"`
	Metadata         datatypes.JSONMap `gorm:"column:metadata"`
	CreatedAt        time.Time         `gorm:"column:created_at;not null"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

// PriorBalance is the balance immediately before this entry applied.
func (e LedgerEntry) PriorBalance() int64 {
	return e.BalanceAfter - e.Amount
}

// ListFilter selects a page of an account's entries, newest first.
type ListFilter struct {
	AccountID string
	Kind      EntryKind
	BeforeSeq int64
	Limit     int
}
