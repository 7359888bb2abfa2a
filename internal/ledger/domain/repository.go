package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the append-only transaction log.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *LedgerEntry) error
	FindByKey(ctx context.Context, db *gorm.DB, kind EntryKind, key string) (*LedgerEntry, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*LedgerEntry, error)
	// SumRefunds totals REFUND amounts linked to originalID. A positive
	// uptoSeq restricts the sum to entries at or before that seq.
	SumRefunds(ctx context.Context, db *gorm.DB, originalID snowflake.ID, uptoSeq int64) (int64, error)
	ListByAccount(ctx context.Context, db *gorm.DB, filter ListFilter) ([]LedgerEntry, error)
	// Range returns entries with afterSeq < seq <= uptoSeq in ascending order.
	Range(ctx context.Context, db *gorm.DB, accountID string, afterSeq, uptoSeq int64, limit int) ([]LedgerEntry, error)
}
