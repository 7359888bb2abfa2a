package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/creditledger/internal/ledger/domain"
	"gorm.io/gorm"
)

const entryColumns = `id, account_id, seq, kind, amount, balance_after, idempotency_key,
	related_entry_id, model_name, question_category, description, metadata, created_at`

type repo struct{}

func Provide() ledgerdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, e *ledgerdomain.LedgerEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO ledger_entries (`+entryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.AccountID,
		e.Seq,
		e.Kind,
		e.Amount,
		e.BalanceAfter,
		e.IdempotencyKey,
		e.RelatedEntryID,
		e.ModelName,
		e.QuestionCategory,
		e.Description,
		e.Metadata,
		e.CreatedAt,
	).Error
}

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, kind ledgerdomain.EntryKind, key string) (*ledgerdomain.LedgerEntry, error) {
	return r.findOne(db.WithContext(ctx).Raw(
		`SELECT `+entryColumns+` FROM ledger_entries WHERE kind = ? AND idempotency_key = ?`,
		kind,
		key,
	))
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ledgerdomain.LedgerEntry, error) {
	return r.findOne(db.WithContext(ctx).Raw(
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = ?`,
		id,
	))
}

func (r *repo) findOne(q *gorm.DB) (*ledgerdomain.LedgerEntry, error) {
	var e ledgerdomain.LedgerEntry
	if err := q.Scan(&e).Error; err != nil {
		return nil, err
	}
	if e.ID == 0 {
		return nil, nil
	}
	return &e, nil
}

func (r *repo) SumRefunds(ctx context.Context, db *gorm.DB, originalID snowflake.ID, uptoSeq int64) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE kind = ? AND related_entry_id = ?`
	args := []any{ledgerdomain.KindRefund, originalID}
	if uptoSeq > 0 {
		query += ` AND seq <= ?`
		args = append(args, uptoSeq)
	}

	var total int64
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) ListByAccount(ctx context.Context, db *gorm.DB, f ledgerdomain.ListFilter) ([]ledgerdomain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE account_id = ?`
	args := []any{f.AccountID}
	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, f.Kind)
	}
	if f.BeforeSeq > 0 {
		query += ` AND seq < ?`
		args = append(args, f.BeforeSeq)
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, f.Limit)

	var items []ledgerdomain.LedgerEntry
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Range(ctx context.Context, db *gorm.DB, accountID string, afterSeq, uptoSeq int64, limit int) ([]ledgerdomain.LedgerEntry, error) {
	var items []ledgerdomain.LedgerEntry
	err := db.WithContext(ctx).Raw(
		`SELECT `+entryColumns+` FROM ledger_entries
		 WHERE account_id = ? AND seq > ? AND seq <= ?
		 ORDER BY seq ASC LIMIT ?`,
		accountID,
		afterSeq,
		uptoSeq,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
