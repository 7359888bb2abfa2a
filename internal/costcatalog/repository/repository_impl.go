package repository

import (
	"context"
	"time"

	costdomain "github.com/smallbiznis/creditledger/internal/costcatalog/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() costdomain.Repository {
	return &repo{}
}

// Upsert keeps the original id and created_at when the pair already exists.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, rule *costdomain.CostRule) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "model_name"}, {Name: "question_category"}},
		DoUpdates: clause.AssignmentColumns([]string{"cost", "active", "description", "updated_at"}),
	}).Create(rule).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, modelName string, category costdomain.QuestionCategory) (*costdomain.CostRule, error) {
	var rule costdomain.CostRule
	err := db.WithContext(ctx).Raw(
		`SELECT id, model_name, question_category, cost, active, description, created_at, updated_at
		 FROM cost_rules WHERE model_name = ? AND question_category = ?`,
		modelName,
		category,
	).Scan(&rule).Error
	if err != nil {
		return nil, err
	}
	if rule.ID == 0 {
		return nil, nil
	}
	return &rule, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, includeInactive bool) ([]costdomain.CostRule, error) {
	query := `SELECT id, model_name, question_category, cost, active, description, created_at, updated_at
		 FROM cost_rules`
	args := []any{}
	if !includeInactive {
		query += ` WHERE active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY model_name ASC, question_category ASC`

	var items []costdomain.CostRule
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, modelName string, category costdomain.QuestionCategory, active bool, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE cost_rules SET active = ?, updated_at = ? WHERE model_name = ? AND question_category = ?`,
		active,
		now,
		modelName,
		category,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) CountActive(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM cost_rules WHERE active = ?`, true).Scan(&count).Error
	return count, err
}
