package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, rule *CostRule) error
	Find(ctx context.Context, db *gorm.DB, modelName string, category QuestionCategory) (*CostRule, error)
	List(ctx context.Context, db *gorm.DB, includeInactive bool) ([]CostRule, error)
	SetActive(ctx context.Context, db *gorm.DB, modelName string, category QuestionCategory, active bool, now time.Time) (int64, error)
	CountActive(ctx context.Context, db *gorm.DB) (int64, error)
}
