package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type QuestionCategory string

const (
	CategoryMultipleChoice QuestionCategory = "multiple_choice"
	CategoryProgramming    QuestionCategory = "programming"
)

// ParseQuestionCategory accepts the canonical names case-insensitively.
func ParseQuestionCategory(value string) (QuestionCategory, error) {
	switch QuestionCategory(strings.ToLower(strings.TrimSpace(value))) {
	case CategoryMultipleChoice:
		return CategoryMultipleChoice, nil
	case CategoryProgramming:
		return CategoryProgramming, nil
	default:
		return "", ErrInvalidCategory
	}
}

// NormalizeModelName makes model identifiers comparable regardless of caller casing.
func NormalizeModelName(value string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(value))
	if name == "" || len(name) > 128 {
		return "", ErrInvalidModel
	}
	return name, nil
}

// CostRule prices one (model, category) pair in credits.
type CostRule struct {
	ID               snowflake.ID     `gorm:"primaryKey"`
	ModelName        string           `gorm:"column:model_name;type:varchar(128);not null;uniqueIndex:ux_cost_rules_model_category,priority:1"`
	QuestionCategory QuestionCategory `gorm:"column:question_category;type:varchar(32);not null;uniqueIndex:ux_cost_rules_model_category,priority:2"`
	Cost             int64            `gorm:"column:cost;not null"`
	Active           bool             `gorm:"column:active;not null;default:true"`
	Description      string           `gorm:"column:description;type:text"`
	CreatedAt        time.Time        `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;not null"`
}

func (CostRule) TableName() string { return "cost_rules" }
