package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Service resolves credit costs and administers the rules behind them.
// LookupCost is the only call the ledger engine makes.
type Service interface {
	LookupCost(ctx context.Context, modelName string, category QuestionCategory) (int64, error)
	UpsertRule(ctx context.Context, req UpsertRuleRequest) (*Response, error)
	DeactivateRule(ctx context.Context, modelName, category string) error
	ListRules(ctx context.Context, req ListRulesRequest) ([]Response, error)
	SyncRules(ctx context.Context, reqs []UpsertRuleRequest) (int, error)
}

type UpsertRuleRequest struct {
	ModelName        string `json:"model_name"`
	QuestionCategory string `json:"question_category"`
	Cost             int64  `json:"cost"`
	Active           *bool  `json:"active"`
	Description      string `json:"description"`
}

type ListRulesRequest struct {
	IncludeInactive bool `form:"include_inactive"`
}

type Response struct {
	ID               snowflake.ID     `json:"id"`
	ModelName        string           `json:"model_name"`
	QuestionCategory QuestionCategory `json:"question_category"`
	Cost             int64            `json:"cost"`
	Active           bool             `json:"active"`
	Description      string           `json:"description,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

var (
	ErrUnknownPricing  = errors.New("unknown_pricing")
	ErrInvalidModel    = errors.New("invalid_model")
	ErrInvalidCategory = errors.New("invalid_category")
	ErrInvalidCost     = errors.New("invalid_cost")
	ErrNotFound        = errors.New("cost_rule_not_found")
)
