package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditledger/pkg/db/pagination"
)

// Service is the ledger engine. Every mutation of one account is linearizable;
// calls on different accounts never wait for each other.
type Service interface {
	CheckAndDeduct(ctx context.Context, req DeductRequest) (*DeductResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	GetBalance(ctx context.Context, accountID string) (*Balance, error)

	OpenAccount(ctx context.Context, accountID string) (*Balance, error)
	Recharge(ctx context.Context, req RechargeRequest) (*RechargeResult, error)
	ListEntries(ctx context.Context, req ListEntriesRequest) (*ListEntriesResponse, error)
	VerifyAccount(ctx context.Context, accountID string) (*Verification, error)
	FreezeAccount(ctx context.Context, accountID string) (*Balance, error)
	UnfreezeAccount(ctx context.Context, accountID string) (*Balance, error)
}

type DeductRequest struct {
	AccountID        string         `json:"account_id"`
	IdempotencyKey   string         `json:"idempotency_key"`
	ModelName        string         `json:"model_name"`
	QuestionCategory string         `json:"question_category"`
	Description      string         `json:"description"`
	Metadata         map[string]any `json:"metadata"`
}

// DeductResult is returned for both outcomes of a well-formed spend. A replay
// of the same key returns the recorded result unchanged.
type DeductResult struct {
	Success        bool         `json:"success"`
	Sufficient     bool         `json:"sufficient"`
	PriorBalance   int64        `json:"prior_balance"`
	NewBalance     int64        `json:"new_balance"`
	DeductedAmount int64        `json:"deducted_amount"`
	RequiredAmount int64        `json:"required_amount"`
	EntryID        snowflake.ID `json:"entry_id,omitempty"`
}

// Err maps a declined spend to ErrInsufficientFunds.
func (r *DeductResult) Err() error {
	if r == nil || r.Success {
		return nil
	}
	return ErrInsufficientFunds
}

type RefundRequest struct {
	// IdempotencyKey identifies the original spend.
	IdempotencyKey string `json:"idempotency_key"`
	// Amount defaults to the full original cost.
	Amount *int64 `json:"amount"`
	Reason string `json:"reason"`
	// RefundKey makes the refund itself replay-safe.
	RefundKey string         `json:"refund_key"`
	Metadata  map[string]any `json:"metadata"`
}

type RefundResult struct {
	Success             bool         `json:"success"`
	OverRefund          bool         `json:"over_refund"`
	AccountID           string       `json:"account_id"`
	RefundedAmount      int64        `json:"refunded_amount"`
	NewBalance          int64        `json:"new_balance"`
	RemainingRefundable int64        `json:"remaining_refundable"`
	EntryID             snowflake.ID `json:"entry_id,omitempty"`
	OriginalEntryID     snowflake.ID `json:"original_entry_id"`
	RefundKey           string       `json:"refund_key"`
}

func (r *RefundResult) Err() error {
	if r == nil || r.Success {
		return nil
	}
	return ErrOverRefund
}

type RechargeRequest struct {
	AccountID      string         `json:"account_id"`
	Amount         int64          `json:"amount"`
	IdempotencyKey string         `json:"idempotency_key"`
	Description    string         `json:"description"`
	Metadata       map[string]any `json:"metadata"`
}

type RechargeResult struct {
	AccountID  string       `json:"account_id"`
	Amount     int64        `json:"amount"`
	NewBalance int64        `json:"new_balance"`
	EntryID    snowflake.ID `json:"entry_id"`
}

type Balance struct {
	AccountID string    `json:"account_id"`
	Balance   int64     `json:"balance"`
	Version   int64     `json:"version"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ListEntriesRequest struct {
	AccountID string `form:"-"`
	Kind      string `form:"kind"`
	Limit     int    `form:"limit"`
	Cursor    string `form:"cursor"`
}

type ListEntriesResponse struct {
	Entries  []EntryResponse     `json:"entries"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type EntryResponse struct {
	ID               snowflake.ID   `json:"id"`
	AccountID        string         `json:"account_id"`
	Seq              int64          `json:"seq"`
	Kind             EntryKind      `json:"kind"`
	Amount           int64          `json:"amount"`
	BalanceAfter     int64          `json:"balance_after"`
	IdempotencyKey   string         `json:"idempotency_key"`
	RelatedEntryID   *snowflake.ID  `json:"related_entry_id,omitempty"`
	ModelName        string         `json:"model_name,omitempty"`
	QuestionCategory string         `json:"question_category,omitempty"`
	Description      string         `json:"description,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Verification compares the stored projection with a replay of the log.
type Verification struct {
	AccountID       string   `json:"account_id"`
	StoredBalance   int64    `json:"stored_balance"`
	ComputedBalance int64    `json:"computed_balance"`
	StoredVersion   int64    `json:"stored_version"`
	EntryCount      int64    `json:"entry_count"`
	Consistent      bool     `json:"consistent"`
	Issues          []string `json:"issues,omitempty"`
}
