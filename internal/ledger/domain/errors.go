package domain

import (
	"errors"

	costdomain "github.com/smallbiznis/creditledger/internal/costcatalog/domain"
	"github.com/smallbiznis/creditledger/pkg/db/pagination"
)

var (
	ErrInsufficientFunds      = errors.New("insufficient_funds")
	ErrOriginalNotFound       = errors.New("original_not_found")
	ErrOverRefund             = errors.New("over_refund")
	ErrAccountNotFound        = errors.New("account_not_found")
	ErrAccountFrozen          = errors.New("account_frozen")
	ErrIdempotencyKeyConflict = errors.New("idempotency_key_conflict")
	ErrConcurrencyConflict    = errors.New("concurrency_conflict")
	ErrStorageUnavailable     = errors.New("storage_unavailable")

	ErrInvalidAccount        = errors.New("invalid_account")
	ErrInvalidIdempotencyKey = errors.New("invalid_idempotency_key")
	ErrInvalidReason         = errors.New("invalid_reason")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidKind           = errors.New("invalid_kind")

	// Shared with the cost catalog so callers match one sentinel.
	ErrUnknownPricing  = costdomain.ErrUnknownPricing
	ErrInvalidModel    = costdomain.ErrInvalidModel
	ErrInvalidCategory = costdomain.ErrInvalidCategory
)

// Error classes used by transports and logs.
const (
	ClassValidation   = "validation_error"
	ClassNotFound     = "not_found"
	ClassBusinessRule = "business_rule"
	ClassConflict     = "conflict"
	ClassUnavailable  = "unavailable"
	ClassInternal     = "internal"
)

// IsRetryable reports whether the same request may succeed if sent again
// unchanged. Only contention qualifies; everything else is deterministic or
// needs operator attention.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// Classify buckets err into one of the Class* constants.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidAccount),
		errors.Is(err, ErrInvalidIdempotencyKey),
		errors.Is(err, ErrInvalidReason),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidKind),
		errors.Is(err, ErrInvalidModel),
		errors.Is(err, ErrInvalidCategory),
		errors.Is(err, costdomain.ErrInvalidCost),
		errors.Is(err, pagination.ErrInvalidCursor):
		return ClassValidation
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrOriginalNotFound),
		errors.Is(err, costdomain.ErrNotFound):
		return ClassNotFound
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrOverRefund),
		errors.Is(err, ErrUnknownPricing),
		errors.Is(err, ErrAccountFrozen),
		errors.Is(err, ErrIdempotencyKeyConflict):
		return ClassBusinessRule
	case errors.Is(err, ErrConcurrencyConflict):
		return ClassConflict
	case errors.Is(err, ErrStorageUnavailable):
		return ClassUnavailable
	default:
		return ClassInternal
	}
}
