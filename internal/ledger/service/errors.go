package service

import (
	"context"
	"errors"
	"fmt"

	accountdomain "github.com/smallbiznis/creditledger/internal/account/domain"
	costdomain "github.com/smallbiznis/creditledger/internal/costcatalog/domain"
	ledgerdomain "github.com/smallbiznis/creditledger/internal/ledger/domain"
	"github.com/smallbiznis/creditledger/internal/observability/metrics"
	"github.com/smallbiznis/creditledger/pkg/db"
)

// expectedErrors are business outcomes; they do not mark a span as failed.
var expectedErrors = []error{
	ledgerdomain.ErrInsufficientFunds,
	ledgerdomain.ErrOverRefund,
	ledgerdomain.ErrOriginalNotFound,
	ledgerdomain.ErrAccountNotFound,
	ledgerdomain.ErrAccountFrozen,
	ledgerdomain.ErrIdempotencyKeyConflict,
	ledgerdomain.ErrUnknownPricing,
	ledgerdomain.ErrInvalidAccount,
	ledgerdomain.ErrInvalidIdempotencyKey,
	ledgerdomain.ErrInvalidReason,
	ledgerdomain.ErrInvalidAmount,
	costdomain.ErrInvalidModel,
	costdomain.ErrInvalidCategory,
}

// domainErrors pass through mapErr untouched.
var domainErrors = append([]error{
	ledgerdomain.ErrConcurrencyConflict,
	ledgerdomain.ErrStorageUnavailable,
}, expectedErrors...)

// mapErr turns whatever a transaction returned into the ledger taxonomy.
func (s *Service) mapErr(operation string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return s.storageErr(operation, err)
}

func (s *Service) storageErr(operation string, err error) error {
	if errors.Is(err, ledgerdomain.ErrStorageUnavailable) || errors.Is(err, ledgerdomain.ErrConcurrencyConflict) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.ledgerMetrics.IncStorageError(operation, err)

	switch {
	case errors.Is(err, accountdomain.ErrVersionMismatch),
		db.IsDuplicateKeyErr(err),
		db.IsLockConflictErr(err),
		db.IsSerializationErr(err):
		return fmt.Errorf("%w: %v", ledgerdomain.ErrConcurrencyConflict, err)
	default:
		return fmt.Errorf("%w: %v", ledgerdomain.ErrStorageUnavailable, err)
	}
}

func isDuplicateKey(err error) bool {
	return db.IsDuplicateKeyErr(err)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ledgerdomain.ErrInsufficientFunds):
		return metrics.OutcomeInsufficientFunds
	case errors.Is(err, ledgerdomain.ErrOverRefund):
		return metrics.OutcomeOverRefund
	case errors.Is(err, ledgerdomain.ErrUnknownPricing):
		return metrics.OutcomeUnknownPricing
	case errors.Is(err, ledgerdomain.ErrAccountNotFound),
		errors.Is(err, ledgerdomain.ErrOriginalNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ledgerdomain.ErrConcurrencyConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, ledgerdomain.ErrStorageUnavailable):
		return metrics.OutcomeUnavailable
	}
	switch ledgerdomain.Classify(err) {
	case ledgerdomain.ClassValidation, ledgerdomain.ClassBusinessRule:
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}
