package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	ledgerdomain "github.com/smallbiznis/creditledger/internal/ledger/domain"
	"github.com/smallbiznis/creditledger/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
)

func TestMapErrLockWaitTimeoutIsRetryableConflict(t *testing.T) {
	s := &Service{}

	for _, cause := range []error{
		fmt.Errorf("select account for update: %w", &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}),
		errors.New("Error 1205 (HY000): Lock wait timeout exceeded; try restarting transaction"),
	} {
		err := s.mapErr(metrics.OperationConsume, cause)
		assert.ErrorIs(t, err, ledgerdomain.ErrConcurrencyConflict, cause.Error())
		assert.True(t, ledgerdomain.IsRetryable(err), cause.Error())
		assert.Equal(t, metrics.OutcomeConflict, outcomeOf(err))
	}
}

func TestMapErrPassesDomainAndContextErrors(t *testing.T) {
	s := &Service{}

	assert.Nil(t, s.mapErr(metrics.OperationRefund, nil))
	assert.Same(t, ledgerdomain.ErrInvalidAmount, s.mapErr(metrics.OperationRefund, ledgerdomain.ErrInvalidAmount))
	assert.ErrorIs(t, s.mapErr(metrics.OperationRefund, context.DeadlineExceeded), context.DeadlineExceeded)

	err := s.mapErr(metrics.OperationRefund, errors.New("disk full"))
	assert.ErrorIs(t, err, ledgerdomain.ErrStorageUnavailable)
}
