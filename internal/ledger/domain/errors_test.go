package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/smallbiznis/creditledger/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrInvalidAccount, ClassValidation},
		{ErrInvalidCategory, ClassValidation},
		{pagination.ErrInvalidCursor, ClassValidation},
		{ErrAccountNotFound, ClassNotFound},
		{ErrOriginalNotFound, ClassNotFound},
		{ErrInsufficientFunds, ClassBusinessRule},
		{ErrOverRefund, ClassBusinessRule},
		{ErrUnknownPricing, ClassBusinessRule},
		{ErrAccountFrozen, ClassBusinessRule},
		{fmt.Errorf("%w: account busy", ErrConcurrencyConflict), ClassConflict},
		{fmt.Errorf("%w: dial tcp", ErrStorageUnavailable), ClassUnavailable},
		{context.Canceled, ClassInternal},
		{errors.New("boom"), ClassInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.err), "%v", tc.err)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("%w: lock", ErrConcurrencyConflict)))
	assert.False(t, IsRetryable(ErrInsufficientFunds))
	assert.False(t, IsRetryable(ErrStorageUnavailable))
	assert.False(t, IsRetryable(nil))
}

func TestParseEntryKind(t *testing.T) {
	kind, err := ParseEntryKind(" refund ")
	assert.NoError(t, err)
	assert.Equal(t, KindRefund, kind)

	kind, err = ParseEntryKind("")
	assert.NoError(t, err)
	assert.Equal(t, EntryKind(""), kind)

	_, err = ParseEntryKind("transfer")
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestResultErr(t *testing.T) {
	assert.NoError(t, (&DeductResult{Success: true}).Err())
	assert.ErrorIs(t, (&DeductResult{}).Err(), ErrInsufficientFunds)
	assert.NoError(t, (&RefundResult{Success: true}).Err())
	assert.ErrorIs(t, (&RefundResult{OverRefund: true}).Err(), ErrOverRefund)
	var nilResult *DeductResult
	assert.NoError(t, nilResult.Err())
}
