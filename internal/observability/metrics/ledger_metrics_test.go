package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifyStorageReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: ReasonDeadlineExceeded},
		{name: "lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: ReasonLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: ReasonSerializationFailure},
		{name: "unique_violation", err: fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), want: ReasonUniqueViolation},
		{name: "unavailable", err: &pgconn.PgError{Code: "08006"}, want: ReasonUnavailable},
		{name: "sqlite_busy", err: errors.New("database is locked"), want: ReasonLockTimeout},
		{name: "unknown", err: errors.New("boom"), want: ReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyStorageReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestObserveOperation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewLedgerMetrics(registry, Config{ServiceName: "creditledger", Environment: "test"})

	m.ObserveOperation(OperationConsume, OutcomeSuccess, 5*time.Millisecond)
	m.ObserveOperation(OperationConsume, OutcomeSuccess, 7*time.Millisecond)
	m.ObserveOperation(OperationConsume, OutcomeInsufficientFunds, time.Millisecond)

	if got := testutil.ToFloat64(m.operations.WithLabelValues(OperationConsume, OutcomeSuccess)); got != 2 {
		t.Fatalf("expected 2 successful consumes, got %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues(OperationConsume, OutcomeInsufficientFunds)); got != 1 {
		t.Fatalf("expected 1 insufficient funds, got %v", got)
	}
}

func TestLockMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewLedgerMetrics(registry, Config{})

	m.ObserveLockWait(LockBackendLocal, -time.Second)
	m.ObserveLockWait(LockBackendRedis, 10*time.Millisecond)
	m.IncLockTimeout(LockBackendRedis)
	m.SetActiveCostRules(4)

	if got := testutil.CollectAndCount(m.lockWait); got != 2 {
		t.Fatalf("expected 2 lock wait series, got %d", got)
	}
	if got := testutil.ToFloat64(m.lockTimeouts.WithLabelValues(LockBackendRedis)); got != 1 {
		t.Fatalf("expected 1 lock timeout, got %v", got)
	}
	if got := testutil.ToFloat64(m.catalogSize); got != 4 {
		t.Fatalf("expected 4 active rules, got %v", got)
	}
}

func TestNilLedgerMetricsAreSafe(t *testing.T) {
	var m *LedgerMetrics
	m.ObserveOperation(OperationRefund, OutcomeSuccess, time.Millisecond)
	m.IncStorageError(OperationRefund, errors.New("boom"))
	m.ObserveLockWait(LockBackendLocal, time.Millisecond)
	m.IncLockTimeout(LockBackendLocal)
	m.SetActiveCostRules(1)
}

func TestLedgerSingleton(t *testing.T) {
	ResetLedgerMetricsForTest()
	t.Cleanup(ResetLedgerMetricsForTest)

	// The default registerer rejects duplicate registration, so a second
	// construction through the singleton must reuse the first instance.
	first := LedgerWithConfig(Config{ServiceName: "creditledger-singleton"})
	second := Ledger()
	if first != second {
		t.Fatalf("expected singleton instance")
	}
}
