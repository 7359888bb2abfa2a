package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/creditledger/pkg/db"
	"gorm.io/gorm"
)

const (
	OperationConsume  = "consume"
	OperationRefund   = "refund"
	OperationRecharge = "recharge"
	OperationOpen     = "open_account"
	OperationFreeze   = "freeze"
	OperationVerify   = "verify"
)

const (
	OutcomeSuccess           = "success"
	OutcomeReplayed          = "replayed"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeOverRefund        = "over_refund"
	OutcomeUnknownPricing    = "unknown_pricing"
	OutcomeNotFound          = "not_found"
	OutcomeRejected          = "rejected"
	OutcomeConflict          = "concurrency_conflict"
	OutcomeUnavailable       = "storage_unavailable"
	OutcomeError             = "error"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonLockTimeout          = "lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonUnavailable          = "unavailable"
	ReasonUnknown              = "unknown"
)

const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// LedgerMetrics captures ledger mutation health for Prometheus scraping.
type LedgerMetrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	storageErrors     *prometheus.CounterVec
	lockWait          *prometheus.HistogramVec
	lockTimeouts      *prometheus.CounterVec
	catalogSize       prometheus.Gauge
	lockWaitObserver  map[string]prometheus.Observer
}

var (
	ledgerMetricsOnce sync.Once
	ledgerMetrics     *LedgerMetrics
)

// Ledger returns the singleton ledger metrics registry.
func Ledger() *LedgerMetrics {
	return LedgerWithConfig(Config{})
}

// LedgerWithConfig returns the singleton ledger metrics registry using config labels.
func LedgerWithConfig(cfg Config) *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerMetrics = NewLedgerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return ledgerMetrics
}

// ResetLedgerMetricsForTest resets the ledger metrics singleton for tests.
func ResetLedgerMetricsForTest() {
	ledgerMetricsOnce = sync.Once{}
	ledgerMetrics = nil
}

// NewLedgerMetrics builds a registry-scoped instance. Tests pass a fresh prometheus.Registry.
func NewLedgerMetrics(registerer prometheus.Registerer, cfg Config) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "creditledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditledger_operations_total",
		Help:        "Ledger operations by outcome.",
		ConstLabels: constLabels,
	}, []string{"operation", "outcome"})
	operationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "creditledger_operation_duration_seconds",
		Help:        "Ledger operation latency including lock wait.",
		Buckets:     []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}, []string{"operation"})
	storageErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditledger_storage_errors_total",
		Help:        "Storage failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"operation", "reason"})
	lockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "creditledger_account_lock_wait_seconds",
		Help:        "Time spent waiting for per-account exclusivity.",
		Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}, []string{"backend"})
	lockTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditledger_account_lock_timeouts_total",
		Help:        "Lock acquisitions abandoned after the configured wait bound.",
		ConstLabels: constLabels,
	}, []string{"backend"})
	catalogSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "creditledger_cost_rules_active",
		Help:        "Active cost rules in the catalog.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		operations,
		operationDuration,
		storageErrors,
		lockWait,
		lockTimeouts,
		catalogSize,
	)

	return &LedgerMetrics{
		operations:        operations,
		operationDuration: operationDuration,
		storageErrors:     storageErrors,
		lockWait:          lockWait,
		lockTimeouts:      lockTimeouts,
		catalogSize:       catalogSize,
		lockWaitObserver: map[string]prometheus.Observer{
			LockBackendLocal: lockWait.WithLabelValues(LockBackendLocal),
			LockBackendRedis: lockWait.WithLabelValues(LockBackendRedis),
		},
	}
}

// ObserveOperation records the outcome and latency of one ledger call.
func (m *LedgerMetrics) ObserveOperation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *LedgerMetrics) IncStorageError(operation string, err error) {
	if m == nil || err == nil {
		return
	}
	m.storageErrors.WithLabelValues(operation, ClassifyStorageReason(err)).Inc()
}

// ObserveLockWait records time spent acquiring an account lock.
func (m *LedgerMetrics) ObserveLockWait(backend string, duration time.Duration) {
	if m == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	if observer, ok := m.lockWaitObserver[backend]; ok {
		observer.Observe(duration.Seconds())
		return
	}
	m.lockWait.WithLabelValues(backend).Observe(duration.Seconds())
}

func (m *LedgerMetrics) IncLockTimeout(backend string) {
	if m == nil {
		return
	}
	m.lockTimeouts.WithLabelValues(backend).Inc()
}

func (m *LedgerMetrics) SetActiveCostRules(count int) {
	if m == nil {
		return
	}
	m.catalogSize.Set(float64(count))
}

// ClassifyStorageReason maps storage failures to a low-cardinality reason label.
func ClassifyStorageReason(err error) string {
	if err == nil {
		return ReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonDeadlineExceeded
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || db.IsDuplicateKeyErr(err) {
		return ReasonUniqueViolation
	}
	if db.IsSerializationErr(err) {
		return ReasonSerializationFailure
	}
	if db.IsLockConflictErr(err) {
		return ReasonLockTimeout
	}
	if db.IsUnavailableErr(err) {
		return ReasonUnavailable
	}
	return ReasonUnknown
}
