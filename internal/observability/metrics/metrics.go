package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes ledger business instruments over OTLP.
type Metrics struct {
	ledgerEntries     metric.Int64Counter
	creditsMoved      metric.Int64Counter
	insufficientFunds metric.Int64Counter
	idempotentReplays metric.Int64Counter
	costLookups       metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "creditledger"
	}
	meter := provider.Meter(name)

	ledgerEntries, err := meter.Int64Counter("creditledger_ledger_entries_total",
		metric.WithDescription("Ledger entries appended by kind."))
	if err != nil {
		return nil, err
	}
	creditsMoved, err := meter.Int64Counter("creditledger_credits_total",
		metric.WithDescription("Credits moved by entry kind, absolute value."))
	if err != nil {
		return nil, err
	}
	insufficientFunds, err := meter.Int64Counter("creditledger_insufficient_funds_total",
		metric.WithDescription("Declined consumptions by question category."))
	if err != nil {
		return nil, err
	}
	idempotentReplays, err := meter.Int64Counter("creditledger_idempotent_replays_total",
		metric.WithDescription("Requests answered from a previously recorded entry."))
	if err != nil {
		return nil, err
	}
	costLookups, err := meter.Int64Counter("creditledger_cost_lookups_total",
		metric.WithDescription("Cost catalog lookups by cache result."))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ledgerEntries:     ledgerEntries,
		creditsMoved:      creditsMoved,
		insufficientFunds: insufficientFunds,
		idempotentReplays: idempotentReplays,
		costLookups:       costLookups,
	}, nil
}

// RecordLedgerEntry counts an appended entry and the credits it moved.
func (m *Metrics) RecordLedgerEntry(ctx context.Context, kind string, amount int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("kind", strings.TrimSpace(kind)))
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(attrs...))
	if amount < 0 {
		amount = -amount
	}
	m.creditsMoved.Add(ctx, amount, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordInsufficientFunds(ctx context.Context, category string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("question_category", strings.TrimSpace(category)))
	m.insufficientFunds.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordIdempotentReplay(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("operation", strings.TrimSpace(operation)))
	m.idempotentReplays.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCostLookup tracks catalog lookups; result is hit, miss or unknown.
func (m *Metrics) RecordCostLookup(ctx context.Context, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("result", strings.TrimSpace(result)))
	m.costLookups.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// account_id and idempotency keys are unbounded and never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"kind":              {},
	"operation":         {},
	"outcome":           {},
	"question_category": {},
	"result":            {},
	"reason":            {},
	"endpoint":          {},
	"status_code":       {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
