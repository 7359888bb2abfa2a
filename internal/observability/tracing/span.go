package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "creditledger"

// ExtractContext pulls W3C trace context and baggage from the carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// StartSpan opens an internal span on the global tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(SafeAttributes(attrs...)...),
	)
}

// EndSpan marks the span failed when err is a storage or programming error.
// Business declines are expected outcomes and leave the span OK.
func EndSpan(span trace.Span, err error, expected ...error) {
	if err != nil {
		isExpected := false
		for _, target := range expected {
			if errors.Is(err, target) {
				isExpected = true
				break
			}
		}
		if isExpected {
			span.SetAttributes(attribute.String("ledger.outcome", err.Error()))
		} else if safe := SafeError(err); safe != nil {
			span.RecordError(safe)
			span.SetStatus(codes.Error, "ledger error")
		}
	}
	span.End()
}

// idempotency keys are opaque caller data and stay off spans.
var blockedAttributeKeys = map[attribute.Key]struct{}{
	"idempotency_key":        {},
	"refund_idempotency_key": {},
	"authorization":          {},
}

// SafeAttributes drops attributes that may carry caller secrets.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError trims error text to a bounded length before it is exported.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(err.Error())
	if len(msg) > 256 {
		msg = msg[:256]
	}
	return errors.New(msg)
}
