package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func TestNewProviderDisabledIsNoop(t *testing.T) {
	tp, err := NewProvider(nil, Config{Enabled: false}, nil)
	require.NoError(t, err)
	_, span := tp.Tracer("x").Start(context.Background(), "op")
	assert.False(t, span.SpanContext().IsValid())
}

func TestSafeAttributesDropsIdempotencyKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("idempotency_key", "q-1"),
		attribute.String("ledger.kind", "CONSUME"),
	)
	require.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("ledger.kind"), attrs[0].Key)
}

func TestSafeErrorTruncates(t *testing.T) {
	err := SafeError(errors.New(strings.Repeat("x", 400)))
	assert.Len(t, err.Error(), 256)
	assert.Nil(t, SafeError(nil))
}

func TestEndSpanTreatsExpectedErrorsAsOK(t *testing.T) {
	recorder := recordSpans(t)
	declined := errors.New("insufficient_funds")

	_, span := StartSpan(context.Background(), "ledger.consume")
	EndSpan(span, declined, declined)
	_, span = StartSpan(context.Background(), "ledger.refund")
	EndSpan(span, errors.New("storage_unavailable"), declined)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())
}

func TestGinMiddlewareNamesSpanByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	r := gin.New()
	r.Use(GinMiddleware())
	r.POST("/v1/accounts/:account_id/consume", func(c *gin.Context) {
		switch c.Query("outcome") {
		case "conflict":
			_ = c.Error(errors.New("concurrency_conflict"))
			c.Status(http.StatusConflict)
		case "declined":
			_ = c.Error(errors.New("insufficient_funds"))
			c.Status(http.StatusPaymentRequired)
		default:
			c.Status(http.StatusOK)
		}
	})

	for _, outcome := range []string{"ok", "declined", "conflict"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/accounts/acct-1/consume?outcome="+outcome, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	for _, span := range spans {
		assert.Equal(t, "HTTP POST /v1/accounts/:account_id/consume", span.Name())
	}
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
	assert.Equal(t, codes.Error, spans[2].Status().Code)
}
