package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{})

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/v1/accounts/:account_id/balance", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/accounts/"+id+"/balance", nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	if got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/v1/accounts/:account_id/balance", "200")); got != 2 {
		t.Fatalf("expected 2 requests on route template, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "unknown", "404")); got != 1 {
		t.Fatalf("expected 1 unknown route request, got %v", got)
	}
}

func TestHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := newHTTPMetrics(registry, Config{})
	second := newHTTPMetrics(registry, Config{})
	if first.requests != second.requests {
		t.Fatalf("expected shared collector")
	}
}
