package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/wishes/:id", func(c *gin.Context) {
		c.String(http.StatusOK, `{"id":"w"}`)
	})
	r.GET("/empty", func(c *gin.Context) {
		c.Status(http.StatusNoContent) // no body, Writer.Size() stays -1
	})

	// Collectors are package-global; measure deltas, not absolutes.
	baseRoute := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/wishes/:id", "200"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/no-such-route", "404"))

	for _, path := range []string{"/wishes/abc123", "/no-such-route", "/empty"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	// Matched requests are labelled by route pattern, not the raw URL.
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/wishes/:id", "200")); got != baseRoute+1 {
		t.Fatalf("route-pattern counter = %v, want %v", got, baseRoute+1)
	}
	if raw := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/wishes/abc123", "200")); raw != 0 {
		t.Fatalf("raw URL leaked into labels: %v", raw)
	}

	// Unmatched requests fall back to the raw path.
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/no-such-route", "404")); got != baseMiss+1 {
		t.Fatalf("fallback counter = %v, want %v", got, baseMiss+1)
	}

	// Gauge returns to zero once requests finish.
	if inflight := testutil.ToFloat64(httpInflight); inflight != 0 {
		t.Fatalf("inflight = %v, want 0", inflight)
	}
}
