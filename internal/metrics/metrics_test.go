package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.IngestRun("ingest", "complete")
	m.ObserveStage("extract", time.Second)
	m.AddRows(10)
	m.CacheResult(true)
	m.ObserveQuery("query", time.Millisecond)
}

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IngestRun("ingest", "complete")
	m.IngestRun("ingest", "complete")
	m.IngestRun("revert", "error")
	m.AddRows(5)
	m.AddRows(-1)
	m.CacheResult(true)
	m.CacheResult(false)
	m.CacheResult(false)

	if got := testutil.ToFloat64(m.IngestRuns.WithLabelValues("ingest", "complete")); got != 2 {
		t.Fatalf("ingest complete=%v", got)
	}
	if got := testutil.ToFloat64(m.MaterializedRows); got != 5 {
		t.Fatalf("rows=%v", got)
	}
	if got := testutil.ToFloat64(m.QueryCache.WithLabelValues("miss")); got != 2 {
		t.Fatalf("misses=%v", got)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := New(reg)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/models/:name", func(c *gin.Context) { c.Status(http.StatusOK) })
	RegisterRoutes(r, reg)

	for _, p := range []string{"/api/models/a", "/api/models/b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
	}

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/models/:name", "200")); got != 2 {
		t.Fatalf("requests=%v", got)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "bim_http_requests_total") {
		t.Fatalf("metrics status=%d body=%s", w.Code, w.Body.String())
	}
}
