package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	IngestRuns       *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	MaterializedRows prometheus.Counter
	QueryCache       *prometheus.CounterVec
	QueryDuration    *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IngestRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bim_ingest_runs_total",
			Help: "Pipeline runs by kind and outcome",
		}, []string{"kind", "outcome"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bim_ingest_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage"}),
		MaterializedRows: f.NewCounter(prometheus.CounterOpts{
			Name: "bim_materialized_rows_total",
			Help: "Object records written by the materializer",
		}),
		QueryCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bim_query_cache_total",
			Help: "Query cache lookups by result",
		}, []string{"result"}),
		QueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bim_query_duration_seconds",
			Help:    "Object query latency by kind",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bim_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bim_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) IngestRun(kind, outcome string) {
	if m == nil {
		return
	}
	m.IngestRuns.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) AddRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MaterializedRows.Add(float64(n))
}

func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.QueryCache.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveQuery(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// Middleware records request counts and latency keyed by the matched route
// template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func RegisterRoutes(r *gin.Engine, gatherer prometheus.Gatherer) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
