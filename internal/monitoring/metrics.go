// Package monitoring exposes Prometheus metrics for the HTTP API and the
// live-view layer.
package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveStreams tracks the number of open SSE subscriptions.
	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskally_active_streams",
		Help: "Number of open live-update streams.",
	})

	// TaskMutations counts task writes by kind.
	TaskMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskally_task_mutations_total",
		Help: "Task writes by operation.",
	}, []string{"operation"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskally_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Middleware records request latency per route. Routes are labeled by
// their gin pattern, not the raw path, to keep cardinality bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpDuration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
