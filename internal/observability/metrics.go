package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "letter_http_requests_total",
			Help: "Total number of HTTP requests processed by the letter service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "letter_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	reconcilerTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "letter_reconciler_ticks_total",
			Help: "Total number of reconciler ticks.",
		},
		[]string{"reconciler"},
	)
	reconcilerAdvancedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "letter_reconciler_advanced_total",
			Help: "Total number of letters advanced by reconcilers.",
		},
		[]string{"reconciler"},
	)
	reconcilerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "letter_reconciler_errors_total",
			Help: "Total number of per-letter reconciler failures.",
		},
		[]string{"reconciler"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "letter_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		reconcilerTicksTotal,
		reconcilerAdvancedTotal,
		reconcilerErrorsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncReconcilerTick(reconciler string) {
	reconcilerTicksTotal.WithLabelValues(reconciler).Inc()
}

func IncReconcilerAdvanced(reconciler string) {
	reconcilerAdvancedTotal.WithLabelValues(reconciler).Inc()
}

func IncReconcilerError(reconciler string) {
	reconcilerErrorsTotal.WithLabelValues(reconciler).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
