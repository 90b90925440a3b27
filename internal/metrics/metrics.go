// Package metrics exposes the gateway's Prometheus collectors:
//
//	gateway_signals_total{result}        signals by pipeline outcome
//	gateway_auth_failures_total{reason}  rejected authentications
//	gateway_rate_limited_total           throttled requests
//	gateway_orders_total{side}           orders placed at the terminal
//	gateway_execution_seconds            end-to-end execution latency
//
// Collectors are registered in init() and served at /metrics.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_signals_total",
			Help: "Signals by pipeline outcome",
		},
		[]string{"result"},
	)

	authFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_auth_failures_total",
			Help: "Rejected authentications by reason",
		},
		[]string{"reason"},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_orders_total",
			Help: "Orders placed at the terminal by side",
		},
		[]string{"side"},
	)

	executionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_execution_seconds",
			Help:    "End-to-end signal execution latency",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(signals, authFailures, rateLimited, orders, executionSeconds)
}

func SignalProcessed(result string)    { signals.WithLabelValues(result).Inc() }
func AuthFailure(reason string)        { authFailures.WithLabelValues(reason).Inc() }
func RateLimited()                     { rateLimited.Inc() }
func OrderPlaced(side string)          { orders.WithLabelValues(side).Inc() }
func ObserveExecution(seconds float64) { executionSeconds.Observe(seconds) }

// Handler adapts the Prometheus exposition handler to gin.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
