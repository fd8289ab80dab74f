package observability

import (
	"math"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records per-route request outcomes and rejections.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge
	rejected *prometheus.CounterVec
}

var (
	httpMetricsOnce sync.Once
	httpRegistry    *HTTPMetrics
)

// HTTP returns the process-wide HTTP metrics registry.
func HTTP() *HTTPMetrics {
	httpMetricsOnce.Do(func() {
		httpRegistry = &HTTPMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "claimdrop",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Requests served, by route, method and status class.",
			}, []string{"route", "method", "class"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "claimdrop",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Handler latency by route.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			}, []string{"route", "method"}),
			inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "claimdrop",
				Subsystem: "http",
				Name:      "in_flight_requests",
				Help:      "Requests currently being served.",
			}),
			rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "claimdrop",
				Subsystem: "http",
				Name:      "rejected_total",
				Help:      "Requests or stream messages refused before reaching a handler.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			httpRegistry.requests,
			httpRegistry.latency,
			httpRegistry.inFlight,
			httpRegistry.rejected,
		)
	})
	return httpRegistry
}

// Begin marks a request as in flight. The returned func records its outcome.
func (m *HTTPMetrics) Begin() func(route, method string, status int) {
	if m == nil {
		return func(string, string, int) {}
	}
	start := time.Now()
	m.inFlight.Inc()
	return func(route, method string, status int) {
		m.inFlight.Dec()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, method, statusClass(status)).Inc()
		m.latency.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// Reject counts a request refused by middleware. reason should be a stable
// string such as "rate_limit" or "unauthenticated".
func (m *HTTPMetrics) Reject(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// BigToFloat converts a token amount for gauges and counters. Values that do
// not fit a float64 report as zero.
func BigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, _ := new(big.Float).SetInt(value).Float64()
	if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
		return 0
	}
	return floatVal
}
