package utils

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector tracks performance metrics across the system. Each
// collector owns its own registry so tests can create as many as they like.
type MetricsCollector struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	errors        *prometheus.CounterVec
	operationTime *prometheus.HistogramVec
	subscriptions prometheus.Gauge
	connections   prometheus.Gauge

	systemStartTime time.Time
}

func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatorchat",
			Name:      "requests_total",
			Help:      "Operations received by the engine.",
		}, []string{"operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatorchat",
			Name:      "errors_total",
			Help:      "Operations that returned an error, by error code.",
		}, []string{"operation", "code"}),
		operationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gatorchat",
			Name:      "operation_duration_seconds",
			Help:      "Latency of store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gatorchat",
			Name:      "live_subscriptions",
			Help:      "Live query subscriptions.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gatorchat",
			Name:      "websocket_connections",
			Help:      "Open websocket connections.",
		}),
		systemStartTime: time.Now(),
	}
	mc.registry.MustRegister(mc.requests, mc.errors, mc.operationTime, mc.subscriptions, mc.connections)
	return mc
}

func (mc *MetricsCollector) IncrementRequests(operation string) {
	mc.requests.WithLabelValues(operation).Inc()
}

func (mc *MetricsCollector) IncrementErrors(operation, code string) {
	mc.errors.WithLabelValues(operation, code).Inc()
}

func (mc *MetricsCollector) AddOperationLatency(operationName string, duration time.Duration) {
	mc.operationTime.WithLabelValues(operationName).Observe(duration.Seconds())
}

func (mc *MetricsCollector) SubscriptionOpened() { mc.subscriptions.Inc() }
func (mc *MetricsCollector) SubscriptionClosed() { mc.subscriptions.Dec() }
func (mc *MetricsCollector) ConnectionOpened()   { mc.connections.Inc() }
func (mc *MetricsCollector) ConnectionClosed()   { mc.connections.Dec() }

// Uptime is the time since the collector was created.
func (mc *MetricsCollector) Uptime() time.Duration {
	return time.Since(mc.systemStartTime)
}

// Handler exposes the collector's registry in the Prometheus text format.
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}
