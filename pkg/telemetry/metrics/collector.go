package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Bridge state gauge values.
const (
	StateStopped  = 0
	StateStarting = 1
	StateRunning  = 2
	StateError    = 3
)

// Collector owns the Prometheus registry and all metric instances for the
// bridge. One Collector is constructed per process and shared by the
// proxy server and the tunnel manager.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	upstreamErrors  *prometheus.CounterVec
	streamChunks    prometheus.Counter
	tunnelEvents    *prometheus.CounterVec
	bridgeState     prometheus.Gauge
}

// NewCollector creates a collector and registers all metrics with the
// given registry. If registry is nil a fresh one is created.
func NewCollector(namespace string, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "callisto"
	}

	c := &Collector{
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proxy_requests_total",
				Help:      "Total number of requests handled by the bridge proxy",
			},
			[]string{"route", "method", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "proxy_request_duration_seconds",
				Help:      "Duration of proxied requests in seconds",
				// Local provider latencies: sub-millisecond health checks
				// up to long streamed completions.
				Buckets: []float64{0.005, 0.05, 0.25, 1, 5, 15, 60, 120},
			},
			[]string{"route"},
		),

		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_errors_total",
				Help:      "Total number of failed calls to the local provider",
			},
			[]string{"kind"},
		),

		streamChunks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_chunks_total",
				Help:      "Total number of chat completion chunks parsed from provider streams",
			},
		),

		tunnelEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tunnel_lifecycle_events_total",
				Help:      "Total number of tunnel lifecycle operations by outcome",
			},
			[]string{"operation", "result"},
		),

		bridgeState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bridge_state",
				Help:      "Current bridge state (0=stopped, 1=starting, 2=running, 3=error)",
			},
		),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.upstreamErrors,
		c.streamChunks,
		c.tunnelEvents,
		c.bridgeState,
	)

	return c
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordRequest records one handled proxy request.
func (c *Collector) RecordRequest(route, method string, status int, duration time.Duration) {
	c.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordUpstreamError records one failed call to the local provider.
// kind is a coarse classification ("network", "status", "parse").
func (c *Collector) RecordUpstreamError(kind string) {
	c.upstreamErrors.WithLabelValues(kind).Inc()
}

// AddStreamChunks adds parsed chunk count from a completed stream.
func (c *Collector) AddStreamChunks(n int) {
	if n > 0 {
		c.streamChunks.Add(float64(n))
	}
}

// RecordTunnelEvent records one tunnel lifecycle operation.
// operation is "open" or "close"; result is "success" or "failure".
func (c *Collector) RecordTunnelEvent(operation, result string) {
	c.tunnelEvents.WithLabelValues(operation, result).Inc()
}

// SetBridgeState sets the bridge state gauge to one of the State* values.
func (c *Collector) SetBridgeState(state float64) {
	c.bridgeState.Set(state)
}
