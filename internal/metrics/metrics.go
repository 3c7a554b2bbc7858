// Package metrics exposes Prometheus collectors for the monitor
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics groups every collector the monitor updates. Each instance has its
// own registry so tests do not collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	IndicatorCommands *prometheus.CounterVec
	Notifications     *prometheus.CounterVec
	RegistryEvents    *prometheus.CounterVec
	TrackedNodes      prometheus.Gauge
	CameraTracked     prometheus.Gauge
	IndicatorLatency  prometheus.Histogram
}

// New creates and registers the monitor collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		IndicatorCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cameraled_indicator_commands_total",
			Help: "Indicator set-level commands by requested level and outcome.",
		}, []string{"level", "result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cameraled_notifications_total",
			Help: "Fallback desktop notifications by outcome.",
		}, []string{"result"}),
		RegistryEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cameraled_registry_events_total",
			Help: "Registry events handled by the tracker, by kind.",
		}, []string{"kind"}),
		TrackedNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cameraled_tracked_nodes",
			Help: "Node objects currently holding listeners.",
		}),
		CameraTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cameraled_camera_tracked",
			Help: "1 while a node is latched as the camera.",
		}),
		IndicatorLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cameraled_indicator_command_seconds",
			Help:    "Duration of indicator control calls.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}

	m.registry.MustRegister(
		m.IndicatorCommands,
		m.Notifications,
		m.RegistryEvents,
		m.TrackedNodes,
		m.CameraTracked,
		m.IndicatorLatency,
	)
	return m
}

// Registry returns the registry holding the monitor collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
