package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can run without a collector.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// View lifecycle metrics
	ViewsRegistered prometheus.Gauge
	ViewsCreated    prometheus.Counter
	ViewsDestroyed  *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	ShowsDropped    prometheus.Counter
	ShowDuration    *prometheus.HistogramVec
	LoadFailures    *prometheus.CounterVec
	TeardownErrors  prometheus.Counter

	// Idle metrics
	IdleFires prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSDropped     prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector backed by its own registry, with
// the Go runtime and process collectors attached.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewMetricsWith(reg)
}

// NewMetricsWith registers the kiosk metrics on reg.
func NewMetricsWith(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiosk_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kiosk_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15},
			},
			[]string{"method", "route"},
		),

		ViewsRegistered: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "kiosk_views_registered",
				Help: "Number of views currently in the registry",
			},
		),
		ViewsCreated: f.NewCounter(
			prometheus.CounterOpts{
				Name: "kiosk_views_created_total",
				Help: "Total number of native views created",
			},
		),
		ViewsDestroyed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiosk_views_destroyed_total",
				Help: "Total number of views torn down",
			},
			[]string{"reason"},
		),
		Transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiosk_view_transitions_total",
				Help: "View lifecycle state transitions",
			},
			[]string{"from", "to"},
		),
		ShowsDropped: f.NewCounter(
			prometheus.CounterOpts{
				Name: "kiosk_shows_dropped_total",
				Help: "Duplicate show requests dropped while one was in flight",
			},
		),
		ShowDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kiosk_show_duration_seconds",
				Help:    "Time from show request to visible view",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
			},
			[]string{"kind"},
		),
		LoadFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiosk_load_failures_total",
				Help: "Navigation failures surfaced to the presentation layer",
			},
			[]string{"code"},
		),
		TeardownErrors: f.NewCounter(
			prometheus.CounterOpts{
				Name: "kiosk_teardown_errors_total",
				Help: "Native views that failed to confirm destruction",
			},
		),

		IdleFires: f.NewCounter(
			prometheus.CounterOpts{
				Name: "kiosk_idle_fires_total",
				Help: "Number of idle timeouts that reset the kiosk",
			},
		),

		WSConnections: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "kiosk_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSDropped: f.NewCounter(
			prometheus.CounterOpts{
				Name: "kiosk_ws_events_dropped_total",
				Help: "Events dropped because a client or the hub was saturated",
			},
		),
	}
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordTransition records a view state change
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

// SetViewsRegistered sets the number of registered views
func (m *Metrics) SetViewsRegistered(count int) {
	if m == nil {
		return
	}
	m.ViewsRegistered.Set(float64(count))
}

// IncViewsCreated increments the created views counter
func (m *Metrics) IncViewsCreated() {
	if m == nil {
		return
	}
	m.ViewsCreated.Inc()
}

// IncViewsDestroyed increments the destroyed views counter
func (m *Metrics) IncViewsDestroyed(reason string) {
	if m == nil {
		return
	}
	m.ViewsDestroyed.WithLabelValues(reason).Inc()
}

// IncShowsDropped increments the dropped shows counter
func (m *Metrics) IncShowsDropped() {
	if m == nil {
		return
	}
	m.ShowsDropped.Inc()
}

// ObserveShow records how long a show took. kind is "create" or "reshow".
func (m *Metrics) ObserveShow(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.ShowDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordLoadFailure records a surfaced load failure
func (m *Metrics) RecordLoadFailure(code int) {
	if m == nil {
		return
	}
	m.LoadFailures.WithLabelValues(strconv.Itoa(code)).Inc()
}

// IncTeardownErrors increments the teardown error counter
func (m *Metrics) IncTeardownErrors() {
	if m == nil {
		return
	}
	m.TeardownErrors.Inc()
}

// IncIdleFires increments the idle fire counter
func (m *Metrics) IncIdleFires() {
	if m == nil {
		return
	}
	m.IdleFires.Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// IncWSDropped increments the dropped event counter
func (m *Metrics) IncWSDropped() {
	if m == nil {
		return
	}
	m.WSDropped.Inc()
}
