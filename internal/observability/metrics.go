// Package observability holds the Prometheus instrumentation shared by the
// pollers, the API client and the geocoder.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "disasterboard"

// Metrics holds the Prometheus counters, histograms, and gauges for a board.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	FetchTotal       *prometheus.CounterVec   // labels: view, outcome={success,failure}
	FetchDuration    *prometheus.HistogramVec // labels: view
	RetriesScheduled *prometheus.CounterVec   // labels: view
	RetriesExhausted *prometheus.CounterVec   // labels: view
	ViewConnected    *prometheus.GaugeVec     // labels: view
	HealthProbes     *prometheus.CounterVec   // labels: outcome={healthy,unhealthy}
	GeocodeCache     *prometheus.CounterVec   // labels: result={hit,miss}
	AlertsForwarded  prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.FetchTotal,
		m.FetchDuration,
		m.RetriesScheduled,
		m.RetriesExhausted,
		m.ViewConnected,
		m.HealthProbes,
		m.GeocodeCache,
		m.AlertsForwarded,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests
// can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Fetch cycles by view and outcome.",
		}, []string{"view", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a fetch cycle including the health probe.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"view"}),
		RetriesScheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_scheduled_total",
			Help:      "Retries scheduled after a failed cycle.",
		}, []string{"view"}),
		RetriesExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_exhausted_total",
			Help:      "Failed cycles that found the retry budget used up.",
		}, []string{"view"}),
		ViewConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "view_connected",
			Help:      "1 when the view's last cycle succeeded, 0 otherwise.",
		}, []string{"view"}),
		HealthProbes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_probes_total",
			Help:      "Backend health probes by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Reverse geocoding cache lookups by result.",
		}, []string{"result"}),
		AlertsForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_forwarded_total",
			Help:      "Disaster alerts published to the sink.",
		}),
	}
}

// ObserveFetch records one finished fetch cycle.
func (m *Metrics) ObserveFetch(view, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(view, outcome).Inc()
	m.FetchDuration.WithLabelValues(view).Observe(d.Seconds())
}

// RetryScheduled counts a retry scheduled for view.
func (m *Metrics) RetryScheduled(view string) {
	if m == nil {
		return
	}
	m.RetriesScheduled.WithLabelValues(view).Inc()
}

// RetryExhausted counts a failure with no retry budget left.
func (m *Metrics) RetryExhausted(view string) {
	if m == nil {
		return
	}
	m.RetriesExhausted.WithLabelValues(view).Inc()
}

// SetConnected sets the connectivity gauge for view.
func (m *Metrics) SetConnected(view string, connected bool) {
	if m == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1
	}
	m.ViewConnected.WithLabelValues(view).Set(v)
}

// ObserveHealth counts one health probe.
func (m *Metrics) ObserveHealth(healthy bool) {
	if m == nil {
		return
	}
	outcome := "unhealthy"
	if healthy {
		outcome = "healthy"
	}
	m.HealthProbes.WithLabelValues(outcome).Inc()
}

// ObserveGeocodeCache counts a cache hit or miss.
func (m *Metrics) ObserveGeocodeCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.GeocodeCache.WithLabelValues(result).Inc()
}

// AlertForwarded counts n published alerts.
func (m *Metrics) AlertForwarded(n int) {
	if m == nil {
		return
	}
	m.AlertsForwarded.Add(float64(n))
}
