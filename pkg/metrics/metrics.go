// Package metrics exposes Prometheus collectors for the directory service,
// the database flush path and the LDAP front end.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mextdomen/mextdomen/pkg/events"
)

// Metrics owns a private registry with all mextdomen collectors.
type Metrics struct {
	registry *prometheus.Registry

	// DirectoryMutations counts mutations by audit action name.
	DirectoryMutations *prometheus.CounterVec

	// FlushDuration observes database snapshot flush latency.
	FlushDuration prometheus.Histogram

	ldap *LDAPMetrics
}

// LDAPMetrics records LDAP connection and request lifecycle events. It
// satisfies the LDAP server's MetricsRecorder interface.
type LDAPMetrics struct {
	connectionsTotal  prometheus.Counter
	activeConnections prometheus.Gauge
	binds             *prometheus.CounterVec
	searchesTotal     prometheus.Counter
	searchEntries     prometheus.Histogram
}

// New creates the collector set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		DirectoryMutations: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mextdomen_directory_mutations_total",
				Help: "Total number of directory mutations by action",
			},
			[]string{"action"},
		),
		FlushDuration: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mextdomen_db_flush_duration_milliseconds",
				Help:    "Duration of database snapshot flushes in milliseconds",
				Buckets: []float64{0.5, 1, 5, 10, 50, 100, 500, 1000, 5000},
			},
		),
		ldap: &LDAPMetrics{
			connectionsTotal: promauto.With(registry).NewCounter(
				prometheus.CounterOpts{
					Name: "mextdomen_ldap_connections_total",
					Help: "Total number of accepted LDAP connections",
				},
			),
			activeConnections: promauto.With(registry).NewGauge(
				prometheus.GaugeOpts{
					Name: "mextdomen_ldap_active_connections",
					Help: "Number of currently active LDAP connections",
				},
			),
			binds: promauto.With(registry).NewCounterVec(
				prometheus.CounterOpts{
					Name: "mextdomen_ldap_binds_total",
					Help: "Total number of LDAP bind attempts by result",
				},
				[]string{"result"}, // "success", "failure"
			),
			searchesTotal: promauto.With(registry).NewCounter(
				prometheus.CounterOpts{
					Name: "mextdomen_ldap_searches_total",
					Help: "Total number of LDAP search requests",
				},
			),
			searchEntries: promauto.With(registry).NewHistogram(
				prometheus.HistogramOpts{
					Name:    "mextdomen_ldap_search_entries",
					Help:    "Distribution of entries returned per LDAP search",
					Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
				},
			),
		},
	}

	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for test gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// LDAP returns the LDAP lifecycle recorder.
func (m *Metrics) LDAP() *LDAPMetrics {
	return m.ldap
}

// ObserveFlush records one database flush. Shaped to plug into the
// store's flush observer hook.
func (m *Metrics) ObserveFlush(d time.Duration) {
	m.FlushDuration.Observe(float64(d.Milliseconds()))
}

// Consume counts directory mutations from an audit event stream. It
// returns when the channel closes; run it on its own goroutine.
func (m *Metrics) Consume(ch <-chan events.AuditEvent) {
	for event := range ch {
		m.DirectoryMutations.WithLabelValues(event.Action).Inc()
	}
}

func (l *LDAPMetrics) RecordConnectionAccepted() {
	l.connectionsTotal.Inc()
}

func (l *LDAPMetrics) RecordConnectionClosed() {}

func (l *LDAPMetrics) SetActiveConnections(count int32) {
	l.activeConnections.Set(float64(count))
}

func (l *LDAPMetrics) RecordBind(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	l.binds.WithLabelValues(result).Inc()
}

func (l *LDAPMetrics) RecordSearch(entries int) {
	l.searchesTotal.Inc()
	l.searchEntries.Observe(float64(entries))
}
