package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsNamespace is the Prometheus namespace for gateway metrics.
const metricsNamespace = "relaywire"

// Metrics holds the Prometheus instruments for the gateway.
// All record methods are safe to call on a nil receiver, so components can
// carry an optional *Metrics without guarding every call site.
type Metrics struct {
	activeSessions   *prometheus.GaugeVec
	sessionsTotal    *prometheus.CounterVec
	eventsTotal      *prometheus.CounterVec
	broadcastsTotal  *prometheus.CounterVec
	deliveryErrors   *prometheus.CounterVec
	admissionsDenied prometheus.Counter
}

// NewMetrics registers the gateway instruments with reg.
// A nil registry uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		activeSessions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_sessions",
			Help:      "Number of currently open sessions per namespace",
		}, []string{"namespace"}),

		sessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_total",
			Help:      "Total sessions admitted per namespace",
		}, []string{"namespace"}),

		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_total",
			Help:      "Total inbound events dispatched per namespace and event name",
		}, []string{"namespace", "event"}),

		broadcastsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "broadcasts_total",
			Help:      "Total broadcasts per namespace",
		}, []string{"namespace"}),

		deliveryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "delivery_errors_total",
			Help:      "Sends dropped because a session was closed or its queue was full",
		}, []string{"namespace"}),

		admissionsDenied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "admissions_denied_total",
			Help:      "Connection attempts rejected by the admission policy",
		}),
	}
}

// RecordSessionOpen records an admitted session.
func (m *Metrics) RecordSessionOpen(namespace string) {
	if m == nil {
		return
	}
	m.activeSessions.WithLabelValues(namespace).Inc()
	m.sessionsTotal.WithLabelValues(namespace).Inc()
}

// RecordSessionClose records a removed session.
func (m *Metrics) RecordSessionClose(namespace string) {
	if m == nil {
		return
	}
	m.activeSessions.WithLabelValues(namespace).Dec()
}

// RecordEvent records a dispatched inbound event.
func (m *Metrics) RecordEvent(namespace, event string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(namespace, event).Inc()
}

// RecordBroadcast records one broadcast operation.
func (m *Metrics) RecordBroadcast(namespace string) {
	if m == nil {
		return
	}
	m.broadcastsTotal.WithLabelValues(namespace).Inc()
}

// RecordDeliveryError records a dropped send.
func (m *Metrics) RecordDeliveryError(namespace string) {
	if m == nil {
		return
	}
	m.deliveryErrors.WithLabelValues(namespace).Inc()
}

// RecordAdmissionDenied records a rejected connection attempt.
func (m *Metrics) RecordAdmissionDenied() {
	if m == nil {
		return
	}
	m.admissionsDenied.Inc()
}
