package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the client's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	framesReceived  prometheus.Counter
	framesMalformed prometheus.Counter
	framesFiltered  prometheus.Counter
	alertsDelivered prometheus.Counter
	alertsDropped   prometheus.Counter
	connectAttempts prometheus.Counter
	reconnects      prometheus.Counter
	connectionState *prometheus.GaugeVec
	readings        *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		framesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "alerts_frames_received_total",
			Help: "Frames read from the alert stream.",
		}),
		framesMalformed: f.NewCounter(prometheus.CounterOpts{
			Name: "alerts_frames_malformed_total",
			Help: "Frames dropped because they could not be decoded.",
		}),
		framesFiltered: f.NewCounter(prometheus.CounterOpts{
			Name: "alerts_frames_filtered_total",
			Help: "Frames addressed to another recipient.",
		}),
		alertsDelivered: f.NewCounter(prometheus.CounterOpts{
			Name: "alerts_delivered_total",
			Help: "Alerts handed to the notification sink.",
		}),
		alertsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "alerts_dropped_total",
			Help: "Alerts dropped because the delivery queue was full.",
		}),
		connectAttempts: f.NewCounter(prometheus.CounterOpts{
			Name: "alerts_connect_attempts_total",
			Help: "Connection attempts to the alert stream.",
		}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "alerts_reconnects_scheduled_total",
			Help: "Reconnects scheduled after a close or error.",
		}),
		connectionState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "alerts_connection_state",
			Help: "1 for the current connection state, 0 otherwise.",
		}, []string{"state"}),
		readings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_readings_total",
			Help: "Readings served, by kind and source.",
		}, []string{"kind", "source"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) FrameReceived() {
	if m != nil {
		m.framesReceived.Inc()
	}
}

func (m *Metrics) FrameMalformed() {
	if m != nil {
		m.framesMalformed.Inc()
	}
}

func (m *Metrics) FrameFiltered() {
	if m != nil {
		m.framesFiltered.Inc()
	}
}

func (m *Metrics) AlertDelivered() {
	if m != nil {
		m.alertsDelivered.Inc()
	}
}

func (m *Metrics) AlertDropped() {
	if m != nil {
		m.alertsDropped.Inc()
	}
}

func (m *Metrics) ConnectAttempt() {
	if m != nil {
		m.connectAttempts.Inc()
	}
}

func (m *Metrics) ReconnectScheduled() {
	if m != nil {
		m.reconnects.Inc()
	}
}

// SetState marks state as the only active connection state.
func (m *Metrics) SetState(old, state string) {
	if m == nil {
		return
	}
	if old != "" {
		m.connectionState.WithLabelValues(old).Set(0)
	}
	m.connectionState.WithLabelValues(state).Set(1)
}

func (m *Metrics) ReadingServed(kind, source string) {
	if m != nil {
		m.readings.WithLabelValues(kind, source).Inc()
	}
}
