package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"grovepi-bridge/internal/domain"
)

const (
	metricPrefix = "bridge_"

	resultSuccess = "success"
	resultError   = "error"
)

// Metrics records bridge activity as Prometheus series. It implements the
// application observer.
type Metrics struct {
	messages          *prometheus.CounterVec
	dispatches        *prometheus.CounterVec
	reconnectAttempts prometheus.Counter
	broadcasts        *prometheus.CounterVec
	sessionConnected  prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "messages_total",
				Help: "Inbound messages by classified kind",
			},
			[]string{"kind"},
		),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "dispatch_total",
				Help: "Dispatched commands by kind and result",
			},
			[]string{"kind", "result"},
		),
		reconnectAttempts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconnect_attempts_total",
				Help: "Transport reconnect attempts",
			},
		),
		broadcasts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "broadcasts_total",
				Help: "Outbound broadcasts by type and result",
			},
			[]string{"type", "result"},
		),
		sessionConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "session_connected",
				Help: "1 while the transport session is connected",
			},
		),
	}

	reg.MustRegister(m.messages, m.dispatches, m.reconnectAttempts, m.broadcasts, m.sessionConnected)
	return m
}

func (m *Metrics) MessageClassified(kind domain.Kind) {
	m.messages.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) Dispatched(kind domain.Kind, err error) {
	m.dispatches.WithLabelValues(string(kind), result(err)).Inc()
}

func (m *Metrics) Broadcast(kind string, err error) {
	m.broadcasts.WithLabelValues(kind, result(err)).Inc()
}

func (m *Metrics) ReconnectAttempt() {
	m.reconnectAttempts.Inc()
}

func (m *Metrics) SessionConnected(connected bool) {
	if connected {
		m.sessionConnected.Set(1)
		return
	}
	m.sessionConnected.Set(0)
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}
