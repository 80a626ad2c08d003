package session

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/carlosrabelo/nxproxy/domain/entities"
)

// Metrics counts device traffic and session churn
type Metrics struct {
	Commands   *prometheus.CounterVec
	Reconnects *prometheus.CounterVec
	Sessions   *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg when it is not nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nxproxy",
				Name:      "commands_total",
				Help:      "Command batches sent to the device by transport and outcome",
			},
			[]string{"transport", "outcome"},
		),
		Reconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nxproxy",
				Name:      "reconnects_total",
				Help:      "Reconnect attempts after a failed liveness probe",
			},
			[]string{"transport", "outcome"},
		),
		Sessions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "nxproxy",
				Name:      "sessions",
				Help:      "Worker sessions by state",
			},
			[]string{"state"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Commands, m.Reconnects, m.Sessions)
	}
	return m
}

func (m *Metrics) command(kind entities.TransportKind, err error) {
	m.Commands.WithLabelValues(string(kind), outcome(err)).Inc()
}

func (m *Metrics) reconnect(kind entities.TransportKind, err error) {
	m.Reconnects.WithLabelValues(string(kind), outcome(err)).Inc()
}

func (m *Metrics) transition(from, to entities.SessionState) {
	if from == to {
		return
	}
	if from != entities.StateUninitialized {
		m.Sessions.WithLabelValues(from.String()).Dec()
	}
	m.Sessions.WithLabelValues(to.String()).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
