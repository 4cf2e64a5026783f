// Package metrics exposes client state as Prometheus collectors.
package metrics

import (
	"net/http"

	"garage-client/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the client collectors. They are fed from component observers.
type Metrics struct {
	Authenticated   prometheus.Gauge
	SessionChanges  *prometheus.CounterVec
	UnreadCount     prometheus.Gauge
	ToastsShown     *prometheus.CounterVec
	RealtimeState   *prometheus.GaugeVec
	TransportErrors prometheus.Counter
}

// New registers the collectors on reg. A nil reg uses a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Authenticated: f.NewGauge(prometheus.GaugeOpts{
			Name: "garage_client_authenticated",
			Help: "1 while the client holds a session token",
		}),
		SessionChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "garage_client_session_transitions_total",
			Help: "Session state transitions by resulting state",
		}, []string{"state"}),
		UnreadCount: f.NewGauge(prometheus.GaugeOpts{
			Name: "garage_client_unread_notifications",
			Help: "Current unread notification count",
		}),
		ToastsShown: f.NewCounterVec(prometheus.CounterOpts{
			Name: "garage_client_toasts_shown_total",
			Help: "Toasts shown by severity",
		}, []string{"severity"}),
		RealtimeState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "garage_client_realtime_state",
			Help: "1 for the current realtime connection state",
		}, []string{"state"}),
		TransportErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "garage_client_realtime_transport_errors_total",
			Help: "Realtime transport failures",
		}),
	}
}

func (m *Metrics) ObserveSession(s model.Session) {
	if s.Authenticated() {
		m.Authenticated.Set(1)
	} else {
		m.Authenticated.Set(0)
	}
	m.SessionChanges.WithLabelValues(string(s.State)).Inc()
}

func (m *Metrics) ObserveUnread(count int) {
	m.UnreadCount.Set(float64(count))
}

func (m *Metrics) ObserveToast(t model.Toast) {
	m.ToastsShown.WithLabelValues(string(t.Severity)).Inc()
}

func (m *Metrics) ObserveRealtime(state model.ConnState) {
	for _, s := range []model.ConnState{model.ConnDisconnected, model.ConnConnecting, model.ConnConnected} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.RealtimeState.WithLabelValues(string(s)).Set(v)
	}
}

func (m *Metrics) ObserveTransportError(error) {
	m.TransportErrors.Inc()
}

// Handler serves the collectors gathered by g in the exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
