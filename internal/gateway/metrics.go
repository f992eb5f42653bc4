package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the Prometheus instruments exported by the gateway.
// Instruments register against an injected registry so tests can use
// isolated registries without duplicate-registration panics.
type Metrics struct {
	TurnsAppended     *prometheus.CounterVec
	SessionsWiped     prometheus.Counter
	CompletionLatency prometheus.Histogram
	CompletionErrors  prometheus.Counter
	WSConnections     prometheus.Gauge
}

// NewMetrics creates and registers all gateway instruments.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TurnsAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_appended_total",
			Help:      "Turns appended to session logs by role.",
		}, []string{"role"}),
		SessionsWiped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_wiped_total",
			Help:      "Sessions removed via wipe.",
		}),
		CompletionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_latency_ms",
			Help:      "Completion endpoint round-trip latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		CompletionErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_errors_total",
			Help:      "Failed completion endpoint calls.",
		}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open chat WebSocket connections.",
		}),
	}
}

// RegisterSessionCount exports known_sessions as a gauge backed by the
// given counter function. Registered separately from NewMetrics because
// the engine is only resolved at Start.
func RegisterSessionCount(reg prometheus.Registerer, namespace string, count func() int) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "known_sessions",
		Help:      "Sessions currently known to the memory engine.",
	}, func() float64 { return float64(count()) })
}

// ObserveCompletionLatency records a completion round trip.
func (m *Metrics) ObserveCompletionLatency(d time.Duration) {
	m.CompletionLatency.Observe(float64(d.Milliseconds()))
}
