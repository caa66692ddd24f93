package gateway

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/StricklySoft/agentgate/pkg/auth"
	"github.com/StricklySoft/agentgate/pkg/models"
)

const metricsNamespace = "agentgate"

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	invocations        *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	keySetRefreshes    *prometheus.CounterVec
	keySetSize         prometheus.Gauge
	downstreamDuration *prometheus.HistogramVec
	inFlight           prometheus.Gauge
}

// NewMetrics registers the gateway collectors with registerer. A nil
// registerer uses [prometheus.DefaultRegisterer]. Registering twice with
// the same registerer panics, so create one Metrics per registry.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)
	return &Metrics{
		invocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "gateway",
				Name:      "invocations_total",
				Help:      "Invocations handled, by terminal state and HTTP status",
			},
			[]string{"outcome", "status"},
		),
		validationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "auth",
				Name:      "validation_failures_total",
				Help:      "Rejected bearer tokens, by failure kind",
			},
			[]string{"kind"},
		),
		keySetRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "auth",
				Name:      "jwks_refreshes_total",
				Help:      "Key set refresh attempts, by result",
			},
			[]string{"result"},
		),
		keySetSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "auth",
				Name:      "jwks_keys",
				Help:      "Signing keys in the current key set generation",
			},
		),
		downstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "runtime",
				Name:      "invoke_duration_seconds",
				Help:      "Agent runtime invocation latency in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"result"},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "gateway",
				Name:      "in_flight_invocations",
				Help:      "Invocations currently being handled",
			},
		),
	}
}

// ObserveRefresh records a key set refresh. Its signature matches
// [auth.RefreshHook].
func (m *Metrics) ObserveRefresh(keys int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.keySetRefreshes.WithLabelValues("error").Inc()
		return
	}
	m.keySetRefreshes.WithLabelValues("success").Inc()
	m.keySetSize.Set(float64(keys))
}

func (m *Metrics) validationFailure(kind auth.FailureKind) {
	if m == nil {
		return
	}
	label := kind.String()
	if label == "" {
		label = "unknown"
	}
	m.validationFailures.WithLabelValues(label).Inc()
}

func (m *Metrics) downstream(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.downstreamDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) begin() {
	if m != nil {
		m.inFlight.Inc()
	}
}

func (m *Metrics) end(inv *models.Invocation) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.invocations.WithLabelValues(inv.State.String(), strconv.Itoa(inv.Status)).Inc()
}
