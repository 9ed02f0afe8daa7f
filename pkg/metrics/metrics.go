package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sakashimaa/order-orchestrator/pkg/breaker"
)

type Metrics struct {
	RemoteCalls   *prometheus.CounterVec
	RemoteLatency *prometheus.HistogramVec
	BreakerState  *prometheus.GaugeVec
	OrdersCreated prometheus.Counter
	OrderFailures *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RemoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ordering",
			Subsystem: "remote",
			Name:      "calls_total",
			Help:      "Remote service calls by outcome.",
		}, []string{"service", "endpoint", "outcome"}),
		RemoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ordering",
			Subsystem: "remote",
			Name:      "call_duration_ms",
			Help:      "Remote service call latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"service", "endpoint"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ordering",
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}, []string{"dependency"}),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ordering",
			Name:      "orders_created_total",
			Help:      "Orders persisted.",
		}),
		OrderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ordering",
			Name:      "order_failures_total",
			Help:      "Failed orchestration requests by operation and error kind.",
		}, []string{"operation", "kind"}),
	}

	reg.MustRegister(m.RemoteCalls, m.RemoteLatency, m.BreakerState, m.OrdersCreated, m.OrderFailures)
	return m
}

func (m *Metrics) ObserveCall(service, endpoint, outcome string, elapsed time.Duration) {
	m.RemoteCalls.WithLabelValues(service, endpoint, outcome).Inc()
	m.RemoteLatency.WithLabelValues(service, endpoint).Observe(float64(elapsed.Milliseconds()))
}

func (m *Metrics) ObserveBreaker(name string, state breaker.State) {
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) OrderCreated() {
	m.OrdersCreated.Inc()
}

func (m *Metrics) OrderFailed(operation, kind string) {
	m.OrderFailures.WithLabelValues(operation, kind).Inc()
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
