package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors exported by the order service.
type Metrics struct {
	OrdersCreated *prometheus.CounterVec
	Transitions   *prometheus.CounterVec
	PaymentEvents *prometheus.CounterVec
	RPCLatencyMS  *prometheus.HistogramVec
	gatherer      prometheus.Gatherer
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orders",
			Name:      "created_total",
			Help:      "Orders created, by payment session outcome.",
		}, []string{"payment_session"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orders",
			Name:      "status_transitions_total",
			Help:      "Applied order status transitions.",
		}, []string{"from", "to", "source"}),
		PaymentEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orders",
			Name:      "payment_events_total",
			Help:      "Payment confirmation events, by outcome.",
		}, []string{"outcome"}),
		RPCLatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orders",
			Name:      "rpc_duration_ms",
			Help:      "Outbound RPC latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"pattern", "outcome"}),
		gatherer: reg,
	}
	reg.MustRegister(m.OrdersCreated, m.Transitions, m.PaymentEvents, m.RPCLatencyMS)
	return m
}

// ObserveRPC records the latency of one outbound call started at start.
func (m *Metrics) ObserveRPC(pattern string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RPCLatencyMS.WithLabelValues(pattern, outcome).Observe(float64(time.Since(start).Milliseconds()))
}

// Handler serves the registered collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
