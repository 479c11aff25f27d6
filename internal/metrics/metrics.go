package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the operator-facing alerting surface. Consistency anomalies
// that are deliberately not surfaced to customers (oversold stock on a paid
// order) land here.
type Metrics struct {
	registry *prometheus.Registry

	Reconciliations *prometheus.CounterVec
	StockUnderflows *prometheus.CounterVec
	WebhookEvents   *prometheus.CounterVec
	OrdersCreated   prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "reconciliations_total",
			Help:      "Reconciliation transitions applied, by outcome.",
		}, []string{"outcome"}),
		StockUnderflows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "stock_underflows_total",
			Help:      "Conditional stock decrements that found insufficient stock on a paid order.",
		}, []string{"product_id"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "webhook_events_total",
			Help:      "Webhook deliveries received, by event type and result.",
		}, []string{"type", "result"}),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "orders_created_total",
			Help:      "Orders successfully assembled.",
		}),
	}
	reg.MustRegister(m.Reconciliations, m.StockUnderflows, m.WebhookEvents, m.OrdersCreated)
	return m
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
