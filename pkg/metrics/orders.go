package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics records checkout and lifecycle counters.
type OrderMetrics struct {
	created           *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	insufficientStock prometheus.Counter
	webhookEvents     *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders placed, labeled by payment method.",
	}, []string{"payment_method"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Order status transitions, labeled by target status.",
	}, []string{"to"})
	insufficientStock := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_insufficient_stock_total",
		Help: "Checkout attempts rejected for insufficient stock.",
	})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Payment webhook deliveries, labeled by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(created, transitions, insufficientStock, webhookEvents)
	return &OrderMetrics{
		created:           created,
		transitions:       transitions,
		insufficientStock: insufficientStock,
		webhookEvents:     webhookEvents,
	}
}

// IncCreated counts a placed order.
func (m *OrderMetrics) IncCreated(paymentMethod string) {
	if m == nil || m.created == nil {
		return
	}
	m.created.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
}

// IncTransition counts a lifecycle transition into the given status.
func (m *OrderMetrics) IncTransition(to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(to)).Inc()
}

// IncInsufficientStock counts a rejected checkout.
func (m *OrderMetrics) IncInsufficientStock() {
	if m == nil || m.insufficientStock == nil {
		return
	}
	m.insufficientStock.Inc()
}

// IncWebhookEvent counts a webhook delivery outcome.
func (m *OrderMetrics) IncWebhookEvent(outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(outcome)).Inc()
}
