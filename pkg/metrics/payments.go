package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Settlement outcomes.
const (
	OutcomeCompleted      = "completed"
	OutcomeFailed         = "failed"
	OutcomeAlreadySettled = "already_settled"
	OutcomeSignature      = "signature_invalid"
	OutcomeUnavailable    = "gateway_unavailable"
)

// PaymentMetrics counts checkout and settlement transitions.
type PaymentMetrics struct {
	orders      prometheus.Counter
	started     *prometheus.CounterVec
	initFailure *prometheus.CounterVec
	settled     *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment counters on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	orders := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_materialized_total",
		Help: "Orders created from a cart at checkout.",
	})
	started := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_payments_started_total",
		Help: "Payment sessions opened, by gateway.",
	}, []string{"gateway"})
	initFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_payments_init_failures_total",
		Help: "Gateway order creations that failed, by gateway.",
	}, []string{"gateway"})
	settled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_payments_settlements_total",
		Help: "Settlement callbacks processed, by gateway and outcome.",
	}, []string{"gateway", "outcome"})
	reg.MustRegister(orders, started, initFailure, settled)
	return &PaymentMetrics{
		orders:      orders,
		started:     started,
		initFailure: initFailure,
		settled:     settled,
	}
}

// IncOrderMaterialized counts one committed checkout.
func (p *PaymentMetrics) IncOrderMaterialized() {
	if p == nil || p.orders == nil {
		return
	}
	p.orders.Inc()
}

// IncStarted counts one payment session for gateway.
func (p *PaymentMetrics) IncStarted(gateway string) {
	if p == nil || p.started == nil {
		return
	}
	p.started.WithLabelValues(normalizeLabel(gateway)).Inc()
}

// IncInitFailure counts one failed gateway order creation.
func (p *PaymentMetrics) IncInitFailure(gateway string) {
	if p == nil || p.initFailure == nil {
		return
	}
	p.initFailure.WithLabelValues(normalizeLabel(gateway)).Inc()
}

// IncSettlement counts one settlement callback by outcome.
func (p *PaymentMetrics) IncSettlement(gateway, outcome string) {
	if p == nil || p.settled == nil {
		return
	}
	p.settled.WithLabelValues(normalizeLabel(gateway), normalizeLabel(outcome)).Inc()
}
