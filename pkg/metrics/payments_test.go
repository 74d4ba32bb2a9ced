package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPaymentMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)
	m.IncOrderMaterialized()
	m.IncStarted("razorpay")
	m.IncStarted("razorpay")
	m.IncInitFailure("stripe")
	m.IncSettlement("razorpay", OutcomeCompleted)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "storefront_payments_started_total", "gateway", "razorpay"); err != nil {
		t.Fatalf("fetch started: %v", err)
	} else if got != 2 {
		t.Fatalf("expected started=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "storefront_payments_init_failures_total", "gateway", "stripe"); err != nil {
		t.Fatalf("fetch init failures: %v", err)
	} else if got != 1 {
		t.Fatalf("expected init failures=1, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "storefront_payments_settlements_total", "outcome", OutcomeCompleted); err != nil {
		t.Fatalf("fetch settlements: %v", err)
	} else if got != 1 {
		t.Fatalf("expected settlements=1, got %f", got)
	}
	mf := findMetricFamily(mfs, "storefront_orders_materialized_total")
	if mf == nil || mf.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one materialized order")
	}
}

func TestNilPaymentMetricsIsNoop(t *testing.T) {
	var m *PaymentMetrics
	m.IncStarted("x")
	m.IncSettlement("x", "y")
	NewPaymentMetrics(nil).IncOrderMaterialized()
}
