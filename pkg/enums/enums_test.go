package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatusTerminal(t *testing.T) {
	assert.False(t, PaymentStatusPending.IsTerminal())
	assert.False(t, PaymentStatusProcessing.IsTerminal())
	for _, status := range []PaymentStatus{PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded} {
		assert.True(t, status.IsTerminal(), status)
	}
}

func TestOrderStatusCancellable(t *testing.T) {
	assert.True(t, OrderStatusPending.Cancellable())
	assert.True(t, OrderStatusPaid.Cancellable())
	assert.False(t, OrderStatusDelivered.Cancellable())
	assert.False(t, OrderStatusCancelled.Cancellable())
	assert.False(t, OrderStatusRefunded.Cancellable())
}

func TestParseHelpersNormalizeInput(t *testing.T) {
	method, err := ParsePaymentMethod(" COD ")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodCOD, method)

	gateway, err := ParsePaymentGateway("Razorpay")
	require.NoError(t, err)
	assert.Equal(t, PaymentGatewayRazorpay, gateway)

	currency, err := ParseCurrency("inr")
	require.NoError(t, err)
	assert.Equal(t, CurrencyINR, currency)

	status, err := ParseOrderStatus("PAID")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPaid, status)

	_, err = ParsePaymentMethod("bitcoin")
	assert.Error(t, err)
	_, err = ParsePaymentStatus("settled")
	assert.Error(t, err)
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, EventPaymentSettled.IsValid())
	assert.False(t, OutboxEventType("payment_refunded").IsValid())
	assert.True(t, AggregateOrder.IsValid())
	assert.False(t, OutboxAggregateType("cart").IsValid())
	assert.True(t, OutboxDLQReasonNonRetryable.IsValid())
	assert.False(t, Currency("inr").IsValid())
}
