package gateway

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func TestRegistryResolvesDefault(t *testing.T) {
	rp := NewFake(enums.PaymentGatewayRazorpay, "s1")
	st := NewFake(enums.PaymentGatewayStripe, "s2")

	reg, err := NewRegistry(enums.PaymentGatewayRazorpay, rp, st, nil)
	require.NoError(t, err)

	gw, err := reg.Get("")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentGatewayRazorpay, gw.Name())

	gw, err = reg.Get(" Stripe ")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentGatewayStripe, gw.Name())

	_, err = reg.Get("square")
	assert.Error(t, err)
	assert.Len(t, reg.Names(), 2)
}

func TestRegistryRejectsMissingDefault(t *testing.T) {
	_, err := NewRegistry(enums.PaymentGatewaySquare, NewFake(enums.PaymentGatewayRazorpay, "s"))
	assert.Error(t, err)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(enums.PaymentGatewayRazorpay,
		NewFake(enums.PaymentGatewayRazorpay, "a"),
		NewFake(enums.PaymentGatewayRazorpay, "b"))
	assert.Error(t, err)
}

func TestVerifyPair(t *testing.T) {
	sig := SignPair("secret", "order_1", "pay_1")

	assert.True(t, VerifyPair("secret", "order_1", "pay_1", sig))
	assert.False(t, VerifyPair("secret", "order_1", "pay_2", sig))
	assert.False(t, VerifyPair("other", "order_1", "pay_1", sig))
	assert.False(t, VerifyPair("secret", "order_1", "pay_1", "not-hex"))
	assert.False(t, VerifyPair("", "order_1", "pay_1", sig))
	assert.False(t, VerifyPair("secret", "order_1", "pay_1", ""))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(27000), ToMinor(decimal.RequireFromString("270.00")))
	assert.Equal(t, int64(1235), ToMinor(decimal.RequireFromString("12.345")))
	assert.True(t, FromMinor(19705).Equal(decimal.RequireFromString("197.05")))
}

func TestFakeGateway(t *testing.T) {
	f := NewFake(enums.PaymentGatewayRazorpay, "secret")
	order, err := f.CreateOrder(context.Background(), CreateOrderRequest{AmountMinor: 100, Currency: enums.CurrencyINR, Receipt: "ORD-1"})
	require.NoError(t, err)
	assert.Equal(t, "order_fake_1", order.ID)

	f.SetPayment(RemotePayment{ID: "pay_1", OrderID: order.ID, State: PaymentCaptured})
	p, err := f.FetchPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.True(t, p.Captured())
	assert.Equal(t, 1, f.Fetches())

	_, err = f.FetchPayment(context.Background(), "missing")
	assert.Error(t, err)
}
