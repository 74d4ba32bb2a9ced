package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/gateway"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
)

func signedCallback(orderID, paymentID string) Callback {
	return Callback{
		GatewayOrderID:   orderID,
		GatewayPaymentID: paymentID,
		Signature:        gateway.SignPair(gatewaySecret, orderID, paymentID),
	}
}

func TestSettleCapturedPayment(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodCard, "270.00")
	checkout := f.start(t, order)
	f.gateway.SetPayment(gateway.RemotePayment{ID: "pay_1", OrderID: checkout.GatewayOrderID, State: gateway.PaymentCaptured, AmountMinor: 27000})

	out, err := f.svc.Settle(context.Background(), signedCallback(checkout.GatewayOrderID, "pay_1"))
	require.NoError(t, err)
	assert.False(t, out.AlreadySettled)
	assert.Equal(t, enums.PaymentStatusCompleted, out.Status)
	assert.Equal(t, enums.OrderStatusPaid, out.OrderStatus)
	assert.Equal(t, order.OrderNumber, out.OrderNumber)

	reloaded, payment := f.reload(t, order)
	assert.True(t, reloaded.PaymentStatus)
	assert.Equal(t, enums.OrderStatusPaid, reloaded.Status)
	assert.Equal(t, enums.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, "pay_1", *payment.GatewayPaymentID)
	assert.NotNil(t, payment.GatewaySignature)
	assert.NotNil(t, payment.PaidAt)
	assert.Equal(t, []enums.OutboxEventType{enums.EventPaymentStarted, enums.EventPaymentSettled}, f.eventTypes(t, payment.ID))
}

func TestSettleRedeliveryIsNoop(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodCard, "50.00")
	checkout := f.start(t, order)
	f.gateway.SetPayment(gateway.RemotePayment{ID: "pay_1", OrderID: checkout.GatewayOrderID, State: gateway.PaymentCaptured})
	cb := signedCallback(checkout.GatewayOrderID, "pay_1")

	_, err := f.svc.Settle(context.Background(), cb)
	require.NoError(t, err)

	// guarded duplicate
	out, err := f.svc.Settle(context.Background(), cb)
	require.NoError(t, err)
	assert.True(t, out.AlreadySettled)
	assert.Equal(t, enums.PaymentStatusCompleted, out.Status)

	// guard expired; the terminal row short-circuits
	f.guard.seen = map[string]bool{}
	out, err = f.svc.Settle(context.Background(), cb)
	require.NoError(t, err)
	assert.True(t, out.AlreadySettled)
	assert.Equal(t, enums.OrderStatusPaid, out.OrderStatus)

	assert.Equal(t, 1, f.gateway.Fetches())
	_, payment := f.reload(t, order)
	assert.Len(t, f.eventTypes(t, payment.ID), 2)
}

func TestSettleSecondCaptureDoesNotCompleteTwice(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodCard, "120.00")
	first := f.start(t, order)
	second := f.start(t, order)
	require.NotEqual(t, first.GatewayOrderID, second.GatewayOrderID)

	f.gateway.SetPayment(gateway.RemotePayment{ID: "pay_a", OrderID: first.GatewayOrderID, State: gateway.PaymentCaptured})
	f.gateway.SetPayment(gateway.RemotePayment{ID: "pay_b", OrderID: second.GatewayOrderID, State: gateway.PaymentCaptured})

	out, err := f.svc.Settle(context.Background(), signedCallback(first.GatewayOrderID, "pay_a"))
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, out.Status)

	out, err = f.svc.Settle(context.Background(), signedCallback(second.GatewayOrderID, "pay_b"))
	require.NoError(t, err)
	assert.False(t, out.AlreadySettled)
	assert.Equal(t, enums.PaymentStatusFailed, out.Status)
	assert.Equal(t, duplicateCapture, out.FailureReason)
	assert.Equal(t, enums.OrderStatusPaid, out.OrderStatus)

	var completed int64
	require.NoError(t, f.conn.Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", order.ID, enums.PaymentStatusCompleted).
		Count(&completed).Error)
	assert.EqualValues(t, 1, completed)

	reloaded, _ := f.reload(t, order)
	assert.True(t, reloaded.PaymentStatus)
	assert.Equal(t, enums.OrderStatusPaid, reloaded.Status)

	duplicate, err := f.repo.FindLatestByGatewayOrderID(context.Background(), second.GatewayOrderID)
	require.NoError(t, err)
	assert.Equal(t, []enums.OutboxEventType{enums.EventPaymentStarted, enums.EventPaymentFailed}, f.eventTypes(t, duplicate.ID))
}

func TestSettleGuardedDeliveryInFlightConflicts(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodCard, "50.00")
	checkout := f.start(t, order)

	// another worker holds the delivery but has not committed yet
	seen, err := f.guard.Seen(context.Background(), settlementConsumer,
		idempotency.DeliveryID(checkout.GatewayOrderID, "pay_1"))
	require.NoError(t, err)
	require.False(t, seen)

	out, err := f.svc.Settle(context.Background(), signedCallback(checkout.GatewayOrderID, "pay_1"))
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Zero(t, f.gateway.Fetches())

	_, payment := f.reload(t, order)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)
}

func TestSettleSignatureMismatch(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodCard, "50.00")
	checkout := f.start(t, order)

	cb := signedCallback(checkout.GatewayOrderID, "pay_1")
	cb.Signature = gateway.SignPair("wrong", checkout.GatewayOrderID, "pay_1")

	out, err := f.svc.Settle(context.Background(), cb)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSignature))
	require.NotNil(t, out)
	assert.Equal(t, enums.PaymentStatusFailed, out.Status)

	reloaded, payment := f.reload(t, order)
	assert.Equal(t, enums.OrderStatusFailed, reloaded.Status)
	assert.False(t, reloaded.PaymentStatus)
	assert.Equal(t, enums.PaymentStatusFailed, payment.Status)
	assert.Equal(t, signatureFailure, *payment.FailureReason)
	assert.Zero(t, f.gateway.Fetches())
	assert.Empty(t, f.guard.seen)
}

func TestSettleNotCapturedFails(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodCard, "50.00")
	checkout := f.start(t, order)
	f.gateway.SetPayment(gateway.RemotePayment{ID: "pay_1", OrderID: checkout.GatewayOrderID, State: gateway.PaymentAuthorized})

	out, err := f.svc.Settle(context.Background(), signedCallback(checkout.GatewayOrderID, "pay_1"))
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, out.Status)
	assert.Equal(t, "payment status: authorized", out.FailureReason)

	reloaded, payment := f.reload(t, order)
	assert.Equal(t, enums.OrderStatusFailed, reloaded.Status)
	assert.Equal(t, []enums.OutboxEventType{enums.EventPaymentStarted, enums.EventPaymentFailed}, f.eventTypes(t, payment.ID))
}

func TestSettleRejectsForeignPayment(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodCard, "50.00")
	checkout := f.start(t, order)
	f.gateway.SetPayment(gateway.RemotePayment{ID: "pay_1", OrderID: "order_other", State: gateway.PaymentCaptured})

	out, err := f.svc.Settle(context.Background(), signedCallback(checkout.GatewayOrderID, "pay_1"))
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, out.Status)

	reloaded, _ := f.reload(t, order)
	assert.False(t, reloaded.PaymentStatus)
}

func TestSettleGatewayUnavailableRollsBack(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodCard, "50.00")
	checkout := f.start(t, order)
	f.gateway.FetchErr = errors.New("timeout")

	_, err := f.svc.Settle(context.Background(), signedCallback(checkout.GatewayOrderID, "pay_1"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Empty(t, f.guard.seen)

	reloaded, payment := f.reload(t, order)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)
	assert.Nil(t, payment.GatewayPaymentID)
	assert.Equal(t, enums.OrderStatusPending, reloaded.Status)

	// a retry after recovery settles normally
	f.gateway.FetchErr = nil
	f.gateway.SetPayment(gateway.RemotePayment{ID: "pay_1", OrderID: checkout.GatewayOrderID, State: gateway.PaymentCaptured})
	out, err := f.svc.Settle(context.Background(), signedCallback(checkout.GatewayOrderID, "pay_1"))
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, out.Status)
}

func TestSettleUnknownGatewayOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Settle(context.Background(), signedCallback("order_missing", "pay_1"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Settle(context.Background(), Callback{GatewayOrderID: "order_1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestFailDefaultsDescription(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodCard, "50.00")
	checkout := f.start(t, order)

	out, err := f.svc.Fail(context.Background(), FailureCallback{GatewayOrderID: checkout.GatewayOrderID})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, out.Status)
	assert.Equal(t, defaultFailure, out.FailureReason)

	reloaded, _ := f.reload(t, order)
	assert.Equal(t, enums.OrderStatusFailed, reloaded.Status)
}

func TestFailIgnoresTerminalPayment(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodCard, "50.00")
	checkout := f.start(t, order)
	f.gateway.SetPayment(gateway.RemotePayment{ID: "pay_1", OrderID: checkout.GatewayOrderID, State: gateway.PaymentCaptured})
	_, err := f.svc.Settle(context.Background(), signedCallback(checkout.GatewayOrderID, "pay_1"))
	require.NoError(t, err)

	out, err := f.svc.Fail(context.Background(), FailureCallback{GatewayOrderID: checkout.GatewayOrderID, Description: "user closed"})
	require.NoError(t, err)
	assert.True(t, out.AlreadySettled)
	assert.Equal(t, enums.PaymentStatusCompleted, out.Status)

	reloaded, _ := f.reload(t, order)
	assert.Equal(t, enums.OrderStatusPaid, reloaded.Status)
}

func TestChargeThenSettle(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodCard, "75.50")
	checkout := f.start(t, order)

	res, err := f.svc.Charge(context.Background(), ChargeInput{UserID: f.userID, GatewayOrderID: checkout.GatewayOrderID, SourceID: "cnon:ok"})
	require.NoError(t, err)

	out, err := f.svc.Settle(context.Background(), Callback{
		GatewayOrderID:   res.GatewayOrderID,
		GatewayPaymentID: res.GatewayPaymentID,
		Signature:        res.Signature,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, out.Status)

	_, err = f.svc.Charge(context.Background(), ChargeInput{UserID: f.userID, GatewayOrderID: checkout.GatewayOrderID, SourceID: "cnon:ok"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestChargeScopedToOwner(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodCard, "75.50")
	checkout := f.start(t, order)
	_, err := f.svc.Charge(context.Background(), ChargeInput{UserID: uuid.New(), GatewayOrderID: checkout.GatewayOrderID, SourceID: "cnon:ok"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
