package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const (
	signatureFailure = "signature verification failed"
	duplicateCapture = "order already paid"
)

// Callback is the success redirect posted by the gateway checkout widget.
type Callback struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// FailureCallback is the failure redirect posted by the gateway checkout widget.
type FailureCallback struct {
	GatewayOrderID string
	Description    string
}

// Outcome is the settled state of a payment attempt.
type Outcome struct {
	PaymentID      string
	OrderNumber    string
	Gateway        enums.PaymentGateway
	Status         enums.PaymentStatus
	OrderStatus    enums.OrderStatus
	FailureReason  string
	AlreadySettled bool
}

func outcomeOf(payment *models.Payment, order *models.Order) *Outcome {
	out := &Outcome{
		PaymentID: payment.PaymentID,
		Gateway:   payment.Gateway,
		Status:    payment.Status,
	}
	if payment.FailureReason != nil {
		out.FailureReason = *payment.FailureReason
	}
	if order != nil {
		out.OrderNumber = order.OrderNumber
		out.OrderStatus = order.Status
	}
	return out
}

// Settle reconciles a success callback against the gateway. It is safe to
// call repeatedly: terminal attempts are reported without mutation.
func (s *service) Settle(ctx context.Context, cb Callback) (*Outcome, error) {
	cb.GatewayOrderID = strings.TrimSpace(cb.GatewayOrderID)
	cb.GatewayPaymentID = strings.TrimSpace(cb.GatewayPaymentID)
	cb.Signature = strings.TrimSpace(cb.Signature)
	if cb.GatewayOrderID == "" || cb.GatewayPaymentID == "" || cb.Signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing payment callback parameters").
			WithDetails(map[string]string{
				"gateway_order_id":   "required",
				"gateway_payment_id": "required",
				"signature":          "required",
			})
	}

	deliveryID := idempotency.DeliveryID(cb.GatewayOrderID, cb.GatewayPaymentID)
	if s.guard != nil {
		seen, err := s.guard.Seen(ctx, settlementConsumer, deliveryID)
		switch {
		case err != nil:
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "settlement guard unavailable")
			}
		case seen:
			return s.currentOutcome(ctx, cb.GatewayOrderID)
		}
	}

	outcome, err := s.settle(ctx, cb)
	if err != nil && s.guard != nil {
		if delErr := s.guard.Release(ctx, settlementConsumer, deliveryID); delErr != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", delErr.Error()), "settlement guard release failed")
		}
	}
	return outcome, err
}

func (s *service) settle(ctx context.Context, cb Callback) (*Outcome, error) {
	var (
		outcome  *Outcome
		settled  *models.Payment
		sigError error
		result   string
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		payment, err := repo.LockLatestByGatewayOrderID(ctx, cb.GatewayOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return paymentNotFound()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payment")
		}
		order, err := ordersRepo.LockByID(ctx, payment.OrderID)
		if err != nil {
			return orderLookupError(err)
		}

		if payment.Status.IsTerminal() {
			outcome = outcomeOf(payment, order)
			outcome.AlreadySettled = true
			result = metrics.OutcomeAlreadySettled
			return nil
		}

		gw, err := s.gateways.Get(payment.Gateway.String())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve gateway")
		}

		gatewayPaymentID := cb.GatewayPaymentID
		signature := cb.Signature
		payment.GatewayPaymentID = &gatewayPaymentID
		payment.GatewaySignature = &signature

		if !gw.VerifySignature(cb.GatewayOrderID, cb.GatewayPaymentID, cb.Signature) {
			if err := s.markFailed(ctx, tx, payment, order, signatureFailure, outbox.ActorRef{Source: outbox.SourceGateway}); err != nil {
				return err
			}
			outcome = outcomeOf(payment, order)
			settled = payment
			result = metrics.OutcomeSignature
			sigError = pkgerrors.New(pkgerrors.CodeSignature, "payment signature verification failed")
			return nil
		}

		if err := repo.UpdateFields(ctx, payment.ID, map[string]any{
			"gateway_payment_id": gatewayPaymentID,
			"gateway_signature":  signature,
			"status":             enums.PaymentStatusProcessing,
			"updated_at":         s.now(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment processing")
		}
		payment.Status = enums.PaymentStatusProcessing

		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		remote, err := gw.FetchPayment(callCtx, cb.GatewayPaymentID)
		cancel()
		if err != nil {
			result = metrics.OutcomeUnavailable
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unavailable")
		}
		payment.GatewayResponse = remote.Raw

		switch {
		case remote.OrderID != "" && remote.OrderID != cb.GatewayOrderID:
			err = s.markFailed(ctx, tx, payment, order, "payment does not belong to this order", outbox.ActorRef{Source: outbox.SourceGateway})
			result = metrics.OutcomeFailed
		case remote.Captured() && order.PaymentStatus:
			// Another attempt already paid the order. The capture is failed
			// here and the failure event carries the reason for a refund.
			err = s.markFailed(ctx, tx, payment, order, duplicateCapture, outbox.ActorRef{Source: outbox.SourceGateway})
			result = metrics.OutcomeFailed
		case remote.Captured():
			err = s.markCompleted(ctx, tx, payment, order)
			result = metrics.OutcomeCompleted
		default:
			err = s.markFailed(ctx, tx, payment, order, fmt.Sprintf("payment status: %s", remote.State), outbox.ActorRef{Source: outbox.SourceGateway})
			result = metrics.OutcomeFailed
		}
		if err != nil {
			return err
		}
		outcome = outcomeOf(payment, order)
		settled = payment
		return nil
	})
	if result != "" {
		gatewayName := ""
		if outcome != nil {
			gatewayName = outcome.Gateway.String()
		}
		s.metrics.IncSettlement(gatewayName, result)
	}
	if err != nil {
		if s.logg != nil {
			logCtx := s.logg.WithField(ctx, "gateway_order_id", cb.GatewayOrderID)
			s.logg.Error(logCtx, "payment.settlement_failed", err)
		}
		return nil, err
	}
	if settled != nil {
		msg := "payment.settled"
		if settled.Status == enums.PaymentStatusFailed {
			msg = "payment.failed"
		}
		s.logTransition(ctx, settled, outcome.OrderNumber, msg)
	}
	if sigError != nil {
		return outcome, sigError
	}
	return outcome, nil
}

// Fail records a failure callback. Only attempts still awaiting the buyer move.
func (s *service) Fail(ctx context.Context, cb FailureCallback) (*Outcome, error) {
	gatewayOrderID := strings.TrimSpace(cb.GatewayOrderID)
	if gatewayOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id is required").
			WithDetails(map[string]string{"gateway_order_id": "required"})
	}
	reason := strings.TrimSpace(cb.Description)
	if reason == "" {
		reason = defaultFailure
	}

	var (
		outcome *Outcome
		failed  *models.Payment
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		payment, err := s.repo.WithTx(tx).LockLatestByGatewayOrderID(ctx, gatewayOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return paymentNotFound()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payment")
		}
		order, err := s.orders.WithTx(tx).LockByID(ctx, payment.OrderID)
		if err != nil {
			return orderLookupError(err)
		}
		if payment.Status != enums.PaymentStatusPending && payment.Status != enums.PaymentStatusProcessing {
			outcome = outcomeOf(payment, order)
			outcome.AlreadySettled = true
			return nil
		}
		if err := s.markFailed(ctx, tx, payment, order, reason, outbox.ActorRef{Source: outbox.SourceGateway}); err != nil {
			return err
		}
		outcome = outcomeOf(payment, order)
		failed = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	if failed != nil {
		s.metrics.IncSettlement(failed.Gateway.String(), metrics.OutcomeFailed)
		s.logTransition(ctx, failed, outcome.OrderNumber, "payment.failed")
	}
	return outcome, nil
}

func (s *service) markCompleted(ctx context.Context, tx *gorm.DB, payment *models.Payment, order *models.Order) error {
	now := s.now()
	fields := map[string]any{
		"status":     enums.PaymentStatusCompleted,
		"paid_at":    now,
		"updated_at": now,
	}
	if len(payment.GatewayResponse) > 0 {
		fields["gateway_response"] = payment.GatewayResponse
	}
	if err := s.repo.WithTx(tx).UpdateFields(ctx, payment.ID, fields); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete payment")
	}
	if err := s.orders.WithTx(tx).MarkPaid(ctx, order.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}
	payment.Status = enums.PaymentStatusCompleted
	payment.PaidAt = &now
	order.PaymentStatus = true
	order.Status = enums.OrderStatusPaid
	return s.emitSettled(ctx, tx, payment, order, &outbox.ActorRef{Source: outbox.SourceGateway})
}

// markFailed fails the attempt. The order is marked failed only while unpaid.
func (s *service) markFailed(ctx context.Context, tx *gorm.DB, payment *models.Payment, order *models.Order, reason string, actor outbox.ActorRef) error {
	fields := map[string]any{
		"status":         enums.PaymentStatusFailed,
		"failure_reason": reason,
		"updated_at":     s.now(),
	}
	if payment.GatewayPaymentID != nil {
		fields["gateway_payment_id"] = *payment.GatewayPaymentID
	}
	if payment.GatewaySignature != nil {
		fields["gateway_signature"] = *payment.GatewaySignature
	}
	if len(payment.GatewayResponse) > 0 {
		fields["gateway_response"] = payment.GatewayResponse
	}
	if err := s.repo.WithTx(tx).UpdateFields(ctx, payment.ID, fields); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail payment")
	}
	payment.Status = enums.PaymentStatusFailed
	payment.FailureReason = &reason

	if !order.PaymentStatus {
		if err := s.orders.WithTx(tx).UpdateStatus(ctx, order.ID, enums.OrderStatusFailed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order failed")
		}
		order.Status = enums.OrderStatusFailed
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Actor:         &actor,
		Data: payloads.PaymentFailedEvent{
			PaymentID:   payment.PaymentID,
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Gateway:     payment.Gateway,
			Reason:      reason,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment failed")
	}
	return nil
}

// currentOutcome reports the stored state for a duplicate delivery. A
// delivery that is still being reconciled is reported as a conflict.
func (s *service) currentOutcome(ctx context.Context, gatewayOrderID string) (*Outcome, error) {
	payment, err := s.repo.FindLatestByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, paymentNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if !payment.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment settlement in progress").
			WithDetails(map[string]any{"status": payment.Status})
	}
	outcome := outcomeOf(payment, nil)
	outcome.AlreadySettled = true
	if order, err := s.orders.FindByID(ctx, payment.OrderID); err == nil {
		outcome.OrderNumber = order.OrderNumber
		outcome.OrderStatus = order.Status
	}
	return outcome, nil
}
