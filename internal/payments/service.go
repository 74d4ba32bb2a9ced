// Package payments opens gateway payment sessions for orders and reconciles
// their settlement callbacks.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/gateway"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const (
	maxIDAttempts      = 3
	settlementConsumer = "settlement"
	defaultFailure     = "Payment failed"
	expiredReason      = "payment session expired"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// settlementGuard collapses concurrent deliveries of the same callback.
type settlementGuard interface {
	Seen(ctx context.Context, consumer, id string) (bool, error)
	Release(ctx context.Context, consumer, id string) error
}

// Service opens payment sessions and reconciles their outcome.
type Service interface {
	Start(ctx context.Context, input StartInput) (*StartResult, error)
	Charge(ctx context.Context, input ChargeInput) (*ChargeResult, error)
	Settle(ctx context.Context, cb Callback) (*Outcome, error)
	Fail(ctx context.Context, cb FailureCallback) (*Outcome, error)
	History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryResult, error)
	Detail(ctx context.Context, userID uuid.UUID, paymentID string) (*models.Payment, error)
	ExpireStale(ctx context.Context, ttl time.Duration, limit int) (int, error)
}

// ServiceParams wires the payment service collaborators.
type ServiceParams struct {
	Repo     PaymentsRepository
	Orders   orders.OrdersRepository
	Gateways *gateway.Registry
	Outbox   outboxEmitter
	TX       txRunner
	Guard    settlementGuard
	Currency enums.Currency
	Timeout  time.Duration
	Logger   *logger.Logger
	Metrics  *metrics.PaymentMetrics
	IDs      IDGenerator
	Now      func() time.Time
}

type service struct {
	repo     PaymentsRepository
	orders   orders.OrdersRepository
	gateways *gateway.Registry
	outbox   outboxEmitter
	tx       txRunner
	guard    settlementGuard
	currency enums.Currency
	timeout  time.Duration
	logg     *logger.Logger
	metrics  *metrics.PaymentMetrics
	ids      IDGenerator
	now      func() time.Time
}

// NewService builds the payments service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Gateways == nil {
		return nil, fmt.Errorf("gateway registry required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.TX == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if !params.Currency.IsValid() {
		return nil, fmt.Errorf("invalid currency %q", params.Currency)
	}
	ids := params.IDs
	if ids == nil {
		ids = NewPaymentID
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &service{
		repo:     params.Repo,
		orders:   params.Orders,
		gateways: params.Gateways,
		outbox:   params.Outbox,
		tx:       params.TX,
		guard:    params.Guard,
		currency: params.Currency,
		timeout:  timeout,
		logg:     params.Logger,
		metrics:  params.Metrics,
		ids:      ids,
		now:      now,
	}, nil
}

// StartInput asks to pay for an owned order. Gateway is optional.
type StartInput struct {
	UserID      uuid.UUID
	OrderNumber string
	Gateway     string
}

// Checkout is what the browser needs to open the gateway widget.
type Checkout struct {
	PaymentID      string
	OrderNumber    string
	Gateway        enums.PaymentGateway
	GatewayOrderID string
	KeyID          string
	Amount         decimal.Decimal
	AmountMinor    int64
	Currency       enums.Currency
}

// StartResult is the outcome of Start. Exactly one of AlreadyPaid,
// Checkout or a completed cash-on-delivery Payment is meaningful.
type StartResult struct {
	AlreadyPaid bool
	Order       *models.Order
	Payment     *models.Payment
	Checkout    *Checkout
}

// Start opens a payment for the order. Cash on delivery settles locally;
// other methods open a remote gateway order first and persist a pending
// attempt only when that succeeds.
func (s *service) Start(ctx context.Context, input StartInput) (*StartResult, error) {
	order, err := s.orders.FindByNumber(ctx, input.UserID, strings.TrimSpace(input.OrderNumber))
	if err != nil {
		return nil, orderLookupError(err)
	}
	if order.PaymentStatus {
		return &StartResult{AlreadyPaid: true, Order: order}, nil
	}
	if order.Status == enums.OrderStatusCancelled || order.Status == enums.OrderStatusRefunded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not payable").
			WithDetails(map[string]any{"status": order.Status})
	}
	if order.PaymentMethod == enums.PaymentMethodCOD {
		return s.startCOD(ctx, order)
	}
	return s.startGateway(ctx, order, input.Gateway)
}

func (s *service) startCOD(ctx context.Context, order *models.Order) (*StartResult, error) {
	result := &StartResult{Order: order}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		locked, err := ordersRepo.LockByID(ctx, order.ID)
		if err != nil {
			return orderLookupError(err)
		}
		if locked.PaymentStatus {
			result.AlreadyPaid = true
			return nil
		}
		now := s.now()
		payment := &models.Payment{
			OrderID:  locked.ID,
			UserID:   locked.UserID,
			Amount:   locked.Total,
			Currency: s.currency,
			Method:   enums.PaymentMethodCOD,
			Gateway:  enums.PaymentGatewayCOD,
			Status:   enums.PaymentStatusCompleted,
			PaidAt:   &now,
		}
		if err := s.insertWithID(ctx, tx, payment); err != nil {
			return err
		}
		if err := ordersRepo.FlagPaid(ctx, locked.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flag order paid")
		}
		locked.PaymentStatus = true
		if err := s.emitSettled(ctx, tx, payment, locked, outbox.BuyerActor(locked.UserID)); err != nil {
			return err
		}
		result.Order = locked
		result.Payment = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Payment != nil {
		s.metrics.IncStarted(enums.PaymentGatewayCOD.String())
		s.metrics.IncSettlement(enums.PaymentGatewayCOD.String(), metrics.OutcomeCompleted)
		s.logTransition(ctx, result.Payment, order.OrderNumber, "payment.settled")
	}
	return result, nil
}

func (s *service) startGateway(ctx context.Context, order *models.Order, name string) (*StartResult, error) {
	gw, err := s.gateways.Get(name)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported gateway").
			WithDetails(map[string]string{"gateway": name})
	}
	gatewayName := gw.Name().String()

	amountMinor := gateway.ToMinor(order.Total)
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	remote, err := gw.CreateOrder(callCtx, gateway.CreateOrderRequest{
		AmountMinor: amountMinor,
		Currency:    s.currency,
		Receipt:     order.OrderNumber,
		Metadata: map[string]string{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
		},
	})
	cancel()
	if err != nil {
		s.metrics.IncInitFailure(gatewayName)
		if s.logg != nil {
			logCtx := s.logg.WithOrderNumber(ctx, order.OrderNumber)
			s.logg.Error(s.logg.WithField(logCtx, "gateway", gatewayName), "payment.init_failed", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentInit, err, "could not start payment")
	}

	result := &StartResult{Order: order}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		locked, err := ordersRepo.LockByID(ctx, order.ID)
		if err != nil {
			return orderLookupError(err)
		}
		if locked.PaymentStatus {
			result.AlreadyPaid = true
			return nil
		}
		gatewayOrderID := remote.ID
		payment := &models.Payment{
			OrderID:         locked.ID,
			UserID:          locked.UserID,
			GatewayOrderID:  &gatewayOrderID,
			Amount:          locked.Total,
			Currency:        s.currency,
			Method:          locked.PaymentMethod,
			Gateway:         gw.Name(),
			Status:          enums.PaymentStatusPending,
			GatewayResponse: remote.Raw,
		}
		if err := s.insertWithID(ctx, tx, payment); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentStarted,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         outbox.BuyerActor(locked.UserID),
			Data: payloads.PaymentStartedEvent{
				PaymentID:      payment.PaymentID,
				OrderID:        locked.ID,
				OrderNumber:    locked.OrderNumber,
				Gateway:        payment.Gateway,
				GatewayOrderID: gatewayOrderID,
				Amount:         payment.Amount.StringFixed(2),
				Currency:       payment.Currency,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment started")
		}
		result.Payment = payment
		result.Checkout = &Checkout{
			PaymentID:      payment.PaymentID,
			OrderNumber:    locked.OrderNumber,
			Gateway:        payment.Gateway,
			GatewayOrderID: gatewayOrderID,
			KeyID:          gw.KeyID(),
			Amount:         payment.Amount,
			AmountMinor:    amountMinor,
			Currency:       payment.Currency,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Payment != nil {
		s.metrics.IncStarted(gatewayName)
		s.logTransition(ctx, result.Payment, order.OrderNumber, "payment.started")
	}
	return result, nil
}

// ChargeInput asks the server to charge a tokenized source for a pending attempt.
type ChargeInput struct {
	UserID         uuid.UUID
	GatewayOrderID string
	SourceID       string
}

// ChargeResult carries what the browser echoes on the settlement callback.
type ChargeResult struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// Charge creates the remote payment for gateways that charge server side.
// Settlement still happens through Settle.
func (s *service) Charge(ctx context.Context, input ChargeInput) (*ChargeResult, error) {
	gatewayOrderID := strings.TrimSpace(input.GatewayOrderID)
	if gatewayOrderID == "" || strings.TrimSpace(input.SourceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id and source id are required")
	}
	payment, err := s.repo.FindLatestByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil || payment.UserID != input.UserID {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		return nil, paymentNotFound()
	}
	if payment.Status != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not awaiting a charge").
			WithDetails(map[string]any{"status": payment.Status})
	}
	gw, err := s.gateways.Get(payment.Gateway.String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve gateway")
	}
	charger, ok := gw.(gateway.Charger)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway does not support server-side charges")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	remote, signature, err := charger.Charge(callCtx, gateway.ChargeRequest{
		Reference:   gatewayOrderID,
		SourceID:    input.SourceID,
		AmountMinor: gateway.ToMinor(payment.Amount),
		Currency:    payment.Currency,
		Note:        payment.PaymentID,
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "charge payment")
	}
	return &ChargeResult{GatewayOrderID: gatewayOrderID, GatewayPaymentID: remote.ID, Signature: signature}, nil
}

// History returns the user's payment attempts, most recent first.
func (s *service) History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryResult, error) {
	result, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return result, nil
}

// Detail returns one of the user's payment attempts. Attempts owned by
// someone else are reported as missing.
func (s *service) Detail(ctx context.Context, userID uuid.UUID, paymentID string) (*models.Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	payment, err := s.repo.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, paymentNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.UserID != userID {
		return nil, paymentNotFound()
	}
	return payment, nil
}

// ExpireStale cancels pending attempts older than ttl and reports how many
// were cancelled. Attempts that moved on meanwhile are skipped.
func (s *service) ExpireStale(ctx context.Context, ttl time.Duration, limit int) (int, error) {
	if ttl <= 0 {
		return 0, fmt.Errorf("ttl must be positive")
	}
	now := s.now()
	stale, err := s.repo.ListStalePending(ctx, now.Add(-ttl), limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale payments")
	}

	expired := 0
	for _, candidate := range stale {
		var changed bool
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			payment, err := repo.LockByID(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if payment.Status != enums.PaymentStatusPending {
				return nil
			}
			if err := repo.UpdateFields(ctx, payment.ID, map[string]any{
				"status":         enums.PaymentStatusCancelled,
				"failure_reason": expiredReason,
				"updated_at":     now,
			}); err != nil {
				return err
			}
			changed = true
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentExpired,
				AggregateType: enums.AggregatePayment,
				AggregateID:   payment.ID,
				Actor:         &outbox.ActorRef{Source: outbox.SourceCron},
				Data: payloads.PaymentExpiredEvent{
					PaymentID: payment.PaymentID,
					OrderID:   payment.OrderID,
					ExpiredAt: now,
					TTLHours:  int(ttl.Hours()),
				},
			})
		})
		if err != nil {
			return expired, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("expire payment %s", candidate.PaymentID))
		}
		if changed {
			expired++
			reason := expiredReason
			candidate.Status = enums.PaymentStatusCancelled
			candidate.FailureReason = &reason
			s.logTransition(ctx, &candidate, "", "payment.expired")
		}
	}
	return expired, nil
}

// insertWithID retries under a savepoint when the generated payment id collides.
func (s *service) insertWithID(ctx context.Context, tx *gorm.DB, payment *models.Payment) error {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := s.ids(s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate payment id")
		}
		payment.PaymentID = id
		payment.ID = uuid.Nil

		err = tx.Transaction(func(sp *gorm.DB) error {
			return s.repo.WithTx(sp).Create(ctx, payment)
		})
		if err == nil {
			return nil
		}
		if !isPaymentIDCollision(err) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique payment id")
}

func isPaymentIDCollision(err error) bool {
	return db.IsUniqueViolation(err, "ux_payments_payment_id") || db.IsUniqueViolation(err, "payments.payment_id")
}

func (s *service) emitSettled(ctx context.Context, tx *gorm.DB, payment *models.Payment, order *models.Order, actor *outbox.ActorRef) error {
	event := payloads.PaymentSettledEvent{
		PaymentID:   payment.PaymentID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Gateway:     payment.Gateway,
		Amount:      payment.Amount.StringFixed(2),
		Currency:    payment.Currency,
	}
	if payment.GatewayPaymentID != nil {
		event.GatewayPaymentID = *payment.GatewayPaymentID
	}
	if payment.PaidAt != nil {
		event.PaidAt = *payment.PaidAt
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentSettled,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Actor:         actor,
		Data:          event,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment settled")
	}
	return nil
}

func (s *service) logTransition(ctx context.Context, payment *models.Payment, orderNumber, msg string) {
	if s.logg == nil || payment == nil {
		return
	}
	logCtx := s.logg.WithPaymentID(ctx, payment.PaymentID)
	fields := map[string]any{
		"gateway": payment.Gateway.String(),
		"status":  payment.Status.String(),
		"amount":  payment.Amount.StringFixed(2),
	}
	if orderNumber != "" {
		fields["order_number"] = orderNumber
	}
	if payment.FailureReason != nil {
		fields["reason"] = *payment.FailureReason
	}
	s.logg.Info(s.logg.WithFields(logCtx, fields), msg)
}

func orderLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func paymentNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
}
