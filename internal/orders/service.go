package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const maxNumberAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes checkout materialization and order history.
type Service interface {
	Materialize(ctx context.Context, input MaterializeInput) (*models.Order, error)
	Defaults(ctx context.Context, userID uuid.UUID) (*CheckoutDefaults, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ListResult, error)
	Detail(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error)
	Cancel(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error)
}

// ServiceParams wires the materializer's collaborators.
type ServiceParams struct {
	Repo      OrdersRepository
	Carts     cart.CartRepository
	Catalog   *products.Repository
	Addresses *address.Repository
	Outbox    outboxEmitter
	TX        txRunner
	Policy    pricing.Policy
	Logger    *logger.Logger
	Numbers   NumberGenerator
	Now       func() time.Time
	Metrics   *metrics.PaymentMetrics
}

type service struct {
	repo      OrdersRepository
	carts     cart.CartRepository
	catalog   *products.Repository
	addresses *address.Repository
	outbox    outboxEmitter
	tx        txRunner
	policy    pricing.Policy
	logg      *logger.Logger
	numbers   NumberGenerator
	now       func() time.Time
	metrics   *metrics.PaymentMetrics
}

// NewService builds the orders service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.TX == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if err := params.Policy.Validate(); err != nil {
		return nil, err
	}
	numbers := params.Numbers
	if numbers == nil {
		numbers = NewOrderNumber
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:      params.Repo,
		carts:     params.Carts,
		catalog:   params.Catalog,
		addresses: params.Addresses,
		outbox:    params.Outbox,
		tx:        params.TX,
		policy:    params.Policy,
		logg:      params.Logger,
		numbers:   numbers,
		now:       now,
		metrics:   params.Metrics,
	}, nil
}

// MaterializeInput is the validated checkout request of an authenticated buyer.
type MaterializeInput struct {
	UserID        uuid.UUID
	Shipping      checkout.Shipping
	PaymentMethod enums.PaymentMethod
	Notes         string
}

// Materialize converts the user's cart into an order. Every write happens in
// one transaction; the cart is emptied only when the order commits.
func (s *service) Materialize(ctx context.Context, input MaterializeInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]string{"payment_method": "unsupported payment method"})
	}
	shipping := input.Shipping.Normalize()

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		owned, err := carts.FindByUser(ctx, input.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return emptyCart()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if _, err := carts.LockByID(ctx, owned.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
		items, err := carts.ListItems(ctx, owned.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
		}
		summary, err := cart.BuildSummary(ctx, owned.ID, items, s.catalog.WithTx(tx))
		if err != nil {
			return err
		}
		if len(summary.Lines) == 0 {
			return emptyCart()
		}

		if err := checkout.ValidateShipping(shipping); err != nil {
			return err
		}

		quote := s.policy.Quote(summary.PricingLines())
		order := &models.Order{
			UserID:          input.UserID,
			Status:          enums.OrderStatusPending,
			Subtotal:        quote.Subtotal,
			Tax:             quote.Tax,
			ShippingCost:    quote.ShippingCost,
			Total:           quote.Total,
			ShippingAddress: shipping.Address,
			ShippingCity:    shipping.City,
			ShippingState:   shipping.State,
			ShippingZip:     shipping.ZipCode,
			ShippingCountry: shipping.Country,
			Phone:           shipping.Phone,
			PaymentMethod:   input.PaymentMethod,
		}
		if notes := strings.TrimSpace(input.Notes); notes != "" {
			order.Notes = &notes
		}

		repo := s.repo.WithTx(tx)
		if err := s.insertWithNumber(ctx, tx, order); err != nil {
			return err
		}

		orderItems := make([]models.OrderItem, 0, len(summary.Lines))
		for _, line := range summary.Lines {
			productID := line.ProductID
			orderItems = append(orderItems, models.OrderItem{
				OrderID:     order.ID,
				ProductID:   &productID,
				ProductName: line.ProductName,
				Quantity:    line.Quantity,
				Price:       line.UnitPrice,
				Size:        line.Size,
				Subtotal:    line.LineTotal,
			})
		}
		if err := repo.CreateItems(ctx, orderItems); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		order.Items = orderItems

		if _, err := s.addresses.WithTx(tx).Upsert(ctx, input.UserID, shipping); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save address")
		}
		if err := carts.ClearItems(ctx, owned.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.BuyerActor(input.UserID),
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				UserID:        order.UserID,
				Subtotal:      order.Subtotal.StringFixed(2),
				Tax:           order.Tax.StringFixed(2),
				ShippingCost:  order.ShippingCost.StringFixed(2),
				Total:         order.Total.StringFixed(2),
				ItemCount:     summary.ItemCount(),
				PaymentMethod: order.PaymentMethod,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncOrderMaterialized()
	if s.logg != nil {
		logCtx := s.logg.WithOrderNumber(ctx, created.OrderNumber)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"user_id": created.UserID.String(),
			"total":   created.Total.StringFixed(2),
			"items":   len(created.Items),
		})
		s.logg.Info(logCtx, "order.materialized")
	}
	return created, nil
}

// insertWithNumber retries the insert under a savepoint when the generated
// number collides with an existing order.
func (s *service) insertWithNumber(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := s.numbers(s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		order.OrderNumber = number
		order.ID = uuid.Nil

		err = tx.Transaction(func(sp *gorm.DB) error {
			return s.repo.WithTx(sp).CreateOrder(ctx, order)
		})
		if err == nil {
			return nil
		}
		if !isOrderNumberCollision(err) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique order number")
}

func isOrderNumberCollision(err error) bool {
	return db.IsUniqueViolation(err, "ux_orders_order_number") || db.IsUniqueViolation(err, "orders.order_number")
}

func emptyCart() error {
	return pkgerrors.New(pkgerrors.CodeEmptyCart, "your cart is empty")
}

// CheckoutDefaults pre-fills the checkout form from the saved address.
type CheckoutDefaults struct {
	Shipping      checkout.Shipping
	HasSaved      bool
	PaymentMethod enums.PaymentMethod
}

// Defaults returns the saved shipping address, or an empty form with the default country.
func (s *service) Defaults(ctx context.Context, userID uuid.UUID) (*CheckoutDefaults, error) {
	saved, err := s.addresses.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load saved address")
	}
	return &CheckoutDefaults{
		Shipping:      address.ToShipping(saved),
		HasSaved:      saved != nil,
		PaymentMethod: enums.PaymentMethodCOD,
	}, nil
}

// List returns the user's orders, most recent first.
func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ListResult, error) {
	result, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return result, nil
}

// Detail returns an owned order with items and payment attempts.
func (s *service) Detail(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error) {
	order, err := s.repo.FindDetail(ctx, userID, strings.TrimSpace(orderNumber))
	if err != nil {
		return nil, orderLookupError(err)
	}
	return order, nil
}

// Cancel moves an owned order to cancelled and cancels payments still pending.
func (s *service) Cancel(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error) {
	var canceled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByNumber(ctx, userID, strings.TrimSpace(orderNumber))
		if err != nil {
			return orderLookupError(err)
		}
		if !order.Status.Cancellable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled").
				WithDetails(map[string]any{"status": order.Status})
		}

		now := s.now()
		previous := order.Status
		if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if _, err := repo.CancelOpenPayments(ctx, order.ID, "order cancelled", now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel pending payments")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.BuyerActor(userID),
			Data: payloads.OrderCanceledEvent{
				OrderID:        order.ID,
				OrderNumber:    order.OrderNumber,
				UserID:         userID,
				PreviousStatus: previous,
				CanceledAt:     now,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order canceled")
		}
		order.Status = enums.OrderStatusCancelled
		canceled = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderNumber(ctx, canceled.OrderNumber), "order.cancelled")
	}
	return canceled, nil
}

func orderLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
