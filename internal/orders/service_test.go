package orders

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

var orderNumberPattern = regexp.MustCompile(`^ORD-\d{14}-[A-Z0-9]{6}$`)

type noopReleaser struct{}

func (noopReleaser) Release(context.Context, string) error { return nil }

type fixture struct {
	conn    *gorm.DB
	carts   cart.Service
	orders  Service
	repo    *Repository
	outbox  *outbox.Repository
	product *models.Product
	userID  uuid.UUID
}

func newFixture(t *testing.T, numbers NumberGenerator) *fixture {
	t.Helper()
	return newFixtureWithEmitter(t, numbers, nil)
}

// newFixtureWithEmitter swaps the outbox emitter; nil keeps the real one.
func newFixtureWithEmitter(t *testing.T, numbers NumberGenerator, emitter outboxEmitter) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	ctx := context.Background()

	catalog := products.NewRepository(conn)
	product := &models.Product{Name: "Tee", Price: decimal.RequireFromString("100.00"), IsActive: true}
	require.NoError(t, catalog.Create(ctx, product))

	txRunner := db.NewWithConn(conn)
	cartRepo := cart.NewRepository(conn)
	carts, err := cart.NewService(cartRepo, txRunner, catalog, noopReleaser{}, nil)
	require.NoError(t, err)

	outboxRepo := outbox.NewRepository(conn)
	if emitter == nil {
		emitter = outbox.NewService(outboxRepo, nil)
	}
	repo := NewRepository(conn)
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Carts:     cartRepo,
		Catalog:   catalog,
		Addresses: address.NewRepository(conn),
		Outbox:    emitter,
		TX:        txRunner,
		Policy:    pricing.DefaultPolicy(),
		Numbers:   numbers,
	})
	require.NoError(t, err)

	return &fixture{
		conn:    conn,
		carts:   carts,
		orders:  svc,
		repo:    repo,
		outbox:  outboxRepo,
		product: product,
		userID:  uuid.New(),
	}
}

func shipping() checkout.Shipping {
	return checkout.Shipping{
		Address: "221B Residency Road",
		City:    "Bengaluru",
		State:   "Karnataka",
		ZipCode: "560025",
		Phone:   "9876543210",
	}
}

func (f *fixture) fillCart(t *testing.T, qty int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), cart.ForUser(f.userID), cart.AddItemInput{ProductID: f.product.ID, Quantity: qty})
	require.NoError(t, err)
}

func (f *fixture) materialize(t *testing.T) *models.Order {
	t.Helper()
	order, err := f.orders.Materialize(context.Background(), MaterializeInput{
		UserID:        f.userID,
		Shipping:      shipping(),
		PaymentMethod: enums.PaymentMethodCard,
	})
	require.NoError(t, err)
	return order
}

func TestMaterializeCreatesOrderAtomically(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fillCart(t, 2)

	order := f.materialize(t)

	assert.Regexp(t, orderNumberPattern, order.OrderNumber)
	assert.Equal(t, "200.00", order.Subtotal.StringFixed(2))
	assert.Equal(t, "20.00", order.Tax.StringFixed(2))
	assert.Equal(t, "50.00", order.ShippingCost.StringFixed(2))
	assert.Equal(t, "270.00", order.Total.StringFixed(2))
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.False(t, order.PaymentStatus)
	assert.Equal(t, checkout.DefaultCountry, order.ShippingCountry)

	detail, err := f.orders.Detail(ctx, f.userID, order.OrderNumber)
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, 2, detail.Items[0].Quantity)
	assert.Equal(t, "100.00", detail.Items[0].Price.StringFixed(2))
	assert.Equal(t, "200.00", detail.Items[0].Subtotal.StringFixed(2))
	assert.Equal(t, "Tee", detail.Items[0].ProductName)

	summary, err := f.carts.View(ctx, cart.ForUser(f.userID))
	require.NoError(t, err)
	assert.Empty(t, summary.Lines)

	defaults, err := f.orders.Defaults(ctx, f.userID)
	require.NoError(t, err)
	assert.True(t, defaults.HasSaved)
	assert.Equal(t, "560025", defaults.Shipping.ZipCode)

	events, err := f.outbox.ListByAggregate(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderCreated, events[0].EventType)
}

func TestMaterializeCapturesPriceAtPurchase(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fillCart(t, 1)

	order := f.materialize(t)
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", f.product.ID).Update("price", decimal.RequireFromString("150.00")).Error)

	detail, err := f.orders.Detail(ctx, f.userID, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, "100.00", detail.Items[0].Price.StringFixed(2))
	assert.Equal(t, "160.00", detail.Total.StringFixed(2))
}

func TestMaterializeEmptyCart(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.orders.Materialize(context.Background(), MaterializeInput{
		UserID:        f.userID,
		Shipping:      shipping(),
		PaymentMethod: enums.PaymentMethodCOD,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart))
}

func TestMaterializeDropsRetiredProducts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fillCart(t, 1)
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", f.product.ID).Update("is_active", false).Error)

	_, err := f.orders.Materialize(ctx, MaterializeInput{
		UserID:        f.userID,
		Shipping:      shipping(),
		PaymentMethod: enums.PaymentMethodCOD,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart))

	var lines int64
	require.NoError(t, f.conn.Model(&models.CartItem{}).Count(&lines).Error)
	assert.Equal(t, int64(1), lines)
}

func TestMaterializeInvalidShippingLeavesCart(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fillCart(t, 1)

	bad := shipping()
	bad.Phone = "12345"
	_, err := f.orders.Materialize(ctx, MaterializeInput{
		UserID:        f.userID,
		Shipping:      bad,
		PaymentMethod: enums.PaymentMethodCOD,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var orders int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
	summary, err := f.carts.View(ctx, cart.ForUser(f.userID))
	require.NoError(t, err)
	assert.Len(t, summary.Lines, 1)
}

type failingEmitter struct{ err error }

func (f failingEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error { return f.err }

func TestMaterializeRollsBackWhenEventFails(t *testing.T) {
	f := newFixtureWithEmitter(t, nil, failingEmitter{err: errors.New("outbox insert failed")})
	ctx := context.Background()
	f.fillCart(t, 3)

	_, err := f.orders.Materialize(ctx, MaterializeInput{
		UserID:        f.userID,
		Shipping:      shipping(),
		PaymentMethod: enums.PaymentMethodCard,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	for _, model := range []any{&models.Order{}, &models.OrderItem{}, &models.UserAddress{}} {
		var n int64
		require.NoError(t, f.conn.Model(model).Count(&n).Error)
		assert.Zero(t, n, "%T", model)
	}
	summary, err := f.carts.View(ctx, cart.ForUser(f.userID))
	require.NoError(t, err)
	require.Len(t, summary.Lines, 1)
	assert.Equal(t, 3, summary.Lines[0].Quantity)
}

func TestMaterializeRejectsUnknownPaymentMethod(t *testing.T) {
	f := newFixture(t, nil)
	f.fillCart(t, 1)

	_, err := f.orders.Materialize(context.Background(), MaterializeInput{
		UserID:        f.userID,
		Shipping:      shipping(),
		PaymentMethod: enums.PaymentMethod("barter"),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMaterializeRetriesOrderNumberCollision(t *testing.T) {
	sequence := []string{"ORD-20250101000000-AAAAAA", "ORD-20250101000000-AAAAAA", "ORD-20250101000000-BBBBBB"}
	calls := 0
	numbers := func(time.Time) (string, error) {
		n := sequence[calls]
		calls++
		return n, nil
	}
	f := newFixture(t, numbers)

	f.fillCart(t, 1)
	first := f.materialize(t)
	assert.Equal(t, "ORD-20250101000000-AAAAAA", first.OrderNumber)

	f.fillCart(t, 1)
	second := f.materialize(t)
	assert.Equal(t, "ORD-20250101000000-BBBBBB", second.OrderNumber)
	assert.Equal(t, 3, calls)

	var items int64
	require.NoError(t, f.conn.Model(&models.OrderItem{}).Where("order_id = ?", second.ID).Count(&items).Error)
	assert.Equal(t, int64(1), items)
}

func TestListPaginatesMostRecentFirst(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var numbers []string
	for i := 0; i < 3; i++ {
		f.fillCart(t, i+1)
		numbers = append(numbers, f.materialize(t).OrderNumber)
	}

	page, err := f.orders.List(ctx, f.userID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	assert.Equal(t, numbers[2], page.Orders[0].OrderNumber)
	assert.Equal(t, numbers[1], page.Orders[1].OrderNumber)
	require.NotEmpty(t, page.NextCursor)

	next, err := f.orders.List(ctx, f.userID, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Orders, 1)
	assert.Equal(t, numbers[0], next.Orders[0].OrderNumber)
	assert.Empty(t, next.NextCursor)

	other, err := f.orders.List(ctx, uuid.New(), pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, other.Orders)

	_, err = f.orders.List(ctx, f.userID, pagination.Params{Cursor: "not-a-cursor"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDetailScopedToOwner(t *testing.T) {
	f := newFixture(t, nil)
	f.fillCart(t, 1)
	order := f.materialize(t)

	_, err := f.orders.Detail(context.Background(), uuid.New(), order.OrderNumber)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fillCart(t, 1)
	order := f.materialize(t)

	pending := &models.Payment{
		PaymentID: "PAY-20250101000000-AAAAAAAA",
		OrderID:   order.ID,
		UserID:    f.userID,
		Amount:    order.Total,
		Currency:  enums.CurrencyINR,
		Method:    enums.PaymentMethodCard,
		Gateway:   enums.PaymentGatewayRazorpay,
		Status:    enums.PaymentStatusPending,
	}
	require.NoError(t, f.conn.Create(pending).Error)

	canceled, err := f.orders.Cancel(ctx, f.userID, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, canceled.Status)

	var payment models.Payment
	require.NoError(t, f.conn.Where("id = ?", pending.ID).First(&payment).Error)
	assert.Equal(t, enums.PaymentStatusCancelled, payment.Status)

	events, err := f.outbox.ListByAggregate(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, enums.EventOrderCanceled, events[1].EventType)

	_, err = f.orders.Cancel(ctx, f.userID, order.OrderNumber)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestCancelRejectsDeliveredOrder(t *testing.T) {
	f := newFixture(t, nil)
	f.fillCart(t, 1)
	order := f.materialize(t)
	require.NoError(t, f.repo.UpdateStatus(context.Background(), order.ID, enums.OrderStatusDelivered))

	_, err := f.orders.Cancel(context.Background(), f.userID, order.OrderNumber)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestNewOrderNumberFormat(t *testing.T) {
	t.Parallel()

	number, err := NewOrderNumber(time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC))
	require.NoError(t, err)
	assert.Regexp(t, `^ORD-20250304050607-[A-Z0-9]{6}$`, number)
}
