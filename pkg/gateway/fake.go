package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var (
	_ Gateway = (*Fake)(nil)
	_ Charger = (*Fake)(nil)
)

// Fake is an in-memory gateway for local development and tests. Payments
// are registered with SetPayment and signatures use SignPair with Secret.
type Fake struct {
	GatewayName enums.PaymentGateway
	Secret      string
	// CreateErr and FetchErr force the corresponding calls to fail.
	CreateErr error
	FetchErr  error

	mu       sync.Mutex
	seq      int
	orders   map[string]RemoteOrder
	payments map[string]RemotePayment
	fetches  int
}

// NewFake returns a Fake registered under name.
func NewFake(name enums.PaymentGateway, secret string) *Fake {
	return &Fake{
		GatewayName: name,
		Secret:      secret,
		orders:      map[string]RemoteOrder{},
		payments:    map[string]RemotePayment{},
	}
}

func (f *Fake) Name() enums.PaymentGateway { return f.GatewayName }

func (f *Fake) KeyID() string { return "fake_key_" + string(f.GatewayName) }

func (f *Fake) CreateOrder(_ context.Context, req CreateOrderRequest) (*RemoteOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.seq++
	order := RemoteOrder{
		ID:          fmt.Sprintf("order_fake_%d", f.seq),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency.String(),
		Status:      "created",
		Raw:         []byte(fmt.Sprintf(`{"receipt":%q}`, req.Receipt)),
	}
	f.orders[order.ID] = order
	return &order, nil
}

func (f *Fake) FetchPayment(_ context.Context, paymentID string) (*RemotePayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	p, ok := f.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("payment %s not found", paymentID)
	}
	return &p, nil
}

func (f *Fake) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifyPair(f.Secret, orderID, paymentID, signature)
}

// Charge records a captured payment for the reference and signs the pair.
func (f *Fake) Charge(_ context.Context, req ChargeRequest) (*RemotePayment, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[req.Reference]; !ok {
		return nil, "", fmt.Errorf("reference %s not found", req.Reference)
	}
	f.seq++
	p := RemotePayment{
		ID:          fmt.Sprintf("pay_fake_%d", f.seq),
		OrderID:     req.Reference,
		State:       PaymentCaptured,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency.String(),
	}
	f.payments[p.ID] = p
	return &p, SignPair(f.Secret, req.Reference, p.ID), nil
}

// SetPayment registers a payment visible to FetchPayment.
func (f *Fake) SetPayment(p RemotePayment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[p.ID] = p
}

// Order returns a previously created remote order.
func (f *Fake) Order(id string) (RemoteOrder, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	return o, ok
}

// Fetches reports how many FetchPayment calls were made.
func (f *Fake) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}
