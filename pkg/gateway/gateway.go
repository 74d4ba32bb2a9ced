// Package gateway abstracts the external payment processors used to settle
// storefront orders.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// PaymentState is the processor-reported state of a buyer payment.
type PaymentState string

const (
	PaymentCreated    PaymentState = "created"
	PaymentAuthorized PaymentState = "authorized"
	PaymentCaptured   PaymentState = "captured"
	PaymentFailed     PaymentState = "failed"
	PaymentRefunded   PaymentState = "refunded"
)

// CreateOrderRequest describes the remote order opened before the buyer pays.
type CreateOrderRequest struct {
	// AmountMinor is the amount in the currency's minor unit (paise, cents).
	AmountMinor int64
	Currency    enums.Currency
	// Receipt is the storefront order number.
	Receipt  string
	Metadata map[string]string
}

// RemoteOrder is the processor's view of an opened order.
type RemoteOrder struct {
	ID          string
	AmountMinor int64
	Currency    string
	Status      string
	Raw         json.RawMessage
}

// RemotePayment is the processor's view of a buyer payment.
type RemotePayment struct {
	ID          string
	OrderID     string
	State       PaymentState
	AmountMinor int64
	Currency    string
	Method      string
	Raw         json.RawMessage
}

// Captured reports whether funds were captured.
func (p RemotePayment) Captured() bool {
	return p.State == PaymentCaptured
}

// Gateway is implemented by every supported processor adapter.
type Gateway interface {
	Name() enums.PaymentGateway
	// KeyID is the public key handed to the browser checkout widget.
	KeyID() string
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*RemoteOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (*RemotePayment, error)
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool
}

// ToMinor converts a major-unit amount into the minor unit, rounding half up.
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinor converts a minor-unit amount into major units.
func FromMinor(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

// Registry resolves gateway adapters by name.
type Registry struct {
	gateways map[enums.PaymentGateway]Gateway
	fallback enums.PaymentGateway
}

// NewRegistry registers the given adapters. The default must be among them.
func NewRegistry(defaultName enums.PaymentGateway, gateways ...Gateway) (*Registry, error) {
	reg := &Registry{gateways: make(map[enums.PaymentGateway]Gateway, len(gateways)), fallback: defaultName}
	for _, gw := range gateways {
		if gw == nil {
			continue
		}
		if _, dup := reg.gateways[gw.Name()]; dup {
			return nil, fmt.Errorf("gateway %s registered twice", gw.Name())
		}
		reg.gateways[gw.Name()] = gw
	}
	if _, ok := reg.gateways[defaultName]; !ok {
		return nil, fmt.Errorf("default gateway %q is not configured", defaultName)
	}
	return reg, nil
}

// Get returns the named adapter. An empty name resolves to the default.
func (r *Registry) Get(name string) (Gateway, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return r.Default(), nil
	}
	gw, ok := r.gateways[enums.PaymentGateway(name)]
	if !ok {
		return nil, fmt.Errorf("gateway %q is not configured", name)
	}
	return gw, nil
}

// Default returns the configured default adapter.
func (r *Registry) Default() Gateway {
	return r.gateways[r.fallback]
}

// Names lists the configured adapters.
func (r *Registry) Names() []enums.PaymentGateway {
	out := make([]enums.PaymentGateway, 0, len(r.gateways))
	for name := range r.gateways {
		out = append(out, name)
	}
	return out
}

// ChargeRequest charges a browser-tokenized source against a reference
// previously returned by CreateOrder.
type ChargeRequest struct {
	Reference   string
	SourceID    string
	AmountMinor int64
	Currency    enums.Currency
	Note        string
}

// Charger is implemented by gateways where the server, not the browser,
// creates the payment. It returns the payment and the signature the
// browser echoes on the settlement callback.
type Charger interface {
	Charge(ctx context.Context, req ChargeRequest) (*RemotePayment, string, error)
}
