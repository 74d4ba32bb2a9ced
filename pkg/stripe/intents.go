package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/gateway"
)

// IntentAPI exposes the subset of PaymentIntent operations used for checkout.
type IntentAPI interface {
	Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type intentWrapper struct{}

func (intentWrapper) Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.New(params)
}

func (intentWrapper) Get(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.Get(id, params)
}

// CreateOrder opens a PaymentIntent. Its id doubles as the gateway order id.
func (c *Client) CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.RemoteOrder, error) {
	if req.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.AmountMinor),
		Currency:    stripe.String(strings.ToLower(req.Currency.String())),
		Description: stripe.String(req.Receipt),
	}
	params.AddMetadata("order_number", req.Receipt)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := c.intents.Create(ctx, params)
	if err != nil {
		return nil, mapError(err, "create stripe payment intent")
	}
	raw, _ := json.Marshal(pi)
	return &gateway.RemoteOrder{
		ID:          pi.ID,
		AmountMinor: pi.Amount,
		Currency:    strings.ToUpper(string(pi.Currency)),
		Status:      string(pi.Status),
		Raw:         raw,
	}, nil
}

// FetchPayment loads a PaymentIntent by id.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*gateway.RemotePayment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	pi, err := c.intents.Get(ctx, paymentID, &stripe.PaymentIntentParams{})
	if err != nil {
		return nil, mapError(err, "fetch stripe payment intent")
	}
	raw, _ := json.Marshal(pi)
	method := ""
	if len(pi.PaymentMethodTypes) > 0 {
		method = pi.PaymentMethodTypes[0]
	}
	return &gateway.RemotePayment{
		ID:          pi.ID,
		OrderID:     pi.ID,
		State:       mapStatus(pi.Status),
		AmountMinor: pi.Amount,
		Currency:    strings.ToUpper(string(pi.Currency)),
		Method:      method,
		Raw:         raw,
	}, nil
}

// VerifySignature accepts the PaymentIntent client secret returned to the
// browser after confirmation. Stripe.js does not sign the redirect, so the
// settled state is always re-read with FetchPayment.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	if orderID == "" || orderID != paymentID {
		return false
	}
	return strings.HasPrefix(signature, orderID+"_secret_")
}

func mapStatus(status stripe.PaymentIntentStatus) gateway.PaymentState {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return gateway.PaymentCaptured
	case stripe.PaymentIntentStatusRequiresCapture:
		return gateway.PaymentAuthorized
	case stripe.PaymentIntentStatusCanceled:
		return gateway.PaymentFailed
	default:
		return gateway.PaymentCreated
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func mapError(err error, msg string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeInvalidRequest, stripe.ErrorTypeCard:
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, msg)
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
