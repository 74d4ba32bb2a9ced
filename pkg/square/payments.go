package square

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/gateway"
)

const referencePrefix = "sqref_"

var _ gateway.Charger = (*Client)(nil)

type paymentsAPI interface {
	Create(ctx context.Context, req *sq.CreatePaymentRequest) (*sq.Payment, error)
	Get(ctx context.Context, paymentID string) (*sq.Payment, error)
}

type sdkPayments struct {
	sdk *sqclient.Client
}

func (p sdkPayments) Create(ctx context.Context, req *sq.CreatePaymentRequest) (*sq.Payment, error) {
	resp, err := p.sdk.Payments.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.GetPayment(), nil
}

func (p sdkPayments) Get(ctx context.Context, paymentID string) (*sq.Payment, error) {
	resp, err := p.sdk.Payments.Get(ctx, &sq.GetPaymentsRequest{PaymentID: paymentID})
	if err != nil {
		return nil, err
	}
	return resp.GetPayment(), nil
}

func (c *Client) Name() enums.PaymentGateway { return enums.PaymentGatewaySquare }

// KeyID returns the application id used by the Web Payments SDK.
func (c *Client) KeyID() string { return c.applicationID }

// LocationID returns the configured Square location.
func (c *Client) LocationID() string { return c.locationID }

// CreateOrder mints a local reference. Square has no pre-payment order
// handle for card nonces, so the reference travels as the payment's
// reference_id and is matched on settlement.
func (c *Client) CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.RemoteOrder, error) {
	if req.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	ref := referencePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	raw, _ := json.Marshal(map[string]any{
		"reference_id": ref,
		"receipt":      req.Receipt,
		"amount":       req.AmountMinor,
		"currency":     req.Currency.String(),
		"location_id":  c.locationID,
	})
	c.log(ctx, "response", "create_reference", map[string]any{"reference_id": ref, "receipt": req.Receipt})
	return &gateway.RemoteOrder{
		ID:          ref,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency.String(),
		Status:      "created",
		Raw:         raw,
	}, nil
}

// Charge creates the Square payment and returns it with the signature the
// browser must echo on the settlement callback.
func (c *Client) Charge(ctx context.Context, req gateway.ChargeRequest) (*gateway.RemotePayment, string, error) {
	if !strings.HasPrefix(req.Reference, referencePrefix) {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "invalid square reference")
	}
	if strings.TrimSpace(req.SourceID) == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "source id is required")
	}
	payment, err := c.CreatePayment(ctx, PaymentCreateParams{
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency.String(),
		LocationID:  c.locationID,
		SourceID:    req.SourceID,
		Note:        req.Note,
		ReferenceID: req.Reference,
		// one charge per reference
		IdempotencyKey: req.Reference,
	})
	if err != nil {
		return nil, "", err
	}
	remote := toRemote(payment)
	return remote, gateway.SignPair(c.signatureKey, req.Reference, remote.ID), nil
}

// CreatePayment calls Payments.Create with logging and error mapping.
func (c *Client) CreatePayment(ctx context.Context, params PaymentCreateParams) (*sq.Payment, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req := params.toSquareRequest(c.ensureIdempotencyKey("payment.create", params.IdempotencyKey))
	c.log(ctx, "request", "create_payment", map[string]any{
		"location_id":  params.LocationID,
		"reference_id": params.ReferenceID,
		"amount":       params.AmountMinor,
		"source_token": params.SourceID,
	})

	payment, err := c.payments.Create(ctx, req)
	if err != nil {
		c.log(ctx, "error", "create_payment", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "create payment")
	}

	c.log(ctx, "response", "create_payment", map[string]any{
		"payment_id": stringValue(payment.GetID()),
		"status":     stringValue(payment.GetStatus()),
	})
	return payment, nil
}

// FetchPayment loads a Square payment by id.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*gateway.RemotePayment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.log(ctx, "request", "get_payment", map[string]any{"payment_id": paymentID})
	payment, err := c.payments.Get(ctx, paymentID)
	if err != nil {
		c.log(ctx, "error", "get_payment", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "get payment")
	}
	return toRemote(payment), nil
}

// VerifySignature checks the pair signature minted by Charge.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	return gateway.VerifyPair(c.signatureKey, orderID, paymentID, signature)
}

func toRemote(p *sq.Payment) *gateway.RemotePayment {
	if p == nil {
		return &gateway.RemotePayment{State: gateway.PaymentCreated}
	}
	out := &gateway.RemotePayment{
		ID:      stringValue(p.GetID()),
		OrderID: stringValue(p.GetReferenceID()),
		State:   mapStatus(stringValue(p.GetStatus())),
		Method:  strings.ToLower(stringValue(p.GetSourceType())),
	}
	if money := p.GetAmountMoney(); money != nil {
		if amt := money.GetAmount(); amt != nil {
			out.AmountMinor = *amt
		}
		if cur := money.GetCurrency(); cur != nil {
			out.Currency = string(*cur)
		}
	}
	out.Raw, _ = json.Marshal(p)
	return out
}

func mapStatus(status string) gateway.PaymentState {
	switch strings.ToUpper(status) {
	case "COMPLETED":
		return gateway.PaymentCaptured
	case "APPROVED":
		return gateway.PaymentAuthorized
	case "FAILED", "CANCELED":
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
