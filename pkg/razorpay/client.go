// Package razorpay adapts the Razorpay Orders and Payments APIs to the
// storefront gateway interface.
package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	rzp "github.com/razorpay/razorpay-go"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/gateway"
)

// api is the subset of the SDK used here. The SDK takes no context, so
// calls are bounded by callWithContext.
type api interface {
	CreateOrder(data map[string]interface{}) (map[string]interface{}, error)
	FetchPayment(id string) (map[string]interface{}, error)
}

type sdkAPI struct {
	client *rzp.Client
}

func (s sdkAPI) CreateOrder(data map[string]interface{}) (map[string]interface{}, error) {
	return s.client.Order.Create(data, nil)
}

func (s sdkAPI) FetchPayment(id string) (map[string]interface{}, error) {
	return s.client.Payment.Fetch(id, nil, nil)
}

// Client implements gateway.Gateway for Razorpay.
type Client struct {
	api       api
	keyID     string
	keySecret string
	timeout   time.Duration
}

var _ gateway.Gateway = (*Client)(nil)

// NewClient builds a Razorpay adapter from config.
func NewClient(cfg config.RazorpayConfig, timeout time.Duration) (*Client, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	secret := strings.TrimSpace(cfg.KeySecret)
	if keyID == "" {
		return nil, fmt.Errorf("%s is required", config.EnvRazorpayKeyID)
	}
	if secret == "" {
		return nil, fmt.Errorf("%s is required", config.EnvRazorpayKeySecret)
	}
	return newClient(sdkAPI{client: rzp.NewClient(keyID, secret)}, keyID, secret, timeout), nil
}

func newClient(a api, keyID, secret string, timeout time.Duration) *Client {
	return &Client{api: a, keyID: keyID, keySecret: secret, timeout: timeout}
}

func (c *Client) Name() enums.PaymentGateway { return enums.PaymentGatewayRazorpay }

func (c *Client) KeyID() string { return c.keyID }

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Receipt  string `json:"receipt"`
}

type paymentResponse struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Method   string `json:"method"`
	Captured bool   `json:"captured"`
}

// CreateOrder opens a Razorpay order for the given amount.
func (c *Client) CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.RemoteOrder, error) {
	if req.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	notes := map[string]interface{}{}
	for k, v := range req.Metadata {
		notes[k] = v
	}
	data := map[string]interface{}{
		"amount":   req.AmountMinor,
		"currency": req.Currency.String(),
		"receipt":  req.Receipt,
		"notes":    notes,
	}

	raw, err := c.call(ctx, func() (map[string]interface{}, error) { return c.api.CreateOrder(data) })
	if err != nil {
		return nil, mapError(err, "create razorpay order")
	}
	var out orderResponse
	body, err := decode(raw, &out)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode razorpay order")
	}
	if out.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "razorpay order missing id")
	}
	return &gateway.RemoteOrder{
		ID:          out.ID,
		AmountMinor: out.Amount,
		Currency:    out.Currency,
		Status:      out.Status,
		Raw:         body,
	}, nil
}

// FetchPayment loads a payment by its Razorpay id.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*gateway.RemotePayment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	raw, err := c.call(ctx, func() (map[string]interface{}, error) { return c.api.FetchPayment(paymentID) })
	if err != nil {
		return nil, mapError(err, "fetch razorpay payment")
	}
	var out paymentResponse
	body, err := decode(raw, &out)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode razorpay payment")
	}
	return &gateway.RemotePayment{
		ID:          out.ID,
		OrderID:     out.OrderID,
		State:       mapStatus(out.Status),
		AmountMinor: out.Amount,
		Currency:    out.Currency,
		Method:      out.Method,
		Raw:         body,
	}, nil
}

// VerifySignature checks the checkout handler signature
// HMAC_SHA256(order_id|payment_id, key_secret).
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	return gateway.VerifyPair(c.keySecret, orderID, paymentID, signature)
}

func mapStatus(status string) gateway.PaymentState {
	switch strings.ToLower(status) {
	case "captured":
		return gateway.PaymentCaptured
	case "authorized":
		return gateway.PaymentAuthorized
	case "failed":
		return gateway.PaymentFailed
	case "refunded":
		return gateway.PaymentRefunded
	default:
		return gateway.PaymentCreated
	}
}

type result struct {
	body map[string]interface{}
	err  error
}

func (c *Client) call(ctx context.Context, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	done := make(chan result, 1)
	go func() {
		body, err := fn()
		done <- result{body: body, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.body, r.err
	}
}

func decode(raw map[string]interface{}, dst any) (json.RawMessage, error) {
	body, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return nil, err
	}
	return body, nil
}

func mapError(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg+": timed out")
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "bad_request") || strings.Contains(lower, "does not exist") {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
