package payments

import (
	"time"

	"github.com/shopspring/decimal"

	internalpayments "github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

const (
	startAlreadyPaid = "already_paid"
	startCompleted   = "completed"
	startPending     = "pending"
)

type checkoutSession struct {
	PaymentID      string               `json:"payment_id"`
	OrderNumber    string               `json:"order_number"`
	Gateway        enums.PaymentGateway `json:"gateway"`
	GatewayOrderID string               `json:"gateway_order_id"`
	KeyID          string               `json:"key_id,omitempty"`
	Amount         decimal.Decimal      `json:"amount"`
	AmountMinor    int64                `json:"amount_minor"`
	Currency       enums.Currency       `json:"currency"`
}

type startResponse struct {
	Status      string           `json:"status"`
	OrderNumber string           `json:"order_number"`
	Payment     *paymentView     `json:"payment,omitempty"`
	Checkout    *checkoutSession `json:"checkout,omitempty"`
}

type paymentView struct {
	PaymentID     string               `json:"payment_id"`
	OrderID       string               `json:"order_id"`
	Gateway       enums.PaymentGateway `json:"gateway"`
	Method        enums.PaymentMethod  `json:"method"`
	Status        enums.PaymentStatus  `json:"status"`
	Amount        decimal.Decimal      `json:"amount"`
	Currency      enums.Currency       `json:"currency"`
	FailureReason *string              `json:"failure_reason,omitempty"`
	PaidAt        *time.Time           `json:"paid_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

type paymentDetail struct {
	paymentView
	GatewayOrderID   *string `json:"gateway_order_id,omitempty"`
	GatewayPaymentID *string `json:"gateway_payment_id,omitempty"`
}

type historyPage struct {
	Payments   []paymentView `json:"payments"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type chargeResponse struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
}

type outcomeView struct {
	PaymentID      string               `json:"payment_id"`
	OrderNumber    string               `json:"order_number,omitempty"`
	Gateway        enums.PaymentGateway `json:"gateway"`
	Status         enums.PaymentStatus  `json:"status"`
	OrderStatus    enums.OrderStatus    `json:"order_status,omitempty"`
	FailureReason  string               `json:"failure_reason,omitempty"`
	AlreadySettled bool                 `json:"already_settled"`
}

func newPaymentView(p *models.Payment) paymentView {
	return paymentView{
		PaymentID:     p.PaymentID,
		OrderID:       p.OrderID.String(),
		Gateway:       p.Gateway,
		Method:        p.Method,
		Status:        p.Status,
		Amount:        p.Amount,
		Currency:      p.Currency,
		FailureReason: p.FailureReason,
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt,
	}
}

func newPaymentDetail(p *models.Payment) paymentDetail {
	return paymentDetail{
		paymentView:      newPaymentView(p),
		GatewayOrderID:   p.GatewayOrderID,
		GatewayPaymentID: p.GatewayPaymentID,
	}
}

func newStartResponse(result *internalpayments.StartResult) startResponse {
	out := startResponse{}
	if result.Order != nil {
		out.OrderNumber = result.Order.OrderNumber
	}
	switch {
	case result.AlreadyPaid:
		out.Status = startAlreadyPaid
	case result.Checkout != nil:
		out.Status = startPending
		c := result.Checkout
		out.Checkout = &checkoutSession{
			PaymentID:      c.PaymentID,
			OrderNumber:    c.OrderNumber,
			Gateway:        c.Gateway,
			GatewayOrderID: c.GatewayOrderID,
			KeyID:          c.KeyID,
			Amount:         c.Amount,
			AmountMinor:    c.AmountMinor,
			Currency:       c.Currency,
		}
	default:
		out.Status = startCompleted
	}
	if result.Payment != nil {
		view := newPaymentView(result.Payment)
		out.Payment = &view
	}
	return out
}

func newOutcomeView(o *internalpayments.Outcome) outcomeView {
	return outcomeView{
		PaymentID:      o.PaymentID,
		OrderNumber:    o.OrderNumber,
		Gateway:        o.Gateway,
		Status:         o.Status,
		OrderStatus:    o.OrderStatus,
		FailureReason:  o.FailureReason,
		AlreadySettled: o.AlreadySettled,
	}
}
