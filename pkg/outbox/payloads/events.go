package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderCreatedEvent signals a materialized checkout.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	UserID        uuid.UUID           `json:"user_id"`
	Subtotal      string              `json:"subtotal"`
	Tax           string              `json:"tax"`
	ShippingCost  string              `json:"shipping_cost"`
	Total         string              `json:"total"`
	ItemCount     int                 `json:"item_count"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
}

// OrderCanceledEvent is emitted whenever a buyer cancels an order.
type OrderCanceledEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	UserID         uuid.UUID         `json:"user_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	CanceledAt     time.Time         `json:"canceled_at"`
}

// PaymentStartedEvent reports a gateway session opened for an order.
type PaymentStartedEvent struct {
	PaymentID      string               `json:"payment_id"`
	OrderID        uuid.UUID            `json:"order_id"`
	OrderNumber    string               `json:"order_number"`
	Gateway        enums.PaymentGateway `json:"gateway"`
	GatewayOrderID string               `json:"gateway_order_id"`
	Amount         string               `json:"amount"`
	Currency       enums.Currency       `json:"currency"`
}

// PaymentSettledEvent reports a completed payment.
type PaymentSettledEvent struct {
	PaymentID        string               `json:"payment_id"`
	OrderID          uuid.UUID            `json:"order_id"`
	OrderNumber      string               `json:"order_number"`
	Gateway          enums.PaymentGateway `json:"gateway"`
	GatewayPaymentID string               `json:"gateway_payment_id,omitempty"`
	Amount           string               `json:"amount"`
	Currency         enums.Currency       `json:"currency"`
	PaidAt           time.Time            `json:"paid_at"`
}

// PaymentFailedEvent reports a payment that reached failed.
type PaymentFailedEvent struct {
	PaymentID   string               `json:"payment_id"`
	OrderID     uuid.UUID            `json:"order_id"`
	OrderNumber string               `json:"order_number"`
	Gateway     enums.PaymentGateway `json:"gateway"`
	Reason      string               `json:"reason"`
}

// PaymentExpiredEvent reports a pending payment cancelled for inactivity.
type PaymentExpiredEvent struct {
	PaymentID string    `json:"payment_id"`
	OrderID   uuid.UUID `json:"order_id"`
	ExpiredAt time.Time `json:"expired_at"`
	TTLHours  int       `json:"ttl_hours"`
}
