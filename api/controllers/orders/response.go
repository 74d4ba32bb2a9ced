package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type orderItem struct {
	ProductID   *uuid.UUID      `json:"product_id,omitempty"`
	ProductName string          `json:"product_name"`
	Size        string          `json:"size,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type shippingAddress struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
	Phone   string `json:"phone"`
}

type paymentAttempt struct {
	PaymentID     string               `json:"payment_id"`
	Gateway       enums.PaymentGateway `json:"gateway"`
	Status        enums.PaymentStatus  `json:"status"`
	Amount        decimal.Decimal      `json:"amount"`
	Currency      enums.Currency       `json:"currency"`
	FailureReason *string              `json:"failure_reason,omitempty"`
	PaidAt        *time.Time           `json:"paid_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// OrderSummary is the list representation of an order.
type OrderSummary struct {
	OrderNumber   string              `json:"order_number"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Paid          bool                `json:"paid"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Tax           decimal.Decimal     `json:"tax"`
	ShippingCost  decimal.Decimal     `json:"shipping_cost"`
	Total         decimal.Decimal     `json:"total"`
	ItemCount     int                 `json:"item_count"`
	Items         []orderItem         `json:"items"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderDetail adds shipping, notes and payment attempts to the summary.
type OrderDetail struct {
	OrderSummary
	Shipping shippingAddress  `json:"shipping"`
	Notes    *string          `json:"notes,omitempty"`
	Payments []paymentAttempt `json:"payments"`
}

type orderPage struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func newOrderSummary(order *models.Order) OrderSummary {
	out := OrderSummary{
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		Paid:          order.PaymentStatus,
		Subtotal:      order.Subtotal,
		Tax:           order.Tax,
		ShippingCost:  order.ShippingCost,
		Total:         order.Total,
		Items:         make([]orderItem, 0, len(order.Items)),
		CreatedAt:     order.CreatedAt,
	}
	for _, item := range order.Items {
		out.ItemCount += item.Quantity
		out.Items = append(out.Items, orderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Size:        item.Size,
			Quantity:    item.Quantity,
			Price:       item.Price,
			Subtotal:    item.Subtotal,
		})
	}
	return out
}

// NewOrderDetail renders a fully loaded order.
func NewOrderDetail(order *models.Order) OrderDetail {
	out := OrderDetail{
		OrderSummary: newOrderSummary(order),
		Shipping: shippingAddress{
			Address: order.ShippingAddress,
			City:    order.ShippingCity,
			State:   order.ShippingState,
			ZipCode: order.ShippingZip,
			Country: order.ShippingCountry,
			Phone:   order.Phone,
		},
		Notes:    order.Notes,
		Payments: make([]paymentAttempt, 0, len(order.Payments)),
	}
	for _, payment := range order.Payments {
		out.Payments = append(out.Payments, paymentAttempt{
			PaymentID:     payment.PaymentID,
			Gateway:       payment.Gateway,
			Status:        payment.Status,
			Amount:        payment.Amount,
			Currency:      payment.Currency,
			FailureReason: payment.FailureReason,
			PaidAt:        payment.PaidAt,
			CreatedAt:     payment.CreatedAt,
		})
	}
	return out
}
