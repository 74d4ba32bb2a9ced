package enums

import "strings"

// OrderStatus is the fulfilment state of an order. Paid and failed record
// the settlement outcome seen by the buyer.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusFailed     OrderStatus = "failed"
)

var orderStatuses = set[OrderStatus]{
	OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered,
	OrderStatusCancelled, OrderStatusRefunded, OrderStatusPaid, OrderStatusFailed,
}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool { return orderStatuses.has(s) }

// Cancellable is false once the order is closed or in the buyer's hands.
func (s OrderStatus) Cancellable() bool {
	return s != OrderStatusCancelled && s != OrderStatusDelivered && s != OrderStatusRefunded
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	return orderStatuses.parse("order status", value, strings.ToLower)
}
