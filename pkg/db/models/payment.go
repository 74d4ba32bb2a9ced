package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Payment is one attempt to settle an order. Failed attempts are never
// reused; a retry creates a new row.
type Payment struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	PaymentID        string               `gorm:"column:payment_id;type:text;not null;uniqueIndex:ux_payments_payment_id"`
	OrderID          uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index:ix_payments_order_created,priority:1"`
	UserID           uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index:ix_payments_user_id"`
	GatewayOrderID   *string              `gorm:"column:gateway_order_id;type:text;index:ix_payments_gateway_order_id"`
	GatewayPaymentID *string              `gorm:"column:gateway_payment_id;type:text"`
	GatewaySignature *string              `gorm:"column:gateway_signature;type:text"`
	Amount           decimal.Decimal      `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency         enums.Currency       `gorm:"column:currency;type:text;not null;default:'INR'"`
	Method           enums.PaymentMethod  `gorm:"column:method;type:text;not null"`
	Gateway          enums.PaymentGateway `gorm:"column:gateway;type:text;not null"`
	Status           enums.PaymentStatus  `gorm:"column:status;type:text;not null;default:'pending'"`
	GatewayResponse  json.RawMessage      `gorm:"column:gateway_response;type:jsonb"`
	FailureReason    *string              `gorm:"column:failure_reason"`
	PaidAt           *time.Time           `gorm:"column:paid_at"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime;index:ix_payments_order_created,priority:2,sort:desc"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
