package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// OrdersRepository defines the persistence surface for orders.
type OrdersRepository interface {
	WithTx(tx *gorm.DB) OrdersRepository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	FindByNumber(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error)
	FindDetail(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error)
	LockByNumber(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	MarkPaid(ctx context.Context, id uuid.UUID) error
	FlagPaid(ctx context.Context, id uuid.UUID) error
	CancelOpenPayments(ctx context.Context, orderID uuid.UUID, reason string, at time.Time) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ListResult, error)
}
