package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// PaymentsRepository defines the persistence surface for payment attempts.
type PaymentsRepository interface {
	WithTx(tx *gorm.DB) PaymentsRepository
	Create(ctx context.Context, payment *models.Payment) error
	LockByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	LockLatestByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error)
	FindLatestByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Payment, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryResult, error)
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Payment, error)
}
