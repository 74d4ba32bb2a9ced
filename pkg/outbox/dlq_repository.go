package outbox

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// dlqMessageLimit bounds the stored error text in bytes.
const dlqMessageLimit = 1024

// DLQRepository keeps the events the relay gave up on, for inspection and
// manual replay.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(conn *gorm.DB) *DLQRepository {
	return &DLQRepository{db: conn}
}

// Park records a dead letter on tx, the same transaction that retires the
// outbox row.
func (r *DLQRepository) Park(tx *gorm.DB, letter models.OutboxDLQ) error {
	if tx == nil {
		return errNoTx
	}
	if letter.ErrorMessage != nil {
		clipped := clip(*letter.ErrorMessage, dlqMessageLimit)
		letter.ErrorMessage = &clipped
	}
	if letter.FailedAt.IsZero() {
		letter.FailedAt = time.Now().UTC()
	}
	return tx.Create(&letter).Error
}

// ByEventID returns (nil, nil) when the event was never dead lettered.
func (r *DLQRepository) ByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	letter := new(models.OutboxDLQ)
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Take(letter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return letter, nil
}

// ListByAggregate returns up to limit dead letters of an order or payment,
// newest first. limit <= 0 means 50.
func (r *DLQRepository) ListByAggregate(ctx context.Context, aggregateID uuid.UUID, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 {
		limit = 50
	}
	var letters []models.OutboxDLQ
	err := r.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("failed_at DESC").
		Limit(limit).
		Find(&letters).Error
	return letters, err
}

// PruneBefore deletes dead letters recorded before cutoff.
func (r *DLQRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("failed_at < ?", cutoff).Delete(&models.OutboxDLQ{})
	return res.RowsAffected, res.Error
}

// clip cuts s to at most n bytes on a rune boundary.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
