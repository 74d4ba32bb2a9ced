package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

var errNoTx = errors.New("outbox: transaction required")

// Repository reads and writes outbox_events. Methods taking a *gorm.DB run
// on the caller's transaction; the rest use the bound connection.
type Repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

// Append stores a new event on tx.
func (r *Repository) Append(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Create(&event).Error
}

// ClaimBatch locks up to limit undelivered rows below the attempt ceiling,
// oldest first. SKIP LOCKED lets several relays drain the table at once.
func (r *Repository) ClaimBatch(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errNoTx
	}
	var batch []models.OutboxEvent
	err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate, Options: clause.LockingOptionsSkipLocked}).
		Where("published_at IS NULL").
		Where("attempt_count < ?", maxAttempts).
		Order("created_at, id").
		Limit(limit).
		Find(&batch).Error
	return batch, err
}

func (r *Repository) MarkPublished(tx *gorm.DB, id uuid.UUID) error {
	return r.update(tx, id, map[string]any{"published_at": time.Now().UTC(), "last_error": nil})
}

// RecordAttempt counts one failed delivery and keeps its error.
func (r *Repository) RecordAttempt(tx *gorm.DB, id uuid.UUID, cause error) error {
	cols := map[string]any{"attempt_count": gorm.Expr("attempt_count + 1")}
	if cause != nil {
		cols["last_error"] = cause.Error()
	}
	return r.update(tx, id, cols)
}

// Retire pins attempt_count to ceiling so ClaimBatch never returns the row
// again. Used once the event has been dead lettered.
func (r *Repository) Retire(tx *gorm.DB, id uuid.UUID, cause error, ceiling int) error {
	cols := map[string]any{"attempt_count": ceiling}
	if cause != nil {
		cols["last_error"] = cause.Error()
	}
	return r.update(tx, id, cols)
}

func (r *Repository) update(tx *gorm.DB, id uuid.UUID, cols map[string]any) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Model(&models.OutboxEvent{ID: id}).Updates(cols).Error
}

// PruneBefore deletes delivered rows published before cutoff.
func (r *Repository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

// ListByAggregate returns one aggregate's events in emission order.
func (r *Repository) ListByAggregate(ctx context.Context, aggregateID uuid.UUID) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	err := r.db.WithContext(ctx).
		Where(&models.OutboxEvent{AggregateID: aggregateID}).
		Order("created_at, id").
		Find(&events).Error
	return events, err
}
