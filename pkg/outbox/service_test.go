package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

func TestEmitWritesEnvelope(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	orderID := uuid.New()
	userID := uuid.New()
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         BuyerActor(userID),
			Data:          payloads.OrderCreatedEvent{OrderID: orderID, OrderNumber: "ORD-1", Total: "270.00"},
		})
	})
	require.NoError(t, err)

	rows, err := repo.ListByAggregate(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventOrderCreated, rows[0].EventType)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, SourceBuyer, envelope.Actor.Source)
	require.NotNil(t, envelope.Actor.UserID)
	assert.Equal(t, userID, *envelope.Actor.UserID)

	var data payloads.OrderCreatedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, "270.00", data.Total)
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	aggregateID := uuid.New()

	boom := errors.New("boom")
	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   aggregateID,
			Data:          payloads.PaymentFailedEvent{PaymentID: "PAY-1"},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := repo.ListByAggregate(ctx, aggregateID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEmitRejectsInvalidInput(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)

	err := svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderCreated})
	require.Error(t, err)

	conn := dbtest.Open(t)
	err = svc.Emit(context.Background(), conn, DomainEvent{EventType: enums.OutboxEventType("bogus")})
	require.Error(t, err)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)

	first := models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}
	second := first
	second.AggregateID = uuid.New()
	require.NoError(t, repo.Append(conn, first))
	require.NoError(t, repo.Append(conn, second))

	var fetched []models.OutboxEvent
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		fetched, err = repo.ClaimBatch(tx, 10, 3)
		if err != nil {
			return err
		}
		if err := repo.MarkPublished(tx, fetched[0].ID); err != nil {
			return err
		}
		return repo.Retire(tx, fetched[1].ID, errors.New("bad payload"), 3)
	}))
	require.Len(t, fetched, 2)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		fetched, err = repo.ClaimBatch(tx, 10, 3)
		return err
	}))
	assert.Empty(t, fetched)

	deleted, err := repo.PruneBefore(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestRepositoryRecordAttemptIncrementsAttempts(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	aggregateID := uuid.New()

	require.NoError(t, repo.Append(conn, models.OutboxEvent{
		EventType:     enums.EventPaymentSettled,
		AggregateType: enums.AggregatePayment,
		AggregateID:   aggregateID,
		Payload:       json.RawMessage(`{}`),
	}))
	rows, err := repo.ListByAggregate(ctx, aggregateID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, repo.RecordAttempt(conn, rows[0].ID, errors.New("timeout")))
	rows, err = repo.ListByAggregate(ctx, aggregateID)
	require.NoError(t, err)
	assert.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)
	assert.Equal(t, "timeout", *rows[0].LastError)
}
