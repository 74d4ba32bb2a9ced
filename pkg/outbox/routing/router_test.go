package routing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

func testRouter(t *testing.T) *Router {
	t.Helper()
	r, err := NewRouter(config.PubSubConfig{OrdersTopic: "orders-topic", PaymentsTopic: "payments-topic"})
	require.NoError(t, err)
	return r
}

func envelopeFor(t *testing.T, data string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(data),
	})
	require.NoError(t, err)
	return raw
}

func TestRouteOrderCreated(t *testing.T) {
	orderID := uuid.New()
	data, err := json.Marshal(payloads.OrderCreatedEvent{OrderID: orderID, OrderNumber: "ORD-20250101120000-ABC123", Total: "270.00", ItemCount: 2})
	require.NoError(t, err)

	route, err := testRouter(t).Route(models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       envelopeFor(t, string(data)),
	})
	require.NoError(t, err)
	assert.Equal(t, "orders-topic", route.Topic)
	assert.NotEmpty(t, route.Envelope.EventID)
	payload, ok := route.Payload.(*payloads.OrderCreatedEvent)
	require.True(t, ok, "payload type %T", route.Payload)
	assert.Equal(t, "270.00", payload.Total)
}

func TestRoutePaymentEventsToPaymentsTopic(t *testing.T) {
	r := testRouter(t)
	for _, et := range []enums.OutboxEventType{enums.EventPaymentStarted, enums.EventPaymentSettled, enums.EventPaymentFailed, enums.EventPaymentExpired} {
		route, err := r.Route(models.OutboxEvent{
			EventType:     et,
			AggregateType: enums.AggregatePayment,
			AggregateID:   uuid.New(),
			Payload:       envelopeFor(t, `{"payment_id":"PAY-1"}`),
		})
		require.NoError(t, err, et)
		assert.Equal(t, "payments-topic", route.Topic, et)
	}
}

func TestRouteRejectsPermanently(t *testing.T) {
	r := testRouter(t)
	cases := map[string]models.OutboxEvent{
		"unknown type":       {EventType: "order_shipped", AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: envelopeFor(t, `{}`)},
		"aggregate mismatch": {EventType: enums.EventOrderCreated, AggregateType: enums.AggregatePayment, AggregateID: uuid.New(), Payload: envelopeFor(t, `{}`)},
		"no aggregate id":    {EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, Payload: envelopeFor(t, `{}`)},
		"null data":          {EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: envelopeFor(t, `null`)},
		"bad envelope":       {EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`[`)},
		"bad data":           {EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: envelopeFor(t, `{"item_count":"two"}`)},
	}
	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := r.Route(event)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPermanent)
		})
	}
}

func TestNewRouterRequiresBothTopics(t *testing.T) {
	_, err := NewRouter(config.PubSubConfig{PaymentsTopic: "p"})
	assert.Error(t, err)
	_, err = NewRouter(config.PubSubConfig{OrdersTopic: "o"})
	assert.Error(t, err)
}
