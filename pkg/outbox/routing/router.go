// Package routing maps outbox rows to Pub/Sub topics and checks that their
// payload decodes into the event's schema before it leaves the database.
package routing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// ErrPermanent marks a row that will never deliver no matter how often it is
// retried.
var ErrPermanent = errors.New("permanent outbox failure")

// Permanent wraps err so errors.Is(err, ErrPermanent) holds.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Route is a decoded outbox row ready for publishing.
type Route struct {
	Topic    string
	Envelope outbox.PayloadEnvelope
	Payload  any
}

type rule struct {
	aggregate enums.OutboxAggregateType
	topic     string
	decode    func(json.RawMessage) (any, error)
}

// Router knows every event type the storefront emits.
type Router struct {
	rules map[enums.OutboxEventType]rule
}

func NewRouter(cfg config.PubSubConfig) (*Router, error) {
	if cfg.OrdersTopic == "" || cfg.PaymentsTopic == "" {
		return nil, errors.New("routing: orders and payments topics are required")
	}
	order := func(decode func(json.RawMessage) (any, error)) rule {
		return rule{aggregate: enums.AggregateOrder, topic: cfg.OrdersTopic, decode: decode}
	}
	payment := func(decode func(json.RawMessage) (any, error)) rule {
		return rule{aggregate: enums.AggregatePayment, topic: cfg.PaymentsTopic, decode: decode}
	}
	return &Router{rules: map[enums.OutboxEventType]rule{
		enums.EventOrderCreated:   order(decodeAs[payloads.OrderCreatedEvent]),
		enums.EventOrderCanceled:  order(decodeAs[payloads.OrderCanceledEvent]),
		enums.EventPaymentStarted: payment(decodeAs[payloads.PaymentStartedEvent]),
		enums.EventPaymentSettled: payment(decodeAs[payloads.PaymentSettledEvent]),
		enums.EventPaymentFailed:  payment(decodeAs[payloads.PaymentFailedEvent]),
		enums.EventPaymentExpired: payment(decodeAs[payloads.PaymentExpiredEvent]),
	}}, nil
}

func decodeAs[T any](data json.RawMessage) (any, error) {
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Route returns a Permanent error for rows that can never be published.
func (r *Router) Route(event models.OutboxEvent) (*Route, error) {
	rl, ok := r.rules[event.EventType]
	switch {
	case !ok:
		return nil, Permanent(fmt.Errorf("no route for event type %q", event.EventType))
	case rl.aggregate != event.AggregateType:
		return nil, Permanent(fmt.Errorf("%s belongs to %s aggregates, row says %s", event.EventType, rl.aggregate, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, Permanent(errors.New("row has no aggregate id"))
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, Permanent(fmt.Errorf("envelope: %w", err))
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, Permanent(fmt.Errorf("%s envelope carries no data", event.EventType))
	}
	payload, err := rl.decode(env.Data)
	if err != nil {
		return nil, Permanent(fmt.Errorf("%s data: %w", event.EventType, err))
	}
	return &Route{Topic: rl.topic, Envelope: env, Payload: payload}, nil
}
