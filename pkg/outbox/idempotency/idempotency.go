// Package idempotency remembers which deliveries a consumer has already
// handled, so a redelivered callback or event is processed once.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

var (
	errNoStore    = errors.New("idempotency: store is required")
	errNegTTL     = errors.New("idempotency: ttl must not be negative")
	errNoConsumer = errors.New("idempotency: consumer is required")
	errNoDelivery = errors.New("idempotency: delivery id is required")
)

// Guard marks deliveries in Redis. Keys look like
// <namespace>:idempotency:delivery:<consumer>:<id> and expire after ttl.
type Guard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewGuard(store redis.IdempotencyStore, ttl time.Duration) (*Guard, error) {
	switch {
	case store == nil:
		return nil, errNoStore
	case ttl < 0:
		return nil, errNegTTL
	}
	return &Guard{store: store, ttl: ttl}, nil
}

// Seen marks the delivery and reports whether an earlier call had already
// marked it.
func (g *Guard) Seen(ctx context.Context, consumer, id string) (bool, error) {
	key, err := g.key(consumer, id)
	if err != nil {
		return false, err
	}
	first, err := g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
	return !first, err
}

// Release forgets the delivery so the next attempt runs again.
func (g *Guard) Release(ctx context.Context, consumer, id string) error {
	key, err := g.key(consumer, id)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

// DeliveryID joins the natural key of a delivery.
func DeliveryID(parts ...string) string {
	return strings.Join(parts, ":")
}

func (g *Guard) key(consumer, id string) (string, error) {
	if consumer == "" {
		return "", errNoConsumer
	}
	if strings.TrimSpace(id) == "" {
		return "", errNoDelivery
	}
	return g.store.IdempotencyKey("delivery:"+consumer, id), nil
}
