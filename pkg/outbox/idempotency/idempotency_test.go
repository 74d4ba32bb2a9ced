package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keyStore struct {
	held    map[string]time.Duration
	failSet error
}

func newKeyStore() *keyStore { return &keyStore{held: map[string]time.Duration{}} }

func (k *keyStore) Get(context.Context, string) (string, error) { return "", nil }

func (k *keyStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if k.failSet != nil {
		return false, k.failSet
	}
	if _, ok := k.held[key]; ok {
		return false, nil
	}
	k.held[key] = ttl
	return true, nil
}

func (k *keyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(k.held, key)
	}
	return nil
}

func (k *keyStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func TestGuardSeenOnRedelivery(t *testing.T) {
	store := newKeyStore()
	guard, err := NewGuard(store, 24*time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	id := DeliveryID("order_N5", "pay_N6")

	seen, err := guard.Seen(ctx, "settlement", id)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.Seen(ctx, "settlement", id)
	require.NoError(t, err)
	assert.True(t, seen)

	assert.Equal(t, 24*time.Hour, store.held["sf:idempotency:delivery:settlement:order_N5:pay_N6"])
}

func TestGuardConsumersAreIndependent(t *testing.T) {
	guard, err := NewGuard(newKeyStore(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = guard.Seen(ctx, "settlement", "a:b")
	require.NoError(t, err)
	seen, err := guard.Seen(ctx, "mailer", "a:b")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestGuardReleaseAllowsRetry(t *testing.T) {
	store := newKeyStore()
	guard, err := NewGuard(store, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = guard.Seen(ctx, "settlement", "a:b")
	require.NoError(t, err)
	require.NoError(t, guard.Release(ctx, "settlement", "a:b"))
	assert.Empty(t, store.held)

	seen, err := guard.Seen(ctx, "settlement", "a:b")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestGuardSurfacesStoreErrors(t *testing.T) {
	store := newKeyStore()
	store.failSet = errors.New("redis down")
	guard, err := NewGuard(store, time.Hour)
	require.NoError(t, err)

	_, err = guard.Seen(context.Background(), "settlement", "a:b")
	assert.ErrorIs(t, err, store.failSet)
}

func TestGuardRejectsIncompleteKeys(t *testing.T) {
	guard, err := NewGuard(newKeyStore(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = guard.Seen(ctx, "", "a")
	assert.ErrorIs(t, err, errNoConsumer)
	_, err = guard.Seen(ctx, "settlement", "  ")
	assert.ErrorIs(t, err, errNoDelivery)

	_, err = NewGuard(nil, time.Hour)
	assert.ErrorIs(t, err, errNoStore)
	_, err = NewGuard(newKeyStore(), -time.Second)
	assert.ErrorIs(t, err, errNegTTL)
}
