package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	// SessionHeader carries the anonymous cart key between client and server.
	SessionHeader = "X-Cart-Session"

	maxSessionKeyLen = 64
	mintAttempts     = 3
)

type sessionStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	CartSessionKey(sessionKey string) string
}

// SessionKeys issues and tracks anonymous cart keys in Redis.
type SessionKeys struct {
	store sessionStore
	ttl   time.Duration
}

// NewSessionKeys binds the key registry to a Redis-backed store.
func NewSessionKeys(store sessionStore, ttl time.Duration) (*SessionKeys, error) {
	if store == nil {
		return nil, fmt.Errorf("session store required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &SessionKeys{store: store, ttl: ttl}, nil
}

// Ensure returns key when it is still registered, refreshing its TTL.
// Otherwise it mints and registers a fresh key.
func (s *SessionKeys) Ensure(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if validSessionKey(key) {
		known, err := s.store.Expire(ctx, s.store.CartSessionKey(key), s.ttl)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh cart session")
		}
		if known {
			return key, nil
		}
	}

	for attempt := 0; attempt < mintAttempts; attempt++ {
		candidate := strings.ReplaceAll(uuid.NewString(), "-", "")
		ok, err := s.store.SetNX(ctx, s.store.CartSessionKey(candidate), time.Now().UTC().Unix(), s.ttl)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue cart session")
		}
		if ok {
			return candidate, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, "could not issue cart session")
}

// Release forgets a key after its cart has been merged.
func (s *SessionKeys) Release(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	return s.store.Del(ctx, s.store.CartSessionKey(key))
}

func validSessionKey(key string) bool {
	if key == "" || len(key) > maxSessionKeyLen {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
