package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ctxKey values are unexported so only this package can set them.
type ctxKey uint8

const (
	userIDKey ctxKey = iota + 1
	cartSessionKey
)

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}

func withString(ctx context.Context, key ctxKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

// UserIDFromContext is "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string { return stringValue(ctx, userIDKey) }

// CartSessionFromContext is the guest cart key resolved for the request.
func CartSessionFromContext(ctx context.Context) string { return stringValue(ctx, cartSessionKey) }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withString(ctx, userIDKey, userID)
}

func WithCartSession(ctx context.Context, key string) context.Context {
	return withString(ctx, cartSessionKey, key)
}

// RequireUserID fails with CodeUnauthorized unless an authenticated user id
// is on ctx.
func RequireUserID(ctx context.Context) (uuid.UUID, error) {
	raw := UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}
