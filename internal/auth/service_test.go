package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "storefront",
	ExpirationMinutes: 30,
}

func TestServiceLoginMergesAnonymousCart(t *testing.T) {
	user := activeUser(t, "buyer@example.com", "hunter22")
	merger := &stubCartMerger{}
	svc := buildTestService(t, user, merger)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:          "Buyer@Example.com",
		Password:       "hunter22",
		CartSessionKey: "anon-key",
	})
	require.NoError(t, err)
	assert.True(t, resp.CartMerged)
	require.Len(t, merger.calls, 1)
	assert.Equal(t, user.ID, merger.calls[0].userID)
	assert.Equal(t, "anon-key", merger.calls[0].key)

	claims, err := pkgAuth.Verify(testJWT, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), resp.ExpiresAt, time.Minute)
	require.NotNil(t, resp.User.LastLoginAt)
}

func TestServiceLoginWithoutCartKeySkipsMerge(t *testing.T) {
	user := activeUser(t, "buyer@example.com", "hunter22")
	merger := &stubCartMerger{}
	svc := buildTestService(t, user, merger)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "hunter22"})
	require.NoError(t, err)
	assert.False(t, resp.CartMerged)
	assert.Empty(t, merger.calls)
}

func TestServiceLoginMergeFailureDoesNotBlock(t *testing.T) {
	user := activeUser(t, "buyer@example.com", "hunter22")
	merger := &stubCartMerger{err: errors.New("db down")}
	svc := buildTestService(t, user, merger)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:          user.Email,
		Password:       "hunter22",
		CartSessionKey: "anon-key",
	})
	require.NoError(t, err)
	assert.False(t, resp.CartMerged)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	user := activeUser(t, "buyer@example.com", "hunter22")
	merger := &stubCartMerger{}
	svc := buildTestService(t, user, merger)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:          user.Email,
		Password:       "wrong",
		CartSessionKey: "anon-key",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	assert.Empty(t, merger.calls, "cart must stay anonymous when login fails")

	_, err = svc.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestServiceLoginRejectsInactiveUser(t *testing.T) {
	user := activeUser(t, "buyer@example.com", "hunter22")
	user.IsActive = false
	svc := buildTestService(t, user, &stubCartMerger{})

	_, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "hunter22"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(ServiceParams{Carts: &stubCartMerger{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{UserRepo: &stubUserRepo{}})
	assert.Error(t, err)
}

func buildTestService(t *testing.T, user *models.User, merger *stubCartMerger) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:  &stubUserRepo{user: user},
		Carts:     merger,
		JWTConfig: testJWT,
		Logger:    logger.New(logger.Options{ServiceName: "auth-test"}),
	})
	require.NoError(t, err)
	return svc
}

func activeUser(t *testing.T, email, password string) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{Iterations: 10_000})
	require.NoError(t, err)
	return &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Asha",
		LastName:     "Rao",
		IsActive:     true,
	}
}

type stubUserRepo struct {
	user *models.User
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	if s.user != nil && s.user.ID == id {
		s.user.LastLoginAt = &at
	}
	return nil
}

type mergeCall struct {
	userID uuid.UUID
	key    string
}

type stubCartMerger struct {
	calls []mergeCall
	err   error
}

func (s *stubCartMerger) Merge(_ context.Context, userID uuid.UUID, key string) error {
	s.calls = append(s.calls, mergeCall{userID: userID, key: key})
	return s.err
}
