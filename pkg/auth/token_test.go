package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

var shopperJWT = config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 30}

func TestIssueAndVerify(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	userID := uuid.New()

	token, err := Issue(shopperJWT, now, userID, "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*time.Minute), token.ExpiresAt)

	claims, err := Verify(shopperJWT, token.Value)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "buyer@example.com", claims.Email)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "storefront", claims.Issuer)
	_, err = uuid.Parse(claims.ID)
	assert.NoError(t, err)
}

func TestVerifyRejectsTamperedAndExpired(t *testing.T) {
	token, err := Issue(shopperJWT, time.Now(), uuid.New(), "")
	require.NoError(t, err)
	_, err = Verify(shopperJWT, token.Value+"x")
	assert.Error(t, err)

	other := shopperJWT
	other.Issuer = "someone-else"
	_, err = Verify(other, token.Value)
	assert.Error(t, err)

	stale, err := Issue(shopperJWT, time.Now().Add(-time.Hour), uuid.New(), "")
	require.NoError(t, err)
	_, err = Verify(shopperJWT, stale.Value)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestIssueValidatesInput(t *testing.T) {
	_, err := Issue(shopperJWT, time.Now(), uuid.Nil, "")
	assert.Error(t, err)

	_, err = Issue(config.JWTConfig{Secret: "s", Issuer: "i"}, time.Now(), uuid.New(), "")
	assert.Error(t, err)
}
