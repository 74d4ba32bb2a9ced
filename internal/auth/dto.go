package auth

import (
	"time"

	"github.com/angelmondragon/storefront-backend/internal/users"
)

// LoginRequest captures the credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	// CartSessionKey is the anonymous cart key captured from the request
	// before tokens are issued. Empty when the shopper had no cart.
	CartSessionKey string `json:"-"`
}

// LoginResponse carries the bearer token and whether a guest cart was folded in.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	ExpiresAt   time.Time      `json:"expires_at"`
	User        *users.Profile `json:"user"`
	CartMerged  bool           `json:"cart_merged"`
}
