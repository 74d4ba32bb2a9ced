// Package auth signs shoppers in and hands their guest cart to the cart
// service.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/users"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

// errBadCredentials is shared by every rejection so callers cannot tell an
// unknown email from a wrong password or a disabled account.
var errBadCredentials = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type cartMerger interface {
	Merge(ctx context.Context, userID uuid.UUID, sessionKey string) error
}

type ServiceParams struct {
	UserRepo  userRepository
	Carts     cartMerger
	JWTConfig config.JWTConfig
	// Password sets the cost of the decoy hash checked for unknown emails.
	Password config.PasswordConfig
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	ServiceParams
	decoy func() string
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.UserRepo == nil:
		return nil, errors.New("auth: user repository is required")
	case p.Carts == nil:
		return nil, errors.New("auth: cart merger is required")
	}
	if p.Now == nil {
		p.Now = func() time.Time { return time.Now().UTC() }
	}
	decoy := sync.OnceValue(func() string {
		h, _ := security.HashPassword(uuid.NewString(), p.Password)
		return h
	})
	return &service{ServiceParams: p, decoy: decoy}, nil
}

// Login verifies the credentials, stamps last_login_at, folds the guest
// cart in and issues the bearer token. The cart is only touched once the
// credentials check out.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.verify(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	at := s.Now()
	if err := s.UserRepo.UpdateLastLogin(ctx, user.ID, at); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record login")
	}
	user.LastLoginAt = &at

	merged := s.mergeGuestCart(ctx, user.ID, req.CartSessionKey)

	token, err := pkgAuth.Issue(s.JWTConfig, at, user.ID, user.Email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue token")
	}
	return &LoginResponse{
		AccessToken: token.Value,
		ExpiresAt:   token.ExpiresAt,
		User:        users.ProfileOf(user),
		CartMerged:  merged,
	}, nil
}

func (s *service) verify(ctx context.Context, email, password string) (*models.User, error) {
	email = users.NormalizeEmail(email)
	if email == "" {
		return nil, errBadCredentials
	}
	user, err := s.UserRepo.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// keep the unknown-email path as slow as a real check
		_, _ = security.VerifyPassword(password, s.decoy())
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check password")
	}
	if !ok || !user.IsActive {
		return nil, errBadCredentials
	}
	return user, nil
}

// mergeGuestCart never fails the login. An unmerged guest cart stays under
// its session key and is picked up on the next sign-in.
func (s *service) mergeGuestCart(ctx context.Context, userID uuid.UUID, key string) bool {
	if key = strings.TrimSpace(key); key == "" {
		return false
	}
	err := s.Carts.Merge(ctx, userID, key)
	if err == nil {
		return true
	}
	if s.Logger != nil {
		s.Logger.Error(s.Logger.WithUserID(ctx, userID.String()), "guest cart merge failed", err)
	}
	return false
}
