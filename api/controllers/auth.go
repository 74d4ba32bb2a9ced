package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// accessTokenHeader mirrors the bearer token for clients that read headers.
const accessTokenHeader = "X-Storefront-Token"

// AuthLogin signs the shopper in. The guest cart key comes only from the
// X-Cart-Session header, never from the body.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := login(svc, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set(accessTokenHeader, result.AccessToken)
		responses.WriteSuccess(w, result)
	}
}

func login(svc auth.Service, r *http.Request) (*auth.LoginResponse, error) {
	if svc == nil {
		return nil, responses.Unavailable("auth service")
	}
	var creds auth.LoginRequest
	if err := validators.DecodeJSONBody(r, &creds); err != nil {
		return nil, err
	}
	creds.CartSessionKey = strings.TrimSpace(r.Header.Get(middleware.CartSessionHeader))
	return svc.Login(r.Context(), creds)
}
