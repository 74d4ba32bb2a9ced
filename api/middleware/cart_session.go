package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// CartSessionHeader carries the anonymous cart key on requests and responses.
const CartSessionHeader = "X-Cart-Session"

type cartSessionIssuer interface {
	Ensure(ctx context.Context, key string) (string, error)
}

// CartSession resolves the anonymous cart key for guests. Authenticated
// requests keep their presented key so login can still merge it.
func CartSession(issuer cartSessionIssuer, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if issuer == nil {
				next.ServeHTTP(w, r)
				return
			}
			presented := r.Header.Get(CartSessionHeader)
			if UserIDFromContext(r.Context()) != "" {
				if presented != "" {
					r = r.WithContext(WithCartSession(r.Context(), presented))
				}
				next.ServeHTTP(w, r)
				return
			}

			key, err := issuer.Ensure(r.Context(), presented)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve cart session"))
				return
			}
			w.Header().Set(CartSessionHeader, key)
			ctx := WithCartSession(r.Context(), key)
			if logg != nil {
				ctx = logg.WithSessionKey(ctx, key)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
