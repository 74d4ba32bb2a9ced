package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/payments"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

type redisStore interface {
	pkgredis.IdempotencyStore
	pkgredis.Pinger
}

type cartSessionIssuer interface {
	Ensure(ctx context.Context, key string) (string, error)
}

// Params wires the router's collaborators.
type Params struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           db.Pinger
	Redis        redisStore
	CartSessions cartSessionIssuer
	Auth         auth.Service
	Cart         cart.Service
	Orders       orders.Service
	Payments     payments.Service
	Pricing      pricing.Policy
	Metrics      http.Handler
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var deps []controllers.Dependency
	if p.DB != nil {
		deps = append(deps, controllers.Dependency{Name: "postgres", Ping: p.DB.Ping})
	}
	if p.Redis != nil {
		deps = append(deps, controllers.Dependency{Name: "redis", Ping: p.Redis.Ping})
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps...))
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", controllers.AuthLogin(p.Auth, logg))

		// Gateway redirects carry no bearer token; the signature authenticates them.
		r.Route("/payments/callback", func(r chi.Router) {
			r.Get("/success", paymentcontrollers.CallbackSuccess(p.Payments, logg))
			r.Post("/success", paymentcontrollers.CallbackSuccess(p.Payments, logg))
			r.Post("/failure", paymentcontrollers.CallbackFailure(p.Payments, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Use(middleware.CartSession(p.CartSessions, logg))
			r.Get("/", cartcontrollers.CartFetch(p.Cart, p.Pricing, logg))
			r.Post("/items", cartcontrollers.CartAddItem(p.Cart, p.Pricing, logg))
			r.Patch("/items/{itemId}", cartcontrollers.CartUpdateItem(p.Cart, p.Pricing, logg))
			r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(p.Cart, p.Pricing, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(p.Redis, logg))

			r.Get("/checkout/defaults", controllers.CheckoutDefaults(p.Orders, logg))
			r.Post("/checkout", controllers.Checkout(p.Orders, logg))

			r.Get("/orders", ordercontrollers.List(p.Orders, logg))
			r.Get("/orders/{orderNumber}", ordercontrollers.Detail(p.Orders, logg))
			r.Post("/orders/{orderNumber}/cancel", ordercontrollers.CancelOrder(p.Orders, logg))
			r.Post("/orders/{orderNumber}/payments", paymentcontrollers.Start(p.Payments, logg))

			r.Get("/payments", paymentcontrollers.History(p.Payments, logg))
			r.Get("/payments/{paymentId}", paymentcontrollers.Detail(p.Payments, logg))
			r.Post("/payments/charge", paymentcontrollers.Charge(p.Payments, logg))
		})
	})

	return r
}
