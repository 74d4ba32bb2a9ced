package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

type dependencies struct {
	db     *db.Client
	redis  *redis.Client
	params routes.Params
}

func (d *dependencies) close(logg *logger.Logger) {
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			logg.Error(context.Background(), "close redis", err)
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			logg.Error(context.Background(), "close database", err)
		}
	}
}

// wire connects the infrastructure clients and builds the checkout
// pipeline: cart, orders, payments and the login hook that merges carts.
func wire(ctx context.Context, cfg *config.Config, logg *logger.Logger) (_ *dependencies, err error) {
	deps := &dependencies{}
	defer func() {
		if err != nil {
			deps.close(logg)
		}
	}()

	if deps.db, err = db.New(ctx, cfg.DB, logg); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err = migrate.MaybeRunDev(ctx, cfg, logg, deps.db); err != nil {
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	if deps.redis, err = redis.New(ctx, cfg.Redis, logg); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	conn := deps.db.DB()

	cartSessions, err := cart.NewSessionKeys(deps.redis, cfg.Cart.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("cart session keys: %w", err)
	}
	catalog := products.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	cartService, err := cart.NewService(cartRepo, deps.db, catalog, cartSessions, logg)
	if err != nil {
		return nil, fmt.Errorf("cart service: %w", err)
	}

	policy, err := pricing.PolicyFromConfig(cfg.Pricing)
	if err != nil {
		return nil, fmt.Errorf("pricing policy: %w", err)
	}
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)
	events := outbox.NewService(outbox.NewRepository(conn), logg)
	ordersRepo := orders.NewRepository(conn)

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:      ordersRepo,
		Carts:     cartRepo,
		Catalog:   catalog,
		Addresses: address.NewRepository(conn),
		Outbox:    events,
		TX:        deps.db,
		Policy:    policy,
		Logger:    logg,
		Metrics:   paymentMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}

	gateways, err := payments.GatewaysFromConfig(ctx, cfg, logg)
	if err != nil {
		return nil, fmt.Errorf("payment gateways: %w", err)
	}
	currency, err := enums.ParseCurrency(cfg.Payments.Currency)
	if err != nil {
		return nil, fmt.Errorf("payments currency: %w", err)
	}
	guard, err := idempotency.NewGuard(deps.redis, cfg.Payments.SettlementTTL)
	if err != nil {
		return nil, fmt.Errorf("settlement guard: %w", err)
	}
	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:     payments.NewRepository(conn),
		Orders:   ordersRepo,
		Gateways: gateways,
		Outbox:   events,
		TX:       deps.db,
		Guard:    guard,
		Currency: currency,
		Timeout:  cfg.Payments.GatewayTimeout,
		Logger:   logg,
		Metrics:  paymentMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("payments service: %w", err)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:  users.NewRepository(conn),
		Carts:     cartService,
		JWTConfig: cfg.JWT,
		Password:  cfg.Password,
		Logger:    logg,
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	deps.params = routes.Params{
		Config:       cfg,
		Logger:       logg,
		DB:           deps.db,
		Redis:        deps.redis,
		CartSessions: cartSessions,
		Auth:         authService,
		Cart:         cartService,
		Orders:       ordersService,
		Payments:     paymentsService,
		Pricing:      policy,
		Metrics:      promhttp.Handler(),
	}
	return deps, nil
}
