package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/gateway"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/razorpay"
	"github.com/angelmondragon/storefront-backend/pkg/square"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

// GatewaysFromConfig builds the adapter registry. A provider is registered
// only when its credentials are present; the configured default must be one
// of them.
func GatewaysFromConfig(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*gateway.Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	defaultName, err := enums.ParsePaymentGateway(cfg.Payments.Gateway())
	if err != nil {
		return nil, err
	}
	timeout := cfg.Payments.GatewayTimeout

	var adapters []gateway.Gateway
	if strings.TrimSpace(cfg.Razorpay.KeyID) != "" {
		client, err := razorpay.NewClient(cfg.Razorpay, timeout)
		if err != nil {
			return nil, fmt.Errorf("razorpay: %w", err)
		}
		adapters = append(adapters, client)
	}
	if strings.TrimSpace(cfg.Stripe.APIKey) != "" {
		client, err := stripe.NewClient(ctx, cfg.Stripe, timeout, logg)
		if err != nil {
			return nil, fmt.Errorf("stripe: %w", err)
		}
		adapters = append(adapters, client)
	}
	if strings.TrimSpace(cfg.Square.AccessToken) != "" {
		client, err := square.NewClient(ctx, cfg.Square, timeout, logg)
		if err != nil {
			return nil, fmt.Errorf("square: %w", err)
		}
		adapters = append(adapters, client)
	}
	return gateway.NewRegistry(defaultName, adapters...)
}
