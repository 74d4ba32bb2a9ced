// Package stripe adapts Stripe PaymentIntents to the storefront gateway
// interface.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/gateway"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

// secretPrefixes lists the key prefixes Stripe issues per environment,
// standard secret keys and restricted keys alike.
var secretPrefixes = map[string][]string{
	testEnv: {"sk_test_", "rk_test_"},
	liveEnv: {"sk_live_", "rk_live_"},
}

var (
	errAPIKeyRequired      = errors.New("stripe: api key is required")
	errPublishableRequired = errors.New("stripe: publishable key is required")
	errInvalidStripeEnv    = fmt.Errorf("stripe: environment must be %q or %q", testEnv, liveEnv)
)

// Client is a gateway.Gateway backed by PaymentIntents. Stripe.js confirms
// the intent in the browser; the server only creates and reads it.
type Client struct {
	intents        IntentAPI
	environment    string
	publishableKey string
	timeout        time.Duration
}

var _ gateway.Gateway = (*Client)(nil)

// NewClient sets the package level stripe.Key, so a process runs one
// Stripe account.
func NewClient(ctx context.Context, cfg config.StripeConfig, timeout time.Duration, logg *logger.Logger) (*Client, error) {
	env := strings.ToLower(strings.TrimSpace(cfg.Environment()))
	prefixes, ok := secretPrefixes[env]
	if !ok {
		return nil, errInvalidStripeEnv
	}
	secret, publishable := strings.TrimSpace(cfg.APIKey), strings.TrimSpace(cfg.PublishableKey)
	switch {
	case secret == "":
		return nil, errAPIKeyRequired
	case publishable == "":
		return nil, errPublishableRequired
	case !hasAnyPrefix(secret, prefixes):
		return nil, fmt.Errorf("stripe: %s environment needs a key starting with %s", env, strings.Join(prefixes, " or "))
	}

	stripe.Key = secret
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe client ready")
	}
	return newClient(intentWrapper{}, env, publishable, timeout), nil
}

func newClient(intents IntentAPI, env, publishable string, timeout time.Duration) *Client {
	return &Client{intents: intents, environment: env, publishableKey: publishable, timeout: timeout}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func (c *Client) Name() enums.PaymentGateway { return enums.PaymentGatewayStripe }

// KeyID is the publishable key handed to Stripe.js.
func (c *Client) KeyID() string { return c.publishableKey }

func (c *Client) Environment() string { return c.environment }
