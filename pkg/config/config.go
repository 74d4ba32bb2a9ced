// Package config loads the storefront settings from STOREFRONT_* environment
// variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// Config is the full settings tree shared by every storefront binary.
type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Cart         CartConfig
	Pricing      PricingConfig
	Payments     PaymentsConfig
	Razorpay     RazorpayConfig
	Stripe       StripeConfig
	Square       SquareConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

// Load reads the environment and reports every invalid setting at once.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var err error
	if strings.TrimSpace(c.DB.DSN) == "" {
		err = multierr.Append(err, fmt.Errorf("%s is required", EnvDBDSN))
	}
	if c.Pricing.TaxRate.IsNegative() {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative", EnvPricingTaxRate))
	}
	if c.Pricing.ShippingFee.IsNegative() {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative", EnvPricingShippingFee))
	}
	if strings.TrimSpace(c.Payments.Currency) == "" {
		err = multierr.Append(err, fmt.Errorf("%s is required", EnvPaymentsCurrency))
	}
	if c.Payments.GatewayTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvPaymentsGatewayTimeout))
	}
	if c.Cart.SessionTTL <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvCartSessionTTL))
	}
	return err
}

type AppConfig struct {
	Env          string   `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string   `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	LogConsole   bool     `envconfig:"STOREFRONT_LOG_CONSOLE" default:"false"`
	CORSOrigins  []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
}

// IsDev reports whether the app runs in the local development environment.
func (a AppConfig) IsDev() bool {
	return strings.EqualFold(strings.TrimSpace(a.Env), AppEnvDev)
}

type DBConfig struct {
	DSN             string        `envconfig:"STOREFRONT_DB_DSN"`
	Driver          string        `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`
	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	KeyPrefix    string        `envconfig:"STOREFRONT_REDIS_KEY_PREFIX" default:"sf"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// JWTConfig signs the shopper bearer tokens issued at login.
type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" default:"storefront"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// Lifetime is how long an issued token stays valid.
func (j JWTConfig) Lifetime() time.Duration {
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// PasswordConfig tunes pbkdf2_sha256 hashing for new passwords.
type PasswordConfig struct {
	Iterations int `envconfig:"STOREFRONT_PASSWORD_ITERATIONS" default:"870000"`
	SaltLength int `envconfig:"STOREFRONT_PASSWORD_SALT_LENGTH" default:"22"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

// CartConfig controls anonymous cart session keys.
type CartConfig struct {
	SessionTTL time.Duration `envconfig:"STOREFRONT_CART_SESSION_TTL" default:"720h"`
}

// PricingConfig feeds the checkout pricing policy.
type PricingConfig struct {
	TaxRate     decimal.Decimal `envconfig:"STOREFRONT_PRICING_TAX_RATE" default:"0.10"`
	ShippingFee decimal.Decimal `envconfig:"STOREFRONT_PRICING_SHIPPING_FEE" default:"50.00"`
}

type PaymentsConfig struct {
	DefaultGateway string        `envconfig:"STOREFRONT_PAYMENTS_GATEWAY" default:"razorpay"`
	Currency       string        `envconfig:"STOREFRONT_PAYMENTS_CURRENCY" default:"INR"`
	GatewayTimeout time.Duration `envconfig:"STOREFRONT_PAYMENTS_GATEWAY_TIMEOUT" default:"10s"`
	SettlementTTL  time.Duration `envconfig:"STOREFRONT_PAYMENTS_SETTLEMENT_IDEMPOTENCY_TTL" default:"24h"`
	PendingTTL     time.Duration `envconfig:"STOREFRONT_PAYMENTS_PENDING_TTL" default:"24h"`
}

// Gateway returns the normalized default gateway name.
func (p PaymentsConfig) Gateway() string {
	return strings.ToLower(strings.TrimSpace(p.DefaultGateway))
}

type RazorpayConfig struct {
	KeyID     string `envconfig:"STOREFRONT_RAZORPAY_KEY_ID"`
	KeySecret string `envconfig:"STOREFRONT_RAZORPAY_KEY_SECRET"`
}

type StripeConfig struct {
	APIKey         string `envconfig:"STOREFRONT_STRIPE_API_KEY"`
	PublishableKey string `envconfig:"STOREFRONT_STRIPE_PUBLISHABLE_KEY"`
	Env            string `envconfig:"STOREFRONT_STRIPE_ENV" default:"test"`
}

// Environment is test or live; blank means test.
func (s StripeConfig) Environment() string {
	return envOr(s.Env, "test")
}

type SquareConfig struct {
	AccessToken   string `envconfig:"STOREFRONT_SQUARE_ACCESS_TOKEN"`
	ApplicationID string `envconfig:"STOREFRONT_SQUARE_APPLICATION_ID"`
	LocationID    string `envconfig:"STOREFRONT_SQUARE_LOCATION_ID"`
	SignatureKey  string `envconfig:"STOREFRONT_SQUARE_SIGNATURE_KEY"`
	Env           string `envconfig:"STOREFRONT_SQUARE_ENV" default:"sandbox"`
}

// Environment is sandbox or production; blank means sandbox.
func (s SquareConfig) Environment() string {
	return envOr(s.Env, "sandbox")
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
}

// PubSubConfig names the topics order and payment events are relayed to.
type PubSubConfig struct {
	OrdersTopic   string `envconfig:"STOREFRONT_PUBSUB_ORDERS_TOPIC" default:"storefront-order-events"`
	PaymentsTopic string `envconfig:"STOREFRONT_PUBSUB_PAYMENTS_TOPIC" default:"storefront-payment-events"`
}

type OutboxConfig struct {
	BatchSize     int           `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollInterval  time.Duration `envconfig:"STOREFRONT_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts   int           `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays int           `envconfig:"STOREFRONT_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"STOREFRONT_CRON_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"STOREFRONT_CRON_LOCK_TTL" default:"30m"`
}

func envOr(raw, fallback string) string {
	if v := strings.ToLower(strings.TrimSpace(raw)); v != "" {
		return v
	}
	return fallback
}
