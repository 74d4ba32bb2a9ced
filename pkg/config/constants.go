package config

// EnvPrefix is the envconfig prefix for every storefront variable.
const EnvPrefix = "STOREFRONT"

// AppEnvDev enables developer conveniences such as auto migration.
const AppEnvDev = "dev"

// Variables referenced by validation and client errors.
const (
	EnvAppEnv                 = "STOREFRONT_APP_ENV"
	EnvDBDSN                  = "STOREFRONT_DB_DSN"
	EnvRedisURL               = "STOREFRONT_REDIS_URL"
	EnvJWTSecret              = "STOREFRONT_JWT_SECRET"
	EnvCartSessionTTL         = "STOREFRONT_CART_SESSION_TTL"
	EnvPricingTaxRate         = "STOREFRONT_PRICING_TAX_RATE"
	EnvPricingShippingFee     = "STOREFRONT_PRICING_SHIPPING_FEE"
	EnvPaymentsGateway        = "STOREFRONT_PAYMENTS_GATEWAY"
	EnvPaymentsCurrency       = "STOREFRONT_PAYMENTS_CURRENCY"
	EnvPaymentsGatewayTimeout = "STOREFRONT_PAYMENTS_GATEWAY_TIMEOUT"
	EnvRazorpayKeyID          = "STOREFRONT_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret      = "STOREFRONT_RAZORPAY_KEY_SECRET"
)
