package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Razorpay RazorpayConfig
	Checkout CheckoutConfig
	Sweeper  SweeperConfig

	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SWIFTCART_APP_ENV" required:"true"`
	Port         string `envconfig:"SWIFTCART_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SWIFTCART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SWIFTCART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, "dev")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, "prod")
}

type DBConfig struct {
	DSN string `envconfig:"SWIFTCART_DB_DSN" required:"true"`

	MaxOpenConns    int           `envconfig:"SWIFTCART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SWIFTCART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SWIFTCART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SWIFTCART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SWIFTCART_REDIS_URL"`
	Address      string        `envconfig:"SWIFTCART_REDIS_ADDR"`
	Password     string        `envconfig:"SWIFTCART_REDIS_PASSWORD"`
	DB           int           `envconfig:"SWIFTCART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SWIFTCART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SWIFTCART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SWIFTCART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SWIFTCART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SWIFTCART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SWIFTCART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SWIFTCART_JWT_ISSUER" default:"swiftcart"`
	ExpirationMinutes int    `envconfig:"SWIFTCART_JWT_EXPIRATION_MINUTES" default:"60"`
}

// RazorpayConfig carries the gateway credentials and both signing secrets.
// The key secret signs the client callback payload; the webhook secret signs
// full event bodies. They are distinct values on the provider dashboard.
type RazorpayConfig struct {
	KeyID         string        `envconfig:"SWIFTCART_RAZORPAY_KEY_ID" required:"true"`
	KeySecret     string        `envconfig:"SWIFTCART_RAZORPAY_KEY_SECRET" required:"true"`
	WebhookSecret string        `envconfig:"SWIFTCART_RAZORPAY_WEBHOOK_SECRET" required:"true"`
	BaseURL       string        `envconfig:"SWIFTCART_RAZORPAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	Timeout       time.Duration `envconfig:"SWIFTCART_RAZORPAY_TIMEOUT" default:"15s"`
	EventTTL      time.Duration `envconfig:"SWIFTCART_RAZORPAY_EVENT_TTL" default:"720h"`
}

// FeatureFlagsConfig toggles behaviors that differ between environments.
type FeatureFlagsConfig struct {
	// AutoMigrate runs pending goose migrations at startup in dev mode.
	AutoMigrate bool `envconfig:"SWIFTCART_AUTO_MIGRATE" default:"false"`
}

// SweeperConfig drives the stale-order expiry sweep. PaymentWindow is how
// long a pending order may wait for its payment before the reservation is
// returned.
type SweeperConfig struct {
	Interval      time.Duration `envconfig:"SWIFTCART_SWEEP_INTERVAL" default:"5m"`
	PaymentWindow time.Duration `envconfig:"SWIFTCART_SWEEP_PAYMENT_WINDOW" default:"30m"`
	LockTTL       time.Duration `envconfig:"SWIFTCART_SWEEP_LOCK_TTL" default:"4m"`
}

// CheckoutConfig holds order pricing policy. Monetary values are decimal
// strings so totals never pass through floats.
type CheckoutConfig struct {
	TaxPercent    string   `envconfig:"SWIFTCART_CHECKOUT_TAX_PERCENT" default:"5"`
	ShippingFlat  string   `envconfig:"SWIFTCART_CHECKOUT_SHIPPING_FLAT" default:"40"`
	FreeShipAbove string   `envconfig:"SWIFTCART_CHECKOUT_FREE_SHIP_ABOVE" default:"1000"`
	CODPincodes   []string `envconfig:"SWIFTCART_CHECKOUT_COD_PINCODES"`

	taxRate       decimal.Decimal
	shippingFlat  decimal.Decimal
	freeShipAbove decimal.Decimal
}

// NewCheckoutConfig builds a checkout policy from decimal strings, for
// wiring outside envconfig.
func NewCheckoutConfig(taxPercent, shippingFlat, freeShipAbove string, codPincodes []string) (CheckoutConfig, error) {
	cfg := CheckoutConfig{
		TaxPercent:    taxPercent,
		ShippingFlat:  shippingFlat,
		FreeShipAbove: freeShipAbove,
		CODPincodes:   codPincodes,
	}
	if err := cfg.validate(); err != nil {
		return CheckoutConfig{}, err
	}
	return cfg, nil
}

func (c *CheckoutConfig) validate() error {
	taxPercent, err := decimal.NewFromString(strings.TrimSpace(c.TaxPercent))
	if err != nil {
		return fmt.Errorf("parsing tax percent: %w", err)
	}
	c.taxRate = taxPercent.Div(decimal.NewFromInt(100))

	if c.shippingFlat, err = decimal.NewFromString(strings.TrimSpace(c.ShippingFlat)); err != nil {
		return fmt.Errorf("parsing shipping flat fee: %w", err)
	}
	if c.freeShipAbove, err = decimal.NewFromString(strings.TrimSpace(c.FreeShipAbove)); err != nil {
		return fmt.Errorf("parsing free shipping threshold: %w", err)
	}
	return nil
}

// TaxRate returns the fractional tax rate (e.g. 0.05 for 5%).
func (c CheckoutConfig) TaxRate() decimal.Decimal {
	return c.taxRate
}

// ShippingFee returns the shipping charge for the given subtotal.
func (c CheckoutConfig) ShippingFee(subtotal decimal.Decimal) decimal.Decimal {
	if c.freeShipAbove.IsPositive() && subtotal.GreaterThanOrEqual(c.freeShipAbove) {
		return decimal.Zero
	}
	return c.shippingFlat
}

// CODAllowed reports whether cash on delivery serves the given pincode.
func (c CheckoutConfig) CODAllowed(pincode string) bool {
	pincode = strings.TrimSpace(pincode)
	for _, candidate := range c.CODPincodes {
		if strings.TrimSpace(candidate) == pincode {
			return true
		}
	}
	return false
}
