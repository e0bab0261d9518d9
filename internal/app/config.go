package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (GROCER_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (GROCER_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	Stripe       StripeConfig
	Checkout     CheckoutConfig
	Cart         CartConfig
	OrderStatus  OrderStatusConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// StripeConfig holds credentials for the payment provider.
type StripeConfig struct {
	SecretKey     string `usage:"Stripe API secret key (GROCER_STRIPE_SECRET_KEY)" flag:"stripe-secret-key"`
	WebhookSecret string `usage:"Stripe webhook signing secret (GROCER_STRIPE_WEBHOOK_SECRET)" flag:"stripe-webhook-secret"`
	Currency      string `default:"usd" usage:"Checkout currency code"`
}

// CheckoutConfig holds the redirect URLs for hosted checkout sessions.
type CheckoutConfig struct {
	SuccessURL string `default:"http://localhost:3000/success?session_id={CHECKOUT_SESSION_ID}" usage:"Redirect URL after successful payment" flag:"success-url"`
	CancelURL  string `default:"http://localhost:3000/cart" usage:"Redirect URL after canceled payment" flag:"cancel-url"`
}

// CartConfig holds the pricing parameters of the cart engine.
type CartConfig struct {
	FeeProductID int64   `default:"1"   usage:"Catalog id of the delivery-fee product" flag:"fee-product-id"`
	FeeThreshold float64 `default:"20"  usage:"Cart weight at or above which the delivery fee applies" flag:"fee-threshold"`
	MaxWeight    float64 `default:"200" usage:"Hard cap on total cart weight" flag:"max-weight"`
}

// OrderStatusConfig controls polling for asynchronously settled orders.
type OrderStatusConfig struct {
	Attempts int           `default:"5"  usage:"Max order-status poll attempts"`
	Delay    time.Duration `default:"1s" usage:"Delay between order-status poll attempts"`
}

// RateLimitConfig controls the per-client fixed window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "GROCER",
		Files:     []string{"config.yaml", "/etc/grocer/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set GROCER_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Stripe.SecretKey == "" {
		return nil, errors.New("Stripe secret key is required: set GROCER_STRIPE_SECRET_KEY")
	}
	if cfg.Stripe.WebhookSecret == "" {
		return nil, errors.New("Stripe webhook secret is required: set GROCER_STRIPE_WEBHOOK_SECRET")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's GROCER_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
