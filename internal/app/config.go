package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (GEARBOX_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (GEARBOX_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (GEARBOX_API_KEY_PEPPER)" flag:"api-key-pepper"`
	PayPal       PayPalConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// PayPalConfig holds payment gateway credentials and connection settings.
type PayPalConfig struct {
	BaseURL      string        `default:"https://api-m.sandbox.paypal.com" usage:"PayPal API base URL" flag:"paypal-base-url"`
	ClientID     string        `usage:"PayPal client id (GEARBOX_PAYPAL_CLIENT_ID)" flag:"paypal-client-id"`
	ClientSecret string        `usage:"PayPal client secret (GEARBOX_PAYPAL_CLIENT_SECRET)" flag:"paypal-client-secret"`
	Currency     string        `default:"GBP" usage:"Checkout currency code"`
	Timeout      time.Duration `default:"30s" usage:"Gateway request timeout" flag:"paypal-timeout"`
	HealthCheck  bool          `default:"true" usage:"Probe gateway reachability from the readiness endpoint"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "GEARBOX",
		Files:     []string{"config.yaml", "/etc/gearbox/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set GEARBOX_DATABASE_URL or DATABASE_URL")
	}
	if cfg.PayPal.ClientID == "" || cfg.PayPal.ClientSecret == "" {
		return nil, errors.New("PayPal credentials are required: set GEARBOX_PAYPAL_CLIENT_ID and GEARBOX_PAYPAL_CLIENT_SECRET")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and PORT
// to the application's GEARBOX_-prefixed configuration.
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
