package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/kart-group-discount/internal/domain/discount"
)

// Config holds the complete application configuration, loadable from
// environment variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address" yaml:"addr"`
	DatabaseURL string `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL)" flag:"database-url" yaml:"databaseUrl"`
	Discount    DiscountConfig  `yaml:"discount"`
	Pricing     PricingConfig   `yaml:"pricing"`
	RateLimit   RateLimitConfig `yaml:"rateLimit"`
	Graceful    GracefulConfig  `yaml:"graceful"`
}

// DiscountConfig controls the internal customer-group discount.
type DiscountConfig struct {
	Active                  bool     `default:"false" usage:"Enable the internal customer discount" yaml:"active"`
	DiscountedCustomerGroup []string `usage:"Customer group ids receiving the discount" yaml:"discountedCustomerGroup"`
}

// maxPricePrecision matches the scale of the NUMERIC(12,2) price columns.
const maxPricePrecision = 2

// PricingConfig controls price calculation.
type PricingConfig struct {
	Precision int32 `default:"2" usage:"Decimal places of calculated prices" yaml:"precision"`
}

// RateLimitConfig controls the per-client rate limiter. A zero RPS disables it.
type RateLimitConfig struct {
	RPS   float64 `default:"50"  usage:"Sustained requests per second per client" yaml:"rps"`
	Burst int     `default:"100" usage:"Burst size per client" yaml:"burst"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay" yaml:"readinessDelay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout" yaml:"shutdownTimeout"`
}

// DiscountSettings returns the discount configuration in domain form.
func (c *Config) DiscountSettings() discount.Config {
	return discount.Config{
		Active:                  c.Discount.Active,
		DiscountedCustomerGroup: c.Discount.DiscountedCustomerGroup,
	}
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig([]string{"config.yaml", "/etc/kart/config.yaml"}, nil)
}

// loadConfig parses args as flags; nil args means os.Args.
func loadConfig(files, args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KART",
		Files:     files,
		Args:      args,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set KART_DATABASE_URL or DATABASE_URL")
	}
	if c.Pricing.Precision < 0 || c.Pricing.Precision > maxPricePrecision {
		return errors.Errorf("pricing precision must be between 0 and %d, got %d", maxPricePrecision, c.Pricing.Precision)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's KART_-prefixed configuration.
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
