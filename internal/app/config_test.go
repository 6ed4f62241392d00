package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("KART_DATABASE_URL", "postgres://localhost/kart")

	cfg, err := loadConfig(nil, []string{})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, "postgres://localhost/kart", cfg.DatabaseURL)
	assert.False(t, cfg.Discount.Active)
	assert.Empty(t, cfg.Discount.DiscountedCustomerGroup)
	assert.Equal(t, int32(2), cfg.Pricing.Precision)
	assert.Equal(t, 3*time.Second, cfg.Graceful.ReadinessDelay)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("KART_DATABASE_URL", "postgres://localhost/kart")
	t.Setenv("KART_DISCOUNT_ACTIVE", "true")
	t.Setenv("KART_DISCOUNT_DISCOUNTED_CUSTOMER_GROUP", "staff,partners")

	cfg, err := loadConfig(nil, []string{})
	require.NoError(t, err)

	d := cfg.DiscountSettings()
	assert.True(t, d.Active)
	assert.Equal(t, []string{"staff", "partners"}, d.DiscountedCustomerGroup)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
databaseUrl: postgres://db/kart
discount:
  active: true
  discountedCustomerGroup:
    - staff
pricing:
  precision: 1
`), 0o600))

	cfg, err := loadConfig([]string{path}, []string{})
	require.NoError(t, err)

	assert.Equal(t, "postgres://db/kart", cfg.DatabaseURL)
	assert.True(t, cfg.Discount.Active)
	assert.Equal(t, []string{"staff"}, cfg.Discount.DiscountedCustomerGroup)
	assert.Equal(t, int32(1), cfg.Pricing.Precision)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/kart")
	t.Setenv("PORT", "9000")

	cfg, err := loadConfig(nil, []string{})
	require.NoError(t, err)

	assert.Equal(t, "postgres://platform/kart", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Run("MissingDatabaseURL", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		_, err := loadConfig(nil, []string{})
		assert.ErrorContains(t, err, "database URL is required")
	})
	t.Run("NegativePrecision", func(t *testing.T) {
		t.Setenv("KART_DATABASE_URL", "postgres://localhost/kart")
		t.Setenv("KART_PRICING_PRECISION", "-1")
		_, err := loadConfig(nil, []string{})
		assert.ErrorContains(t, err, "precision")
	})
	t.Run("PrecisionAboveStorageScale", func(t *testing.T) {
		t.Setenv("KART_DATABASE_URL", "postgres://localhost/kart")
		t.Setenv("KART_PRICING_PRECISION", "3")
		_, err := loadConfig(nil, []string{})
		assert.ErrorContains(t, err, "pricing precision must be between 0 and 2, got 3")
	})
}
