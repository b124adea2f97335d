package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("DB_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, "usd", cfg.Stripe.Currency)
	assert.Equal(t, int64(2), cfg.Stripe.MaxRetries)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.True(t, cfg.Checkout.FlatShippingRate.Equal(decimal.NewFromInt(10)))
	assert.True(t, cfg.Email.Mock)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("JWT_EXPIRE", "2h")
	t.Setenv("RATE_LIMIT_MAX", "5")
	t.Setenv("STRIPE_CURRENCY", "EUR")
	t.Setenv("CLIENT_URL", "https://shop.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, 5, cfg.RateLimit.Max)
	assert.Equal(t, "eur", cfg.Stripe.Currency)
	assert.Equal(t, "https://shop.example.com", cfg.ClientURL)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("RATE_LIMIT_MAX", "lots")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_MAX")
}

func TestLoadProductionRequiresSecrets(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadProductionRequiresWebhookSecret(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "prod-secret")
	t.Setenv("STRIPE_SECRET_KEY", "sk_live_x")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_WEBHOOK_SECRET")

	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_live")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "whsec_live", cfg.Stripe.WebhookSecret)
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("3d")
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, d)

	_, err = parseDuration("xd")
	assert.Error(t, err)
}
