package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const devJWTSecret = "dev-jwt-secret-change-in-production"

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	ClientURL   string
	CORSOrigin  string
	Database    DatabaseConfig
	JWT         JWTConfig
	Stripe      StripeConfig
	RateLimit   RateLimitConfig
	Upload      UploadConfig
	Cloudinary  CloudinaryConfig
	Email       EmailConfig
	Checkout    CheckoutConfig
}

type DatabaseConfig struct {
	Driver   string // "postgres" or "memory"
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// StripeConfig configures the hosted payment processor
type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string // STRIPE_WEBHOOK_SECRET: verify incoming webhooks (Stripe-Signature)
	Currency       string
	Timeout        time.Duration
	MaxRetries     int64
}

type RateLimitConfig struct {
	Window time.Duration
	Max    int
}

type UploadConfig struct {
	MaxFileSize int64
}

// CloudinaryConfig is the image host; empty CloudName disables uploads
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

type EmailConfig struct {
	Mock     bool
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type CheckoutConfig struct {
	FlatShippingRate      decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	PendingOrderTTL       time.Duration
	SweepInterval         time.Duration
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	// Set defaults
	viper.SetDefault("PORT", "5000")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var errs []string
	duration := func(key, def string) time.Duration {
		d, err := parseDuration(getEnvOrViper(key, def))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return d
	}
	integer := func(key string, def int64) int64 {
		raw := getEnvOrViper(key, strconv.FormatInt(def, 10))
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return n
	}
	money := func(key, def string) decimal.Decimal {
		d, err := decimal.NewFromString(getEnvOrViper(key, def))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return d
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "5000"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrViper("LOG_LEVEL", "info"),
		ClientURL:   strings.TrimSuffix(getEnvOrViper("CLIENT_URL", "http://localhost:3000"), "/"),
		CORSOrigin:  getEnvOrViper("CORS_ORIGIN", "http://localhost:3000"),
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnvOrViper("DB_DRIVER", "postgres")),
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "storefront"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret: getEnvOrViper("JWT_SECRET", devJWTSecret),
			Expiry: duration("JWT_EXPIRE", "7d"),
		},
		Stripe: StripeConfig{
			SecretKey:      strings.TrimSpace(getEnvOrViper("STRIPE_SECRET_KEY", "")),
			PublishableKey: strings.TrimSpace(getEnvOrViper("STRIPE_PUBLISHABLE_KEY", "")),
			WebhookSecret:  strings.TrimSpace(getEnvOrViper("STRIPE_WEBHOOK_SECRET", "")),
			Currency:       strings.ToLower(getEnvOrViper("STRIPE_CURRENCY", "usd")),
			Timeout:        duration("STRIPE_TIMEOUT", "30s"),
			MaxRetries:     integer("STRIPE_MAX_RETRIES", 2),
		},
		RateLimit: RateLimitConfig{
			Window: duration("RATE_LIMIT_WINDOW", "15m"),
			Max:    int(integer("RATE_LIMIT_MAX", 100)),
		},
		Upload: UploadConfig{
			MaxFileSize: integer("MAX_FILE_SIZE", 5<<20),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: strings.TrimSpace(getEnvOrViper("CLOUDINARY_CLOUD_NAME", "")),
			APIKey:    strings.TrimSpace(getEnvOrViper("CLOUDINARY_API_KEY", "")),
			APISecret: strings.TrimSpace(getEnvOrViper("CLOUDINARY_API_SECRET", "")),
			Folder:    getEnvOrViper("CLOUDINARY_FOLDER", "storefront/products"),
		},
		Email: EmailConfig{
			Mock:     getEnvOrViper("EMAIL_MOCK", "true") == "true",
			Host:     getEnvOrViper("SMTP_HOST", "localhost"),
			Port:     int(integer("SMTP_PORT", 587)),
			User:     getEnvOrViper("SMTP_USER", ""),
			Password: getEnvOrViper("SMTP_PASSWORD", ""),
			From:     getEnvOrViper("EMAIL_FROM", "Storefront <no-reply@localhost>"),
		},
		Checkout: CheckoutConfig{
			FlatShippingRate:      money("SHIPPING_FLAT_RATE", "10"),
			FreeShippingThreshold: money("FREE_SHIPPING_THRESHOLD", "100"),
			PendingOrderTTL:       duration("PENDING_ORDER_TTL", "24h"),
			SweepInterval:         duration("PENDING_ORDER_SWEEP_INTERVAL", "10m"),
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	// Validate required fields
	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "memory" {
		return nil, fmt.Errorf("DB_DRIVER must be postgres or memory, got %q", cfg.Database.Driver)
	}
	if cfg.IsProduction() {
		if cfg.JWT.Secret == devJWTSecret {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		if cfg.Stripe.SecretKey == "" {
			return nil, fmt.Errorf("STRIPE_SECRET_KEY is required in production")
		}
		if cfg.Stripe.WebhookSecret == "" {
			return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required in production")
		}
	}

	return cfg, nil
}

// IsProduction reports whether ENVIRONMENT=production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// parseDuration accepts Go durations plus a day suffix ("7d")
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q", raw)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(raw)
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}
