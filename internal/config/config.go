package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL      string `env:"DATABASE_URL,required" validate:"required"`
	DatabaseMaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"10" validate:"gte=0"`
	JWTSecret        string `env:"JWT_SECRET,required" validate:"required,min=32"`

	EncryptionKey string `env:"ENCRYPTION_KEY,required" validate:"required,min=32"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	CacheMemoryEntries    int    `env:"CACHE_MEMORY_ENTRIES" envDefault:"10000" validate:"gte=0"`
	RealtimeProvider      string `env:"REALTIME_PROVIDER" envDefault:"local" validate:"omitempty,oneof=local redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis,required_if=RealtimeProvider redis"`

	BillStorage  string `env:"BILL_STORAGE" envDefault:"local" validate:"omitempty,oneof=local s3"`
	BillDir      string `env:"BILL_DIR" envDefault:"./data/bills"`
	BillBaseURL  string `env:"BILL_BASE_URL" envDefault:"/bills" validate:"required"`
	S3Bucket     string `env:"S3_BUCKET" validate:"required_if=BillStorage s3"`
	S3Region     string `env:"S3_REGION" envDefault:"ap-south-1"`
	S3Endpoint   string `env:"S3_ENDPOINT" validate:"omitempty,url"`
	MaxBillBytes int64  `env:"MAX_BILL_BYTES" envDefault:"5242880" validate:"gt=0"`

	PricingLookupTimeout time.Duration `env:"PRICING_LOOKUP_TIMEOUT" envDefault:"3s"`
	ShopCacheTTL         time.Duration `env:"SHOP_CACHE_TTL" envDefault:"5m"`
	IdempotencyTTL       time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	SlowQueryThreshold   time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"250ms"`

	LocationPingsPerSecond float64 `env:"LOCATION_PINGS_PER_SECOND" envDefault:"1" validate:"gt=0"`
	LocationPingBurst      int     `env:"LOCATION_PING_BURST" envDefault:"3" validate:"gt=0"`

	SentryDSN   string `env:"SENTRY_DSN" validate:"omitempty,url"`
	Environment string `env:"ENVIRONMENT" envDefault:"development" validate:"omitempty,oneof=development staging production"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	LogFile   string     `env:"LOG_FILE"`
	Port      string     `env:"PORT" envDefault:"8080"`

	// AllowedOrigins lists extra browser origins allowed to open realtime sockets.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
}

var configValidator = validator.New()

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	if c.PricingLookupTimeout <= 0 {
		return fmt.Errorf("PRICING_LOOKUP_TIMEOUT must be positive")
	}
	if c.ShopCacheTTL < 0 {
		return fmt.Errorf("SHOP_CACHE_TTL must not be negative")
	}

	if c.BillStorage == "local" && strings.TrimSpace(c.BillDir) == "" {
		return fmt.Errorf("BILL_DIR is required when BILL_STORAGE is local")
	}

	for _, origin := range c.AllowedOrigins {
		parsed, err := url.Parse(strings.TrimSpace(origin))
		if err != nil || parsed.Host == "" {
			return fmt.Errorf("ALLOWED_ORIGINS entry %q must be an absolute URL", origin)
		}
	}

	if c.IsProduction() && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be json in production")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
