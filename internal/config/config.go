package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

const envPrefix = "CHECKOUT_"

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Product struct {
	ID       string `koanf:"id"`
	Name     string `koanf:"name"`
	Category string `koanf:"category"`
	Price    int64  `koanf:"price"`
	Stock    int    `koanf:"stock"`
}

type ShippingTier struct {
	Locality string `koanf:"locality"`
	Cost     int64  `koanf:"cost"`
}

type Config struct {
	App struct {
		Name            string        `koanf:"name"`
		Env             string        `koanf:"env"`
		HTTPAddr        string        `koanf:"http_addr"`
		LogLevel        string        `koanf:"log_level"`
		LogFile         string        `koanf:"log_file"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"app"`

	HTTP struct {
		ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
		ReadTimeout       time.Duration `koanf:"read_timeout"`
		WriteTimeout      time.Duration `koanf:"write_timeout"`
		IdleTimeout       time.Duration `koanf:"idle_timeout"`
		CORSOrigins       []string      `koanf:"cors_origins"`
	} `koanf:"http"`

	Storage struct {
		Driver string `koanf:"driver"`
		// Catalog seeds the product store on startup. Existing products are left alone.
		Catalog []Product `koanf:"catalog"`
	} `koanf:"storage"`

	Postgres struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
		Migrate         bool          `koanf:"migrate"`
	} `koanf:"postgres"`

	Redis struct {
		Enabled  bool          `koanf:"enabled"`
		Addr     string        `koanf:"addr"`
		Password string        `koanf:"password"`
		DB       int           `koanf:"db"`
		CartTTL  time.Duration `koanf:"cart_ttl"`
	} `koanf:"redis"`

	Gateway struct {
		BaseURL            string        `koanf:"base_url"`
		APIKey             string        `koanf:"api_key"`
		WebhookSecret      string        `koanf:"webhook_secret"`
		Timeout            time.Duration `koanf:"timeout"`
		SignatureTolerance time.Duration `koanf:"signature_tolerance"`
		BreakerFailures    uint32        `koanf:"breaker_failures"`
		BreakerCooldown    time.Duration `koanf:"breaker_cooldown"`
		Currency           string        `koanf:"currency"`
		SuccessURL         string        `koanf:"success_url"`
		CancelURL          string        `koanf:"cancel_url"`
		Attempts           int           `koanf:"attempts"`
		AttemptTimeout     time.Duration `koanf:"attempt_timeout"`
		RetryBackoff       time.Duration `koanf:"retry_backoff"`
	} `koanf:"gateway"`

	Pricing struct {
		Tiers           []ShippingTier `koanf:"tiers"`
		DefaultShipping int64          `koanf:"default_shipping"`
		TaxRate         string         `koanf:"tax_rate"`
	} `koanf:"pricing"`

	Auth struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Leeway    time.Duration `koanf:"leeway"`
	} `koanf:"auth"`

	Kafka struct {
		Enabled bool     `koanf:"enabled"`
		Brokers []string `koanf:"brokers"`
		Topic   string   `koanf:"topic"`
	} `koanf:"kafka"`

	Outbox struct {
		QueueSize      int           `koanf:"queue_size"`
		Concurrency    int           `koanf:"concurrency"`
		HandlerTimeout time.Duration `koanf:"handler_timeout"`
	} `koanf:"outbox"`
}

// Load layers dir/base.yaml, then the optional dir/<envName>.yaml, then
// CHECKOUT_* environment variables (CHECKOUT_POSTGRES__DSN -> postgres.dsn).
func Load(dir, envName string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(filepath.Join(dir, "base.yaml")), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	if envName != "" {
		// Missing per-environment files are fine for local runs.
		_ = k.Load(file.Provider(filepath.Join(dir, envName+".yaml")), yaml.Parser())
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if cfg.App.Env == "" {
		cfg.App.Env = envName
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.App.HTTPAddr == "" {
		errs = append(errs, errors.New("app.http_addr required"))
	}
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn required when storage.driver is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q, got %q", StorageMemory, StoragePostgres, c.Storage.Driver))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr required when redis is enabled"))
	}
	if c.Gateway.BaseURL == "" {
		errs = append(errs, errors.New("gateway.base_url required"))
	}
	if c.Gateway.WebhookSecret == "" {
		errs = append(errs, errors.New("gateway.webhook_secret required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret required"))
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		errs = append(errs, errors.New("kafka.brokers and kafka.topic required when kafka is enabled"))
	}
	if _, err := c.TaxRate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// TaxRate parses pricing.tax_rate; an empty value means no tax.
func (c Config) TaxRate() (decimal.Decimal, error) {
	if strings.TrimSpace(c.Pricing.TaxRate) == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(c.Pricing.TaxRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricing.tax_rate: %w", err)
	}
	if rate.IsNegative() {
		return decimal.Zero, errors.New("pricing.tax_rate must be zero or greater")
	}
	return rate, nil
}
