package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
app:
  http_addr: ":8080"
  shutdown_timeout: 5s
http:
  cors_origins: [http://localhost:3000]
storage:
  driver: memory
  catalog:
    - { id: p-1, name: Tee, category: apparel, price: 1500, stock: 3 }
gateway:
  base_url: http://gateway.test
  webhook_secret: whsec
  attempts: 3
  retry_backoff: 100ms
pricing:
  tiers:
    - { locality: dhaka, cost: 6000 }
  default_shipping: 12000
  tax_rate: "0.05"
auth:
  jwt_secret: secret
kafka:
  brokers: [localhost:9092]
  topic: orders
`

func writeConfigDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

func TestLoad_BaseOnly(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{"base.yaml": baseYAML})

	cfg, err := Load(dir, "dev")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.App.HTTPAddr)
	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, 5*time.Second, cfg.App.ShutdownTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Gateway.RetryBackoff)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.HTTP.CORSOrigins)
	require.Len(t, cfg.Storage.Catalog, 1)
	assert.Equal(t, int64(1500), cfg.Storage.Catalog[0].Price)
	require.Len(t, cfg.Pricing.Tiers, 1)
	assert.Equal(t, "dhaka", cfg.Pricing.Tiers[0].Locality)

	rate, err := cfg.TaxRate()
	require.NoError(t, err)
	assert.Equal(t, "0.05", rate.String())
}

func TestLoad_EnvFileAndVariablesOverride(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"base.yaml": baseYAML,
		"prod.yaml": "storage:\n  driver: postgres\npostgres:\n  dsn: postgres://file\n",
	})
	t.Setenv("CHECKOUT_POSTGRES__DSN", "postgres://env")
	t.Setenv("CHECKOUT_GATEWAY__WEBHOOK_SECRET", "from-env")
	t.Setenv("CHECKOUT_KAFKA__ENABLED", "true")

	cfg, err := Load(dir, "prod")
	require.NoError(t, err)

	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://env", cfg.Postgres.DSN)
	assert.Equal(t, "from-env", cfg.Gateway.WebhookSecret)
	assert.True(t, cfg.Kafka.Enabled)
}

func TestLoad_MissingBaseFails(t *testing.T) {
	_, err := Load(t.TempDir(), "dev")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{"base.yaml": baseYAML})
	valid, err := Load(dir, "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no addr", func(c *Config) { c.App.HTTPAddr = "" }, "app.http_addr"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, "storage.driver"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = StoragePostgres }, "postgres.dsn"},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true }, "redis.addr"},
		{"no webhook secret", func(c *Config) { c.Gateway.WebhookSecret = "" }, "gateway.webhook_secret"},
		{"no jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }, "auth.jwt_secret"},
		{"kafka without topic", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Topic = "" }, "kafka.brokers"},
		{"bad tax rate", func(c *Config) { c.Pricing.TaxRate = "five" }, "pricing.tax_rate"},
		{"negative tax rate", func(c *Config) { c.Pricing.TaxRate = "-0.1" }, "pricing.tax_rate"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
