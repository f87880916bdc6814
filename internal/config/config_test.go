package config_test

import (
	"testing"
	"time"

	"go-surplus-storefront/internal/config"
	"go-surplus-storefront/internal/currency"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "HTTP_TIMEOUT", "KAFKA_TOPIC", "OUTBOX_INTERVAL", "CLIENT_IDLE_TTL", "EXCHANGE_RATES_URL", "GUEST_SESSION_KEY", "REDIS_ADDR"} {
		t.Setenv(key, "")
	}

	cfg := config.Load()

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "storefront.cart.events", cfg.KafkaTopic)
	assert.Equal(t, 5*time.Second, cfg.OutboxInterval)
	assert.Equal(t, 30*time.Minute, cfg.ClientIdleTTL)
	assert.Equal(t, currency.DefaultRatesURL, cfg.ExchangeRatesURL)
	assert.Equal(t, "guest_session_id", cfg.StorageKeys.GuestSession)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("RATES_REFRESH_INTERVAL", "nonsense")
	t.Setenv("SECURE_COOKIES", "true")
	t.Setenv("GUEST_SESSION_KEY", "sf_guest")
	t.Setenv("CORS_ORIGINS", "https://shop.example.com, https://admin.example.com")

	cfg := config.Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, time.Hour, cfg.RatesRefreshInterval)
	assert.True(t, cfg.SecureCookies)
	assert.Equal(t, "sf_guest", cfg.StorageKeys.GuestSession)
	assert.Equal(t, []string{"https://shop.example.com", "https://admin.example.com"}, cfg.CORSOrigins)
}
