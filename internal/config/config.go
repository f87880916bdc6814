package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"go-surplus-storefront/internal/currency"
	"go-surplus-storefront/internal/storage"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	APIBaseURL      string
	HTTPTimeout     time.Duration
	ShutdownTimeout time.Duration
	SecureCookies   bool
	CORSOrigins     []string
	LogLevel        string

	RedisAddr  string
	StorageTTL time.Duration

	ClientIdleTTL       time.Duration
	ClientSweepInterval time.Duration

	KafkaBroker string
	KafkaTopic  string

	OutboxInterval time.Duration

	ExchangeRatesURL     string
	RatesRefreshInterval time.Duration

	StorageKeys storage.Keys
}

// Load reads .env when present, then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	defaults := storage.DefaultKeys()
	return &Config{
		Port:            getEnv("PORT", "3000"),
		APIBaseURL:      getEnv("API_BASE_URL", "http://localhost:8080/api/v1"),
		HTTPTimeout:     getDuration("HTTP_TIMEOUT", 15*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		SecureCookies:   getBool("SECURE_COOKIES", false),
		CORSOrigins:     getList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		LogLevel:        getEnv("LOG_LEVEL", "info"),

		RedisAddr:  os.Getenv("REDIS_ADDR"),
		StorageTTL: getDuration("STORAGE_TTL", 30*24*time.Hour),

		ClientIdleTTL:       getDuration("CLIENT_IDLE_TTL", 30*time.Minute),
		ClientSweepInterval: getDuration("CLIENT_SWEEP_INTERVAL", time.Minute),

		KafkaBroker: os.Getenv("KAFKA_BROKER"),
		KafkaTopic:  getEnv("KAFKA_TOPIC", "storefront.cart.events"),

		OutboxInterval: getDuration("OUTBOX_INTERVAL", 5*time.Second),

		ExchangeRatesURL:     getEnv("EXCHANGE_RATES_URL", currency.DefaultRatesURL),
		RatesRefreshInterval: getDuration("RATES_REFRESH_INTERVAL", time.Hour),

		StorageKeys: storage.Keys{
			GuestSession: getEnv("GUEST_SESSION_KEY", defaults.GuestSession),
			AccessToken:  getEnv("ACCESS_TOKEN_KEY", defaults.AccessToken),
			RefreshToken: getEnv("REFRESH_TOKEN_KEY", defaults.RefreshToken),
			User:         getEnv("USER_KEY", defaults.User),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getList(key string, defaultValue []string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
