package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config captures process-level configuration. FromEnv builds it from
// environment variables so main stays lean.
type Config struct {
	Addr string

	// External collaborators.
	SettingsURL string
	OrdersURL   string

	// Persistence. RedisURL and PostgresURL are both optional; when neither
	// is set the cart snapshot lives in process memory.
	RedisURL    string
	PostgresURL string
	CartKey     string

	// Order event publication (optional).
	KafkaBrokers    []string
	OrderEventTopic string

	// Pricing fallbacks used until the settings endpoint answers. These are
	// deployment configuration, not constants.
	DefaultVATRatePercent        decimal.Decimal
	DefaultShippingCost          decimal.Decimal
	DefaultFreeShippingThreshold decimal.Decimal

	SettingsRefreshInterval time.Duration
}

func FromEnv(logger *slog.Logger) Config {
	cfg := Config{
		Addr:                         envOr("STOREFRONT_ADDR", ":8080"),
		SettingsURL:                  envOr("SETTINGS_URL", "http://localhost:8000/settings/"),
		OrdersURL:                    envOr("ORDERS_URL", "http://localhost:8000/orders/checkout"),
		RedisURL:                     os.Getenv("REDIS_URL"),
		PostgresURL:                  os.Getenv("POSTGRES_URL"),
		CartKey:                      envOr("CART_KEY", "storefront:cart"),
		OrderEventTopic:              envOr("ORDER_EVENT_TOPIC", "storefront.orders.placed"),
		DefaultVATRatePercent:        decimalEnv(logger, "DEFAULT_VAT_RATE", "22"),
		DefaultShippingCost:          decimalEnv(logger, "DEFAULT_SHIPPING_COST", "10"),
		DefaultFreeShippingThreshold: decimalEnv(logger, "DEFAULT_FREE_SHIPPING_THRESHOLD", "100"),
		SettingsRefreshInterval:      durationEnv(logger, "SETTINGS_REFRESH_INTERVAL", 5*time.Minute),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func decimalEnv(logger *slog.Logger, key, fallback string) decimal.Decimal {
	raw := envOr(key, fallback)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		logger.Warn("invalid decimal in environment, using fallback", "key", key, "value", raw, "fallback", fallback)
		return decimal.RequireFromString(fallback)
	}
	return d
}

func durationEnv(logger *slog.Logger, key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		logger.Warn("invalid duration in environment, using fallback", "key", key, "value", raw, "fallback", fallback)
		return fallback
	}
	return d
}
