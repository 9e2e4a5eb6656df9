package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr     string
	MetricsAddr  string
	LogLevel     string
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers []string
	JWTSecret    string
	OTLPEndpoint string

	SessionStore    string
	SessionTTL      time.Duration
	GatewayDelay    time.Duration
	DeclineRate     float64
	DonationMin     decimal.Decimal
	DonationMax     decimal.Decimal
	DonationDefault decimal.Decimal
	PayoutPattern   string

	ModerationURL     string
	ModerationTimeout time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using default values", "error", err)
	}

	cfg := &Config{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr:  getEnv("METRICS_ADDR", ":9090"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		PostgresDSN:  getEnv("POSTGRES_DSN", "host=localhost user=postgres password=postgres dbname=rewear sslmode=disable"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKER", "localhost:9092"), ","),
		JWTSecret:    getEnv("JWT_SECRET", "supersecret"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		SessionStore:    getEnv("SESSION_STORE", "redis"),
		SessionTTL:      getDuration("SESSION_TTL", 10*time.Minute),
		GatewayDelay:    getDuration("GATEWAY_DELAY", 1500*time.Millisecond),
		DeclineRate:     getFloat("DECLINE_RATE", 0.05),
		DonationMin:     getDecimal("DONATION_MIN", decimal.Zero),
		DonationMax:     getDecimal("DONATION_MAX", decimal.NewFromInt(20)),
		DonationDefault: getDecimal("DONATION_DEFAULT", decimal.NewFromInt(5)),
		PayoutPattern:   getEnv("PAYOUT_PATTERN", `^\d{12}$`),

		ModerationURL:     os.Getenv("MODERATION_URL"),
		ModerationTimeout: getDuration("MODERATION_TIMEOUT", 5*time.Second),
	}

	slog.Info("config loaded",
		"http_addr", cfg.HTTPAddr,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"session_store", cfg.SessionStore,
		"session_ttl", cfg.SessionTTL,
		"moderation_url", cfg.ModerationURL)
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid number, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return f
}

func getDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		slog.Warn("invalid decimal, using default", "key", key, "value", v, "default", fallback.String())
		return fallback
	}
	return d
}
