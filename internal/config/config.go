package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Auth: bearer token expected on privileged endpoints.
	APIToken string

	// Broadcast fan-out
	MaxRecipients     int
	FanoutConcurrency int
	SendTimeout       time.Duration

	// Usage ledger: window policy plus quotas per window
	UsageWindow  string
	KnownQuota   int
	UnknownQuota int

	// Process-level outbound throttle: requests per second per channel
	RateLimit int

	// Telegram
	TelegramAPIURL   string
	TelegramBotToken string

	// WhatsApp gateway (Evolution-style API)
	WhatsAppAPIURL   string
	WhatsAppAPIKey   string
	WhatsAppInstance string

	// Generic webhook channel
	WebhookURL string

	// Payment provider (PIX)
	PaymentAPIURL  string
	PaymentAPIKey  string
	PaymentTimeout time.Duration
	ChargeExpiry   time.Duration
	CheckoutURL    string

	// Background workers
	DeliveryWorkers int
	ExpiryInterval  time.Duration
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		APIToken: getEnv("API_TOKEN", ""),

		MaxRecipients:     getInt("MAX_RECIPIENTS", 100),
		FanoutConcurrency: getInt("FANOUT_CONCURRENCY", 10),
		SendTimeout:       getDuration("SEND_TIMEOUT", 5*time.Second),

		UsageWindow:  getEnv("USAGE_WINDOW", "calendar_day"),
		KnownQuota:   getInt("KNOWN_QUOTA", 1000),
		UnknownQuota: getInt("UNKNOWN_QUOTA", 50),

		RateLimit: getInt("RATE_LIMIT_PER_CHANNEL", 50),

		TelegramAPIURL:   getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),

		WhatsAppAPIURL:   getEnv("WHATSAPP_API_URL", ""),
		WhatsAppAPIKey:   getEnv("WHATSAPP_API_KEY", ""),
		WhatsAppInstance: getEnv("WHATSAPP_INSTANCE", "default"),

		WebhookURL: getEnv("WEBHOOK_CHANNEL_URL", ""),

		PaymentAPIURL:  getEnv("PAYMENT_API_URL", "https://api.openpix.com.br"),
		PaymentAPIKey:  getEnv("PAYMENT_API_KEY", ""),
		PaymentTimeout: getDuration("PAYMENT_TIMEOUT", 10*time.Second),
		ChargeExpiry:   getDuration("CHARGE_EXPIRY", 2*time.Hour),
		CheckoutURL:    getEnv("CHECKOUT_URL", ""),

		DeliveryWorkers: getInt("DELIVERY_WORKERS", 5),
		ExpiryInterval:  getDuration("EXPIRY_INTERVAL", 1*time.Minute),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
