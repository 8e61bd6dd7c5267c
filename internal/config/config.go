package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                string
	StoreDriver         string
	MongoURI            string
	DBName              string
	JWTSecret           string
	RedisURL            string
	OrderEventsChannel  string
	LogLevel            string
	LogFormat           string
	CORSOrigins         []string
	CheckoutRatePerMin  int
	RequestTimeout      time.Duration
	DefaultDeliveryDays int
	DefaultCurrency     string
}

// Load reads .env when present, then the process environment. The returned
// warning is non-nil when .env could not be read; callers log it.
func Load() (Config, error) {
	envErr := godotenv.Load()

	cfg := Config{
		Port:                getEnvOrDefault("PORT", "8080"),
		StoreDriver:         strings.ToLower(getEnvOrDefault("STORE_DRIVER", "mongo")),
		MongoURI:            getEnvOrDefault("MONGO_URI", ""),
		DBName:              getEnvOrDefault("DB_NAME", "shop"),
		JWTSecret:           getEnvOrDefault("JWT_SECRET", ""),
		RedisURL:            getEnvOrDefault("REDIS_URL", ""),
		OrderEventsChannel:  getEnvOrDefault("ORDER_EVENTS_CHANNEL", "order-events"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		CORSOrigins:         getListEnv("CORS_ORIGINS", []string{"*"}),
		CheckoutRatePerMin:  getIntEnv("CHECKOUT_RATE_PER_MIN", 30),
		RequestTimeout:      getDurationEnv("REQUEST_TIMEOUT", 5, time.Second),
		DefaultDeliveryDays: getIntEnv("DEFAULT_DELIVERY_DAYS", 3),
		DefaultCurrency:     strings.ToUpper(getEnvOrDefault("DEFAULT_CURRENCY", "VND")),
	}
	return cfg, envErr
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	return time.Duration(getIntEnv(key, defaultValue)) * unit
}

func getListEnv(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	values := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
