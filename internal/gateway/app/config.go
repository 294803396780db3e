package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/guardx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

// ErrMissingSecret is returned when GATEWAY_SIGNING_SECRET is unset.
var ErrMissingSecret = errors.New("app: GATEWAY_SIGNING_SECRET is required")

type Config struct {
	SigningSecret string        // Required: HS256 signing secret, min 32 bytes
	Issuer        string        // Optional: issuer claim for tokens (default: gatekeeper)
	AccessTTL     time.Duration // Optional: access token lifetime (default: 1h)

	DatabaseFile string // Optional: path to SQLite database file (default: ./gateway.db)

	ServiceABase string // Optional: base URL for external service A
	ServiceBBase string // Optional: base URL for external service B

	Breaker guardx.BreakerConfig // Outbound circuit breaker defaults
	Limiter guardx.LimiterConfig // Outbound rate limiter defaults

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

// LoadConfig reads the environment. Secret validation happens here so a
// misconfigured deployment dies at startup, not on the first login.
func LoadConfig() (Config, error) {
	cfg := Config{
		SigningSecret: os.Getenv("GATEWAY_SIGNING_SECRET"),
		Issuer:        getEnvOrDefault("GATEWAY_ISSUER", "gatekeeper"),
		AccessTTL:     getEnvDurationOrDefault("GATEWAY_ACCESS_TTL", time.Hour),
		DatabaseFile:  getEnvOrDefault("GATEWAY_DATABASE_FILE", "gateway.db"),
		ServiceABase:  getEnvOrDefault("GATEWAY_SERVICE_A_URL", "http://localhost:9091"),
		ServiceBBase:  getEnvOrDefault("GATEWAY_SERVICE_B_URL", "http://localhost:9092"),

		Breaker: guardx.BreakerConfig{
			FailureRateThreshold:      getEnvFloatOrDefault("GATEWAY_BREAKER_FAILURE_RATE_THRESHOLD", 50),
			SlowCallDurationThreshold: getEnvDurationOrDefault("GATEWAY_BREAKER_SLOW_CALL_THRESHOLD", 2*time.Second),
			WaitDurationInOpenState:   getEnvDurationOrDefault("GATEWAY_BREAKER_WAIT_IN_OPEN", 10*time.Second),
			PermittedCallsInHalfOpen:  getEnvIntOrDefault("GATEWAY_BREAKER_HALF_OPEN_CALLS", 3),
			MinimumNumberOfCalls:      getEnvIntOrDefault("GATEWAY_BREAKER_MIN_CALLS", 5),
			SlidingWindowSize:         getEnvIntOrDefault("GATEWAY_BREAKER_WINDOW_SIZE", 100),
		},
		Limiter: guardx.LimiterConfig{
			LimitForPeriod:  getEnvIntOrDefault("GATEWAY_LIMITER_LIMIT_FOR_PERIOD", 100),
			RefreshPeriod:   getEnvDurationOrDefault("GATEWAY_LIMITER_REFRESH_PERIOD", time.Second),
			TimeoutDuration: getEnvDurationOrDefault("GATEWAY_LIMITER_TIMEOUT", 100*time.Millisecond),
		},

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	if cfg.SigningSecret == "" {
		return Config{}, ErrMissingSecret
	}
	if len(cfg.SigningSecret) < jwtx.MinSecretLen {
		return Config{}, fmt.Errorf("app: GATEWAY_SIGNING_SECRET is %d bytes, need at least %d",
			len(cfg.SigningSecret), jwtx.MinSecretLen)
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
		return floatValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
