// Package config centralises runtime configuration for triplan.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration values.
type Config struct {
	HTTPAddress      string
	HTTPWriteTimeout time.Duration

	DBDriver string
	DBDSN    string

	OpenAIKey         string
	OpenAIBaseURL     string
	OpenAIModel       string
	OpenAITemperature float64
	OpenAIMaxTokens   int
	GenerationPause   time.Duration

	SecretKey    string
	SessionStore string
	SessionTTL   time.Duration
	RedisURL     string

	KafkaBrokers []string
	KafkaTopic   string

	LogLevel  string
	LogFormat string
}

// Load reads a .env file when present and then the process environment,
// applying defaults suitable for local use.
func Load() Config {
	_ = godotenv.Load()

	driver := getEnv("DB_DRIVER", "sqlite")
	return Config{
		HTTPAddress:       getEnv("HTTP_ADDRESS", ":8000"),
		HTTPWriteTimeout:  getDurationEnv("HTTP_WRITE_TIMEOUT", 120*time.Second),
		DBDriver:          driver,
		DBDSN:             getEnv("DB_DSN", defaultDSN(driver)),
		OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAITemperature: getFloatEnv("OPENAI_TEMPERATURE", 0.85),
		OpenAIMaxTokens:   getIntEnv("OPENAI_MAX_TOKENS", 2000),
		GenerationPause:   getDurationEnv("GENERATION_PAUSE", 500*time.Millisecond),
		SecretKey:         getEnv("SECRET_KEY", "dev-secret-change-me"),
		SessionStore:      strings.ToLower(getEnv("SESSION_STORE", "cookie")),
		SessionTTL:        getDurationEnv("SESSION_TTL", 30*24*time.Hour),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		KafkaBrokers:      splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "triplan.plan-events"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}
}

// Validate rejects combinations the service cannot start with.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "sqlite3", "pgx", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.SessionStore {
	case "cookie", "redis":
	default:
		return fmt.Errorf("unsupported SESSION_STORE %q", c.SessionStore)
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return fmt.Errorf("SECRET_KEY must not be empty")
	}
	if c.OpenAIMaxTokens <= 0 {
		return fmt.Errorf("OPENAI_MAX_TOKENS must be > 0")
	}
	return nil
}

// defaultDSN returns a local DSN in the syntax the driver understands. The
// two SQLite drivers spell the foreign key pragma differently.
func defaultDSN(driver string) string {
	switch driver {
	case "sqlite3":
		return "file:triathlon.db?_foreign_keys=1"
	case "pgx", "postgres":
		return "postgres://localhost:5432/triplan?sslmode=disable"
	default:
		return "file:triathlon.db?_pragma=foreign_keys(1)"
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
