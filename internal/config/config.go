package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Development bool
	// API configuration
	APIPort        int
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string

	// Storage backend, postgres or memory
	Storage string
	// Postgres configuration
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	PostgresSSLMode  string

	// Auth configuration
	JWTSecret string
	JWTTTL    time.Duration

	// Card gateway configuration
	TossBaseURL    string
	TossSecretKey  string
	GatewayTimeout time.Duration

	// Billing configuration
	SubscriptionRenewal string
	SweepInterval       time.Duration
	InstanceID          string

	// SMTP configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string

	// Notification configuration
	TelegramBotToken string
}

// EmailEnabled reports whether receipts should also go out by email.
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPSender != ""
}

// LoadConfig loads the configuration from environment variables. Callers
// apply flag overrides and then call Validate.
func LoadConfig() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:    getEnvAsBool("DEVELOPMENT", false),
		APIPort:        getEnvAsInt("API_PORT", 8000),
		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 20),
		CORSOrigins:    getEnvAsSlice("CORS_ORIGINS", []string{"*"}),

		Storage:          getEnv("STORAGE", StoragePostgres),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "cobia"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTTTL:    getEnvAsDuration("JWT_TTL", 24*time.Hour),

		TossBaseURL:    getEnv("TOSS_API_URL", "https://api.tosspayments.com"),
		TossSecretKey:  getEnv("TOSS_SECRET_KEY", ""),
		GatewayTimeout: getEnvAsDuration("GATEWAY_TIMEOUT", 10*time.Second),

		SubscriptionRenewal: getEnv("SUBSCRIPTION_RENEWAL", "extend"),
		SweepInterval:       getEnvAsDuration("SWEEP_INTERVAL", 5*time.Minute),
		InstanceID:          getEnv("INSTANCE_ID", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPSender:   getEnv("SMTP_SENDER", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
	}

	return cfg
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}

	switch c.Storage {
	case StoragePostgres:
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required")
		}
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("invalid STORAGE %q: must be %s or %s", c.Storage, StoragePostgres, StorageMemory)
	}

	if c.SubscriptionRenewal != "extend" && c.SubscriptionRenewal != "reset" {
		return fmt.Errorf("invalid SUBSCRIPTION_RENEWAL %q: must be extend or reset", c.SubscriptionRenewal)
	}

	if c.TossBaseURL == "" {
		return fmt.Errorf("TOSS_API_URL is required")
	}

	// Development may run without a gateway key
	if c.TossSecretKey == "" && !c.Development {
		return fmt.Errorf("TOSS_SECRET_KEY is required")
	}

	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	return nil
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsFloat(name string, defaultValue float64) float64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

// getEnvAsSlice splits a comma separated value, dropping empty entries.
func getEnvAsSlice(name string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(name)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
