// Package config loads the engine's runtime configuration from the
// environment, grounded on the teacher's infrastructure/config/config.go
// getEnv/getEnvBool/getEnvInt idiom.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every environment-sourced setting the coordinator, node
// and admin processes need to boot.
type Config struct {
	ServerAddress string
	AdminAddress  string
	Environment   string

	AWSRegion     string
	DynamoDBTable string
	EventBusName  string

	LogLevel string

	JWTSecret string

	EnableTracing bool
	EnableCORS    bool
	CORSOrigins   []string

	DependencyFree             bool
	ThrowIdempotencyExceptions bool

	FlushRetries  int
	FlushInterval time.Duration
}

// Load reads Config from the process environment, applying the same
// defaults-plus-override pattern as the teacher's LoadConfig.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		AdminAddress:  getEnv("ADMIN_ADDRESS", ":8081"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable: getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", "accessgraph")),
		EventBusName:  getEnv("EVENT_BUS_NAME", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		EnableTracing: getEnvBool("ENABLE_TRACING", false),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
		CORSOrigins:   getEnvList("CORS_ORIGINS", []string{"*"}),

		DependencyFree:             getEnvBool("DEPENDENCY_FREE", false),
		ThrowIdempotencyExceptions: getEnvBool("THROW_IDEMPOTENCY_EXCEPTIONS", false),

		FlushRetries:  getEnvInt("FLUSH_RETRIES", 10),
		FlushInterval: time.Duration(getEnvInt("FLUSH_INTERVAL_MS", 200)) * time.Millisecond,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that matter in production.
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.DynamoDBTable == "" {
			return fmt.Errorf("TABLE_NAME is required")
		}
	}
	return nil
}

// IsProduction reports whether this process is configured for production.
func (c *Config) IsProduction() bool { return c.Environment == "production" }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	start := 0
	for i := 0; i <= len(value); i++ {
		if i == len(value) || value[i] == ',' {
			if i > start {
				out = append(out, value[start:i])
			}
			start = i + 1
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
