package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_ADDRESS", "ADMIN_ADDRESS", "ENVIRONMENT", "AWS_REGION",
		"TABLE_NAME", "DYNAMODB_TABLE", "EVENT_BUS_NAME", "LOG_LEVEL",
		"JWT_SECRET", "ENABLE_TRACING", "ENABLE_CORS", "CORS_ORIGINS",
		"DEPENDENCY_FREE", "THROW_IDEMPOTENCY_EXCEPTIONS", "FLUSH_RETRIES",
		"FLUSH_INTERVAL_MS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadAppliesDefaultsWhenUnset(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, ":8081", cfg.AdminAddress)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 10, cfg.FlushRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.FlushInterval)
	assert.Equal(t, "", cfg.EventBusName)
}

func TestLoadFailsInProductionWithoutJWTSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("TABLE_NAME", "accessgraph")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadSucceedsInProductionWithRequiredSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("TABLE_NAME", "accessgraph")
	t.Setenv("JWT_SECRET", "s3cr3t")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestGetEnvListSplitsOnComma(t *testing.T) {
	clearEnv(t)
	t.Setenv("CORS_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
}

func TestTableNameFallsBackToLegacyEnvVar(t *testing.T) {
	clearEnv(t)
	t.Setenv("DYNAMODB_TABLE", "legacy-table")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "legacy-table", cfg.DynamoDBTable)
}
