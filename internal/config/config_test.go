package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_HOST", "APP_PORT", "WS_MAX_MESSAGE_SIZE", "WS_SEND_BUFFER", "CHAT_PERSIST_TIMEOUT_SECONDS", "OTEL_ENABLED", "REDIS_URL", "NATS_URL"} {
		t.Setenv(key, "")
	}
	t.Setenv("APP_HOST", "0.0.0.0")
	t.Setenv("APP_PORT", "8080")

	cfg := Load()

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, int64(4096), cfg.Chat.MaxMessageSize)
	assert.Equal(t, 256, cfg.Chat.SendBuffer)
	assert.Equal(t, 5*time.Second, cfg.Chat.PersistTimeout)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Empty(t, cfg.App.RedisURL)
	assert.Empty(t, cfg.App.NatsURL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://chat@localhost/chat")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("WS_SEND_BUFFER", "32")
	t.Setenv("USER_CACHE_TTL_SECONDS", "60")
	t.Setenv("GO_ENV", "production")

	cfg := Load()

	assert.Equal(t, "9000", cfg.App.Port)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 32, cfg.Chat.SendBuffer)
	assert.Equal(t, time.Minute, cfg.Auth.UserCacheTTL)
	assert.True(t, cfg.IsProduction())
	require.NoError(t, cfg.Validate())
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("WS_MAX_MESSAGE_SIZE", "-1")
	t.Setenv("WS_SEND_BUFFER", "lots")

	cfg := Load()

	assert.Equal(t, int64(4096), cfg.Chat.MaxMessageSize)
	assert.Equal(t, 256, cfg.Chat.SendBuffer)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.EqualError(t, cfg.Validate(), "DATABASE_URL is required")

	cfg.Database.Connection = "postgres://localhost/chat"
	assert.EqualError(t, cfg.Validate(), "JWT_SECRET is required")

	cfg.Auth.JWTSecret = "secret"
	assert.NoError(t, cfg.Validate())
}
