package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 1000, cfg.MaxConnections)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Equal(t, 2000, cfg.MaxMessageLength)
	assert.True(t, cfg.ValidateRooms)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("CHAT_ADDR", ":9000")
	t.Setenv("CHAT_DB_PATH", "/tmp/chat.db")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL", "1h")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CHAT_PING_INTERVAL", "5s")
	t.Setenv("CHAT_MAX_FRAME_BYTES", "4096")
	t.Setenv("CHAT_RATE_PER_SECOND", "0")
	t.Setenv("CHAT_VALIDATE_ROOMS", "false")
	t.Setenv("CHAT_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := FromEnv()
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "/tmp/chat.db", cfg.DatabasePath)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.PingInterval)
	assert.Equal(t, int64(4096), cfg.MaxFrameBytes)
	assert.Zero(t, cfg.RatePerSecond)
	assert.False(t, cfg.ValidateRooms)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestFromEnvInvalidValuesKeepDefaults(t *testing.T) {
	t.Setenv("CHAT_PING_INTERVAL", "often")
	t.Setenv("CHAT_SEND_BUFFER", "-3")
	t.Setenv("CHAT_VALIDATE_ROOMS", "maybe")
	t.Setenv("CHAT_RATE_PER_SECOND", "fast")

	cfg := FromEnv()
	def := DefaultConfig()
	assert.Equal(t, def.PingInterval, cfg.PingInterval)
	assert.Equal(t, def.SendBuffer, cfg.SendBuffer)
	assert.Equal(t, def.ValidateRooms, cfg.ValidateRooms)
	assert.Equal(t, def.RatePerSecond, cfg.RatePerSecond)
}
