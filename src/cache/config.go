package cache

import (
	"os"
	"strconv"
	"time"
)

// RedisConfig holds connection settings for the room cache.
type RedisConfig struct {
	Addr     string        // Redis address, default "localhost:6379"
	Password string        // Redis password, default ""
	DB       int           // Redis database number, default 0
	Prefix   string        // Key prefix, default "chat:"
	TTL      time.Duration // Entry lifetime, default 5m
	Enabled  bool          // Disabled unless REDIS_ADDR is set
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "chat:",
		TTL:    5 * time.Minute,
	}
}

// RedisConfigFromEnv loads Redis configuration from environment variables.
// Falls back to defaults for any missing or unparsable values.
func RedisConfigFromEnv() *RedisConfig {
	cfg := DefaultRedisConfig()

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
		cfg.Enabled = true
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Password = pw
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			cfg.DB = db
		}
	}
	if prefix := os.Getenv("REDIS_PREFIX"); prefix != "" {
		cfg.Prefix = prefix
	}
	if ttl := os.Getenv("REDIS_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil && d > 0 {
			cfg.TTL = d
		}
	}
	return cfg
}
