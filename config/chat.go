package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ChatConfig holds chat server configuration.
type ChatConfig struct {
	Addr         string        `json:"addr"`
	DatabasePath string        `json:"database_path"`
	JWTSecret    string        `json:"-"`
	JWTIssuer    string        `json:"jwt_issuer"`
	TokenTTL     time.Duration `json:"token_ttl"`
	BcryptCost   int           `json:"bcrypt_cost"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"` // "json" or "console"

	MaxConnections   int           `json:"max_connections"`
	PingInterval     time.Duration `json:"ping_interval"`
	WriteTimeout     time.Duration `json:"write_timeout"`
	ReadBufferSize   int           `json:"read_buffer_size"`
	WriteBufferSize  int           `json:"write_buffer_size"`
	MaxFrameBytes    int64         `json:"max_frame_bytes"`
	SendBuffer       int           `json:"send_buffer"`
	MaxMessageLength int           `json:"max_message_length"`
	PersistTimeout   time.Duration `json:"persist_timeout"`
	ValidateRooms    bool          `json:"validate_rooms"`
	RatePerSecond    float64       `json:"rate_per_second"`
	RateBurst        int           `json:"rate_burst"`
	// AllowedOrigins lists accepted WebSocket Origin headers. Empty allows any.
	AllowedOrigins  []string      `json:"allowed_origins"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// DefaultConfig returns the default chat configuration.
func DefaultConfig() *ChatConfig {
	return &ChatConfig{
		Addr:             ":8080",
		DatabasePath:     "chat.db",
		JWTSecret:        "change-me",
		JWTIssuer:        "chat",
		TokenTTL:         24 * time.Hour,
		BcryptCost:       12,
		LogLevel:         "info",
		LogFormat:        "json",
		MaxConnections:   1000,
		PingInterval:     30 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		MaxFrameBytes:    16 * 1024,
		SendBuffer:       256,
		MaxMessageLength: 2000,
		PersistTimeout:   5 * time.Second,
		ValidateRooms:    true,
		RatePerSecond:    5,
		RateBurst:        10,
		ShutdownTimeout:  10 * time.Second,
	}
}

// FromEnv loads configuration from environment variables on top of the
// defaults. Unparsable values keep their default.
func FromEnv() *ChatConfig {
	cfg := DefaultConfig()

	setString(&cfg.Addr, "CHAT_ADDR")
	setString(&cfg.DatabasePath, "CHAT_DB_PATH")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.JWTIssuer, "JWT_ISSUER")
	setDuration(&cfg.TokenTTL, "JWT_TTL")
	setInt(&cfg.BcryptCost, "CHAT_BCRYPT_COST")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
	setInt(&cfg.MaxConnections, "CHAT_MAX_CONNECTIONS")
	setDuration(&cfg.PingInterval, "CHAT_PING_INTERVAL")
	setDuration(&cfg.WriteTimeout, "CHAT_WRITE_TIMEOUT")
	setInt(&cfg.SendBuffer, "CHAT_SEND_BUFFER")
	setInt(&cfg.MaxMessageLength, "CHAT_MAX_MESSAGE_LENGTH")
	setDuration(&cfg.PersistTimeout, "CHAT_PERSIST_TIMEOUT")
	setDuration(&cfg.ShutdownTimeout, "CHAT_SHUTDOWN_TIMEOUT")
	setInt(&cfg.RateBurst, "CHAT_RATE_BURST")

	if v := os.Getenv("CHAT_MAX_FRAME_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxFrameBytes = n
		}
	}
	if v := os.Getenv("CHAT_RATE_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.RatePerSecond = f
		}
	}
	if v := os.Getenv("CHAT_VALIDATE_ROOMS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ValidateRooms = b
		}
	}
	if v := os.Getenv("CHAT_ALLOWED_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	return cfg
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}
