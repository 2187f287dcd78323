package main

import (
	"context"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/orchestra-mcp/chat/config"
	"github.com/orchestra-mcp/chat/providers"
	"github.com/orchestra-mcp/chat/src/cache"
	"github.com/orchestra-mcp/chat/src/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

func main() {
	cfg := config.FromEnv()
	logger := newLogger(cfg)

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("failed to open database")
	}
	st, err := store.New(db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create store")
	}

	// Optional room cache. The server runs without it if Redis is not reachable.
	redisCfg := cache.RedisConfigFromEnv()
	var redisClient *redis.Client
	if redisCfg.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err = cache.NewClient(ctx, redisCfg)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, running without room cache")
		} else {
			logger.Info().Str("redis_addr", redisCfg.Addr).Msg("room cache connected")
		}
	}

	chat := providers.NewChatServer(cfg, st, redisClient, redisCfg, logger)
	if err := chat.Activate(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("failed to activate chat server")
	}

	server := &fasthttp.Server{
		Handler:      chat.Handler(),
		Name:         "chat",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("listening")
		if err := server.ListenAndServe(cfg.Addr); err != nil {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"chat": func(ctx context.Context) error {
				logger.Info().Msg("graceful shutdown initiated")
				// Close sockets first so the HTTP server has no hijacked
				// connections left to wait for.
				if err := chat.Deactivate(); err != nil {
					logger.Error().Err(err).Msg("chat deactivate failed")
				}
				if err := server.ShutdownWithContext(ctx); err != nil {
					return err
				}
				if redisClient != nil {
					redisClient.Close()
				}
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		},
	)

	exitCode := <-wait
	logger.Info().Int("exit_code", exitCode).Msg("chat server exited")
	os.Exit(exitCode)
}

func newLogger(cfg *config.ChatConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("service", "chat").Logger()
}
