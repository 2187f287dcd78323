// Package cache puts a Redis cache-aside layer in front of room lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/orchestra-mcp/chat/src/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// RoomSource is the authoritative room lookup.
type RoomSource interface {
	GetRoomBySlug(ctx context.Context, slug string) (*store.Room, error)
	RoomExists(ctx context.Context, id string) (bool, error)
}

// Stats tracks cache outcomes.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Errors uint64 `json:"errors"`
}

// Rooms serves room lookups from Redis, falling back to the source on a
// miss or a Redis error. A nil client disables caching.
type Rooms struct {
	client *redis.Client
	src    RoomSource
	prefix string
	ttl    time.Duration
	logger zerolog.Logger

	sf    singleflight.Group
	stats Stats
}

// NewRooms creates a cached view over src.
func NewRooms(client *redis.Client, src RoomSource, prefix string, ttl time.Duration, logger zerolog.Logger) *Rooms {
	return &Rooms{
		client: client,
		src:    src,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With().Str("component", "room-cache").Logger(),
	}
}

// NewClient builds a Redis client from cfg and checks it with a ping.
func NewClient(ctx context.Context, cfg *RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// GetRoomBySlug returns the room for slug. Missing rooms are not cached.
func (r *Rooms) GetRoomBySlug(ctx context.Context, slug string) (*store.Room, error) {
	key := r.prefix + "room:slug:" + slug

	var cached store.Room
	if r.get(ctx, key, &cached) {
		return &cached, nil
	}

	val, err, _ := r.sf.Do(key, func() (any, error) {
		return r.src.GetRoomBySlug(ctx, slug)
	})
	if err != nil {
		return nil, err
	}
	room := val.(*store.Room)
	r.set(ctx, key, room)
	return room, nil
}

// RoomExists reports whether the room id exists. Only positive answers are
// cached so a room created later is seen immediately.
func (r *Rooms) RoomExists(ctx context.Context, id string) (bool, error) {
	key := r.prefix + "room:id:" + id

	var exists bool
	if r.get(ctx, key, &exists) && exists {
		return true, nil
	}

	val, err, _ := r.sf.Do(key, func() (any, error) {
		return r.src.RoomExists(ctx, id)
	})
	if err != nil {
		return false, err
	}
	exists = val.(bool)
	if exists {
		r.set(ctx, key, true)
	}
	return exists, nil
}

// Stats returns a snapshot of the counters.
func (r *Rooms) Stats() Stats {
	return Stats{
		Hits:   atomic.LoadUint64(&r.stats.Hits),
		Misses: atomic.LoadUint64(&r.stats.Misses),
		Errors: atomic.LoadUint64(&r.stats.Errors),
	}
}

func (r *Rooms) get(ctx context.Context, key string, dest any) bool {
	if r.client == nil {
		return false
	}
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			atomic.AddUint64(&r.stats.Misses, 1)
			return false
		}
		atomic.AddUint64(&r.stats.Errors, 1)
		r.logger.Warn().Err(err).Str("key", key).Msg("cache get failed")
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		atomic.AddUint64(&r.stats.Errors, 1)
		r.logger.Warn().Err(err).Str("key", key).Msg("cache entry corrupt")
		return false
	}
	atomic.AddUint64(&r.stats.Hits, 1)
	return true
}

func (r *Rooms) set(ctx context.Context, key string, value any) {
	if r.client == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		atomic.AddUint64(&r.stats.Errors, 1)
		return
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		atomic.AddUint64(&r.stats.Errors, 1)
		r.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}
