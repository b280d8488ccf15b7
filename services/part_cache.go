package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kendall-kelly/motorhub-api/config"
	"github.com/kendall-kelly/motorhub-api/logger"
	"github.com/kendall-kelly/motorhub-api/models"
)

const notFoundMarker = "notfound"

// PartLoader reads a part from the database
type PartLoader func(ctx context.Context) (*models.CarPart, error)

// PartCache is a read-through cache of parts by id
type PartCache interface {
	Get(ctx context.Context, id uuid.UUID, load PartLoader) (*models.CarPart, error)
	Invalidate(ctx context.Context, ids ...uuid.UUID)
}

var (
	partCacheMu       sync.RWMutex
	partCacheInstance PartCache
)

// GetPartCache returns the configured part cache, or a pass-through cache if none was set
func GetPartCache() PartCache {
	partCacheMu.RLock()
	defer partCacheMu.RUnlock()
	if partCacheInstance == nil {
		return NoopPartCache{}
	}
	return partCacheInstance
}

// SetPartCache sets the part cache instance
func SetPartCache(c PartCache) {
	partCacheMu.Lock()
	partCacheInstance = c
	partCacheMu.Unlock()
}

// NoopPartCache always loads from the database
type NoopPartCache struct{}

func (NoopPartCache) Get(ctx context.Context, id uuid.UUID, load PartLoader) (*models.CarPart, error) {
	return load(ctx)
}

func (NoopPartCache) Invalidate(ctx context.Context, ids ...uuid.UUID) {}

// NewRedisClient creates a go-redis client from the application configuration
func NewRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// RedisPartCache caches parts as JSON in Redis. Missing parts are cached
// briefly so repeated lookups of unknown ids skip the database.
type RedisPartCache struct {
	client      *redis.Client
	ttl         time.Duration
	notFoundTTL time.Duration
}

// NewRedisPartCache creates a cache on top of client
func NewRedisPartCache(client *redis.Client) *RedisPartCache {
	return &RedisPartCache{
		client:      client,
		ttl:         5 * time.Minute,
		notFoundTTL: time.Minute,
	}
}

func partKey(id uuid.UUID) string {
	return fmt.Sprintf("part:%s", id)
}

func (c *RedisPartCache) Get(ctx context.Context, id uuid.UUID, load PartLoader) (*models.CarPart, error) {
	key := partKey(id)
	log := logger.L().With(zap.String("key", key))

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(data) == notFoundMarker {
			return nil, notFound("PART_NOT_FOUND", "part %s not found", id)
		}
		var part models.CarPart
		if err := json.Unmarshal(data, &part); err != nil {
			log.Warn("failed to unmarshal cached part, continuing with database", zap.Error(err))
			break
		}
		return &part, nil
	case errors.Is(err, redis.Nil):
	default:
		log.Warn("redis error, continuing with database", zap.Error(err))
	}

	part, err := load(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if setErr := c.client.Set(ctx, key, notFoundMarker, c.notFoundTTL).Err(); setErr != nil {
				log.Warn("failed to cache missing part", zap.Error(setErr))
			}
		}
		return nil, err
	}

	cached := *part
	cached.ImageURL = nil
	jsonData, err := json.Marshal(cached)
	if err != nil {
		log.Warn("failed to marshal part", zap.Error(err))
		return part, nil
	}
	if err := c.client.Set(ctx, key, jsonData, c.ttl).Err(); err != nil {
		log.Warn("failed to cache part", zap.Error(err))
	}

	return part, nil
}

func (c *RedisPartCache) Invalidate(ctx context.Context, ids ...uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = partKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.L().Warn("failed to invalidate part cache", zap.Strings("keys", keys), zap.Error(err))
	}
}
