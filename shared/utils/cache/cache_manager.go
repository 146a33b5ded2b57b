package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nko-map-backend/shared/config"
)

const (
	listingPrefix = "npo:list:"
	generationKey = "npo:list-generation"
)

type CacheManager struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisClient connects to redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewCacheManager(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *CacheManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheManager{client: client, ttl: ttl, logger: logger}
}

func listingKey(generation int64, key string) string {
	return fmt.Sprintf("%s%d:%s", listingPrefix, generation, key)
}

// ListingGeneration returns the current listing generation, 0 before the
// first invalidation.
func (cm *CacheManager) ListingGeneration(ctx context.Context) (int64, error) {
	gen, err := cm.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get listing generation: %w", err)
	}
	return gen, nil
}

// GetListing loads a cached listing page into dest. A miss is not an error.
func (cm *CacheManager) GetListing(ctx context.Context, generation int64, key string, dest interface{}) (bool, error) {
	cacheKey := listingKey(generation, key)
	raw, err := cm.client.Get(ctx, cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get cache: %w", err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		// a corrupt entry is dropped and treated as a miss
		cm.client.Del(ctx, cacheKey)
		return false, nil
	}
	return true, nil
}

func (cm *CacheManager) SetListing(ctx context.Context, generation int64, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}
	if err := cm.client.Set(ctx, listingKey(generation, key), data, cm.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// InvalidateListings advances the generation, then drops every cached page.
func (cm *CacheManager) InvalidateListings(ctx context.Context) error {
	gen, err := cm.client.Incr(ctx, generationKey).Result()
	if err != nil {
		return fmt.Errorf("failed to advance listing generation: %w", err)
	}

	deleted, err := cm.invalidateByPattern(ctx, listingPrefix+"*")
	if err != nil {
		return err
	}
	cm.logger.Debug("listing cache invalidated", zap.Int64("generation", gen), zap.Int("keys", deleted))
	return nil
}

func (cm *CacheManager) invalidateByPattern(ctx context.Context, pattern string) (int, error) {
	iter := cm.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan keys: %w", err)
	}

	if len(keys) > 0 {
		if err := cm.client.Del(ctx, keys...).Err(); err != nil {
			return 0, fmt.Errorf("failed to delete keys: %w", err)
		}
	}
	return len(keys), nil
}

// Ping reports whether redis is reachable.
func (cm *CacheManager) Ping(ctx context.Context) error {
	return cm.client.Ping(ctx).Err()
}

func (cm *CacheManager) Close() error {
	return cm.client.Close()
}
