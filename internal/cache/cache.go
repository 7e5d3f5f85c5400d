package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/creativeops/thumbselect/pkg/models"
)

// Cache provides read caching for per-parent asset lists using Redis.
// Entries are invalidated on every write that touches a parent's assets.
type Cache struct {
	client *redis.Client
}

// New creates a new cache instance
func New(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

func assetsKey(parentID string) string {
	return fmt.Sprintf("assets:%s", parentID)
}

// SetAssets caches the asset list for a parent entity
func (c *Cache) SetAssets(ctx context.Context, parentID string, assets []*models.VideoAsset, ttl time.Duration) error {
	data, err := json.Marshal(assets)
	if err != nil {
		return fmt.Errorf("failed to marshal assets: %w", err)
	}

	return c.client.Set(ctx, assetsKey(parentID), data, ttl).Err()
}

// GetAssets retrieves the cached asset list for a parent entity.
// A cache miss returns (nil, nil).
func (c *Cache) GetAssets(ctx context.Context, parentID string) ([]*models.VideoAsset, error) {
	data, err := c.client.Get(ctx, assetsKey(parentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get assets from cache: %w", err)
	}

	var assets []*models.VideoAsset
	if err := json.Unmarshal(data, &assets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assets: %w", err)
	}

	return assets, nil
}

// InvalidateAssets drops the cached asset list for a parent entity
func (c *Cache) InvalidateAssets(ctx context.Context, parentID string) error {
	return c.client.Del(ctx, assetsKey(parentID)).Err()
}

// Ping checks connectivity
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
