package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/docqa/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	catalogCachePrefix = "catalog:"
	defaultCatalogTTL  = 5 * time.Minute
)

// CatalogCache keeps each user's document catalog in Redis
type CatalogCache struct {
	client *Client
	ttl    time.Duration
}

// NewCatalogCache creates a new catalog cache
func NewCatalogCache(client *Client, ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	return &CatalogCache{client: client, ttl: ttl}
}

// Get returns the cached catalog for owner. ok is false on a miss.
func (c *CatalogCache) Get(ctx context.Context, owner string) ([]domain.DocumentRef, bool, error) {
	data, err := c.client.rdb.Get(ctx, catalogCachePrefix+owner).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read catalog: %w", err)
	}

	var docs []domain.DocumentRef
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}
	return docs, true, nil
}

// Set caches the catalog for owner
func (c *CatalogCache) Set(ctx context.Context, owner string, docs []domain.DocumentRef) error {
	data, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	return c.client.rdb.Set(ctx, catalogCachePrefix+owner, data, c.ttl).Err()
}

// Invalidate removes the cached catalog for owner
func (c *CatalogCache) Invalidate(ctx context.Context, owner string) error {
	return c.client.rdb.Del(ctx, catalogCachePrefix+owner).Err()
}
