package catalog

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/singleflight"
)

type Checker interface {
	ProductExists(ctx context.Context, productID string) (bool, error)
}

// キャッシュの最小限の約束（テストではmapで差し替える）
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

const (
	valueExists  = "1"
	valueMissing = "0"
)

// cache-aside。同じ商品の同時ミスはsingleflightで1回にまとめる
type CachedCatalog struct {
	next  Checker
	cache Cache
	group singleflight.Group
	ttl   time.Duration
}

func NewCachedCatalog(next Checker, cache Cache, ttl time.Duration) *CachedCatalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedCatalog{next: next, cache: cache, ttl: ttl}
}

func cacheKey(productID string) string {
	return "catalog:product:" + productID
}

func (c *CachedCatalog) ProductExists(ctx context.Context, productID string) (bool, error) {
	key := cacheKey(productID)
	//キャッシュが落ちていても本体を見に行く
	if v, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		return v == valueExists, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			return v == valueExists, nil
		}
		exists, err := c.next.ProductExists(ctx, productID)
		if err != nil {
			return false, err
		}
		value := valueMissing
		if exists {
			value = valueExists
		}
		_ = c.cache.Set(ctx, key, value, c.ttl)
		return exists, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Redis実装
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}
