package query

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache guarda resumos serializados em JSON no Redis com TTL curto
type Cache struct{ R *redis.Client }

func NewCache(r *redis.Client) *Cache { return &Cache{R: r} }

func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *Cache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, _ := json.Marshal(v)
	return c.R.Set(ctx, key, b, ttl).Err()
}
