// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package tenant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/skpdportal/internal/platform/constants"
)

// noTenantMarker is cached for hosts that match no tenant.
const noTenantMarker = "-"

// RedisCache implements [Cache] using Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis-backed Cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

/*
Get retrieves a cached resolution.

Returns:
  - *int64: Tenant id, nil for a cached negative result
  - bool: false on a cache miss
  - error: Connectivity errors or a corrupted entry
*/
func (cache *RedisCache) Get(context context.Context, host string) (*int64, bool, error) {
	value, err := cache.client.Get(context, constants.RedisPrefixTenantHost+host).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis_tenant_cache_get_failed: %w", err)
	}

	if value == noTenantMarker {
		return nil, true, nil
	}

	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("redis_tenant_cache_corrupt_entry: %w", err)
	}

	return &id, true, nil
}

// Set stores a resolution with the given TTL.
func (cache *RedisCache) Set(context context.Context, host string, tenantID *int64, ttl time.Duration) error {
	value := noTenantMarker
	if tenantID != nil {
		value = strconv.FormatInt(*tenantID, 10)
	}

	if err := cache.client.Set(context, constants.RedisPrefixTenantHost+host, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis_tenant_cache_set_failed: %w", err)
	}
	return nil
}
