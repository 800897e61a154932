package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/parthsharma2/linksight/internal/domain"
	"github.com/parthsharma2/linksight/internal/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

const linkCachePrefix = "link:"

// RedisLinkCache fronts the link store on the redirect hot path with a
// cache-aside entry per short code.
type RedisLinkCache struct {
	client     *redis.Client
	defaultTTL time.Duration
	m          *metrics.Metrics
}

func NewRedisLinkCache(client *redis.Client, defaultTTL time.Duration, m *metrics.Metrics) *RedisLinkCache {
	return &RedisLinkCache{
		client:     client,
		defaultTTL: defaultTTL,
		m:          m,
	}
}

func (r *RedisLinkCache) Get(ctx context.Context, shortID string) (*domain.ShortLink, error) {
	key := linkCachePrefix + shortID

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			if r.m != nil {
				r.m.CacheMissesTotal.WithLabelValues("get_link").Inc()
			}
			return nil, nil
		}
		if r.m != nil {
			r.m.CacheErrors.WithLabelValues("get_link").Inc()
		}
		return nil, err
	}

	var link domain.ShortLink
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, err
	}

	if r.m != nil {
		r.m.CacheHitsTotal.WithLabelValues("get_link").Inc()
	}
	return &link, nil
}

func (r *RedisLinkCache) Set(ctx context.Context, link *domain.ShortLink, ttl time.Duration) error {
	if ttl == 0 {
		ttl = r.defaultTTL
	}

	key := linkCachePrefix + link.ShortID
	data, err := json.Marshal(link)
	if err != nil {
		return err
	}
	err = r.client.Set(ctx, key, data, ttl).Err()
	if err != nil && r.m != nil {
		r.m.CacheErrors.WithLabelValues("set_link").Inc()
	}
	return err
}

// Delete invalidates a cached entry. Update and Delete on the link store must
// call this so stale destinations or active flags never outlive an edit.
func (r *RedisLinkCache) Delete(ctx context.Context, shortID string) error {
	err := r.client.Del(ctx, linkCachePrefix+shortID).Err()
	if err != nil && r.m != nil {
		r.m.CacheErrors.WithLabelValues("delete_link").Inc()
	}
	return err
}
