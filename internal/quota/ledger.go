// Package quota tracks per-subscription usage counters against plan limits.
//
// Link creation is a hard gate: the check and the increment happen in one
// atomic step so two concurrent creations can never both pass a stale read.
// Click usage is a soft counter that never gates the redirect path.
package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/parthsharma2/linksight/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// checkAndReserve compares the current counter against the limit and
// increments in the same script, returning -1 when the limit is reached.
// A negative limit means unlimited.
var checkAndReserve = redis.NewScript(`
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if limit >= 0 and used >= limit then
	return -1
end
local value = redis.call('INCR', KEYS[1])
local ttl = tonumber(ARGV[2])
if ttl > 0 then
	redis.call('EXPIRE', KEYS[1], ttl)
end
return value
`)

// RedisLedger keeps usage counters in Redis, one pair of keys per
// subscription and billing period. Period rollover is free: a new period
// reads fresh keys and old ones expire on their own.
type RedisLedger struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisLedger(client *redis.Client, logger *zap.Logger) *RedisLedger {
	return &RedisLedger{client: client, logger: logger}
}

func linksKey(sub *domain.Subscription) string {
	return fmt.Sprintf("quota:%s:%d:links", sub.ID, sub.PeriodStart.Unix())
}

func clicksKey(sub *domain.Subscription) string {
	return fmt.Sprintf("quota:%s:%d:clicks", sub.ID, sub.PeriodStart.Unix())
}

// keyTTL keeps counters around a week past the period end for late reads.
// A write against a long-closed period still gets a short positive TTL so
// its key cannot linger forever.
func keyTTL(sub *domain.Subscription) int64 {
	ttl := time.Until(sub.PeriodEnd.Add(7 * 24 * time.Hour))
	if ttl < time.Hour {
		ttl = time.Hour
	}
	return int64(ttl.Seconds())
}

func (l *RedisLedger) CheckAndReserveLink(ctx context.Context, sub *domain.Subscription) error {
	result, err := checkAndReserve.Run(ctx, l.client,
		[]string{linksKey(sub)},
		sub.Plan.MaxLinks, keyTTL(sub),
	).Int64()
	if err != nil {
		return fmt.Errorf("reserve link quota: %w", err)
	}
	if result < 0 {
		return domain.ErrQuotaExceeded
	}
	return nil
}

// ReleaseLink undoes a reservation when the creation it guarded fails.
func (l *RedisLedger) ReleaseLink(ctx context.Context, sub *domain.Subscription) error {
	if err := l.client.Decr(ctx, linksKey(sub)).Err(); err != nil {
		return fmt.Errorf("release link quota: %w", err)
	}
	return nil
}

// IncrementClicksUsed bumps the soft counter. Failures are logged, never
// propagated; click quota is advisory.
func (l *RedisLedger) IncrementClicksUsed(ctx context.Context, sub *domain.Subscription, delta int64) error {
	key := clicksKey(sub)
	pipe := l.client.TxPipeline()
	pipe.IncrBy(ctx, key, delta)
	pipe.ExpireNX(ctx, key, time.Duration(keyTTL(sub))*time.Second)
	_, err := pipe.Exec(ctx)
	if err != nil {
		l.logger.Warn("failed to increment click usage",
			zap.String("subscription_id", sub.ID),
			zap.Error(err),
		)
		return fmt.Errorf("increment click usage: %w", err)
	}
	return nil
}

func (l *RedisLedger) CurrentUsage(ctx context.Context, sub *domain.Subscription) (*domain.Usage, error) {
	values, err := l.client.MGet(ctx, linksKey(sub), clicksKey(sub)).Result()
	if err != nil {
		return nil, fmt.Errorf("read quota usage: %w", err)
	}

	usage := &domain.Usage{
		SubscriptionID: sub.ID,
		PeriodStart:    sub.PeriodStart,
		PeriodEnd:      sub.PeriodEnd,
		MaxLinks:       sub.Plan.MaxLinks,
		MaxClicks:      sub.Plan.MaxClicks,
	}
	usage.LinksUsed = parseCounter(values[0])
	usage.ClicksUsed = parseCounter(values[1])
	return usage, nil
}

func parseCounter(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
