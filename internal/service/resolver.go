package service

import (
	"context"
	"time"

	"github.com/parthsharma2/linksight/internal/domain"
	"github.com/parthsharma2/linksight/internal/pkg/metrics"
	"go.uber.org/zap"
)

// ClickSink accepts raw click events without blocking. It reports acceptance
// so callers can count drops, but the resolver never acts on a refusal.
type ClickSink interface {
	Ingest(event domain.RawClick) bool
}

// Hit carries the request attributes a successful redirect hands to the click
// pipeline.
type Hit struct {
	UserAgent string
	IPAddress string
	Referrer  string
}

// Resolver is the hot path: one key lookup, a validity check, and a
// non-blocking click hand-off. Nothing else is allowed to add latency here.
type Resolver struct {
	links    domain.LinkRepository
	cache    domain.LinkCache
	sink     ClickSink
	logger   *zap.Logger
	m        *metrics.Metrics
	cacheTTL time.Duration
	timeout  time.Duration
}

func NewResolver(
	links domain.LinkRepository,
	cache domain.LinkCache,
	sink ClickSink,
	logger *zap.Logger,
	m *metrics.Metrics,
	cacheTTL time.Duration,
	timeout time.Duration,
) *Resolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Resolver{
		links:    links,
		cache:    cache,
		sink:     sink,
		logger:   logger,
		m:        m,
		cacheTTL: cacheTTL,
		timeout:  timeout,
	}
}

// Resolve maps a short code to its destination. Not-found, expired and
// inactive are first-class outcomes, not errors in the transient sense; only
// expired/inactive-free, active links produce click events.
func (r *Resolver) Resolve(ctx context.Context, shortID string, hit Hit) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	link, err := r.lookup(ctx, shortID)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	// expiry wins over the active flag
	if link.IsExpired(now) {
		if r.m != nil {
			r.m.ExpiredHitsTotal.Inc()
		}
		return "", domain.ErrLinkExpired
	}
	if !link.IsActive {
		if r.m != nil {
			r.m.ExpiredHitsTotal.Inc()
		}
		return "", domain.ErrLinkInactive
	}

	if r.sink != nil {
		r.sink.Ingest(domain.RawClick{
			ShortID:   link.ShortID,
			OwnerID:   link.OwnerID,
			Timestamp: now,
			UserAgent: hit.UserAgent,
			IPAddress: hit.IPAddress,
			Referrer:  hit.Referrer,
		})
	}

	if r.m != nil {
		r.m.RedirectsTotal.Inc()
	}
	return link.OriginalURL, nil
}

// lookup is cache-aside: cache errors degrade to a store read, never to a
// failed resolve.
func (r *Resolver) lookup(ctx context.Context, shortID string) (*domain.ShortLink, error) {
	if r.cache != nil {
		link, err := r.cache.Get(ctx, shortID)
		if err != nil {
			r.logger.Warn("link cache read failed",
				zap.String("short_id", shortID),
				zap.Error(err),
			)
		}
		if link != nil {
			return link, nil
		}
	}

	link, err := r.links.Get(ctx, shortID)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, link, r.cacheTTL); err != nil {
			r.logger.Warn("link cache write failed",
				zap.String("short_id", shortID),
				zap.Error(err),
			)
		}
	}
	return link, nil
}
