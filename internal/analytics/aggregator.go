// Package analytics answers the read-side queries behind dashboards and admin
// stats. It only ever reads click and link data; it never touches the hot
// redirect path or mutates any state.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/parthsharma2/linksight/internal/domain"
	"go.uber.org/zap"
)

const defaultRangeDays = 30

type Aggregator struct {
	clicks domain.ClickRepository
	logger *zap.Logger
}

func NewAggregator(clicks domain.ClickRepository, logger *zap.Logger) *Aggregator {
	return &Aggregator{clicks: clicks, logger: logger}
}

// DailySeries buckets clicks by UTC calendar date over the last rangeDays.
// Days without clicks are absent; callers needing dense series fill gaps at
// presentation time.
func (a *Aggregator) DailySeries(ctx context.Context, scope domain.ClickScope, rangeDays int) ([]domain.DayCount, error) {
	if rangeDays <= 0 {
		rangeDays = defaultRangeDays
	}

	since := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -(rangeDays - 1))
	series, err := a.clicks.DailySeries(ctx, scope, since)
	if err != nil {
		return nil, fmt.Errorf("daily series: %w", err)
	}
	return series, nil
}

// GroupBy breaks clicks down by device, browser or country, one bucket per
// observed value plus an explicit Unknown bucket, ordered by count descending
// with ties broken by first occurrence.
func (a *Aggregator) GroupBy(ctx context.Context, dimension domain.ClickDimension, scope domain.ClickScope) ([]domain.BucketCount, error) {
	switch dimension {
	case domain.DimensionDevice, domain.DimensionBrowser, domain.DimensionCountry:
	default:
		return nil, fmt.Errorf("unsupported dimension %q", dimension)
	}

	buckets, err := a.clicks.GroupBy(ctx, dimension, scope)
	if err != nil {
		return nil, fmt.Errorf("group by %s: %w", dimension, err)
	}
	return buckets, nil
}

// PlatformStats is the admin-only, platform-wide summary with no owner filter.
func (a *Aggregator) PlatformStats(ctx context.Context) (*domain.PlatformStats, error) {
	stats, err := a.clicks.PlatformStats(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("platform stats: %w", err)
	}
	return stats, nil
}

// LinkStats summarizes a single link for its stats endpoint.
func (a *Aggregator) LinkStats(ctx context.Context, link *domain.ShortLink) (*domain.LinkStats, error) {
	last, err := a.clicks.LastClicked(ctx, link.ShortID)
	if err != nil {
		return nil, fmt.Errorf("link stats: %w", err)
	}
	return &domain.LinkStats{
		ShortID:     link.ShortID,
		ClickCount:  link.ClickCount,
		LastClicked: last,
		CreatedAt:   link.CreatedAt,
	}, nil
}
