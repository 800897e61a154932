package domain

import (
	"context"
	"time"
)

// LinkRepository is the durable store for ShortLink records. Create relies on
// a storage-level unique constraint on ShortID and reports a violation as
// ErrAliasTaken; IncrementClickCount must be a single atomic increment at the
// storage layer.
type LinkRepository interface {
	Create(ctx context.Context, link *ShortLink) error
	Get(ctx context.Context, shortID string) (*ShortLink, error)
	Update(ctx context.Context, shortID, ownerID string, patch LinkPatch) (*ShortLink, error)
	Delete(ctx context.Context, shortID, ownerID string) error
	IncrementClickCount(ctx context.Context, shortID string, delta int64) error
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]ShortLink, int64, error)
}

// ClickDimension names a GroupBy breakdown axis.
type ClickDimension string

const (
	DimensionDevice  ClickDimension = "device"
	DimensionBrowser ClickDimension = "browser"
	DimensionCountry ClickDimension = "country"
)

// ClickScope narrows an aggregation query. Zero value means platform-wide.
type ClickScope struct {
	OwnerID string
	ShortID string
}

type DayCount struct {
	Date  string `json:"date" db:"day"`
	Count int64  `json:"count" db:"count"`
}

type BucketCount struct {
	Name  string `json:"name" db:"name"`
	Count int64  `json:"count" db:"count"`
}

type PlatformStats struct {
	TotalClicks int64 `json:"total_clicks"`
	TotalLinks  int64 `json:"total_links"`
	ActiveLinks int64 `json:"active_links"`
	TotalUsers  int64 `json:"total_users"`
	ClicksToday int64 `json:"clicks_today"`
}

// ClickRepository persists Click records and answers the aggregation queries
// the analytics side is built on. Aggregations order breakdown buckets by
// count descending with ties broken by first occurrence.
type ClickRepository interface {
	Insert(ctx context.Context, click *Click) error
	CountByLink(ctx context.Context, shortID string) (int64, error)
	LastClicked(ctx context.Context, shortID string) (*time.Time, error)
	DailySeries(ctx context.Context, scope ClickScope, since time.Time) ([]DayCount, error)
	GroupBy(ctx context.Context, dimension ClickDimension, scope ClickScope) ([]BucketCount, error)
	PlatformStats(ctx context.Context, now time.Time) (*PlatformStats, error)
}

// LinkCache fronts LinkRepository reads on the redirect hot path. A miss is
// (nil, nil); cache failures are never fatal to a lookup.
type LinkCache interface {
	Get(ctx context.Context, shortID string) (*ShortLink, error)
	Set(ctx context.Context, link *ShortLink, ttl time.Duration) error
	Delete(ctx context.Context, shortID string) error
}

// QuotaLedger tracks per-subscription usage for the current billing period.
// CheckAndReserveLink is the hard gate: compare-and-increment in one atomic
// step. IncrementClicksUsed is the soft counter and never gates anything.
type QuotaLedger interface {
	CheckAndReserveLink(ctx context.Context, sub *Subscription) error
	ReleaseLink(ctx context.Context, sub *Subscription) error
	IncrementClicksUsed(ctx context.Context, sub *Subscription, delta int64) error
	CurrentUsage(ctx context.Context, sub *Subscription) (*Usage, error)
}

// PlanSource is the read-only boundary to the external subscription system.
// Plan changes take effect on the next read.
type PlanSource interface {
	CurrentSubscription(ctx context.Context, ownerID string) (*Subscription, error)
}
