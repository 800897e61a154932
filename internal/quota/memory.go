package quota

import (
	"context"
	"sync"
	"time"

	"github.com/parthsharma2/linksight/internal/domain"
)

type periodKey struct {
	subscriptionID string
	periodStart    int64
}

// MemoryLedger is an in-process QuotaLedger with the same atomicity contract
// as the Redis one. Used in tests and single-node runs.
type MemoryLedger struct {
	mu     sync.Mutex
	links  map[periodKey]int64
	clicks map[periodKey]int64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		links:  make(map[periodKey]int64),
		clicks: make(map[periodKey]int64),
	}
}

func key(sub *domain.Subscription) periodKey {
	return periodKey{subscriptionID: sub.ID, periodStart: sub.PeriodStart.Unix()}
}

func (l *MemoryLedger) CheckAndReserveLink(ctx context.Context, sub *domain.Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key(sub)
	if sub.Plan.MaxLinks != domain.UnlimitedQuota && l.links[k] >= sub.Plan.MaxLinks {
		return domain.ErrQuotaExceeded
	}
	l.links[k]++
	return nil
}

func (l *MemoryLedger) ReleaseLink(ctx context.Context, sub *domain.Subscription) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key(sub)
	if l.links[k] > 0 {
		l.links[k]--
	}
	return nil
}

func (l *MemoryLedger) IncrementClicksUsed(ctx context.Context, sub *domain.Subscription, delta int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.clicks[key(sub)] += delta
	return nil
}

func (l *MemoryLedger) CurrentUsage(ctx context.Context, sub *domain.Subscription) (*domain.Usage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key(sub)
	return &domain.Usage{
		SubscriptionID: sub.ID,
		PeriodStart:    sub.PeriodStart,
		PeriodEnd:      sub.PeriodEnd,
		LinksUsed:      l.links[k],
		ClicksUsed:     l.clicks[k],
		MaxLinks:       sub.Plan.MaxLinks,
		MaxClicks:      sub.Plan.MaxClicks,
	}, nil
}

// StaticPlanSource reports the same plan for every owner, with calendar-month
// billing periods. It stands in for the external billing system; swapping in
// the real one only needs another PlanSource.
type StaticPlanSource struct {
	plan domain.Plan
}

func NewStaticPlanSource(plan domain.Plan) *StaticPlanSource {
	return &StaticPlanSource{plan: plan}
}

func (s *StaticPlanSource) CurrentSubscription(ctx context.Context, ownerID string) (*domain.Subscription, error) {
	now := time.Now().UTC()
	periodStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)

	return &domain.Subscription{
		ID:          "sub-" + ownerID,
		OwnerID:     ownerID,
		Plan:        s.plan,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}, nil
}
