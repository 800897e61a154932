package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/parthsharma2/linksight/internal/domain"
)

// MemoryStore is a thread-safe in-memory implementation of LinkRepository and
// ClickRepository with the same semantics as the Postgres versions, including
// the click cascade on link deletion. It backs unit tests and local runs
// without a database.
type MemoryStore struct {
	mu     sync.RWMutex
	links  map[string]*domain.ShortLink
	clicks []domain.Click
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links: make(map[string]*domain.ShortLink),
	}
}

func (s *MemoryStore) Create(ctx context.Context, link *domain.ShortLink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[link.ShortID]; exists {
		return domain.ErrAliasTaken
	}

	s.nextID++
	link.ID = s.nextID
	now := time.Now().UTC()
	link.CreatedAt = now
	link.UpdatedAt = now
	s.links[link.ShortID] = link.Clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, shortID string) (*domain.ShortLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	link, exists := s.links[shortID]
	if !exists {
		return nil, domain.ErrNotFound
	}
	return link.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, shortID, ownerID string, patch domain.LinkPatch) (*domain.ShortLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	link, exists := s.links[shortID]
	if !exists {
		return nil, domain.ErrNotFound
	}
	if link.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}

	if patch.OriginalURL != nil {
		link.OriginalURL = *patch.OriginalURL
	}
	if patch.IsActive != nil {
		link.IsActive = *patch.IsActive
	}
	if patch.ClearExpiry {
		link.ExpiresAt = nil
	} else if patch.ExpiresAt != nil {
		exp := *patch.ExpiresAt
		link.ExpiresAt = &exp
	}
	link.UpdatedAt = time.Now().UTC()

	return link.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, shortID, ownerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	link, exists := s.links[shortID]
	if !exists {
		return domain.ErrNotFound
	}
	if link.OwnerID != ownerID {
		return domain.ErrForbidden
	}

	delete(s.links, shortID)

	// cascade: click records do not outlive their link
	kept := s.clicks[:0]
	for _, c := range s.clicks {
		if c.ShortID != shortID {
			kept = append(kept, c)
		}
	}
	s.clicks = kept
	return nil
}

func (s *MemoryStore) IncrementClickCount(ctx context.Context, shortID string, delta int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if link, exists := s.links[shortID]; exists {
		link.ClickCount += delta
	}
	return nil
}

func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.ShortLink, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := []domain.ShortLink{}
	for _, link := range s.links {
		if link.OwnerID == ownerID {
			owned = append(owned, *link.Clone())
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID > owned[j].ID
		}
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	total := int64(len(owned))
	if offset >= len(owned) {
		return []domain.ShortLink{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(owned) {
		end = len(owned)
	}
	return owned[offset:end], total, nil
}

func (s *MemoryStore) Insert(ctx context.Context, click *domain.Click) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	click.ID = int64(len(s.clicks) + 1)
	s.clicks = append(s.clicks, *click)
	return nil
}

func (s *MemoryStore) CountByLink(ctx context.Context, shortID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, c := range s.clicks {
		if c.ShortID == shortID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) LastClicked(ctx context.Context, shortID string) (*time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *time.Time
	for _, c := range s.clicks {
		if c.ShortID != shortID {
			continue
		}
		if last == nil || c.Timestamp.After(*last) {
			ts := c.Timestamp
			last = &ts
		}
	}
	return last, nil
}

func (s *MemoryStore) inScope(c domain.Click, scope domain.ClickScope) bool {
	if scope.ShortID != "" && c.ShortID != scope.ShortID {
		return false
	}
	if scope.OwnerID != "" {
		link, exists := s.links[c.ShortID]
		if !exists || link.OwnerID != scope.OwnerID {
			return false
		}
	}
	return true
}

func (s *MemoryStore) DailySeries(ctx context.Context, scope domain.ClickScope, since time.Time) ([]domain.DayCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, c := range s.clicks {
		if c.Timestamp.Before(since) || !s.inScope(c, scope) {
			continue
		}
		counts[c.Timestamp.UTC().Format("2006-01-02")]++
	}

	series := make([]domain.DayCount, 0, len(counts))
	for day, count := range counts {
		series = append(series, domain.DayCount{Date: day, Count: count})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	return series, nil
}

func groupValue(c domain.Click, dimension domain.ClickDimension) string {
	var v string
	switch dimension {
	case domain.DimensionDevice:
		v = c.Device.Type
	case domain.DimensionBrowser:
		v = c.Device.Browser
	case domain.DimensionCountry:
		v = c.Location.Country
	}
	if v == "" {
		return domain.Unknown
	}
	return v
}

func (s *MemoryStore) GroupBy(ctx context.Context, dimension domain.ClickDimension, scope domain.ClickScope) ([]domain.BucketCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	firstSeen := make(map[string]int)
	order := 0
	for _, c := range s.clicks {
		if !s.inScope(c, scope) {
			continue
		}
		name := groupValue(c, dimension)
		if _, seen := counts[name]; !seen {
			firstSeen[name] = order
			order++
		}
		counts[name]++
	}

	buckets := make([]domain.BucketCount, 0, len(counts))
	for name, count := range counts {
		buckets = append(buckets, domain.BucketCount{Name: name, Count: count})
	}
	// count descending, ties broken by first occurrence
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return firstSeen[buckets[i].Name] < firstSeen[buckets[j].Name]
	})
	return buckets, nil
}

func (s *MemoryStore) PlatformStats(ctx context.Context, now time.Time) (*domain.PlatformStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.PlatformStats{
		TotalClicks: int64(len(s.clicks)),
		TotalLinks:  int64(len(s.links)),
	}

	owners := make(map[string]struct{})
	for _, link := range s.links {
		owners[link.OwnerID] = struct{}{}
		if link.IsActive && !link.IsExpired(now) {
			stats.ActiveLinks++
		}
	}
	stats.TotalUsers = int64(len(owners))

	dayStart := now.UTC().Truncate(24 * time.Hour)
	for _, c := range s.clicks {
		if !c.Timestamp.UTC().Before(dayStart) {
			stats.ClicksToday++
		}
	}
	return stats, nil
}

// MemoryLinkCache is a map-backed LinkCache for tests. TTLs are ignored.
type MemoryLinkCache struct {
	mu    sync.RWMutex
	items map[string]*domain.ShortLink
}

func NewMemoryLinkCache() *MemoryLinkCache {
	return &MemoryLinkCache{items: make(map[string]*domain.ShortLink)}
}

func (c *MemoryLinkCache) Get(ctx context.Context, shortID string) (*domain.ShortLink, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	link, exists := c.items[shortID]
	if !exists {
		return nil, nil
	}
	return link.Clone(), nil
}

func (c *MemoryLinkCache) Set(ctx context.Context, link *domain.ShortLink, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[link.ShortID] = link.Clone()
	return nil
}

func (c *MemoryLinkCache) Delete(ctx context.Context, shortID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, shortID)
	return nil
}
