package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/parthsharma2/linksight/internal/domain"
	"github.com/parthsharma2/linksight/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingSink captures ingested events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.RawClick
}

func (s *recordingSink) Ingest(event domain.RawClick) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return true
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func newResolverFixture(t *testing.T) (*repository.MemoryStore, *repository.MemoryLinkCache, *recordingSink, *Resolver) {
	t.Helper()
	store := repository.NewMemoryStore()
	cache := repository.NewMemoryLinkCache()
	sink := &recordingSink{}
	resolver := NewResolver(store, cache, sink, zap.NewNop(), nil, time.Hour, 2*time.Second)
	return store, cache, sink, resolver
}

func seed(t *testing.T, store *repository.MemoryStore, link *domain.ShortLink) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), link))
}

func TestResolve_Success(t *testing.T) {
	store, _, sink, resolver := newResolverFixture(t)
	seed(t, store, &domain.ShortLink{
		ShortID:     "abc1234",
		OriginalURL: "https://example.com/landing",
		OwnerID:     "owner-1",
		IsActive:    true,
	})

	dest, err := resolver.Resolve(context.Background(), "abc1234", Hit{
		UserAgent: "test-agent",
		IPAddress: "198.51.100.3",
		Referrer:  "https://news.ycombinator.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/landing", dest)

	require.Equal(t, 1, sink.count())
	event := sink.events[0]
	assert.Equal(t, "abc1234", event.ShortID)
	assert.Equal(t, "owner-1", event.OwnerID)
	assert.Equal(t, "test-agent", event.UserAgent)
	assert.Equal(t, "198.51.100.3", event.IPAddress)
}

func TestResolve_NotFound(t *testing.T) {
	_, _, sink, resolver := newResolverFixture(t)

	_, err := resolver.Resolve(context.Background(), "nothere", Hit{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, sink.count(), "failed resolves never produce click events")
}

func TestResolve_Inactive(t *testing.T) {
	store, _, sink, resolver := newResolverFixture(t)
	seed(t, store, &domain.ShortLink{
		ShortID:     "off1234",
		OriginalURL: "https://example.com",
		OwnerID:     "owner-1",
		IsActive:    false,
	})

	_, err := resolver.Resolve(context.Background(), "off1234", Hit{})
	assert.ErrorIs(t, err, domain.ErrLinkInactive)
	assert.Equal(t, 0, sink.count())
}

// a past expiry wins over the active flag
func TestResolve_ExpiryPrecedence(t *testing.T) {
	store, _, sink, resolver := newResolverFixture(t)
	past := time.Now().UTC().Add(-time.Hour)
	seed(t, store, &domain.ShortLink{
		ShortID:     "old1234",
		OriginalURL: "https://example.com",
		OwnerID:     "owner-1",
		IsActive:    true,
		ExpiresAt:   &past,
	})

	_, err := resolver.Resolve(context.Background(), "old1234", Hit{})
	assert.ErrorIs(t, err, domain.ErrLinkExpired)
	assert.Equal(t, 0, sink.count())
}

func TestResolve_FutureExpiryStillServes(t *testing.T) {
	store, _, _, resolver := newResolverFixture(t)
	future := time.Now().UTC().Add(time.Hour)
	seed(t, store, &domain.ShortLink{
		ShortID:     "fresh12",
		OriginalURL: "https://example.com",
		OwnerID:     "owner-1",
		IsActive:    true,
		ExpiresAt:   &future,
	})

	dest, err := resolver.Resolve(context.Background(), "fresh12", Hit{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", dest)
}

func TestResolve_PopulatesCache(t *testing.T) {
	store, cache, _, resolver := newResolverFixture(t)
	seed(t, store, &domain.ShortLink{
		ShortID:     "cache12",
		OriginalURL: "https://example.com",
		OwnerID:     "owner-1",
		IsActive:    true,
	})

	_, err := resolver.Resolve(context.Background(), "cache12", Hit{})
	require.NoError(t, err)

	cached, err := cache.Get(context.Background(), "cache12")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "https://example.com", cached.OriginalURL)
}

// create, resolve, deactivate, resolve again
func TestResolve_DeactivationScenario(t *testing.T) {
	store, cache, _, resolver := newResolverFixture(t)

	svc := NewLinkService(store, cache, nopLedger{}, nopPlans{}, &stubGenerator{codes: []string{"scen123"}},
		zap.NewNop(), nil, LinkServiceConfig{BaseURL: "http://sho.rt"})

	ctx := context.Background()
	resp, err := svc.Create(ctx, "owner-1", createReq("https://example.com"))
	require.NoError(t, err)

	dest, err := resolver.Resolve(ctx, resp.ShortID, Hit{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", dest)

	active := false
	_, err = svc.Update(ctx, "owner-1", resp.ShortID, &domain.UpdateLinkRequest{IsActive: &active})
	require.NoError(t, err)

	// the update invalidated the cache, so the resolver must see the new state
	_, err = resolver.Resolve(ctx, resp.ShortID, Hit{})
	assert.ErrorIs(t, err, domain.ErrLinkInactive)
}

type nopLedger struct{}

func (nopLedger) CheckAndReserveLink(ctx context.Context, sub *domain.Subscription) error {
	return nil
}
func (nopLedger) ReleaseLink(ctx context.Context, sub *domain.Subscription) error { return nil }
func (nopLedger) IncrementClicksUsed(ctx context.Context, sub *domain.Subscription, delta int64) error {
	return nil
}
func (nopLedger) CurrentUsage(ctx context.Context, sub *domain.Subscription) (*domain.Usage, error) {
	return &domain.Usage{}, nil
}

type nopPlans struct{}

func (nopPlans) CurrentSubscription(ctx context.Context, ownerID string) (*domain.Subscription, error) {
	return &domain.Subscription{ID: "sub-" + ownerID, OwnerID: ownerID}, nil
}
