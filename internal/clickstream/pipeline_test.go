package clickstream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/parthsharma2/linksight/internal/domain"
	"github.com/parthsharma2/linksight/internal/quota"
	"github.com/parthsharma2/linksight/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flakyClickRepo fails the first n inserts, then delegates.
type flakyClickRepo struct {
	domain.ClickRepository
	failures atomic.Int32
}

func (f *flakyClickRepo) Insert(ctx context.Context, click *domain.Click) error {
	if f.failures.Add(-1) >= 0 {
		return errors.New("storage unavailable")
	}
	return f.ClickRepository.Insert(ctx, click)
}

func newTestStore(t *testing.T, shortID string) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore()
	err := store.Create(context.Background(), &domain.ShortLink{
		ShortID:     shortID,
		OriginalURL: "https://example.com",
		OwnerID:     "owner-1",
		IsActive:    true,
	})
	require.NoError(t, err)
	return store
}

func newTestPipeline(store *repository.MemoryStore, clicks domain.ClickRepository, ledger domain.QuotaLedger, cfg Config) *Pipeline {
	plans := quota.NewStaticPlanSource(domain.Plan{Name: "test", MaxLinks: -1, MaxClicks: -1})
	return NewPipeline(clicks, store, ledger, plans, NoopGeoResolver{}, zap.NewNop(), nil, cfg)
}

func rawClick(shortID string) domain.RawClick {
	return domain.RawClick{
		ShortID:   shortID,
		OwnerID:   "owner-1",
		Timestamp: time.Now(),
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		IPAddress: "203.0.113.7",
		Referrer:  "https://twitter.com",
	}
}

// after all in-flight events have been processed, the link counter equals the
// number of persisted click records
func TestPipeline_CounterConvergence(t *testing.T) {
	store := newTestStore(t, "conv1")
	ledger := quota.NewMemoryLedger()
	p := newTestPipeline(store, store, ledger, Config{Workers: 4, QueueSize: 256})
	p.Start()

	const n = 100
	for i := 0; i < n; i++ {
		require.True(t, p.Ingest(rawClick("conv1")))
	}
	p.Close()

	ctx := context.Background()
	persisted, err := store.CountByLink(ctx, "conv1")
	require.NoError(t, err)
	assert.Equal(t, int64(n), persisted)

	link, err := store.Get(ctx, "conv1")
	require.NoError(t, err)
	assert.Equal(t, int64(n), link.ClickCount)
}

func TestPipeline_SoftClickQuota(t *testing.T) {
	store := newTestStore(t, "soft1")
	ledger := quota.NewMemoryLedger()
	plans := quota.NewStaticPlanSource(domain.Plan{Name: "test", MaxLinks: -1, MaxClicks: 1})
	p := NewPipeline(store, store, ledger, plans, NoopGeoResolver{}, zap.NewNop(), nil, Config{Workers: 1, QueueSize: 16})
	p.Start()

	// three clicks against a one-click plan: all persist, usage just runs over
	for i := 0; i < 3; i++ {
		require.True(t, p.Ingest(rawClick("soft1")))
	}
	p.Close()

	persisted, err := store.CountByLink(context.Background(), "soft1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), persisted)

	sub, err := plans.CurrentSubscription(context.Background(), "owner-1")
	require.NoError(t, err)
	usage, err := ledger.CurrentUsage(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, int64(3), usage.ClicksUsed)
}

func TestPipeline_EnrichmentDegradation(t *testing.T) {
	store := newTestStore(t, "enr1")
	p := newTestPipeline(store, store, quota.NewMemoryLedger(), Config{Workers: 1, QueueSize: 16})
	p.Start()

	event := rawClick("enr1")
	event.UserAgent = "\x00\x01 garbage"
	require.True(t, p.Ingest(event))
	p.Close()

	buckets, err := store.GroupBy(context.Background(), domain.DimensionDevice, domain.ClickScope{ShortID: "enr1"})
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, domain.Unknown, buckets[0].Name)

	persisted, err := store.CountByLink(context.Background(), "enr1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), persisted, "unparseable events are persisted, not dropped")
}

func TestPipeline_DropOnFullQueue(t *testing.T) {
	store := newTestStore(t, "full1")
	// workers never started: the queue fills and the producer must not block
	p := newTestPipeline(store, store, quota.NewMemoryLedger(), Config{Workers: 1, QueueSize: 2})

	assert.True(t, p.Ingest(rawClick("full1")))
	assert.True(t, p.Ingest(rawClick("full1")))

	done := make(chan bool, 1)
	go func() {
		done <- p.Ingest(rawClick("full1"))
	}()
	select {
	case accepted := <-done:
		assert.False(t, accepted, "full queue must drop, not block")
	case <-time.After(time.Second):
		t.Fatal("Ingest blocked on a full queue")
	}
}

func TestPipeline_RetriesThenSucceeds(t *testing.T) {
	store := newTestStore(t, "retry1")
	flaky := &flakyClickRepo{ClickRepository: store}
	flaky.failures.Store(2)

	p := newTestPipeline(store, flaky, quota.NewMemoryLedger(),
		Config{Workers: 1, QueueSize: 16, MaxRetries: 3, RetryBackoff: time.Millisecond})
	p.Start()
	require.True(t, p.Ingest(rawClick("retry1")))
	p.Close()

	persisted, err := store.CountByLink(context.Background(), "retry1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), persisted)
}

func TestPipeline_DropsAfterRetryExhaustion(t *testing.T) {
	store := newTestStore(t, "drop1")
	flaky := &flakyClickRepo{ClickRepository: store}
	flaky.failures.Store(100)

	p := newTestPipeline(store, flaky, quota.NewMemoryLedger(),
		Config{Workers: 1, QueueSize: 16, MaxRetries: 2, RetryBackoff: time.Millisecond})
	p.Start()
	require.True(t, p.Ingest(rawClick("drop1")))
	p.Close()

	persisted, err := store.CountByLink(context.Background(), "drop1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), persisted)

	// the counter is only bumped for persisted clicks
	link, err := store.Get(context.Background(), "drop1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), link.ClickCount)
}

// producers may race shutdown; an ingest overlapping Close must be refused
// or enqueued, never panic on a closed channel
func TestPipeline_ConcurrentIngestDuringClose(t *testing.T) {
	store := newTestStore(t, "race1")
	p := newTestPipeline(store, store, quota.NewMemoryLedger(), Config{Workers: 2, QueueSize: 8})
	p.Start()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					p.Ingest(rawClick("race1"))
				}
			}
		}()
	}

	p.Close()
	close(stop)
	wg.Wait()

	assert.False(t, p.Ingest(rawClick("race1")))
}

func TestPipeline_IngestAfterClose(t *testing.T) {
	store := newTestStore(t, "closed1")
	p := newTestPipeline(store, store, quota.NewMemoryLedger(), Config{Workers: 1, QueueSize: 16})
	p.Start()
	p.Close()

	assert.False(t, p.Ingest(rawClick("closed1")))
}
