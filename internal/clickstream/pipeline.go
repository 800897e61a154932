// Package clickstream ingests raw click events emitted by the redirect path,
// enriches them and writes the results out of band.
//
// The intake queue is bounded and never applies backpressure to redirects:
// when it is full the event is dropped and counted, not blocked on. Workers
// provide no ordering guarantee across events; aggregation is commutative so
// none is needed.
package clickstream

import (
	"context"
	"sync"
	"time"

	"github.com/parthsharma2/linksight/internal/domain"
	"github.com/parthsharma2/linksight/internal/pkg/metrics"
	"go.uber.org/zap"
)

type Config struct {
	QueueSize      int
	Workers        int
	MaxRetries     int
	RetryBackoff   time.Duration
	EnrichTimeout  time.Duration
	PersistTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 4096
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	if c.EnrichTimeout <= 0 {
		c.EnrichTimeout = 500 * time.Millisecond
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 5 * time.Second
	}
}

// Pipeline drains the click queue with a pool of workers. Each event is
// enriched (user-agent parse, geo lookup), persisted, and reflected into the
// link's click counter and the subscription's soft click quota.
type Pipeline struct {
	queue  chan domain.RawClick
	clicks domain.ClickRepository
	links  domain.LinkRepository
	ledger domain.QuotaLedger
	plans  domain.PlanSource
	geo    GeoResolver
	logger *zap.Logger
	m      *metrics.Metrics
	cfg    Config

	wg sync.WaitGroup

	// guards the queue send against close; without it a producer that
	// passed the closed check could send on a closed channel and panic
	mu     sync.RWMutex
	closed bool
}

func NewPipeline(
	clicks domain.ClickRepository,
	links domain.LinkRepository,
	ledger domain.QuotaLedger,
	plans domain.PlanSource,
	geo GeoResolver,
	logger *zap.Logger,
	m *metrics.Metrics,
	cfg Config,
) *Pipeline {
	cfg.applyDefaults()
	if geo == nil {
		geo = NoopGeoResolver{}
	}
	return &Pipeline{
		queue:  make(chan domain.RawClick, cfg.QueueSize),
		clicks: clicks,
		links:  links,
		ledger: ledger,
		plans:  plans,
		geo:    geo,
		logger: logger,
		m:      m,
		cfg:    cfg,
	}
}

// Start launches the worker pool.
func (p *Pipeline) Start() {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.logger.Info("click pipeline started",
		zap.Int("workers", p.cfg.Workers),
		zap.Int("queue_size", p.cfg.QueueSize),
	)
}

// Ingest enqueues a raw click without blocking. It reports whether the event
// was accepted; a full queue drops the event in favor of redirect latency.
func (p *Pipeline) Ingest(event domain.RawClick) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}

	select {
	case p.queue <- event:
		if p.m != nil {
			p.m.ClicksIngestedTotal.Inc()
			p.m.ClickQueueDepth.Set(float64(len(p.queue)))
		}
		return true
	default:
		if p.m != nil {
			p.m.ClicksDroppedTotal.Inc()
		}
		p.logger.Warn("click queue full, dropping event",
			zap.String("short_id", event.ShortID),
		)
		return false
	}
}

// Close stops intake, drains whatever is already queued and waits for the
// workers to finish.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("click pipeline stopped")
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for event := range p.queue {
		if p.m != nil {
			p.m.ClickQueueDepth.Set(float64(len(p.queue)))
		}
		p.process(event)
	}
}

func (p *Pipeline) process(event domain.RawClick) {
	click := p.enrich(event)

	if !p.persistWithRetry(click) {
		return
	}

	// counter bumps are fire-and-forget: failures here only widen the
	// (eventually convergent) gap between counter and click rows
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PersistTimeout)
	defer cancel()

	if err := p.links.IncrementClickCount(ctx, event.ShortID, 1); err != nil {
		p.logger.Warn("failed to increment link click count",
			zap.String("short_id", event.ShortID),
			zap.Error(err),
		)
	}

	sub, err := p.plans.CurrentSubscription(ctx, event.OwnerID)
	if err != nil {
		p.logger.Warn("failed to resolve subscription for click usage",
			zap.String("owner_id", event.OwnerID),
			zap.Error(err),
		)
		return
	}
	if err := p.ledger.IncrementClicksUsed(ctx, sub, 1); err != nil {
		p.logger.Warn("failed to increment click usage",
			zap.String("subscription_id", sub.ID),
			zap.Error(err),
		)
	}
}

// enrich never fails: unparseable or unresolvable fields degrade to Unknown
// and the click is persisted regardless.
func (p *Pipeline) enrich(event domain.RawClick) *domain.Click {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.EnrichTimeout)
	defer cancel()

	return &domain.Click{
		ShortID:   event.ShortID,
		Timestamp: event.Timestamp.UTC(),
		Device:    ParseUserAgent(event.UserAgent),
		Location:  p.geo.Resolve(ctx, event.IPAddress),
		Referrer:  event.Referrer,
		IPAddress: event.IPAddress,
	}
}

func (p *Pipeline) persistWithRetry(click *domain.Click) bool {
	backoff := p.cfg.RetryBackoff
	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PersistTimeout)
		err := p.clicks.Insert(ctx, click)
		cancel()

		if err == nil {
			if p.m != nil {
				p.m.ClicksPersistedTotal.Inc()
			}
			return true
		}

		if p.m != nil {
			p.m.ClicksFailedTotal.Inc()
		}
		p.logger.Warn("click persistence failed",
			zap.String("short_id", click.ShortID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt < p.cfg.MaxRetries {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	// analytics is best-effort; after exhausting retries the event is
	// dropped and logged, never propagated back to the redirect
	if p.m != nil {
		p.m.ClicksDroppedTotal.Inc()
	}
	p.logger.Error("dropping click after retry exhaustion",
		zap.String("short_id", click.ShortID),
		zap.Int("retries", p.cfg.MaxRetries),
	)
	return false
}
