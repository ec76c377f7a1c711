package usecase

import (
	"context"
	"sync"
	"time"

	"FinSignal/internal/domain/models"
	"FinSignal/internal/domain/repository"
	applogger "FinSignal/pkg/logger"
	"FinSignal/pkg/metrics"
)

// PriceFeed accepts prices for candle aggregation.
type PriceFeed interface {
	PushTick(tsMillis int64, price float64)
}

type batchTickPublisher interface {
	PublishTicks(ctx context.Context, ticks []*models.Tick) error
}

// TickProcessor feeds the orchestrator synchronously and fans accepted ticks
// out to the archive and the bus in batches on a background worker.
type TickProcessor struct {
	feed      PriceFeed
	store     repository.TickStore
	pub       repository.TickPublisher
	log       *applogger.Logger
	metrics   repository.Metrics
	batchSize int
	flushTO   time.Duration

	queue   chan *models.Tick
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	closed  bool
}

type TickProcessorOption func(*TickProcessor)

// WithTickStore archives ticks, typically to ClickHouse.
func WithTickStore(s repository.TickStore) TickProcessorOption {
	return func(p *TickProcessor) { p.store = s }
}

// WithTickPublisher forwards ticks, typically to Kafka.
func WithTickPublisher(pub repository.TickPublisher) TickProcessorOption {
	return func(p *TickProcessor) { p.pub = pub }
}

func WithTickBatch(size int, flush time.Duration) TickProcessorOption {
	return func(p *TickProcessor) {
		if size > 0 {
			p.batchSize = size
		}
		if flush > 0 {
			p.flushTO = flush
		}
	}
}

func WithTickBuffer(n int) TickProcessorOption {
	return func(p *TickProcessor) {
		if n > 0 {
			p.queue = make(chan *models.Tick, n)
		}
	}
}

func WithTickLogger(l *applogger.Logger) TickProcessorOption {
	return func(p *TickProcessor) { p.log = l }
}

func WithTickMetrics(m repository.Metrics) TickProcessorOption {
	return func(p *TickProcessor) { p.metrics = m }
}

func NewTickProcessor(feed PriceFeed, opts ...TickProcessorOption) *TickProcessor {
	p := &TickProcessor{
		feed:      feed,
		log:       applogger.Nop(),
		metrics:   metrics.Nop{},
		batchSize: 200,
		flushTO:   time.Second,
		queue:     make(chan *models.Tick, 1024),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *TickProcessor) fanout() bool { return p.store != nil || p.pub != nil }

// Process pushes the tick into the orchestrator and queues it for fanout.
// Fanout never blocks the caller.
func (p *TickProcessor) Process(_ context.Context, t *models.Tick) error {
	p.feed.PushTick(t.Timestamp, t.Price)
	if !p.fanout() {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil
	}
	select {
	case p.queue <- t:
	default:
		p.metrics.RecordError("tick_fanout_full")
	}
	return nil
}

// Start launches the fanout worker; it is a no-op without store or publisher.
func (p *TickProcessor) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed || !p.fanout() {
		return
	}
	p.started = true
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop flushes what is queued and waits for the worker.
func (p *TickProcessor) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *TickProcessor) run(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.flushTO)
	defer ticker.Stop()
	batch := make([]*models.Tick, 0, p.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		p.flush(context.WithoutCancel(ctx), batch)
		batch = make([]*models.Tick, 0, p.batchSize)
	}
	for {
		select {
		case t, ok := <-p.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, t)
			if len(batch) >= p.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}

func (p *TickProcessor) flush(ctx context.Context, batch []*models.Tick) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	start := time.Now()
	if p.store != nil {
		if err := p.store.StoreTicks(ctx, batch); err != nil {
			p.metrics.RecordError("tick_store")
			p.log.Error("store ticks", applogger.Int("count", len(batch)), applogger.Error(err))
		}
	}
	if p.pub != nil {
		if err := p.publish(ctx, batch); err != nil {
			p.metrics.RecordError("tick_publish")
			p.log.Error("publish ticks", applogger.Int("count", len(batch)), applogger.Error(err))
		}
	}
	p.metrics.RecordLatency("tick_flush", time.Since(start).Seconds())
}

func (p *TickProcessor) publish(ctx context.Context, batch []*models.Tick) error {
	if bp, ok := p.pub.(batchTickPublisher); ok {
		return bp.PublishTicks(ctx, batch)
	}
	for _, t := range batch {
		if err := p.pub.PublishTick(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
