package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	"FinSignal/pkg/metrics"
)

// ErrThrottled is returned when a tick exceeds the per-symbol rate.
var ErrThrottled = errors.New("tick throttled")

// Proc is the downstream the pipeline feeds.
type Proc interface {
	Process(ctx context.Context, t *models.Tick) error
}

// TickPipeline sits between a tick source and the processor. It validates,
// filters by symbol and throttles each symbol with a token bucket. Rejected
// ticks are counted and dropped; nothing is buffered for retry since a
// delayed tick would land in the wrong candle.
type TickPipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	symbols map[string]struct{}
	rps     rate.Limit
	burst   int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

type PipelineOption func(*TickPipeline)

// WithSymbols restricts the pipeline to the given symbols. Empty accepts all.
func WithSymbols(symbols ...string) PipelineOption {
	return func(p *TickPipeline) {
		for _, s := range symbols {
			if s = strings.TrimSpace(s); s != "" {
				p.symbols[strings.ToUpper(s)] = struct{}{}
			}
		}
	}
}

// WithRateLimit sets the per-symbol rate. A zero rps disables throttling.
func WithRateLimit(rps float64, burst int) PipelineOption {
	return func(p *TickPipeline) {
		if rps <= 0 {
			p.rps = rate.Inf
		} else {
			p.rps = rate.Limit(rps)
		}
		if burst > 0 {
			p.burst = burst
		}
	}
}

func WithPipelineMetrics(m domrepo.Metrics) PipelineOption {
	return func(p *TickPipeline) { p.metrics = m }
}

func NewTickPipeline(proc Proc, opts ...PipelineOption) *TickPipeline {
	p := &TickPipeline{
		proc:     proc,
		metrics:  metrics.Nop{},
		symbols:  make(map[string]struct{}),
		rps:      rate.Limit(50),
		burst:    100,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process validates and forwards one tick.
func (p *TickPipeline) Process(ctx context.Context, t *models.Tick) error {
	if err := ValidateTick(t); err != nil {
		p.metrics.RecordDroppedTick("invalid")
		return err
	}
	if len(p.symbols) > 0 {
		if _, ok := p.symbols[strings.ToUpper(t.Symbol)]; !ok {
			p.metrics.RecordDroppedTick("symbol")
			return nil
		}
	}
	if !p.limiter(t.Symbol).Allow() {
		p.metrics.RecordDroppedTick("throttled")
		return ErrThrottled
	}
	if err := p.proc.Process(ctx, t); err != nil {
		p.metrics.RecordError("pipeline_process")
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	return nil
}

func (p *TickPipeline) limiter(symbol string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[symbol]
	if !ok {
		l = rate.NewLimiter(p.rps, p.burst)
		p.limiters[symbol] = l
	}
	return l
}

// ValidateTick rejects ticks that cannot be aggregated.
func ValidateTick(t *models.Tick) error {
	switch {
	case t == nil:
		return fmt.Errorf("tick nil")
	case t.Symbol == "":
		return fmt.Errorf("symbol empty")
	case t.Timestamp <= 0:
		return fmt.Errorf("timestamp invalid")
	case math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || t.Price <= 0:
		return fmt.Errorf("price invalid")
	case t.Volume < 0:
		return fmt.Errorf("negative volume")
	}
	return nil
}
