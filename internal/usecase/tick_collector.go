package usecase

import (
	"context"
	"sync"
	"time"

	"FinSignal/internal/domain/models"
	drepo "FinSignal/internal/domain/repository"
	mid "FinSignal/internal/middleware"
	applogger "FinSignal/pkg/logger"
)

// TickCollector reads ticks from a market stream into the tick pipeline and
// keeps the stream connected.
type TickCollector struct {
	stream  drepo.MarketStream
	pipe    mid.Proc
	metrics drepo.Metrics
	log     *applogger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTickCollector(stream drepo.MarketStream, pipe mid.Proc, metrics drepo.Metrics, log *applogger.Logger) *TickCollector {
	if log == nil {
		log = applogger.Nop()
	}
	return &TickCollector{stream: stream, pipe: pipe, metrics: metrics, log: log}
}

func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects and subscribes, then reads in the background until ctx ends
// or Shutdown is called.
func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		_ = c.stream.Close()
		return err
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run(ctx)
	return nil
}

func (c *TickCollector) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		ticks, errs := c.stream.Read(ctx)
		err := c.consume(ctx, ticks, errs)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		c.log.Warn("market stream interrupted, reconnecting", applogger.Error(err))
		if !c.reconnect(ctx) {
			return
		}
	}
}

// consume drains one Read session and returns the error that ended it.
func (c *TickCollector) consume(ctx context.Context, ticks <-chan *models.Tick, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if ok && err != nil {
				return err
			}
			errs = nil
		case t, ok := <-ticks:
			if !ok {
				return nil
			}
			if t == nil {
				continue
			}
			_ = c.pipe.Process(ctx, t)
		}
	}
}

func (c *TickCollector) reconnect(ctx context.Context) bool {
	backoff := time.Second
	for {
		err := c.stream.Reconnect(ctx)
		if err == nil {
			c.log.Info("market stream reconnected")
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.metrics.RecordError("stream_reconnect")
		c.log.Error("reconnect failed", applogger.Error(err), applogger.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// Shutdown stops the read loop and closes the stream.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.stream.Close()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}
