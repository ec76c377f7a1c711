package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"FinSignal/internal/domain/repository"
	"FinSignal/internal/services/agent"
	"FinSignal/internal/usecase"
	"FinSignal/pkg/config"
	xhttp "FinSignal/pkg/http"
	pkgkafka "FinSignal/pkg/kafka"
	applogger "FinSignal/pkg/logger"
)

// Components are the long-lived parts the App starts and stops. Collector
// and Consumer are nil when their source is not configured.
type Components struct {
	Orchestrator *usecase.Orchestrator
	Agent        *agent.Agent
	Dispatcher   *usecase.Dispatcher
	Processor    *usecase.TickProcessor
	Collector    *usecase.TickCollector
	Consumer     *pkgkafka.Consumer
	Handlers     []pkgkafka.MessageHandler
	HTTP         *xhttp.Server
	StateStore   repository.StateStore
	History      repository.CandleHistory
}

// App owns the process lifecycle.
type App struct {
	cfg     *config.Config
	log     *applogger.Logger
	c       Components
	closers []io.Closer
	cancel  context.CancelFunc
}

// New creates the App. Closers run in order after every component stopped.
func New(cfg *config.Config, log *applogger.Logger, c Components, closers ...io.Closer) *App {
	return &App{cfg: cfg, log: log, c: c, closers: closers}
}

// Run starts the app and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}
	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Start restores learning state, warms the candle buffer and brings up the
// pipeline, the tick sources and the HTTP server.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	c := a.c

	usecase.RestoreLearningState(ctx, c.StateStore, c.Agent, a.log)
	if a.cfg.Signal.WarmStart {
		usecase.WarmStart(ctx, c.History, c.Orchestrator, a.cfg.Signal.Symbol, a.cfg.Signal.CandleCapacity, a.log)
	}

	c.Dispatcher.Start()
	c.Processor.Start(ctx)
	c.Orchestrator.Start()

	if c.Consumer != nil && len(c.Handlers) > 0 {
		topics := make([]string, 0, len(c.Handlers))
		for _, h := range c.Handlers {
			c.Consumer.RegisterHandler(h)
			topics = append(topics, h.Topic())
		}
		if err := c.Consumer.Start(); err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.log.Info("kafka consumer started", applogger.Strings("topics", topics))
	}

	if c.Collector != nil {
		if err := c.Collector.Start(ctx); err != nil {
			return fmt.Errorf("tick collector: %w", err)
		}
		a.log.Info("tick collector started", applogger.String("symbol", a.cfg.Signal.Symbol))
	}

	if err := c.HTTP.Start(); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	a.log.Info("finsignal started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("source", a.cfg.Source.Type),
		applogger.String("symbol", a.cfg.Signal.Symbol),
	)
	return nil
}

// Shutdown stops intake first, then the decision loop, then drains the
// dispatcher so the final learning state is persisted, then closes clients.
func (a *App) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	c := a.c
	var errs []error

	if c.HTTP != nil {
		if err := c.HTTP.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Collector != nil {
		if err := c.Collector.Shutdown(ctx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
		}
	}
	if c.Consumer != nil {
		if err := c.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
	c.Orchestrator.Stop()
	c.Processor.Stop()
	c.Dispatcher.State(c.Agent.Export())
	if err := c.Dispatcher.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("dispatcher: %w", err))
	}

	for _, cl := range a.closers {
		if cl == nil {
			continue
		}
		if err := cl.Close(); err != nil {
			a.log.Warn("close error", applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
	a.log.RemoveCollector()
	return errors.Join(errs...)
}
