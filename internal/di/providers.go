package di

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"FinSignal/internal/domain/repository"
	"FinSignal/internal/handler/api"
	mid "FinSignal/internal/middleware"
	internalrepo "FinSignal/internal/repository"
	"FinSignal/internal/service/finnhub"
	"FinSignal/internal/services/agent"
	"FinSignal/internal/services/candles"
	"FinSignal/internal/services/groups"
	"FinSignal/internal/services/regime"
	"FinSignal/internal/services/timing"
	"FinSignal/internal/usecase"
	"FinSignal/pkg/cache"
	pkgch "FinSignal/pkg/clickhouse"
	"FinSignal/pkg/config"
	xhttp "FinSignal/pkg/http"
	pkgkafka "FinSignal/pkg/kafka"
	applogger "FinSignal/pkg/logger"
	"FinSignal/pkg/metrics"
	"FinSignal/pkg/scheduler"
	"FinSignal/pkg/server"
)

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
}

// ProvideRegistry returns a private registry with the Go and process
// collectors, served on the metrics endpoint.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

func ProvideScheduler() scheduler.Scheduler {
	return scheduler.New()
}

// ProvideClickHouseClient connects when clickhouse is enabled and returns
// nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer returns nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	k := cfg.Kafka
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithBatchSize(k.Producer.BatchSize),
		pkgkafka.WithBatchBytes(k.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(k.Producer.Linger),
		pkgkafka.WithTimeouts(k.Producer.WriteTimeout, k.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(k.Producer.MaxAttempts),
		pkgkafka.WithAsync(k.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer returns nil when kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, reg *prometheus.Registry, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	k := cfg.Kafka
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(k.Brokers),
		pkgkafka.WithConsumerGroupID(k.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(k.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(k.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(k.Consumer.RetryMax, k.Consumer.BackoffMin, k.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(k.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(k.Consumer.MinBytes, k.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(log),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.RejectEmpty(), pkgkafka.LogErrors(log)))
	return consumer, nil
}

// ProvideCache puts an in-process layer in front of Redis when it is
// enabled, and falls back to a process-local cache otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(10_000)), nil
	}
	r := cfg.Redis
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(r.Host),
		cache.WithRedisPort(r.Port),
		cache.WithRedisPassword(r.Password),
		cache.WithRedisDB(r.DB),
		cache.WithRedisPool(r.PoolSize, 2, 5*time.Second),
		cache.WithRedisPrefix(r.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc, cache.WithLayeredMemoryTTL(5*time.Second)), nil
}

// ProvideJournal uses ClickHouse when available, memory otherwise. Init
// creates the tables every ClickHouse-backed store reads or writes.
func ProvideJournal(cfg *config.Config, ch *pkgch.Client) (repository.SignalJournal, error) {
	var j repository.SignalJournal = internalrepo.NewMemoryJournal(cfg.Signal.SeedOutcomes)
	if ch != nil {
		j = internalrepo.NewCHSignalJournal(ch)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := j.Init(ctx); err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}
	return j, nil
}

func ProvideCandleHistory(ch *pkgch.Client, log *applogger.Logger) repository.CandleHistory {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHCandleHistory(ch, log)
}

func ProvideTickStore(ch *pkgch.Client) repository.TickStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHTickStore(ch)
}

// ProvideTickPublisher forwards live ticks to the bus only for the websocket
// source; a kafka-sourced instance must not echo the topic it reads.
func ProvideTickPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.TickPublisher {
	if producer == nil || cfg.Source.Type != "finnhub" || !cfg.Source.PublishTicks {
		return nil
	}
	return internalrepo.NewKafkaTickPublisher(producer, cfg.Kafka.Topics.Ticks)
}

func ProvideStateStore(cfg *config.Config, c cache.Service) repository.StateStore {
	return internalrepo.NewCacheStateStore(c, cfg.Agent.StateKey)
}

func ProvideLatestSignalStore(cfg *config.Config, c cache.Service) *internalrepo.CacheSignalPublisher {
	return internalrepo.NewCacheSignalPublisher(c, cfg.Redis.SignalTTL)
}

// ProvideSignalPublisher fans signals out to the shared store and, when
// kafka is enabled, to the signals topic.
func ProvideSignalPublisher(cfg *config.Config, latest *internalrepo.CacheSignalPublisher, producer *pkgkafka.Producer) repository.SignalPublisher {
	f := internalrepo.NewFanoutSignalPublisher().Add("cache", latest)
	if producer != nil {
		f.Add("kafka", internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.Topics.Signals))
	}
	return f
}

func ProvideGroups(cfg *config.Config) *groups.Registry {
	return groups.NewRegistry(cfg.Signal.MaxATRRatio)
}

func ProvideAgent(cfg *config.Config, reg *groups.Registry) *agent.Agent {
	a := cfg.Agent
	return agent.New(agent.Config{
		ReplaySize:       a.ReplaySize,
		BatchSize:        a.BatchSize,
		MinExperiences:   a.MinExperiences,
		EpsilonStart:     a.EpsilonStart,
		EpsilonFloor:     a.EpsilonFloor,
		EpsilonDecay:     a.EpsilonDecay,
		EpsilonFastDecay: a.EpsilonFastDecay,
		FastDecayAfter:   a.FastDecayAfter,
		Gamma:            a.Gamma,
		LearningRate:     a.LearningRate,
		Tau:              a.Tau,
		SaveEvery:        a.SaveEvery,
	}, reg.IDs())
}

func ProvideDispatcher(
	cfg *config.Config,
	pub repository.SignalPublisher,
	journal repository.SignalJournal,
	store repository.StateStore,
	log *applogger.Logger,
	m repository.Metrics,
) *usecase.Dispatcher {
	return usecase.NewDispatcher(pub, journal, store, cfg.Signal.DispatchBuffer,
		usecase.WithDispatcherLogger(log.With(applogger.String("component", "dispatcher"))),
		usecase.WithDispatcherMetrics(m),
	)
}

func ProvideOrchestrator(
	cfg *config.Config,
	sched scheduler.Scheduler,
	reg *groups.Registry,
	ag *agent.Agent,
	d *usecase.Dispatcher,
	journal repository.SignalJournal,
	log *applogger.Logger,
	m repository.Metrics,
) *usecase.Orchestrator {
	s := cfg.Signal
	ocfg := usecase.OrchestratorConfig{
		Symbol:             s.Symbol,
		WarmupCandles:      s.WarmupCandles,
		CycleInterval:      s.CycleInterval,
		DisplayThreshold:   s.DisplayThreshold,
		AutoTradeThreshold: s.AutoTradeThreshold,
		SettleMargin:       s.SettleMargin,
		OutcomeRetryDelay:  s.OutcomeRetryDelay,
		Timing: timing.Config{
			MinDuration:  cfg.Timing.MinDuration,
			MaxDuration:  cfg.Timing.MaxDuration,
			EvalInterval: cfg.Timing.EvalInterval,
		},
	}
	olog := log.With(applogger.String("component", "orchestrator"))
	return usecase.NewOrchestrator(ocfg, sched,
		candles.NewAggregator(s.CandleCapacity),
		regime.NewDetector(),
		reg, ag, d,
		usecase.WithLogger(olog),
		usecase.WithMetrics(m),
		usecase.WithWarmupHook(usecase.NewBanditSeeder(journal, ag, s.Symbol, s.SeedOutcomes, olog)),
	)
}

func ProvideTickProcessor(
	cfg *config.Config,
	orch *usecase.Orchestrator,
	store repository.TickStore,
	pub repository.TickPublisher,
	log *applogger.Logger,
	m repository.Metrics,
) *usecase.TickProcessor {
	opts := []usecase.TickProcessorOption{
		usecase.WithTickBuffer(cfg.Source.BufferSize),
		usecase.WithTickLogger(log),
		usecase.WithTickMetrics(m),
	}
	if store != nil {
		opts = append(opts, usecase.WithTickStore(store))
	}
	if pub != nil {
		opts = append(opts, usecase.WithTickPublisher(pub))
	}
	return usecase.NewTickProcessor(orch, opts...)
}

func ProvideTickPipeline(cfg *config.Config, proc *usecase.TickProcessor, m repository.Metrics) *mid.TickPipeline {
	return mid.NewTickPipeline(proc,
		mid.WithSymbols(cfg.Signal.Symbol),
		mid.WithRateLimit(cfg.Source.RateLimit, cfg.Source.Burst),
		mid.WithPipelineMetrics(m),
	)
}

// ProvideTickCollector returns nil unless the websocket is the tick source.
func ProvideTickCollector(cfg *config.Config, pipe *mid.TickPipeline, m repository.Metrics, log *applogger.Logger) *usecase.TickCollector {
	if cfg.Source.Type != "finnhub" {
		return nil
	}
	clog := log.With(applogger.String("component", "finnhub"))
	stream := finnhub.New(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		[]string{cfg.Signal.Symbol},
		cfg.Finnhub.ReconnectDelay,
		cfg.Finnhub.PingInterval,
		finnhub.WithLogger(clog),
	)
	return usecase.NewTickCollector(stream, pipe, m, clog)
}

// ProvideKafkaHandlers subscribes to ticks when kafka is the tick source and
// always to externally reported outcomes.
func ProvideKafkaHandlers(cfg *config.Config, consumer *pkgkafka.Consumer, pipe *mid.TickPipeline, orch *usecase.Orchestrator, m repository.Metrics) []pkgkafka.MessageHandler {
	if consumer == nil {
		return nil
	}
	hs := []pkgkafka.MessageHandler{usecase.NewKafkaOutcomeHandler(cfg.Kafka.Topics.Outcomes, orch, m)}
	if cfg.Source.Type == "kafka" {
		hs = append(hs, usecase.NewKafkaTicksHandler(cfg.Kafka.Topics.Ticks, pipe, m))
	}
	return hs
}

func ProvideSignalQuery(cfg *config.Config, orch *usecase.Orchestrator, ag *agent.Agent, latest *internalrepo.CacheSignalPublisher) *usecase.SignalQuery {
	return usecase.NewSignalQuery(orch, ag, latest, cfg.Signal.Symbol)
}

func ProvideSignalHandler(
	cfg *config.Config,
	log *applogger.Logger,
	q *usecase.SignalQuery,
	history repository.CandleHistory,
	ch *pkgch.Client,
	c cache.Service,
	collector *usecase.TickCollector,
) *api.SignalHandler {
	h := api.NewSignalHandler(log, q, history, cfg.Signal.Symbol)
	if ch != nil {
		h.AddHealthCheck("clickhouse", ch.Health)
	}
	h.AddHealthCheck("cache", func(ctx context.Context) error {
		_, err := c.Exists(ctx, "healthz")
		return err
	})
	if collector != nil {
		h.AddHealthCheck("stream", func(context.Context) error {
			if !collector.IsConnected() {
				return fmt.Errorf("market stream disconnected")
			}
			return nil
		})
	}
	return h
}

func ProvideHTTPServer(cfg *config.Config, h *api.SignalHandler, reg *prometheus.Registry, log *applogger.Logger) *xhttp.Server {
	path := ""
	if cfg.Metrics.Enabled {
		path = cfg.Metrics.Path
	}
	return xhttp.NewServer([]xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(reg, reg, path),
		xhttp.WithLogger(log.With(applogger.String("component", "http"))),
	)
}

// ProvideApp assembles the lifecycle and attaches the log collector when
// error logs should be shipped to kafka.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	orch *usecase.Orchestrator,
	ag *agent.Agent,
	d *usecase.Dispatcher,
	proc *usecase.TickProcessor,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	srv *xhttp.Server,
	store repository.StateStore,
	history repository.CandleHistory,
	journal repository.SignalJournal,
	c cache.Service,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
) *server.App {
	if cfg.Log.Collector.Enabled && producer != nil {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.FlushInterval,
			CountThreshold: cfg.Log.Collector.Threshold,
			Topic:          cfg.Log.Collector.Topic,
			Publisher:      producer,
		})
	}
	closers := []io.Closer{journal, c}
	if producer != nil {
		closers = append(closers, producer)
	}
	if ch != nil {
		closers = append(closers, ch)
	}
	return server.New(cfg, log, server.Components{
		Orchestrator: orch,
		Agent:        ag,
		Dispatcher:   d,
		Processor:    proc,
		Collector:    collector,
		Consumer:     consumer,
		Handlers:     handlers,
		HTTP:         srv,
		StateStore:   store,
		History:      history,
	}, closers...)
}
