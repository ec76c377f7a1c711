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

type eventKind int

const (
	eventSignal eventKind = iota
	eventOutcome
	eventState
)

type dispatchEvent struct {
	kind    eventKind
	signal  *models.Signal
	outcome *models.OutcomeRecord
	state   *models.LearningState
}

// Dispatcher is the orchestrator's Sink. Events are queued and delivered to
// the publisher, journal and state store by one worker so the orchestrator
// never waits on I/O. When the queue is full the event is dropped and counted.
type Dispatcher struct {
	publisher repository.SignalPublisher
	journal   repository.SignalJournal
	store     repository.StateStore
	log       *applogger.Logger
	metrics   repository.Metrics
	timeout   time.Duration

	events  chan dispatchEvent
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	closed  bool
}

type DispatcherOption func(*Dispatcher)

func WithDispatcherLogger(l *applogger.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = l }
}

func WithDispatcherMetrics(m repository.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithDeliveryTimeout bounds each publish, journal or save call.
func WithDeliveryTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// NewDispatcher builds a dispatcher. Any of publisher, journal and store may
// be nil.
func NewDispatcher(
	publisher repository.SignalPublisher,
	journal repository.SignalJournal,
	store repository.StateStore,
	buffer int,
	opts ...DispatcherOption,
) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	d := &Dispatcher{
		publisher: publisher,
		journal:   journal,
		store:     store,
		log:       applogger.Nop(),
		metrics:   metrics.Nop{},
		timeout:   5 * time.Second,
		events:    make(chan dispatchEvent, buffer),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Signal(s *models.Signal) {
	d.enqueue(dispatchEvent{kind: eventSignal, signal: s})
}

func (d *Dispatcher) Outcome(o *models.OutcomeRecord) {
	d.enqueue(dispatchEvent{kind: eventOutcome, outcome: o})
}

func (d *Dispatcher) State(st *models.LearningState) {
	d.enqueue(dispatchEvent{kind: eventState, state: st})
}

func (d *Dispatcher) enqueue(ev dispatchEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.metrics.RecordError("dispatch_closed")
		return
	}
	select {
	case d.events <- ev:
	default:
		d.metrics.RecordError("dispatch_queue_full")
		d.log.Warn("dispatch queue full, event dropped", applogger.Int("kind", int(ev.kind)))
	}
}

// Start launches the delivery worker. Events queued earlier are delivered.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	d.wg.Add(1)
	go d.run()
}

// Stop closes the queue and waits for pending events to be delivered or ctx
// to end.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for ev := range d.events {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev dispatchEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	start := time.Now()
	switch ev.kind {
	case eventSignal:
		if d.publisher != nil {
			if err := d.publisher.PublishSignal(ctx, ev.signal); err != nil {
				d.metrics.RecordError("signal_publish")
				d.log.Error("publish signal", applogger.String("id", ev.signal.ID), applogger.Error(err))
			}
		}
		if d.journal != nil {
			if err := d.journal.RecordSignal(ctx, ev.signal); err != nil {
				d.metrics.RecordError("journal_signal")
				d.log.Error("journal signal", applogger.String("id", ev.signal.ID), applogger.Error(err))
			}
		}
		d.metrics.RecordLatency("dispatch_signal", time.Since(start).Seconds())
	case eventOutcome:
		if d.journal != nil {
			if err := d.journal.RecordOutcome(ctx, ev.outcome); err != nil {
				d.metrics.RecordError("journal_outcome")
				d.log.Error("journal outcome", applogger.String("id", ev.outcome.SignalID), applogger.Error(err))
			}
		}
	case eventState:
		if d.store != nil {
			if err := d.store.Save(ctx, ev.state); err != nil {
				d.metrics.RecordError("state_save")
				d.log.Error("save learning state", applogger.Error(err))
				return
			}
			d.log.Debug("learning state saved", applogger.Int("experiences", ev.state.TotalExperiences))
		}
	}
}

var _ Sink = (*Dispatcher)(nil)
