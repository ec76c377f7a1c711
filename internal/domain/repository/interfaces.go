package repository

import (
	"context"
	"errors"

	"FinSignal/internal/domain/models"
)

// ErrStateNotFound is returned by StateStore.Load when nothing was saved yet.
var ErrStateNotFound = errors.New("learning state not found")

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// TickPublisher fans raw ticks out to the message bus.
type TickPublisher interface {
	PublishTick(ctx context.Context, t *models.Tick) error
	Close() error
}

// TickStore archives accepted ticks; the candle history is derived from it.
type TickStore interface {
	StoreTicks(ctx context.Context, ticks []*models.Tick) error
}

// SignalPublisher is the external publish sink for approved signals.
type SignalPublisher interface {
	PublishSignal(ctx context.Context, s *models.Signal) error
	Close() error
}

// SignalJournal keeps an audit trail of emitted signals and their outcomes.
type SignalJournal interface {
	Init(ctx context.Context) error
	RecordSignal(ctx context.Context, s *models.Signal) error
	RecordOutcome(ctx context.Context, o *models.OutcomeRecord) error
	RecentOutcomes(ctx context.Context, symbol string, limit int) ([]models.OutcomeRecord, error)
	Close() error
}

// StateStore persists the learning state between runs.
type StateStore interface {
	Load(ctx context.Context) (*models.LearningState, error)
	Save(ctx context.Context, st *models.LearningState) error
}

// LatestSignalStore serves the last published signal to API readers.
type LatestSignalStore interface {
	Latest(ctx context.Context, symbol string) (*models.Signal, error)
}

type Metrics interface {
	RecordTick(symbol string, price float64)
	RecordDroppedTick(reason string)
	RecordCandles(n int)
	RecordSignal(action models.Action, groupID string, autoTrade bool)
	RecordSuppressed(reason string)
	RecordOutcome(groupID string, result models.Result, reward float64)
	RecordEpsilon(eps float64)
	RecordWeight(groupID string, w float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
