package repository

import (
	"context"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	pkgkafka "FinSignal/pkg/kafka"
)

// KafkaTickPublisher forwards live ticks to the ticks topic, keyed by symbol.
type KafkaTickPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaTickPublisher(producer *pkgkafka.Producer, topic string) *KafkaTickPublisher {
	return &KafkaTickPublisher{producer: producer, topic: topic}
}

func (p *KafkaTickPublisher) PublishTick(ctx context.Context, t *models.Tick) error {
	return p.producer.Publish(ctx, p.topic, []byte(t.Symbol), t)
}

func (p *KafkaTickPublisher) PublishTicks(ctx context.Context, ticks []*models.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(ticks))
	for i, t := range ticks {
		msgs[i] = pkgkafka.Message{Key: []byte(t.Symbol), Value: t}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close is a no-op; the shared producer is closed by its owner.
func (p *KafkaTickPublisher) Close() error { return nil }

// KafkaSignalPublisher emits approved signals for downstream executors.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) PublishSignal(ctx context.Context, s *models.Signal) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Symbol), s)
}

func (p *KafkaSignalPublisher) Close() error { return nil }

var (
	_ domrepo.TickPublisher   = (*KafkaTickPublisher)(nil)
	_ domrepo.SignalPublisher = (*KafkaSignalPublisher)(nil)
)
