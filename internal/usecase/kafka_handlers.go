package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	mid "FinSignal/internal/middleware"
	pkgkafka "FinSignal/pkg/kafka"
)

// KafkaTicksHandler feeds ticks from the ticks topic into the pipeline.
type KafkaTicksHandler struct {
	topic   string
	pipe    mid.Proc
	metrics domrepo.Metrics
}

func NewKafkaTicksHandler(topic string, pipe mid.Proc, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, pipe: pipe, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// Handle accepts {symbol, t, c, v}. Second timestamps are promoted to millis.
// Throttled or filtered ticks are not retried: replaying a tick later would
// land it in the wrong candle.
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var t models.Tick
	if err := json.Unmarshal(b, &t); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode tick: %w: %v", pkgkafka.ErrPermanent, err)
	}
	if t.Timestamp > 0 && t.Timestamp < 1e11 {
		t.Timestamp *= 1000
	}
	h.metrics.RecordLatency("ingest_e2e", time.Since(time.UnixMilli(t.Timestamp)).Seconds())
	if err := h.pipe.Process(ctx, &t); err != nil {
		if errors.Is(err, mid.ErrThrottled) {
			return nil
		}
		return fmt.Errorf("%w: %v", pkgkafka.ErrPermanent, err)
	}
	return nil
}

// OutcomeVerifier applies external WIN/LOSS reports.
type OutcomeVerifier interface {
	VerifyOutcome(signalID string, result models.Result) error
}

// KafkaOutcomeHandler applies verifications published by the trade executor.
type KafkaOutcomeHandler struct {
	topic    string
	verifier OutcomeVerifier
	metrics  domrepo.Metrics
}

func NewKafkaOutcomeHandler(topic string, v OutcomeVerifier, metrics domrepo.Metrics) *KafkaOutcomeHandler {
	return &KafkaOutcomeHandler{topic: topic, verifier: v, metrics: metrics}
}

func (h *KafkaOutcomeHandler) Topic() string { return h.topic }

// Handle accepts {signalId, result}. Unknown or already verified signals are
// acknowledged and skipped.
func (h *KafkaOutcomeHandler) Handle(_ context.Context, b []byte) error {
	var req models.OutcomeRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode outcome: %w: %v", pkgkafka.ErrPermanent, err)
	}
	if req.SignalID == "" {
		return fmt.Errorf("outcome without signal id: %w", pkgkafka.ErrPermanent)
	}
	err := h.verifier.VerifyOutcome(req.SignalID, models.Result(req.Result))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnknownSignal):
		h.metrics.RecordSuppressed("stale_outcome")
		return nil
	default:
		return fmt.Errorf("%w: %v", pkgkafka.ErrPermanent, err)
	}
}

var (
	_ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
	_ pkgkafka.MessageHandler = (*KafkaOutcomeHandler)(nil)
)
