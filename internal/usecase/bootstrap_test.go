package usecase

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"FinSignal/internal/domain/models"
	"FinSignal/internal/services/agent"
	applogger "FinSignal/pkg/logger"
)

type stubHistory struct {
	candles []models.Candle
	err     error
}

func (s stubHistory) LatestCandles(context.Context, string, int) ([]models.Candle, error) {
	return s.candles, s.err
}

func (s stubHistory) CandlesBetween(context.Context, string, time.Time, time.Time) ([]models.Candle, error) {
	return s.candles, s.err
}

type countingSeeder struct{ got int }

func (c *countingSeeder) SeedCandles(h []models.Candle) int {
	c.got = len(h)
	return len(h)
}

func newTestAgent() *agent.Agent {
	return agent.New(agent.DefaultConfig(), []string{"a", "b"}, agent.WithRand(rand.New(rand.NewSource(7))))
}

func TestRestoreLearningState(t *testing.T) {
	log := applogger.Nop()
	ctx := context.Background()

	if RestoreLearningState(ctx, &memStateStore{}, newTestAgent(), log) {
		t.Fatal("nothing stored should not report a restore")
	}
	if RestoreLearningState(ctx, &memStateStore{err: errors.New("down")}, newTestAgent(), log) {
		t.Fatal("failing store should not report a restore")
	}

	src := newTestAgent()
	st := src.Export()
	st.Epsilon = 0.2
	st.TotalExperiences = 12
	dst := newTestAgent()
	if !RestoreLearningState(ctx, &memStateStore{load: st}, dst, log) {
		t.Fatal("compatible state should restore")
	}
	if got := dst.Stats(); got.TotalExperiences != 12 || got.Epsilon != 0.2 {
		t.Fatalf("stats after restore = %+v", got)
	}

	st.Version = 1
	if RestoreLearningState(ctx, &memStateStore{load: st}, newTestAgent(), log) {
		t.Fatal("old schema must be rejected")
	}
}

func TestWarmStart(t *testing.T) {
	seeder := &countingSeeder{}
	h := stubHistory{candles: make([]models.Candle, 30)}
	if n := WarmStart(context.Background(), h, seeder, "X", 60, applogger.Nop()); n != 30 || seeder.got != 30 {
		t.Fatalf("seeded %d (%d)", n, seeder.got)
	}
	if n := WarmStart(context.Background(), stubHistory{err: errors.New("down")}, seeder, "X", 60, applogger.Nop()); n != 0 {
		t.Fatalf("failing history seeded %d", n)
	}
	if n := WarmStart(context.Background(), nil, seeder, "X", 60, applogger.Nop()); n != 0 {
		t.Fatalf("nil history seeded %d", n)
	}
}

func TestBanditSeeder(t *testing.T) {
	jr := &memJournal{}
	for i := 0; i < 5; i++ {
		jr.outcomes = append(jr.outcomes, models.OutcomeRecord{GroupID: "a", Result: models.ResultWin, Confidence: 80})
	}
	ag := newTestAgent()
	before := ag.Weight("a")
	NewBanditSeeder(jr, ag, "X", 100, applogger.Nop())()
	if after := ag.Weight("a"); after <= before {
		t.Fatalf("weight a = %v, was %v", after, before)
	}
	if ag.Weight("b") != before {
		t.Fatalf("untouched group changed: %v", ag.Weight("b"))
	}
}
