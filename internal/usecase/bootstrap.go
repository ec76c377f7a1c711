package usecase

import (
	"context"
	"errors"
	"time"

	"FinSignal/internal/domain/models"
	"FinSignal/internal/domain/repository"
	"FinSignal/internal/services/agent"
	applogger "FinSignal/pkg/logger"
)

// RestoreLearningState loads the persisted agent state. Nothing stored, a
// failing store and an incompatible state all leave the agent running on
// defaults; only the log level differs.
func RestoreLearningState(ctx context.Context, store repository.StateStore, ag *agent.Agent, log *applogger.Logger) bool {
	if store == nil {
		return false
	}
	st, err := store.Load(ctx)
	switch {
	case errors.Is(err, repository.ErrStateNotFound):
		log.Info("no saved learning state, starting fresh")
		return false
	case err != nil:
		log.Warn("learning state unavailable, starting fresh", applogger.Error(err))
		return false
	}
	if err := ag.Restore(st); err != nil {
		if errors.Is(err, agent.ErrShapeMismatch) {
			log.Warn("saved network does not fit, counters restored with a fresh network", applogger.Error(err))
			return true
		}
		log.Warn("learning state rejected", applogger.Error(err))
		return false
	}
	log.Info("learning state restored",
		applogger.Int("experiences", st.TotalExperiences),
		applogger.Float64("epsilon", st.Epsilon),
	)
	return true
}

// CandleSeeder is the part of the orchestrator warm start needs.
type CandleSeeder interface {
	SeedCandles(history []models.Candle) int
}

// WarmStart seeds the aggregator with the newest stored minute candles.
func WarmStart(ctx context.Context, history repository.CandleHistory, seeder CandleSeeder, symbol string, n int, log *applogger.Logger) int {
	if history == nil || n <= 0 {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	candles, err := history.LatestCandles(ctx, symbol, n)
	if err != nil {
		log.Warn("candle history unavailable, warming up from live ticks", applogger.Error(err))
		return 0
	}
	seeded := seeder.SeedCandles(candles)
	log.Info("candles seeded from history",
		applogger.String("symbol", symbol),
		applogger.Int("loaded", len(candles)),
		applogger.Int("seeded", seeded),
	)
	return seeded
}

// NewBanditSeeder returns a warmup hook that seeds bandit weights from the
// journal's recent outcomes. The agent ignores it once it has experience.
func NewBanditSeeder(journal repository.SignalJournal, ag *agent.Agent, symbol string, limit int, log *applogger.Logger) func() {
	return func() {
		if journal == nil || limit <= 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		history, err := journal.RecentOutcomes(ctx, symbol, limit)
		if err != nil {
			log.Warn("recent outcomes unavailable, bandit not seeded", applogger.Error(err))
			return
		}
		if n := ag.SeedFromHistory(history); n > 0 {
			log.Info("bandit seeded from history", applogger.Int("outcomes", n))
		}
	}
}
