package usecase

import (
	"context"

	"FinSignal/internal/domain/models"
	"FinSignal/internal/domain/repository"
	"FinSignal/internal/services/agent"
)

// SignalQuery serves read-only views for the API.
type SignalQuery struct {
	orch   *Orchestrator
	agent  *agent.Agent
	latest repository.LatestSignalStore
	symbol string
}

// NewSignalQuery builds the query use case. latest may be nil, in which case
// the orchestrator's own last signal is served.
func NewSignalQuery(orch *Orchestrator, ag *agent.Agent, latest repository.LatestSignalStore, symbol string) *SignalQuery {
	return &SignalQuery{orch: orch, agent: ag, latest: latest, symbol: symbol}
}

// LatestSignal prefers the shared store so every replica answers the same.
func (q *SignalQuery) LatestSignal(ctx context.Context) (*models.Signal, error) {
	if q.latest != nil {
		s, err := q.latest.Latest(ctx, q.symbol)
		if err != nil {
			return nil, err
		}
		if s != nil {
			return s, nil
		}
	}
	s, ok := q.orch.LastSignal()
	if !ok {
		return nil, nil
	}
	return s, nil
}

func (q *SignalQuery) Status() models.OrchestratorStatus { return q.orch.Status() }

func (q *SignalQuery) AgentStats() models.AgentStats { return q.agent.Stats() }

func (q *SignalQuery) Candles(n int) []models.Candle { return q.orch.Candles(n) }

// Regime returns the latest classification, false before the first one.
func (q *SignalQuery) Regime() (models.RegimeDescriptor, bool) {
	st := q.orch.Status()
	if st.Regime == nil {
		return models.RegimeDescriptor{}, false
	}
	return *st.Regime, true
}

func (q *SignalQuery) Analyze() (models.Action, error) { return q.orch.Analyze() }

func (q *SignalQuery) VerifyOutcome(id string, r models.Result) error {
	return q.orch.VerifyOutcome(id, r)
}
