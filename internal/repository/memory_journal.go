package repository

import (
	"context"
	"sync"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
)

// MemoryJournal is the in-process journal used when ClickHouse is disabled.
// It keeps the newest outcomes only.
type MemoryJournal struct {
	mu       sync.Mutex
	limit    int
	signals  int
	outcomes []models.OutcomeRecord
}

func NewMemoryJournal(limit int) *MemoryJournal {
	if limit <= 0 {
		limit = 500
	}
	return &MemoryJournal{limit: limit}
}

func (j *MemoryJournal) Init(context.Context) error { return nil }

func (j *MemoryJournal) RecordSignal(context.Context, *models.Signal) error {
	j.mu.Lock()
	j.signals++
	j.mu.Unlock()
	return nil
}

func (j *MemoryJournal) RecordOutcome(_ context.Context, o *models.OutcomeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outcomes = append(j.outcomes, *o)
	if over := len(j.outcomes) - j.limit; over > 0 {
		j.outcomes = append(j.outcomes[:0], j.outcomes[over:]...)
	}
	return nil
}

func (j *MemoryJournal) RecentOutcomes(_ context.Context, symbol string, limit int) ([]models.OutcomeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []models.OutcomeRecord
	for i := len(j.outcomes) - 1; i >= 0 && len(out) < limit; i-- {
		if j.outcomes[i].Symbol == symbol {
			out = append(out, j.outcomes[i])
		}
	}
	for i, k := 0, len(out)-1; i < k; i, k = i+1, k-1 {
		out[i], out[k] = out[k], out[i]
	}
	return out, nil
}

// Signals counts recorded signals.
func (j *MemoryJournal) Signals() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.signals
}

func (j *MemoryJournal) Close() error { return nil }

var _ domrepo.SignalJournal = (*MemoryJournal)(nil)
