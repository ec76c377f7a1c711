package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"FinSignal/internal/domain/models"
	"FinSignal/internal/domain/repository"
)

type memPublisher struct {
	mu   sync.Mutex
	got  []*models.Signal
	fail error
}

func (p *memPublisher) PublishSignal(_ context.Context, s *models.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, s)
	return p.fail
}

func (p *memPublisher) Close() error { return nil }

type memJournal struct {
	mu       sync.Mutex
	signals  []*models.Signal
	outcomes []models.OutcomeRecord
	err      error
}

func (j *memJournal) Init(context.Context) error { return nil }

func (j *memJournal) RecordSignal(_ context.Context, s *models.Signal) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.signals = append(j.signals, s)
	return nil
}

func (j *memJournal) RecordOutcome(_ context.Context, o *models.OutcomeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outcomes = append(j.outcomes, *o)
	return nil
}

func (j *memJournal) RecentOutcomes(context.Context, string, int) ([]models.OutcomeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]models.OutcomeRecord(nil), j.outcomes...), j.err
}

func (j *memJournal) Close() error { return nil }

type memStateStore struct {
	mu    sync.Mutex
	saved []*models.LearningState
	load  *models.LearningState
	err   error
}

func (s *memStateStore) Load(context.Context) (*models.LearningState, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.load == nil {
		return nil, repository.ErrStateNotFound
	}
	return s.load, nil
}

func (s *memStateStore) Save(_ context.Context, st *models.LearningState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, st)
	return nil
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	pub := &memPublisher{}
	jr := &memJournal{}
	st := &memStateStore{}
	d := NewDispatcher(pub, jr, st, 8)
	d.Signal(&models.Signal{ID: "s1"})
	d.Outcome(&models.OutcomeRecord{SignalID: "s1", Result: models.ResultWin})
	d.State(&models.LearningState{TotalExperiences: 10})
	d.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(pub.got) != 1 || pub.got[0].ID != "s1" {
		t.Fatalf("published = %+v", pub.got)
	}
	if len(jr.signals) != 1 || len(jr.outcomes) != 1 {
		t.Fatalf("journal = %d signals, %d outcomes", len(jr.signals), len(jr.outcomes))
	}
	if len(st.saved) != 1 || st.saved[0].TotalExperiences != 10 {
		t.Fatalf("saved = %+v", st.saved)
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	pub := &memPublisher{}
	d := NewDispatcher(pub, nil, nil, 1)
	d.Signal(&models.Signal{ID: "kept"})
	d.Signal(&models.Signal{ID: "dropped"})
	d.Start()
	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(pub.got) != 1 || pub.got[0].ID != "kept" {
		t.Fatalf("published = %+v", pub.got)
	}
	// after Stop events are discarded without panicking
	d.Signal(&models.Signal{ID: "late"})
}

func TestDispatcherPublisherErrorDoesNotStopJournal(t *testing.T) {
	pub := &memPublisher{fail: errors.New("redis down")}
	jr := &memJournal{}
	d := NewDispatcher(pub, jr, nil, 4)
	d.Start()
	d.Signal(&models.Signal{ID: "s"})
	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(jr.signals) != 1 {
		t.Fatalf("journal signals = %d", len(jr.signals))
	}
}
