package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"FinSignal/internal/domain/models"
)

type recordingFeed struct {
	mu     sync.Mutex
	prices []float64
}

func (f *recordingFeed) PushTick(_ int64, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices = append(f.prices, price)
}

type memTickStore struct {
	mu      sync.Mutex
	batches [][]*models.Tick
}

func (s *memTickStore) StoreTicks(_ context.Context, ticks []*models.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, ticks)
	return nil
}

func (s *memTickStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

type memTickPublisher struct {
	mu  sync.Mutex
	got []*models.Tick
}

func (p *memTickPublisher) PublishTick(_ context.Context, t *models.Tick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, t)
	return nil
}

func (p *memTickPublisher) Close() error { return nil }

func TestTickProcessorFeedsAndBatches(t *testing.T) {
	feed := &recordingFeed{}
	store := &memTickStore{}
	pub := &memTickPublisher{}
	p := NewTickProcessor(feed, WithTickStore(store), WithTickPublisher(pub), WithTickBatch(2, time.Hour))
	p.Start(context.Background())

	for i := 1; i <= 5; i++ {
		if err := p.Process(context.Background(), &models.Tick{Symbol: "X", Timestamp: int64(i), Price: float64(i)}); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	p.Stop()

	if len(feed.prices) != 5 || feed.prices[4] != 5 {
		t.Fatalf("feed = %v", feed.prices)
	}
	if store.total() != 5 {
		t.Fatalf("stored %d ticks", store.total())
	}
	if len(store.batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(store.batches))
	}
	if len(pub.got) != 5 {
		t.Fatalf("published %d ticks", len(pub.got))
	}
	// late ticks after Stop still reach the feed
	_ = p.Process(context.Background(), &models.Tick{Symbol: "X", Timestamp: 6, Price: 6})
	if len(feed.prices) != 6 {
		t.Fatalf("feed after stop = %v", feed.prices)
	}
}

func TestTickProcessorWithoutFanout(t *testing.T) {
	feed := &recordingFeed{}
	p := NewTickProcessor(feed)
	p.Start(context.Background())
	_ = p.Process(context.Background(), &models.Tick{Symbol: "X", Timestamp: 1, Price: 1})
	p.Stop()
	if len(feed.prices) != 1 {
		t.Fatalf("feed = %v", feed.prices)
	}
}
