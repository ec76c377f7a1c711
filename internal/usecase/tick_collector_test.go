package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"FinSignal/internal/domain/models"
	"FinSignal/pkg/metrics"
)

// scriptedStream serves one batch of ticks per Read session. Every session
// but the last ends with an error; the last stays open until ctx ends.
type scriptedStream struct {
	mu         sync.Mutex
	sessions   [][]*models.Tick
	reads      int
	reconnects int
	closed     bool
}

func (s *scriptedStream) Connect(context.Context) error   { return nil }
func (s *scriptedStream) Subscribe(context.Context) error { return nil }
func (s *scriptedStream) IsConnected() bool               { return true }

func (s *scriptedStream) Reconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	return nil
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *scriptedStream) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	s.mu.Lock()
	i := s.reads
	s.reads++
	last := i >= len(s.sessions)-1
	var batch []*models.Tick
	if i < len(s.sessions) {
		batch = s.sessions[i]
	}
	s.mu.Unlock()

	ticks := make(chan *models.Tick)
	errs := make(chan error, 1)
	go func() {
		defer close(ticks)
		for _, t := range batch {
			select {
			case ticks <- t:
			case <-ctx.Done():
				return
			}
		}
		if !last {
			errs <- errors.New("connection reset")
			return
		}
		<-ctx.Done()
	}()
	return ticks, errs
}

type chanProc chan *models.Tick

func (c chanProc) Process(_ context.Context, t *models.Tick) error {
	c <- t
	return nil
}

func TestTickCollectorReconnectsAndKeepsReading(t *testing.T) {
	stream := &scriptedStream{sessions: [][]*models.Tick{
		{{Symbol: "EURUSD", Price: 1.1, Timestamp: 1}, {Symbol: "EURUSD", Price: 1.2, Timestamp: 2}},
		{{Symbol: "EURUSD", Price: 1.3, Timestamp: 3}},
	}}
	proc := make(chanProc, 8)
	c := NewTickCollector(stream, proc, metrics.Nop{}, nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var got []float64
	timeout := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case tk := <-proc:
			got = append(got, tk.Price)
		case <-timeout:
			t.Fatalf("received %v before timeout", got)
		}
	}
	if got[2] != 1.3 {
		t.Fatalf("ticks = %v", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	stream.mu.Lock()
	defer stream.mu.Unlock()
	if stream.reconnects != 1 || !stream.closed {
		t.Fatalf("reconnects = %d closed = %v", stream.reconnects, stream.closed)
	}
}
