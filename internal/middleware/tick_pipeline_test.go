package middleware

import (
	"context"
	"errors"
	"math"
	"testing"

	"FinSignal/internal/domain/models"
)

type recordingProc struct {
	got []*models.Tick
	err error
}

func (r *recordingProc) Process(_ context.Context, t *models.Tick) error {
	r.got = append(r.got, t)
	return r.err
}

func TestValidateTick(t *testing.T) {
	tests := []struct {
		name string
		tick *models.Tick
		ok   bool
	}{
		{"valid", &models.Tick{Symbol: "EURUSD", Timestamp: 1, Price: 1.1}, true},
		{"nil", nil, false},
		{"no symbol", &models.Tick{Timestamp: 1, Price: 1}, false},
		{"zero ts", &models.Tick{Symbol: "X", Price: 1}, false},
		{"zero price", &models.Tick{Symbol: "X", Timestamp: 1}, false},
		{"nan price", &models.Tick{Symbol: "X", Timestamp: 1, Price: math.NaN()}, false},
		{"negative volume", &models.Tick{Symbol: "X", Timestamp: 1, Price: 1, Volume: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateTick(tt.tick); (err == nil) != tt.ok {
				t.Fatalf("ValidateTick = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestPipelineFiltersSymbols(t *testing.T) {
	proc := &recordingProc{}
	p := NewTickPipeline(proc, WithSymbols("eurusd"), WithRateLimit(0, 0))
	ctx := context.Background()
	if err := p.Process(ctx, &models.Tick{Symbol: "EURUSD", Timestamp: 1, Price: 1}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if err := p.Process(ctx, &models.Tick{Symbol: "GBPUSD", Timestamp: 1, Price: 1}); err != nil {
		t.Fatalf("filtered symbol should not error: %v", err)
	}
	if len(proc.got) != 1 || proc.got[0].Symbol != "EURUSD" {
		t.Fatalf("forwarded = %+v", proc.got)
	}
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	proc := &recordingProc{}
	p := NewTickPipeline(proc, WithRateLimit(0.001, 2))
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := p.Process(ctx, &models.Tick{Symbol: "A", Timestamp: 1, Price: 1}); err != nil {
			t.Fatalf("burst tick %d: %v", i, err)
		}
	}
	if err := p.Process(ctx, &models.Tick{Symbol: "A", Timestamp: 1, Price: 1}); !errors.Is(err, ErrThrottled) {
		t.Fatalf("third tick err = %v, want ErrThrottled", err)
	}
	if err := p.Process(ctx, &models.Tick{Symbol: "B", Timestamp: 1, Price: 1}); err != nil {
		t.Fatalf("other symbol throttled: %v", err)
	}
	if len(proc.got) != 3 {
		t.Fatalf("forwarded %d ticks, want 3", len(proc.got))
	}
}

func TestPipelineWrapsDownstreamError(t *testing.T) {
	boom := errors.New("boom")
	p := NewTickPipeline(&recordingProc{err: boom})
	err := p.Process(context.Background(), &models.Tick{Symbol: "A", Timestamp: 1, Price: 1})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
}
