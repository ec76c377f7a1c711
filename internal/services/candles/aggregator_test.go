package candles

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"FinSignal/internal/domain/models"
)

const t0 int64 = 1_700_000_040_000 // minute aligned

func TestCandleBuildScenario(t *testing.T) {
	a := NewAggregator(10)
	a.PushTick(t0, 1.1000)
	a.PushTick(t0+10_000, 1.1005)
	a.PushTick(t0+70_000, 1.1010)

	s := a.Series()
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	want := []models.Candle{
		{OpenTime: t0, Open: 1.1000, High: 1.1005, Low: 1.1000, Close: 1.1005},
		{OpenTime: t0 + 60_000, Open: 1.1010, High: 1.1010, Low: 1.1010, Close: 1.1010},
	}
	for i, c := range s.Candles {
		if c != want[i] {
			t.Fatalf("candle %d = %+v, want %+v", i, c, want[i])
		}
	}
}

func TestRejectsInvalidPrices(t *testing.T) {
	a := NewAggregator(10)
	for _, p := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if a.PushTick(t0, p) {
			t.Fatalf("price %v accepted", p)
		}
	}
	if a.Len() != 0 {
		t.Fatalf("len = %d after invalid ticks", a.Len())
	}
}

func TestDropsLateTicks(t *testing.T) {
	a := NewAggregator(10)
	a.PushTick(t0+60_000, 2)
	if a.PushTick(t0, 3) {
		t.Fatal("tick for an older minute accepted")
	}
	if p, _ := a.LastPrice(); p != 2 {
		t.Fatalf("last price = %v", p)
	}
}

func TestAggregationInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := NewAggregator(100)
	type agg struct{ open, high, low, close float64 }
	want := map[int64]*agg{}
	var order []int64
	ts := t0
	for i := 0; i < 500; i++ {
		ts += int64(rng.Intn(20_000))
		p := 100 + rng.Float64()*10
		a.PushTick(ts, p)
		b := models.MinuteBucket(ts)
		g, ok := want[b]
		if !ok {
			g = &agg{open: p, high: p, low: p}
			want[b] = g
			order = append(order, b)
		}
		g.high = math.Max(g.high, p)
		g.low = math.Min(g.low, p)
		g.close = p
	}
	s := a.Series()
	if s.Len() != len(order) {
		t.Fatalf("candles = %d, buckets = %d", s.Len(), len(order))
	}
	for i, c := range s.Candles {
		g := want[order[i]]
		if c.OpenTime != order[i] || c.Open != g.open || c.High != g.high || c.Low != g.low || c.Close != g.close {
			t.Fatalf("candle %d = %+v, want %+v", i, c, *g)
		}
	}
}

func TestBufferCapacity(t *testing.T) {
	const capacity = 5
	a := NewAggregator(capacity)
	for i := 0; i < 12; i++ {
		a.PushTick(t0+int64(i)*60_000, float64(i+1))
	}
	s := a.Series()
	if s.Len() != capacity {
		t.Fatalf("len = %d, want %d", s.Len(), capacity)
	}
	for i, c := range s.Candles {
		wantOpen := t0 + int64(7+i)*60_000
		if c.OpenTime != wantOpen || c.Close != float64(8+i) {
			t.Fatalf("candle %d = %+v", i, c)
		}
	}
}

func TestSeriesSnapshotIsStable(t *testing.T) {
	a := NewAggregator(10)
	a.PushTick(t0, 1)
	a.PushTick(t0+60_000, 2)
	first := a.Series()
	if again := a.Series(); &first.Closes[0] != &again.Closes[0] {
		t.Fatal("series rebuilt although nothing changed")
	}
	a.PushTick(t0+61_000, 5)
	second := a.Series()
	if first.Closes[1] != 2 || first.Highs[1] != 2 || first.Candles[1].Close != 2 {
		t.Fatalf("earlier snapshot changed: %+v", first.Candles[1])
	}
	if c, _ := second.LastClose(); c != 5 || second.Highs[1] != 5 {
		t.Fatalf("live candle = %+v", second.Candles[1])
	}
	a.PushTick(t0+120_000, 3)
	if third := a.Series(); third.Len() != 3 || second.Len() != 2 {
		t.Fatalf("len = %d, earlier len = %d", third.Len(), second.Len())
	}
}

func TestConcurrentReaders(t *testing.T) {
	a := NewAggregator(50)
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			a.PushTick(t0+int64(i)*1_000, 1+float64(i%13)/100)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s := a.Series()
			for j := range s.Closes {
				if s.Closes[j] != s.Candles[j].Close || s.Highs[j] < s.Lows[j] {
					t.Errorf("inconsistent snapshot at %d: %+v", j, s.Candles[j])
					return
				}
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			for _, c := range a.Latest(0) {
				if c.High < c.Low {
					t.Errorf("candle %+v", c)
					return
				}
			}
		}
	}()
	wg.Wait()
}

func TestMinuteBucketFloors(t *testing.T) {
	cases := []struct {
		ts, want int64
	}{
		{0, 0},
		{59_999, 0},
		{60_000, 60_000},
		{-1, -60_000},
		{-60_000, -60_000},
		{-60_001, -120_000},
	}
	for _, tc := range cases {
		if got := models.MinuteBucket(tc.ts); got != tc.want {
			t.Fatalf("MinuteBucket(%d) = %d, want %d", tc.ts, got, tc.want)
		}
	}
}

func TestSeed(t *testing.T) {
	a := NewAggregator(10)
	n := a.Seed([]models.Candle{
		{OpenTime: t0, Open: 1, High: 2, Low: 1, Close: 2},
		{OpenTime: t0, Open: 1, High: 2, Low: 1, Close: 2},
		{OpenTime: t0 + 60_000, Open: 2, High: 3, Low: 2, Close: 3},
	})
	if n != 2 || a.Len() != 2 {
		t.Fatalf("seeded %d, len %d", n, a.Len())
	}
	a.PushTick(t0+70_000, 4)
	if c := a.Latest(1)[0]; c.High != 4 || c.Open != 2 {
		t.Fatalf("live candle after seed = %+v", c)
	}
}
