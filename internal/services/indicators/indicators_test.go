package indicators

import (
	"math"
	"math/rand"
	"testing"

	"FinSignal/internal/domain/models"
)

func walk(n int, seed int64) (highs, lows, closes []float64) {
	rng := rand.New(rand.NewSource(seed))
	p := 100.0
	for i := 0; i < n; i++ {
		p += rng.NormFloat64() * 0.3
		h := p + rng.Float64()*0.2
		l := p - rng.Float64()*0.2
		highs = append(highs, h)
		lows = append(lows, l)
		closes = append(closes, p)
	}
	return
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func TestNullSafety(t *testing.T) {
	h, l, c := walk(120, 1)
	tests := []struct {
		name string
		min  func(p int) int
		run  func(h, l, c []float64, p int) (bool, []float64)
	}{
		{"sma", func(p int) int { return p }, func(h, l, c []float64, p int) (bool, []float64) {
			v, ok := SMA(c, p)
			return ok, []float64{v}
		}},
		{"ema", func(p int) int { return p }, func(h, l, c []float64, p int) (bool, []float64) {
			v, ok := EMA(c, p)
			return ok, []float64{v}
		}},
		{"rsi", func(p int) int { return p + 1 }, func(h, l, c []float64, p int) (bool, []float64) {
			v, ok := RSI(c, p)
			return ok, []float64{v}
		}},
		{"macd", func(p int) int { return 2*p + 3 - 1 }, func(h, l, c []float64, p int) (bool, []float64) {
			v, ok := MACD(c, p, 2*p, 3)
			return ok, []float64{v.MACD, v.Signal, v.Histogram}
		}},
		{"bollinger", func(p int) int { return p }, func(h, l, c []float64, p int) (bool, []float64) {
			v, ok := Bollinger(c, p, 2)
			return ok, []float64{v.Upper, v.Lower, v.PercentB}
		}},
		{"atr", func(p int) int { return p + 1 }, func(h, l, c []float64, p int) (bool, []float64) {
			v, ok := ATR(h, l, c, p)
			return ok, []float64{v}
		}},
		{"stoch", func(p int) int { return p + 3 - 1 }, func(h, l, c []float64, p int) (bool, []float64) {
			v, ok := Stochastic(h, l, c, p, 3)
			return ok, []float64{v.K, v.D}
		}},
		{"adx", func(p int) int { return max(p, 2) + 1 }, func(h, l, c []float64, p int) (bool, []float64) {
			v, ok := ADX(h, l, c, p)
			return ok, []float64{v.ADX, v.PlusDI, v.MinusDI}
		}},
		{"cci", func(p int) int { return p }, func(h, l, c []float64, p int) (bool, []float64) {
			v, ok := CCI(h, l, c, p)
			return ok, []float64{v}
		}},
		{"williams", func(p int) int { return p }, func(h, l, c []float64, p int) (bool, []float64) {
			v, ok := WilliamsR(h, l, c, p)
			return ok, []float64{v}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for p := 1; p <= 30; p++ {
				need := tt.min(p)
				if ok, _ := tt.run(h[:need-1], l[:need-1], c[:need-1], p); ok {
					t.Fatalf("period %d: ok with %d samples", p, need-1)
				}
				ok, vs := tt.run(h[:need], l[:need], c[:need], p)
				if !ok || !finite(vs...) {
					t.Fatalf("period %d: ok=%v values=%v with %d samples", p, ok, vs, need)
				}
			}
		})
	}
	if _, ok := SMA(c, 0); ok {
		t.Fatal("zero period accepted")
	}
	a1, _ := ADX(h[:3], l[:3], c[:3], 1)
	a2, _ := ADX(h[:3], l[:3], c[:3], 2)
	if a1 != a2 {
		t.Fatalf("adx period 1 = %+v, want %+v", a1, a2)
	}
	if _, ok := ADX(h, l, c, 0); ok {
		t.Fatal("adx period 0 accepted")
	}
	if _, ok := AwesomeOscillator(h[:33], l[:33]); ok {
		t.Fatal("AO with 33 samples")
	}
	if v, ok := AwesomeOscillator(h[:34], l[:34]); !ok || !finite(v) {
		t.Fatal("AO with 34 samples")
	}
	if _, ok := Patterns(nil); ok {
		t.Fatal("patterns with no candles")
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b))
}

func TestMatchesDirectFormulas(t *testing.T) {
	h, l, c := walk(200, 7)
	n := len(c)

	mean := func(v []float64) float64 {
		s := 0.0
		for _, x := range v {
			s += x
		}
		return s / float64(len(v))
	}
	hl := func(from, to int) (float64, float64) {
		hh, ll := h[from], l[from]
		for i := from; i < to; i++ {
			hh = math.Max(hh, h[i])
			ll = math.Min(ll, l[i])
		}
		return hh, ll
	}

	if v, _ := SMA(c, 20); !near(v, mean(c[n-20:])) {
		t.Fatalf("sma = %v", v)
	}

	ema := mean(c[:21])
	for _, x := range c[21:] {
		ema += (x - ema) * 2 / 22
	}
	if v, _ := EMA(c, 21); !near(v, ema) {
		t.Fatalf("ema = %v want %v", v, ema)
	}

	mid := mean(c[n-20:])
	variance := 0.0
	for _, x := range c[n-20:] {
		variance += (x - mid) * (x - mid)
	}
	sd := math.Sqrt(variance / 20)
	if b, _ := Bollinger(c, 20, 2); !near(b.Middle, mid) || math.Abs(b.Upper-(mid+2*sd)) > 1e-6 {
		t.Fatalf("bands = %+v want mid %v sd %v", b, mid, sd)
	}

	tr := func(i int) float64 {
		return math.Max(h[i]-l[i], math.Max(math.Abs(h[i]-c[i-1]), math.Abs(l[i]-c[i-1])))
	}
	atr := 0.0
	for i := 1; i <= 14; i++ {
		atr += tr(i)
	}
	atr /= 14
	for i := 15; i < n; i++ {
		atr = (atr*13 + tr(i)) / 14
	}
	if v, _ := ATR(h, l, c, 14); !near(v, atr) {
		t.Fatalf("atr = %v want %v", v, atr)
	}

	tp := make([]float64, 20)
	for i := range tp {
		j := n - 20 + i
		tp[i] = (h[j] + l[j] + c[j]) / 3
	}
	tpMean, mad := mean(tp), 0.0
	for _, x := range tp {
		mad += math.Abs(x - tpMean)
	}
	cci := (tp[19] - tpMean) / (0.015 * mad / 20)
	if v, _ := CCI(h, l, c, 20); !near(v, cci) {
		t.Fatalf("cci = %v want %v", v, cci)
	}

	hh, ll := hl(n-14, n)
	if v, _ := WilliamsR(h, l, c, 14); !near(v, (hh-c[n-1])/(hh-ll)*-100) {
		t.Fatalf("williams = %v", v)
	}

	ks := make([]float64, 3)
	for j := range ks {
		end := n - 2 + j
		hh, ll := hl(end-14, end)
		ks[j] = (c[end-1] - ll) / (hh - ll) * 100
	}
	if s, _ := Stochastic(h, l, c, 14, 3); !near(s.K, ks[2]) || !near(s.D, mean(ks)) {
		t.Fatalf("stoch = %+v want k %v d %v", s, ks[2], mean(ks))
	}

	med := make([]float64, 34)
	for i := range med {
		med[i] = (h[n-34+i] + l[n-34+i]) / 2
	}
	if v, _ := AwesomeOscillator(h, l); !near(v, mean(med[29:])-mean(med)) {
		t.Fatalf("ao = %v", v)
	}
}

func TestRSIBounds(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		_, _, c := walk(60, seed)
		v, ok := RSI(c, 14)
		if !ok || v < 0 || v > 100 {
			t.Fatalf("seed %d: rsi = %v", seed, v)
		}
	}
	up := []float64{1, 2, 3, 4, 5, 6}
	if v, _ := RSI(up, 5); v != 100 {
		t.Fatalf("all gains rsi = %v", v)
	}
	down := []float64{6, 5, 4, 3, 2, 1}
	if v, _ := RSI(down, 5); v != 0 {
		t.Fatalf("all losses rsi = %v", v)
	}
	flat := []float64{2, 2, 2, 2, 2, 2}
	if v, _ := RSI(flat, 5); v != 100 {
		t.Fatalf("flat rsi = %v, want exactly 100", v)
	}
}

func TestEMAAndSMA(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	if v, _ := SMA(vals, 5); v != 3 {
		t.Fatalf("sma = %v", v)
	}
	// seed = 2 (mean of 1,2,3); k = 0.5
	// 4 -> 3; 5 -> 4
	if v, _ := EMA(vals, 3); v != 4 {
		t.Fatalf("ema = %v", v)
	}
	s, _ := EMASeries(vals, 3)
	if len(s) != 3 || s[0] != 2 {
		t.Fatalf("ema series = %v", s)
	}
}

func TestBollingerFlat(t *testing.T) {
	b, ok := Bollinger([]float64{5, 5, 5, 5}, 4, 2)
	if !ok || b.PercentB != 0.5 || b.Upper != 5 || b.Lower != 5 {
		t.Fatalf("flat bands = %+v", b)
	}
}

func TestStochasticAndWilliamsFlat(t *testing.T) {
	h := []float64{3, 3, 3, 3}
	if s, _ := Stochastic(h, h, h, 2, 2); s.K != 50 || s.D != 50 {
		t.Fatalf("flat stoch = %+v", s)
	}
	if w, _ := WilliamsR(h, h, h, 3); w != -50 {
		t.Fatalf("flat williams = %v", w)
	}
}

func TestADXDirection(t *testing.T) {
	var h, l, c []float64
	for i := 0; i < 40; i++ {
		p := 100 + float64(i)
		h = append(h, p+0.5)
		l = append(l, p-0.5)
		c = append(c, p)
	}
	r, ok := ADX(h, l, c, 14)
	if !ok || r.PlusDI <= r.MinusDI || r.ADX < 90 {
		t.Fatalf("uptrend adx = %+v", r)
	}
}

func TestPatterns(t *testing.T) {
	tests := []struct {
		name    string
		candles []models.Candle
		want    string
		bias    models.TrendDirection
	}{
		{
			name: "bullish engulfing",
			candles: []models.Candle{
				{Open: 10, High: 10.2, Low: 9.8, Close: 10.1},
				{Open: 10.5, High: 10.6, Low: 10.0, Close: 10.1},
				{Open: 10.0, High: 10.8, Low: 9.95, Close: 10.7},
			},
			want: PatternBullishEngulfing,
			bias: models.TrendBullish,
		},
		{
			name: "hammer",
			candles: []models.Candle{
				{Open: 10, High: 10.2, Low: 9.8, Close: 10.1},
				{Open: 10.1, High: 10.2, Low: 9.9, Close: 10.15},
				{Open: 10.0, High: 10.05, Low: 9.0, Close: 10.04},
			},
			want: PatternHammer,
			bias: models.TrendBullish,
		},
		{
			name: "evening star",
			candles: []models.Candle{
				{Open: 10, High: 11.1, Low: 9.9, Close: 11},
				{Open: 11.1, High: 11.3, Low: 11.0, Close: 11.15},
				{Open: 11.0, High: 11.05, Low: 10.1, Close: 10.2},
			},
			want: PatternEveningStar,
			bias: models.TrendBearish,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := Patterns(tt.candles)
			if !ok {
				t.Fatal("not ok")
			}
			found := false
			for _, p := range r.Patterns {
				if p == tt.want {
					found = true
				}
			}
			if !found || r.Bias != tt.bias {
				t.Fatalf("result = %+v", r)
			}
			if r.Score <= 0 || r.Score > 1 {
				t.Fatalf("score = %v", r.Score)
			}
		})
	}
}
