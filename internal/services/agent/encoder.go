package agent

import (
	"time"

	"FinSignal/internal/domain/models"
	ind "FinSignal/internal/services/indicators"
)

const neutral = 0.5

// Performance is the part of the state derived from recent results.
type Performance struct {
	WinRate float64 // 0..1
	Streak  int     // signed, wins positive
}

var regimeCode = map[string]float64{
	models.RegimeTrendingDown: 0,
	models.RegimeRanging:      1.0 / 3,
	models.RegimeTrendingUp:   2.0 / 3,
	models.RegimeVolatile:     1,
}

var strengthCode = map[models.TrendStrength]float64{
	models.StrengthWeak:     1.0 / 3,
	models.StrengthModerate: 2.0 / 3,
	models.StrengthStrong:   1,
}

// Encode builds the fixed-length state vector. Every component is in [0,1];
// inputs that cannot be computed stay at 0.5.
func Encode(s models.Series, r models.RegimeDescriptor, perf Performance) []float64 {
	v := make([]float64, models.StateSize)
	for i := range v {
		v[i] = neutral
	}

	v[0] = regimeCode[r.Label()]
	v[1] = clamp01(r.Volatility.Ratio)
	dir := 0.0
	switch r.Trend.Direction {
	case models.TrendBullish:
		dir = 1
	case models.TrendBearish:
		dir = -1
	}
	v[2] = clamp01(0.5 + dir*strengthCode[r.Trend.Strength]/2)
	v[8] = clamp01(r.Stability / 100)
	v[9] = clamp01(perf.WinRate)
	v[10] = clamp01(0.5 + float64(perf.Streak)/10)

	price, ok := s.LastClose()
	if !ok || price <= 0 {
		return v
	}
	if rsi, ok := ind.RSI(s.Closes, 14); ok {
		v[3] = rsi / 100
	}
	if m, ok := ind.MACD(s.Closes, 12, 26, 9); ok {
		v[4] = clamp01(0.5 + m.Histogram/price*500)
	}
	if a, ok := ind.ADX(s.Highs, s.Lows, s.Closes, 14); ok {
		v[5] = clamp01(a.ADX / 100)
	}
	if st, ok := ind.Stochastic(s.Highs, s.Lows, s.Closes, 14, 3); ok {
		v[6] = clamp01(st.K / 100)
	}
	if n := len(s.Candles); n > 0 {
		t := time.UnixMilli(s.Candles[n-1].OpenTime).UTC()
		v[7] = float64(t.Hour()*60+t.Minute()) / 1440
	}
	if ema, ok := ind.EMA(s.Closes, 21); ok {
		v[12] = clamp01(0.5 + (price-ema)/price*100)
	}
	if bb, ok := ind.Bollinger(s.Closes, 20, 2); ok {
		v[13] = clamp01(bb.PercentB)
	}
	if cci, ok := ind.CCI(s.Highs, s.Lows, s.Closes, 20); ok {
		v[14] = clamp01(0.5 + cci/400)
	}
	if p, ok := ind.Patterns(s.Candles); ok {
		bias := 0.0
		switch p.Bias {
		case models.TrendBullish:
			bias = 1
		case models.TrendBearish:
			bias = -1
		}
		v[15] = clamp01(0.5 + bias*p.Score/2)
	}
	v[11] = (v[2] + v[3] + v[6] + v[13]) / 4
	return v
}

func clamp01(x float64) float64 { return clamp(x, 0, 1) }

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
