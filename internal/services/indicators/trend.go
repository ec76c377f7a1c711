package indicators

import talib "github.com/markcheno/go-talib"

type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACDLine returns the MACD line history, one value per candle from
// index max(fast, slow)-1 onwards. Both averages are seeded from the start of
// the series; talib.Macd seeds the fast one at the slow lookback instead.
func MACDLine(closes []float64, fast, slow int) ([]float64, bool) {
	f, ok := EMASeries(closes, fast)
	if !ok {
		return nil, false
	}
	s, ok := EMASeries(closes, slow)
	if !ok {
		return nil, false
	}
	n := len(f)
	if len(s) < n {
		n = len(s)
	}
	line := make([]float64, n)
	fo, so := len(f)-n, len(s)-n
	for i := range line {
		line[i] = f[fo+i] - s[so+i]
	}
	return line, true
}

func MACD(closes []float64, fast, slow, signal int) (MACDResult, bool) {
	line, ok := MACDLine(closes, fast, slow)
	if !ok {
		return MACDResult{}, false
	}
	sig, ok := EMA(line, signal)
	if !ok {
		return MACDResult{}, false
	}
	m := line[len(line)-1]
	return MACDResult{MACD: m, Signal: sig, Histogram: m - sig}, true
}

type ADXResult struct {
	ADX     float64 `json:"adx"`
	PlusDI  float64 `json:"plusDI"`
	MinusDI float64 `json:"minusDI"`
}

// ADX smooths +DM, -DM and true range with Wilder's method and reports the
// directional index of the final bar as ADX. The DX itself is not smoothed a
// second time; trend-strength thresholds across the system are tuned to this.
// DX is undefined over a single bar, so period 1 is computed as period 2.
func ADX(highs, lows, closes []float64, period int) (ADXResult, bool) {
	if period == 1 {
		period = 2
	}
	if period < 1 || !sameLen(highs, lows, closes) || len(closes) < period+1 {
		return ADXResult{}, false
	}
	return ADXResult{
		ADX:     last(talib.Dx(highs, lows, closes, period)),
		PlusDI:  last(talib.PlusDI(highs, lows, closes, period)),
		MinusDI: last(talib.MinusDI(highs, lows, closes, period)),
	}, true
}
