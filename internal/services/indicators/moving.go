// Package indicators implements technical indicators over OHLC arrays.
//
// Every function is pure. When the input is shorter than the indicator
// needs, or a period is not positive, the boolean result is false and the
// value must be ignored.
package indicators

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

// SMA is the arithmetic mean of the trailing period values.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	return last(talib.Sma(tail(values, period), period)), true
}

// EMASeries returns the exponential moving average for every index from
// period-1 onwards. The first value is seeded with the SMA of the first
// period values, element i of the result corresponds to values[i+period-1].
func EMASeries(values []float64, period int) ([]float64, bool) {
	if period <= 0 || len(values) < period {
		return nil, false
	}
	return talib.Ema(values, period)[period-1:], true
}

// EMA returns the latest exponential moving average.
func EMA(values []float64, period int) (float64, bool) {
	s, ok := EMASeries(values, period)
	if !ok {
		return 0, false
	}
	return s[len(s)-1], true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func highestLowest(highs, lows []float64) (float64, float64) {
	hh, ll := math.Inf(-1), math.Inf(1)
	for i := range highs {
		hh = math.Max(hh, highs[i])
		ll = math.Min(ll, lows[i])
	}
	return hh, ll
}

func last(values []float64) float64 {
	return values[len(values)-1]
}

func tail(values []float64, n int) []float64 {
	return values[len(values)-n:]
}

func sameLen(a ...[]float64) bool {
	for _, s := range a[1:] {
		if len(s) != len(a[0]) {
			return false
		}
	}
	return true
}
