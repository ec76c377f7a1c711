package indicators

import talib "github.com/markcheno/go-talib"

type Bands struct {
	Upper     float64 `json:"upper"`
	Middle    float64 `json:"middle"`
	Lower     float64 `json:"lower"`
	PercentB  float64 `json:"percentB"`
	Bandwidth float64 `json:"bandwidth"` // (upper-lower)/middle
}

const flatEpsilon = 1e-12

// Bollinger uses the population standard deviation of the trailing window.
func Bollinger(closes []float64, period int, k float64) (Bands, bool) {
	if period <= 0 || len(closes) < period {
		return Bands{}, false
	}
	up, mid, low := talib.BBands(tail(closes, period), period, k, k, talib.SMA)
	b := Bands{Upper: last(up), Middle: last(mid), Lower: last(low), PercentB: 0.5}
	width := b.Upper - b.Lower
	if width > flatEpsilon {
		b.PercentB = (last(closes) - b.Lower) / width
	}
	if b.Middle != 0 {
		b.Bandwidth = width / b.Middle
	}
	return b, true
}

// ATR is Wilder's average true range. It needs period+1 candles.
func ATR(highs, lows, closes []float64, period int) (float64, bool) {
	if period <= 0 || !sameLen(highs, lows, closes) || len(closes) < period+1 {
		return 0, false
	}
	return last(talib.Atr(highs, lows, closes, period)), true
}
