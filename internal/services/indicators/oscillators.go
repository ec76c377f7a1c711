package indicators

import talib "github.com/markcheno/go-talib"

// RSI averages gains and losses over the trailing period changes with a
// plain mean, not Wilder smoothing, so talib.Rsi does not apply. A window
// with no losses is 100 and one with no gains is 0.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}
	w := tail(closes, period+1)
	gain, loss := 0.0, 0.0
	for i := 1; i < len(w); i++ {
		d := w[i] - w[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return clamp(100-100/(1+rs), 0, 100), true
}

type Stoch struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
}

func flat(highs, lows []float64) bool {
	hh, ll := highestLowest(highs, lows)
	return hh-ll == 0
}

// Stochastic returns %K over kPeriod and %D as the SMA of the last dPeriod
// %K values. A window without range reads 50.
func Stochastic(highs, lows, closes []float64, kPeriod, dPeriod int) (Stoch, bool) {
	if kPeriod <= 0 || dPeriod <= 0 || !sameLen(highs, lows, closes) || len(closes) < kPeriod+dPeriod-1 {
		return Stoch{}, false
	}
	w := kPeriod + dPeriod - 1
	h, l, c := tail(highs, w), tail(lows, w), tail(closes, w)
	// %D period 1 leaves every %K of the window in place.
	fastK, _ := talib.StochF(h, l, c, kPeriod, 1, talib.SMA)
	ks := make([]float64, dPeriod)
	for j := range ks {
		end := kPeriod + j
		ks[j] = clamp(fastK[end-1], 0, 100)
		if flat(h[end-kPeriod:end], l[end-kPeriod:end]) {
			ks[j] = 50
		}
	}
	d, _ := SMA(ks, dPeriod)
	return Stoch{K: ks[dPeriod-1], D: d}, true
}

// CCI is the commodity channel index of the typical price.
func CCI(highs, lows, closes []float64, period int) (float64, bool) {
	if period <= 0 || !sameLen(highs, lows, closes) || len(closes) < period {
		return 0, false
	}
	return last(talib.Cci(tail(highs, period), tail(lows, period), tail(closes, period), period)), true
}

// WilliamsR ranges from -100 (at the low) to 0 (at the high). A window
// without range reads -50.
func WilliamsR(highs, lows, closes []float64, period int) (float64, bool) {
	if period <= 0 || !sameLen(highs, lows, closes) || len(closes) < period {
		return 0, false
	}
	h, l := tail(highs, period), tail(lows, period)
	if flat(h, l) {
		return -50, true
	}
	return clamp(last(talib.WillR(h, l, tail(closes, period), period)), -100, 0), true
}

const (
	aoFast = 5
	aoSlow = 34
)

// AwesomeOscillator is SMA5 minus SMA34 of the median price.
func AwesomeOscillator(highs, lows []float64) (float64, bool) {
	if !sameLen(highs, lows) || len(highs) < aoSlow {
		return 0, false
	}
	med := talib.MedPrice(tail(highs, aoSlow), tail(lows, aoSlow))
	fast, _ := SMA(med, aoFast)
	slow, _ := SMA(med, aoSlow)
	return fast - slow, true
}
