package models

// MinuteMillis is the candle bucket width in milliseconds.
const MinuteMillis int64 = 60_000

// Candle is a one-minute OHLC bar. OpenTime is minute-aligned epoch millis.
type Candle struct {
	OpenTime int64   `json:"openTime"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
}

// MinuteBucket returns the minute boundary containing ts, rounding down for
// negative timestamps as well.
func MinuteBucket(tsMillis int64) int64 {
	b := (tsMillis / MinuteMillis) * MinuteMillis
	if tsMillis%MinuteMillis < 0 {
		b -= MinuteMillis
	}
	return b
}

// Series is a chronological (oldest first) snapshot of the candle buffer as
// parallel arrays. Slices may be shared with other readers and must be
// treated as read-only.
type Series struct {
	Opens   []float64
	Highs   []float64
	Lows    []float64
	Closes  []float64
	Candles []Candle
}

// Len returns the number of candles in the snapshot.
func (s Series) Len() int { return len(s.Closes) }

// LastClose returns the most recent close.
func (s Series) LastClose() (float64, bool) {
	if len(s.Closes) == 0 {
		return 0, false
	}
	return s.Closes[len(s.Closes)-1], true
}

// Head returns a snapshot without the last n candles. Used by strategies to
// read the previous bar's indicator values.
func (s Series) Head(n int) Series {
	if n <= 0 {
		return s
	}
	end := len(s.Closes) - n
	if end < 0 {
		end = 0
	}
	return Series{
		Opens:   s.Opens[:end],
		Highs:   s.Highs[:end],
		Lows:    s.Lows[:end],
		Closes:  s.Closes[:end],
		Candles: s.Candles[:end],
	}
}

// Tick is a single observed price.
type Tick struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"t"` // epoch millis
	Price     float64 `json:"c"`
	Volume    float64 `json:"v,omitempty"`
}
