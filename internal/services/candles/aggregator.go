// Package candles builds one-minute OHLC candles from a tick stream.
package candles

import (
	"math"
	"sync"

	"FinSignal/internal/domain/models"
)

const DefaultCapacity = 2000

// Aggregator holds the most recent candles in a fixed-capacity ring buffer.
// The newest candle mutates in place until a tick crosses a minute boundary.
type Aggregator struct {
	mu       sync.RWMutex
	buf      []models.Candle
	head     int // index of the oldest candle
	size     int
	cache    *models.Series
	lastTick int64
}

func NewAggregator(capacity int) *Aggregator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Aggregator{buf: make([]models.Candle, capacity)}
}

// Capacity returns the maximum number of candles held.
func (a *Aggregator) Capacity() int { return len(a.buf) }

// Len returns the number of candles currently held.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.size
}

// PushTick folds one price into the series. Invalid prices and ticks older
// than the current candle are dropped. It reports whether the tick was used.
func (a *Aggregator) PushTick(tsMillis int64, price float64) bool {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return false
	}
	bucket := models.MinuteBucket(tsMillis)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.size > 0 {
		last := &a.buf[a.index(a.size-1)]
		switch {
		case bucket == last.OpenTime:
			if tsMillis > a.lastTick {
				a.lastTick = tsMillis
			}
			if price > last.High {
				last.High = price
			}
			if price < last.Low {
				last.Low = price
			}
			last.Close = price
			return true
		case bucket < last.OpenTime:
			return false
		}
	}
	a.append(models.Candle{OpenTime: bucket, Open: price, High: price, Low: price, Close: price})
	a.lastTick = tsMillis
	return true
}

// LastTick returns the timestamp of the newest accepted tick.
func (a *Aggregator) LastTick() (int64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastTick, a.lastTick > 0
}

// Seed loads historical candles (oldest first) into an empty aggregator.
// Candles that are not strictly increasing in time are skipped.
func (a *Aggregator) Seed(history []models.Candle) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range history {
		if c.Close <= 0 || c.High < c.Low {
			continue
		}
		c.OpenTime = models.MinuteBucket(c.OpenTime)
		if a.size > 0 && c.OpenTime <= a.buf[a.index(a.size-1)].OpenTime {
			continue
		}
		a.append(c)
		n++
	}
	return n
}

func (a *Aggregator) append(c models.Candle) {
	if a.size < len(a.buf) {
		a.buf[a.index(a.size)] = c
		a.size++
		return
	}
	a.buf[a.head] = c
	a.head = (a.head + 1) % len(a.buf)
}

func (a *Aggregator) index(i int) int { return (a.head + i) % len(a.buf) }

// LastPrice returns the close of the newest candle.
func (a *Aggregator) LastPrice() (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.size == 0 {
		return 0, false
	}
	return a.buf[a.index(a.size-1)].Close, true
}

// Latest returns up to n newest candles, oldest first, in a fresh slice.
func (a *Aggregator) Latest(n int) []models.Candle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if n <= 0 || n > a.size {
		n = a.size
	}
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = a.buf[a.index(a.size-n+i)]
	}
	return out
}

// Series returns the buffer in chronological order. Arrays handed out are
// never written again: the cached snapshot is reused only while the newest
// candle is unchanged, otherwise a new one is built.
func (a *Aggregator) Series() models.Series {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.size == 0 {
		return models.Series{}
	}
	last := a.buf[a.index(a.size-1)]
	if a.cache != nil && a.cache.Len() == a.size && a.cache.Candles[a.size-1] == last {
		return *a.cache
	}

	s := &models.Series{
		Opens:   make([]float64, a.size),
		Highs:   make([]float64, a.size),
		Lows:    make([]float64, a.size),
		Closes:  make([]float64, a.size),
		Candles: make([]models.Candle, a.size),
	}
	for i := 0; i < a.size; i++ {
		c := a.buf[a.index(i)]
		s.Opens[i] = c.Open
		s.Highs[i] = c.High
		s.Lows[i] = c.Low
		s.Closes[i] = c.Close
		s.Candles[i] = c
	}
	a.cache = s
	return *s
}
