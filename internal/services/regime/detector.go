// Package regime classifies volatility, trend and momentum of the candle series.
package regime

import (
	"math"
	"sync"

	"FinSignal/internal/domain/models"
	"FinSignal/internal/services/indicators"
)

const (
	MinCandles       = 50
	historyCap       = 100
	stabilityWindow  = 10
	defaultStability = 50.0

	// volatility thresholds are ATR/avg close in percent
	lowVolatilityPct  = 0.3
	highVolatilityPct = 0.7

	strongTrend = 0.002
	weakTrend   = 0.0005
)

type snapshot struct {
	vol   models.VolatilityLevel
	trend models.TrendDirection
}

// Detector keeps a short rolling history of past classifications to score
// how stable the current regime is.
type Detector struct {
	mu        sync.RWMutex
	history   []snapshot
	stability float64
	current   models.RegimeDescriptor
}

func NewDetector() *Detector {
	return &Detector{stability: defaultStability, current: models.NeutralRegime(defaultStability)}
}

// Update classifies the series and records it in the history. Below
// MinCandles a neutral descriptor is returned and history is untouched.
func (d *Detector) Update(s models.Series) models.RegimeDescriptor {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := Classify(s)
	if !ok {
		d.current = models.NeutralRegime(d.stability)
		return d.current
	}

	d.history = append(d.history, snapshot{vol: r.Volatility.Level, trend: r.Trend.Direction})
	if len(d.history) > historyCap {
		d.history = d.history[len(d.history)-historyCap:]
	}
	if len(d.history) >= stabilityWindow {
		cur := d.history[len(d.history)-1]
		agreeVol, agreeTrend := 0, 0
		for _, h := range d.history[len(d.history)-stabilityWindow:] {
			if h.vol == cur.vol {
				agreeVol++
			}
			if h.trend == cur.trend {
				agreeTrend++
			}
		}
		d.stability = float64(agreeVol+agreeTrend) / float64(2*stabilityWindow) * 100
	}
	r.Stability = d.stability
	d.current = r
	return r
}

// Current returns the last descriptor produced by Update.
func (d *Detector) Current() models.RegimeDescriptor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// HistoryLen is the number of snapshots retained.
func (d *Detector) HistoryLen() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.history)
}

// Classify computes a descriptor without touching any history. Stability is
// left at zero.
func Classify(s models.Series) (models.RegimeDescriptor, bool) {
	if s.Len() < MinCandles {
		return models.RegimeDescriptor{}, false
	}
	var r models.RegimeDescriptor

	avg, _ := indicators.SMA(s.Closes, 20)
	atr, _ := indicators.ATR(s.Highs, s.Lows, s.Closes, 14)
	ratio := 0.0
	if avg > 0 {
		ratio = atr / avg * 100
	}
	r.Volatility.Ratio = ratio
	switch {
	case ratio < lowVolatilityPct:
		r.Volatility.Level = models.VolatilityLow
	case ratio > highVolatilityPct:
		r.Volatility.Level = models.VolatilityHigh
	default:
		r.Volatility.Level = models.VolatilityMedium
	}

	ema12, _ := indicators.EMA(s.Closes, 12)
	ema26, _ := indicators.EMA(s.Closes, 26)
	diff := ema12 - ema26
	switch {
	case diff > 0:
		r.Trend.Direction = models.TrendBullish
	case diff < 0:
		r.Trend.Direction = models.TrendBearish
	default:
		r.Trend.Direction = models.TrendNeutral
	}
	rel := 0.0
	if avg > 0 {
		rel = math.Abs(diff) / avg
	}
	switch {
	case rel > strongTrend:
		r.Trend.Strength = models.StrengthStrong
	case rel < weakTrend:
		r.Trend.Strength = models.StrengthWeak
	default:
		r.Trend.Strength = models.StrengthModerate
	}

	rsi, _ := indicators.RSI(s.Closes, 14)
	r.Momentum.RSI = rsi
	switch {
	case rsi > 60:
		r.Momentum.Regime = models.TrendBullish
	case rsi < 40:
		r.Momentum.Regime = models.TrendBearish
	default:
		r.Momentum.Regime = models.TrendNeutral
	}
	return r, true
}
