package usecase

import (
	"fmt"
	"math"

	"FinSignal/internal/domain/models"
	ind "FinSignal/internal/services/indicators"
)

const (
	gateScoreStrict = 1.0
	gateScoreSoft   = 0.65
	gateScoreFail   = 0.45

	maxConfidence  = 95.0
	minConfidence  = 40.0
	elevationFloor = 70.0

	trendTolerance = 0.0005 // EMA12-EMA26 against the action, relative to price
	priceTolerance = 0.001
)

// GateResult is the outcome of the alignment checks for one action.
type GateResult struct {
	Strict bool
	Soft   bool
	Failed []string
}

func (g GateResult) Score() float64 {
	switch {
	case g.Strict:
		return gateScoreStrict
	case g.Soft:
		return gateScoreSoft
	default:
		return gateScoreFail
	}
}

type momentumBand struct {
	rsiBuyMax, rsiSellMin float64
}

// wider RSI bands in volatile markets
var momentumBands = map[models.VolatilityLevel]momentumBand{
	models.VolatilityLow:    {rsiBuyMax: 65, rsiSellMin: 35},
	models.VolatilityMedium: {rsiBuyMax: 70, rsiSellMin: 30},
	models.VolatilityHigh:   {rsiBuyMax: 75, rsiSellMin: 25},
}

// EvaluateGates checks trend, momentum and price position against action at
// a strict and a relaxed tolerance. A check whose indicators cannot be
// computed passes softly but never strictly.
func EvaluateGates(s models.Series, r models.RegimeDescriptor, action models.Action) GateResult {
	res := GateResult{Strict: true, Soft: true}
	sign := action.Sign()
	price, ok := s.LastClose()
	if !ok || sign == 0 {
		return GateResult{Failed: []string{"no price"}}
	}
	check := func(name string, strict, soft bool) {
		if !strict {
			res.Strict = false
			res.Failed = append(res.Failed, name)
		}
		if !soft {
			res.Soft = false
		}
	}

	// trend vs EMA cross
	e12, ok12 := ind.EMA(s.Closes, 12)
	e26, ok26 := ind.EMA(s.Closes, 26)
	if ok12 && ok26 {
		rel := (e12 - e26) / price * sign
		check("trend", rel > 0, rel > -trendTolerance)
	} else {
		check("trend", false, true)
	}

	// momentum vs MACD/RSI/Stochastic
	m, okM := ind.MACD(s.Closes, 12, 26, 9)
	rsi, okR := ind.RSI(s.Closes, 14)
	st, okS := ind.Stochastic(s.Highs, s.Lows, s.Closes, 14, 3)
	if okM && okR && okS {
		band, ok := momentumBands[r.Volatility.Level]
		if !ok {
			band = momentumBands[models.VolatilityMedium]
		}
		hist := m.Histogram * sign
		histTol := price * 0.0001
		var strict, soft bool
		if action == models.ActionBuy {
			strict = hist > 0 && rsi >= 45 && rsi <= band.rsiBuyMax && st.K <= 90
			soft = hist > -histTol && rsi >= 35 && rsi <= band.rsiBuyMax+5 && st.K <= 95
		} else {
			strict = hist > 0 && rsi <= 55 && rsi >= band.rsiSellMin && st.K >= 10
			soft = hist > -histTol && rsi <= 65 && rsi >= band.rsiSellMin-5 && st.K >= 5
		}
		check("momentum", strict, soft)
	} else {
		check("momentum", false, true)
	}

	// price vs Bollinger mid and EMA21
	bb, okB := ind.Bollinger(s.Closes, 20, 2)
	e21, okE := ind.EMA(s.Closes, 21)
	if okB && okE {
		var strict, soft bool
		if action == models.ActionBuy {
			strict = price > bb.Middle && price > e21
			soft = price >= math.Min(bb.Middle, e21)*(1-priceTolerance)
		} else {
			strict = price < bb.Middle && price < e21
			soft = price <= math.Max(bb.Middle, e21)*(1+priceTolerance)
		}
		check("price", strict, soft)
	} else {
		check("price", false, true)
	}
	return res
}

// AdjustConfidence applies the gate score, caps signals that only pass the
// relaxed gates below the auto-trade threshold and, when elevate is set,
// moves the confidence halfway toward the maximum.
func AdjustConfidence(base float64, g GateResult, elevate bool, autoTrade float64) float64 {
	c := base * (0.6 + 0.4*g.Score())
	if !g.Strict {
		c = math.Min(c, autoTrade-1)
	}
	if elevate && g.Strict && c >= elevationFloor {
		c += (maxConfidence - c) * 0.5
	}
	return math.Max(minConfidence, math.Min(maxConfidence, c))
}

// ExpirySeconds recommends how long a signal should be held.
func ExpirySeconds(r models.RegimeDescriptor) int {
	var sec int
	switch r.Volatility.Level {
	case models.VolatilityHigh:
		sec = 60
	case models.VolatilityLow:
		sec = 180
	default:
		sec = 120
	}
	if r.Trend.Strength == models.StrengthStrong {
		sec += 60
	}
	if sec > 300 {
		sec = 300
	}
	return sec
}

// biasFlipped reports whether price now sits against the candidate on both
// the Bollinger mid band and EMA21.
func biasFlipped(s models.Series, action models.Action) (bool, string) {
	price, ok := s.LastClose()
	if !ok {
		return false, ""
	}
	bb, ok := ind.Bollinger(s.Closes, 20, 2)
	if !ok {
		return false, ""
	}
	e21, ok := ind.EMA(s.Closes, 21)
	if !ok {
		return false, ""
	}
	switch action {
	case models.ActionBuy:
		if price < bb.Middle && price < e21 {
			return true, fmt.Sprintf("price %.5f below mid %.5f and EMA21 %.5f", price, bb.Middle, e21)
		}
	case models.ActionSell:
		if price > bb.Middle && price > e21 {
			return true, fmt.Sprintf("price %.5f above mid %.5f and EMA21 %.5f", price, bb.Middle, e21)
		}
	}
	return false, ""
}
