package indicators

import (
	"math"

	"FinSignal/internal/domain/models"
)

const (
	PatternDoji             = "DOJI"
	PatternHammer           = "HAMMER"
	PatternShootingStar     = "SHOOTING_STAR"
	PatternBullishEngulfing = "BULLISH_ENGULFING"
	PatternBearishEngulfing = "BEARISH_ENGULFING"
	PatternMorningStar      = "MORNING_STAR"
	PatternEveningStar      = "EVENING_STAR"
)

type PatternResult struct {
	Patterns []string              `json:"patterns"`
	Bias     models.TrendDirection `json:"bias"` // NEUTRAL when no directional pattern dominates
	Score    float64               `json:"score"`
}

type shape struct {
	body, rng, upper, lower float64
	bull, bear              bool
}

func shapeOf(c models.Candle) shape {
	return shape{
		body:  math.Abs(c.Close - c.Open),
		rng:   c.High - c.Low,
		upper: c.High - math.Max(c.Open, c.Close),
		lower: math.Min(c.Open, c.Close) - c.Low,
		bull:  c.Close > c.Open,
		bear:  c.Close < c.Open,
	}
}

func (s shape) bodyRatio() float64 {
	if s.rng <= 0 {
		return 0
	}
	return s.body / s.rng
}

// Patterns inspects the last three candles.
func Patterns(candles []models.Candle) (PatternResult, bool) {
	if len(candles) < 3 {
		return PatternResult{}, false
	}
	n := len(candles)
	c2, c1, c0 := candles[n-3], candles[n-2], candles[n-1]
	s2, s1, s0 := shapeOf(c2), shapeOf(c1), shapeOf(c0)

	var found []string
	bull, bear := 0, 0
	if s0.rng > 0 {
		ratio := s0.bodyRatio()
		if ratio < 0.1 {
			found = append(found, PatternDoji)
		}
		if ratio < 0.3 && s0.lower >= 2*s0.body && s0.lower > s0.upper {
			found = append(found, PatternHammer)
			bull++
		}
		if ratio < 0.3 && s0.upper >= 2*s0.body && s0.upper > s0.lower {
			found = append(found, PatternShootingStar)
			bear++
		}
	}
	if s1.bear && s0.bull && c0.Open <= c1.Close && c0.Close >= c1.Open {
		found = append(found, PatternBullishEngulfing)
		bull++
	}
	if s1.bull && s0.bear && c0.Open >= c1.Close && c0.Close <= c1.Open {
		found = append(found, PatternBearishEngulfing)
		bear++
	}
	if s2.bear && s2.bodyRatio() > 0.5 && s1.bodyRatio() < 0.3 && s0.bull && c0.Close > (c2.Open+c2.Close)/2 {
		found = append(found, PatternMorningStar)
		bull++
	}
	if s2.bull && s2.bodyRatio() > 0.5 && s1.bodyRatio() < 0.3 && s0.bear && c0.Close < (c2.Open+c2.Close)/2 {
		found = append(found, PatternEveningStar)
		bear++
	}

	res := PatternResult{Patterns: found, Bias: models.TrendNeutral}
	switch {
	case bull > bear:
		res.Bias = models.TrendBullish
	case bear > bull:
		res.Bias = models.TrendBearish
	}
	if len(found) > 0 {
		res.Score = clamp(0.6*math.Min(1, float64(len(found))/3)+0.4*s0.bodyRatio(), 0, 1)
	}
	return res, true
}
