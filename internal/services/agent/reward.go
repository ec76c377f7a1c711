package agent

import "FinSignal/internal/domain/models"

const (
	MinWeight = 0.5
	MaxWeight = 2.0
)

// Reward shapes the learning signal from an outcome, the confidence the
// signal was published with and the regime at verification time.
func Reward(result models.Result, confidence float64, r models.RegimeDescriptor) float64 {
	var reward float64
	win := result == models.ResultWin
	if win {
		reward = 10 + clamp((confidence-60)/35*8.5, 0, 8.5)
		if confidence >= 85 {
			reward += 5
		}
	} else {
		reward = -5
		if confidence >= 85 {
			reward -= 10
		}
		if confidence >= 75 {
			reward -= 5
		}
		if confidence >= 80 {
			reward -= 3
		}
	}

	switch {
	case r.Stability >= 70:
		if win {
			reward += 1
		} else {
			reward -= 1
		}
	case r.Stability < 40:
		if win {
			reward += 2
		} else {
			reward += 0.5
		}
	}
	switch r.Volatility.Level {
	case models.VolatilityHigh:
		if win {
			reward += 1.5
		} else {
			reward += 1
		}
	case models.VolatilityLow:
		if win {
			reward -= 0.5
		}
	}
	return reward
}

// UpdateWeight applies one bandit step to a group's trust multiplier.
func UpdateWeight(w float64, win bool, confidence float64) float64 {
	if win {
		w += 0.05 + (confidence-60)/500
	} else {
		w -= 0.05 + (confidence-60)/400
	}
	return clamp(w, MinWeight, MaxWeight)
}
