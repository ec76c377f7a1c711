package models

type VolatilityLevel string

const (
	VolatilityLow    VolatilityLevel = "LOW"
	VolatilityMedium VolatilityLevel = "MEDIUM"
	VolatilityHigh   VolatilityLevel = "HIGH"
)

type TrendDirection string

const (
	TrendBullish TrendDirection = "BULLISH"
	TrendBearish TrendDirection = "BEARISH"
	TrendNeutral TrendDirection = "NEUTRAL"
)

type TrendStrength string

const (
	StrengthWeak     TrendStrength = "WEAK"
	StrengthModerate TrendStrength = "MODERATE"
	StrengthStrong   TrendStrength = "STRONG"
)

// Volatility ratio is ATR/avg close expressed in percent.
type Volatility struct {
	Level VolatilityLevel `json:"level"`
	Ratio float64         `json:"ratio"`
}

type Trend struct {
	Direction TrendDirection `json:"direction"`
	Strength  TrendStrength  `json:"strength"`
}

type Momentum struct {
	Regime TrendDirection `json:"regime"`
	RSI    float64        `json:"rsi"`
}

// RegimeDescriptor classifies the market for one evaluation cycle.
type RegimeDescriptor struct {
	Volatility Volatility `json:"volatility"`
	Trend      Trend      `json:"trend"`
	Momentum   Momentum   `json:"momentum"`
	Stability  float64    `json:"stability"` // 0..100
}

// Regime labels used by the state encoder.
const (
	RegimeRanging      = "RANGING"
	RegimeTrendingUp   = "TRENDING_UP"
	RegimeTrendingDown = "TRENDING_DOWN"
	RegimeVolatile     = "VOLATILE"
)

// Label collapses the descriptor into a single coarse regime name.
func (r RegimeDescriptor) Label() string {
	if r.Volatility.Level == VolatilityHigh {
		return RegimeVolatile
	}
	if r.Trend.Strength != StrengthWeak {
		switch r.Trend.Direction {
		case TrendBullish:
			return RegimeTrendingUp
		case TrendBearish:
			return RegimeTrendingDown
		}
	}
	return RegimeRanging
}

// NeutralRegime is reported while there is not enough history.
func NeutralRegime(stability float64) RegimeDescriptor {
	return RegimeDescriptor{
		Volatility: Volatility{Level: VolatilityMedium},
		Trend:      Trend{Direction: TrendNeutral, Strength: StrengthModerate},
		Momentum:   Momentum{Regime: TrendNeutral, RSI: 50},
		Stability:  stability,
	}
}
