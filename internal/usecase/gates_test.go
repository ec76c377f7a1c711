package usecase

import (
	"math/rand"
	"testing"

	"FinSignal/internal/domain/models"
)

func TestGateScore(t *testing.T) {
	tests := []struct {
		name string
		g    GateResult
		want float64
	}{
		{"strict", GateResult{Strict: true, Soft: true}, 1},
		{"soft", GateResult{Soft: true}, 0.65},
		{"fail", GateResult{}, 0.45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.g.Score(); got != tt.want {
				t.Fatalf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdjustConfidenceSoftPassNeverAutoTrades(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	soft := GateResult{Soft: true}
	for i := 0; i < 500; i++ {
		base := 40 + rng.Float64()*60
		got := AdjustConfidence(base, soft, true, 75)
		if got > 74 || got < 40 {
			t.Fatalf("AdjustConfidence(%v) = %v", base, got)
		}
	}
}

func TestAdjustConfidence(t *testing.T) {
	strict := GateResult{Strict: true, Soft: true}
	tests := []struct {
		name    string
		base    float64
		g       GateResult
		elevate bool
		want    float64
	}{
		{"strict unchanged", 80, strict, false, 80},
		{"strict elevated", 80, strict, true, 87.5},
		{"below elevation floor", 60, strict, true, 60},
		{"soft scaled", 70, GateResult{Soft: true}, false, 70 * 0.86},
		{"soft capped", 100, GateResult{Soft: true}, true, 74},
		{"failed floor", 50, GateResult{}, false, 40},
		{"max", 120, strict, false, 95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdjustConfidence(tt.base, tt.g, tt.elevate, 75)
			if d := got - tt.want; d > 1e-9 || d < -1e-9 {
				t.Fatalf("AdjustConfidence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpirySeconds(t *testing.T) {
	tests := []struct {
		vol      models.VolatilityLevel
		strength models.TrendStrength
		want     int
	}{
		{models.VolatilityHigh, models.StrengthWeak, 60},
		{models.VolatilityMedium, models.StrengthModerate, 120},
		{models.VolatilityLow, models.StrengthWeak, 180},
		{models.VolatilityLow, models.StrengthStrong, 240},
		{models.VolatilityHigh, models.StrengthStrong, 120},
	}
	for _, tt := range tests {
		t.Run(string(tt.vol)+"_"+string(tt.strength), func(t *testing.T) {
			r := models.RegimeDescriptor{
				Volatility: models.Volatility{Level: tt.vol},
				Trend:      models.Trend{Strength: tt.strength},
			}
			if got := ExpirySeconds(r); got != tt.want {
				t.Fatalf("ExpirySeconds() = %d, want %d", got, tt.want)
			}
		})
	}
}

func risingSeries(n int, step float64) models.Series {
	var s models.Series
	p := 100.0
	for i := 0; i < n; i++ {
		c := models.Candle{OpenTime: int64(i) * models.MinuteMillis, Open: p, High: p + step, Low: p - step/2, Close: p + step*0.8}
		s.Candles = append(s.Candles, c)
		s.Opens = append(s.Opens, c.Open)
		s.Highs = append(s.Highs, c.High)
		s.Lows = append(s.Lows, c.Low)
		s.Closes = append(s.Closes, c.Close)
		p += step
	}
	return s
}

func TestEvaluateGates(t *testing.T) {
	s := risingSeries(80, 0.05)
	r := models.NeutralRegime(50)

	// strictly rising closes pin RSI at 100, so only momentum may miss
	buy := EvaluateGates(s, r, models.ActionBuy)
	for _, f := range buy.Failed {
		if f == "trend" || f == "price" {
			t.Fatalf("buy failed %s in an uptrend", f)
		}
	}

	sell := EvaluateGates(s, r, models.ActionSell)
	if sell.Strict || sell.Soft {
		t.Fatalf("sell in uptrend passed: %+v", sell)
	}
	if sell.Score() != 0.45 {
		t.Fatalf("sell score = %v", sell.Score())
	}

	short := EvaluateGates(risingSeries(5, 0.05), r, models.ActionBuy)
	if short.Strict || !short.Soft {
		t.Fatalf("missing indicators = %+v, want soft only", short)
	}

	if g := EvaluateGates(s, r, models.ActionNone); g.Soft || g.Strict {
		t.Fatalf("no action passed gates: %+v", g)
	}
}

func TestBiasFlipped(t *testing.T) {
	s := risingSeries(40, 0.05)
	if flipped, _ := biasFlipped(s, models.ActionBuy); flipped {
		t.Fatal("buy flipped in an uptrend")
	}
	if flipped, _ := biasFlipped(s, models.ActionSell); !flipped {
		t.Fatal("sell not flipped in an uptrend")
	}
	if flipped, _ := biasFlipped(risingSeries(5, 0.05), models.ActionSell); flipped {
		t.Fatal("flipped without enough data")
	}
}
