package regime

import (
	"testing"

	"FinSignal/internal/domain/models"
)

func series(n int, price func(i int) float64, spread float64) models.Series {
	var s models.Series
	for i := 0; i < n; i++ {
		p := price(i)
		c := models.Candle{OpenTime: int64(i) * models.MinuteMillis, Open: p, High: p + spread, Low: p - spread, Close: p}
		s.Opens = append(s.Opens, c.Open)
		s.Highs = append(s.Highs, c.High)
		s.Lows = append(s.Lows, c.Low)
		s.Closes = append(s.Closes, c.Close)
		s.Candles = append(s.Candles, c)
	}
	return s
}

func TestNeutralBelowMinimum(t *testing.T) {
	d := NewDetector()
	r := d.Update(series(49, func(i int) float64 { return 100 + float64(i) }, 0.1))
	if r.Volatility.Level != models.VolatilityMedium || r.Trend.Direction != models.TrendNeutral ||
		r.Trend.Strength != models.StrengthModerate || r.Stability != 50 {
		t.Fatalf("neutral = %+v", r)
	}
	if d.HistoryLen() != 0 {
		t.Fatalf("history = %d", d.HistoryLen())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		s        models.Series
		vol      models.VolatilityLevel
		dir      models.TrendDirection
		strength models.TrendStrength
		label    string
	}{
		{
			name:     "quiet uptrend",
			s:        series(80, func(i int) float64 { return 100 + 0.05*float64(i) }, 0.05),
			vol:      models.VolatilityLow,
			dir:      models.TrendBullish,
			strength: models.StrengthStrong,
			label:    models.RegimeTrendingUp,
		},
		{
			name:     "flat wide range",
			s:        series(80, func(i int) float64 { return 100 }, 1),
			vol:      models.VolatilityHigh,
			dir:      models.TrendNeutral,
			strength: models.StrengthWeak,
			label:    models.RegimeVolatile,
		},
		{
			name:     "flat medium range",
			s:        series(80, func(i int) float64 { return 100 }, 0.25),
			vol:      models.VolatilityMedium,
			dir:      models.TrendNeutral,
			strength: models.StrengthWeak,
			label:    models.RegimeRanging,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := Classify(tt.s)
			if !ok {
				t.Fatal("not ok")
			}
			if r.Volatility.Level != tt.vol || r.Trend.Direction != tt.dir || r.Trend.Strength != tt.strength {
				t.Fatalf("regime = %+v", r)
			}
			if r.Label() != tt.label {
				t.Fatalf("label = %s", r.Label())
			}
		})
	}
}

func TestStability(t *testing.T) {
	d := NewDetector()
	up := series(80, func(i int) float64 { return 100 + 0.05*float64(i) }, 0.05)
	for i := 0; i < 9; i++ {
		if r := d.Update(up); r.Stability != 50 {
			t.Fatalf("stability before 10 entries = %v", r.Stability)
		}
	}
	if r := d.Update(up); r.Stability != 100 {
		t.Fatalf("stability after 10 agreeing = %v", r.Stability)
	}
	flat := series(80, func(i int) float64 { return 100 }, 1)
	r := d.Update(flat)
	// only the newest entry agrees on both axes
	if r.Stability != 10 {
		t.Fatalf("stability after change = %v", r.Stability)
	}
	for i := 0; i < 200; i++ {
		d.Update(flat)
	}
	if d.HistoryLen() != historyCap {
		t.Fatalf("history = %d", d.HistoryLen())
	}
}
