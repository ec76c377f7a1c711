package groups

import (
	"math/rand"
	"testing"

	"FinSignal/internal/domain/models"
)

func build(closes []float64, spread float64) models.Series {
	var s models.Series
	prev := closes[0]
	for i, c := range closes {
		cd := models.Candle{
			OpenTime: int64(i) * models.MinuteMillis,
			Open:     prev,
			High:     max(prev, c) + spread,
			Low:      min(prev, c) - spread,
			Close:    c,
		}
		s.Opens = append(s.Opens, cd.Open)
		s.Highs = append(s.Highs, cd.High)
		s.Lows = append(s.Lows, cd.Low)
		s.Closes = append(s.Closes, cd.Close)
		s.Candles = append(s.Candles, cd)
		prev = c
	}
	return s
}

func TestCalculateConfidence(t *testing.T) {
	tests := []struct {
		name     string
		base     float64
		strength float64
		passed   bool
		adx      float64
		want     float64
	}{
		{"plain", 70, 0.5, true, 0, 72.5},
		{"filter penalty", 70, 0, false, 0, 60},
		{"adx bonus", 70, 1, true, 30, 78},
		{"floor", 50, 0, false, 0, 60},
		{"ceiling", 94, 1, true, 40, 95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateConfidence(tt.base, tt.strength, tt.passed, tt.adx); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistryOrder(t *testing.T) {
	r := NewRegistry(0)
	if r.Len() != 20 {
		t.Fatalf("len = %d", r.Len())
	}
	seen := map[string]bool{}
	for i, id := range r.IDs() {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
		if j, ok := r.Index(id); !ok || j != i {
			t.Fatalf("index(%s) = %d, %v", id, j, ok)
		}
	}
	if r.Evaluate(-1, models.Series{}) != nil || r.Evaluate(99, models.Series{}) != nil {
		t.Fatal("out of range group voted")
	}
}

func TestShortSeriesHasNoOpinion(t *testing.T) {
	r := NewRegistry(0)
	for n := 0; n < 25; n++ {
		closes := make([]float64, n)
		for i := range closes {
			closes[i] = 100 - float64(i)
		}
		var s models.Series
		if n > 0 {
			s = build(closes, 0.1)
		}
		for _, g := range r.Groups() {
			if p := g.Evaluate(s); p != nil && n < 15 {
				t.Fatalf("%s voted with %d candles: %+v", g.ID(), n, p)
			}
		}
	}
}

func TestProposalBounds(t *testing.T) {
	r := NewRegistry(0)
	votes := 0
	for seed := int64(0); seed < 40; seed++ {
		rng := rand.New(rand.NewSource(seed))
		closes := make([]float64, 150)
		p := 100.0
		for i := range closes {
			p += rng.NormFloat64() * 0.4
			closes[i] = p
		}
		s := build(closes, 0.05)
		for _, g := range r.Groups() {
			prop := g.Evaluate(s)
			if prop == nil {
				continue
			}
			votes++
			if prop.GroupID != g.ID() || !prop.HasOpinion() {
				t.Fatalf("bad proposal %+v from %s", prop, g.ID())
			}
			if prop.Confidence < 60 || prop.Confidence > 95 {
				t.Fatalf("%s confidence %v out of bounds", g.ID(), prop.Confidence)
			}
		}
	}
	if votes == 0 {
		t.Fatal("no group voted on any random walk")
	}
}

func TestRSIBollingerOversold(t *testing.T) {
	closes := make([]float64, 0, 50)
	for i := 0; i < 40; i++ {
		closes = append(closes, 100)
	}
	for i := 1; i <= 10; i++ {
		closes = append(closes, 100-float64(i))
	}
	s := build(closes, 0)
	g := NewRegistry(0).At(0)
	if g.ID() != RSIBollinger {
		t.Fatalf("first group = %s", g.ID())
	}
	p := g.Evaluate(s)
	if p == nil || p.Action != models.ActionBuy {
		t.Fatalf("proposal = %+v", p)
	}
	if p.Confidence != 75 {
		t.Fatalf("confidence = %v, want 75", p.Confidence)
	}
}

func TestATRFilter(t *testing.T) {
	calm := build(make50(100, 0), 0.1)
	if !CheckATRFilter(calm, 0.02) {
		t.Fatal("calm series rejected")
	}
	wild := build(make50(100, 0), 5)
	if CheckATRFilter(wild, 0.02) {
		t.Fatal("wild series accepted")
	}
	if !CheckATRFilter(models.Series{}, 0.02) {
		t.Fatal("empty series should pass")
	}
}

func make50(p, step float64) []float64 {
	out := make([]float64, 50)
	for i := range out {
		out[i] = p + step*float64(i)
	}
	return out
}

type stubGroup struct {
	id     string
	action models.Action
	conf   float64
}

func (g stubGroup) ID() string { return g.id }

func (g stubGroup) Evaluate(models.Series) *models.GroupProposal {
	if g.action == models.ActionNone {
		return nil
	}
	return &models.GroupProposal{GroupID: g.id, Action: g.action, Confidence: g.conf}
}

func TestConsensus(t *testing.T) {
	r := NewRegistryFrom(
		stubGroup{"a", models.ActionBuy, 70},
		stubGroup{"b", models.ActionBuy, 80},
		stubGroup{"c", models.ActionSell, 90},
		stubGroup{"d", models.ActionNone, 0},
	)

	res := Consensus(r, models.Series{}, nil)
	if res.Action != models.ActionBuy || len(res.Voters) != 3 {
		t.Fatalf("unweighted = %+v", res)
	}
	if res.Confidence != 75 {
		t.Fatalf("confidence = %v", res.Confidence)
	}

	// a heavily trusted seller flips the vote
	res = Consensus(r, models.Series{}, map[string]float64{"a": 0.5, "b": 0.5, "c": 2})
	if res.Action != models.ActionSell || res.Agreement != 2.0/3.0 {
		t.Fatalf("weighted = %+v", res)
	}
	if p := res.Proposal(); p == nil || p.GroupID != ConsensusID {
		t.Fatalf("proposal = %+v", p)
	}

	// split vote below agreement threshold
	res = Consensus(r, models.Series{}, map[string]float64{"a": 0.5, "b": 0.5, "c": 1.2})
	if res.Action != models.ActionNone || res.Proposal() != nil {
		t.Fatalf("split = %+v", res)
	}
}
