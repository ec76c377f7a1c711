// Package groups holds the indicator-group strategies the agent chooses from.
package groups

import (
	"FinSignal/internal/domain/models"
	"FinSignal/internal/services/indicators"
)

// DefaultMaxATRRatio rejects setups when ATR/avg price exceeds 2%.
const DefaultMaxATRRatio = 0.02

// Group is one named strategy. Evaluate returns nil when the group has no
// opinion on the snapshot.
type Group interface {
	ID() string
	Evaluate(s models.Series) *models.GroupProposal
}

// verdict is what a rule decides before confidence is computed.
type verdict struct {
	action   models.Action
	strength float64
	reasons  []string
	adx      float64
}

type rule struct {
	id     string
	base   float64
	maxATR float64
	eval   func(s models.Series) (verdict, bool)
}

func (r *rule) ID() string { return r.id }

func (r *rule) Evaluate(s models.Series) *models.GroupProposal {
	v, ok := r.eval(s)
	if !ok || (v.action != models.ActionBuy && v.action != models.ActionSell) {
		return nil
	}
	passed := CheckATRFilter(s, r.maxATR)
	reasons := v.reasons
	if !passed {
		reasons = append(reasons, "ATR filter penalty")
	}
	return &models.GroupProposal{
		GroupID:    r.id,
		Action:     v.action,
		Confidence: CalculateConfidence(r.base, v.strength, passed, v.adx),
		Reasons:    reasons,
	}
}

// CalculateConfidence maps a rule's strength to a bounded confidence.
func CalculateConfidence(base, strength float64, filterPassed bool, adx float64) float64 {
	c := base + strength*5
	if !filterPassed {
		c -= 10
	}
	if adx > 25 {
		c += 3
	}
	return clamp(c, 60, 95)
}

// CheckATRFilter reports whether ATR(14)/SMA(20) is within maxRatio. Series
// too short to measure pass.
func CheckATRFilter(s models.Series, maxRatio float64) bool {
	if maxRatio <= 0 {
		maxRatio = DefaultMaxATRRatio
	}
	atr, ok := indicators.ATR(s.Highs, s.Lows, s.Closes, 14)
	if !ok {
		return true
	}
	avg, ok := indicators.SMA(s.Closes, 20)
	if !ok || avg <= 0 {
		return true
	}
	return atr/avg <= maxRatio
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Registry is the fixed, ordered list of groups. A group's index is its
// action index in the agent's Q-network.
type Registry struct {
	groups []Group
	index  map[string]int
}

// NewRegistry builds the static strategy list.
func NewRegistry(maxATRRatio float64) *Registry {
	if maxATRRatio <= 0 {
		maxATRRatio = DefaultMaxATRRatio
	}
	rules := builtin()
	gs := make([]Group, len(rules))
	for i, rl := range rules {
		rl.maxATR = maxATRRatio
		gs[i] = rl
	}
	return NewRegistryFrom(gs...)
}

// NewRegistryFrom builds a registry over an explicit group list.
func NewRegistryFrom(gs ...Group) *Registry {
	r := &Registry{groups: gs, index: make(map[string]int, len(gs))}
	for i, g := range gs {
		r.index[g.ID()] = i
	}
	return r
}

func (r *Registry) Len() int { return len(r.groups) }

func (r *Registry) At(i int) Group { return r.groups[i] }

func (r *Registry) Groups() []Group { return r.groups }

// IDs returns group identifiers in action-index order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.groups))
	for i, g := range r.groups {
		out[i] = g.ID()
	}
	return out
}

// Index returns the action index of a group id.
func (r *Registry) Index(id string) (int, bool) {
	i, ok := r.index[id]
	return i, ok
}

// Evaluate runs one group by index; out-of-range indexes have no opinion.
func (r *Registry) Evaluate(i int, s models.Series) *models.GroupProposal {
	if i < 0 || i >= len(r.groups) {
		return nil
	}
	return r.groups[i].Evaluate(s)
}
