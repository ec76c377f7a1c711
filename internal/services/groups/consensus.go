package groups

import (
	"fmt"

	"FinSignal/internal/domain/models"
)

const (
	ConsensusID        = "consensus"
	minConsensusVoters = 2
	minAgreement       = 0.6
)

// ConsensusResult summarises a weighted vote across all groups.
type ConsensusResult struct {
	Action     models.Action
	Confidence float64
	Agreement  float64 // winning weight / total weight
	Voters     []string
	BuyWeight  float64
	SellWeight float64
}

// Proposal converts a decisive consensus into a proposal.
func (c ConsensusResult) Proposal() *models.GroupProposal {
	if c.Action == models.ActionNone {
		return nil
	}
	return &models.GroupProposal{
		GroupID:    ConsensusID,
		Action:     c.Action,
		Confidence: c.Confidence,
		Reasons:    []string{c.Summary()},
	}
}

func (c ConsensusResult) Summary() string {
	return fmt.Sprintf("consensus %s %.0f%% of %d voters", c.Action, c.Agreement*100, len(c.Voters))
}

// Consensus evaluates every group and weighs each directional vote by the
// group's bandit weight (1 when absent). Groups without an opinion do not
// vote. The result has no action unless enough groups vote and the winning
// side holds at least 60% of the weight.
func Consensus(r *Registry, s models.Series, weights map[string]float64) ConsensusResult {
	var res ConsensusResult
	var buyConf, sellConf float64
	for _, g := range r.groups {
		p := g.Evaluate(s)
		if !p.HasOpinion() {
			continue
		}
		w, ok := weights[g.ID()]
		if !ok {
			w = 1
		}
		res.Voters = append(res.Voters, g.ID())
		if p.Action == models.ActionBuy {
			res.BuyWeight += w
			buyConf += w * p.Confidence
		} else {
			res.SellWeight += w
			sellConf += w * p.Confidence
		}
	}
	total := res.BuyWeight + res.SellWeight
	if len(res.Voters) < minConsensusVoters || total <= 0 || res.BuyWeight == res.SellWeight {
		return res
	}
	if res.BuyWeight > res.SellWeight {
		res.Agreement = res.BuyWeight / total
		if res.Agreement >= minAgreement {
			res.Action = models.ActionBuy
			res.Confidence = clamp(buyConf/res.BuyWeight, 60, 95)
		}
	} else {
		res.Agreement = res.SellWeight / total
		if res.Agreement >= minAgreement {
			res.Action = models.ActionSell
			res.Confidence = clamp(sellConf/res.SellWeight, 60, 95)
		}
	}
	return res
}
