package models

import "time"

// Action is a trade direction. The empty action means "no opinion".
type Action string

const (
	ActionNone Action = ""
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Sign is +1 for BUY, -1 for SELL and 0 otherwise.
func (a Action) Sign() float64 {
	switch a {
	case ActionBuy:
		return 1
	case ActionSell:
		return -1
	default:
		return 0
	}
}

// GroupProposal is one strategy's vote.
type GroupProposal struct {
	GroupID    string   `json:"groupId"`
	Action     Action   `json:"action"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// HasOpinion reports whether the proposal is a directional vote.
func (p *GroupProposal) HasOpinion() bool {
	return p != nil && (p.Action == ActionBuy || p.Action == ActionSell)
}

// Decision is the exact state/action pair the agent used to pick a group.
// It travels with the signal until its outcome is verified.
type Decision struct {
	State    []float64 `json:"state"`
	Action   int       `json:"action"`
	GroupID  string    `json:"groupId"`
	QValues  []float64 `json:"qValues,omitempty"`
	Explored bool      `json:"explored"`
}

// Signal is the record handed to the publish sink. Field names are consumed
// by the downstream trade executor and must stay stable.
type Signal struct {
	ID            string           `json:"id"`
	Symbol        string           `json:"symbol"`
	Action        Action           `json:"action"`
	Confidence    float64          `json:"confidence"`
	GroupID       string           `json:"groupId"`
	Reasons       []string         `json:"reasons"`
	Price         float64          `json:"price"`
	EntryPrice    float64          `json:"entryPrice"`
	Timestamp     int64            `json:"timestamp"` // epoch millis
	ExpirySeconds int              `json:"expirySeconds"`
	Duration      int              `json:"duration"`  // minutes, rounded up
	Display       bool             `json:"display"`   // at or above the display threshold
	AutoTrade     bool             `json:"autoTrade"` // at or above the auto-trade threshold
	GateScore     float64          `json:"gateScore"`
	Regime        RegimeDescriptor `json:"regime"`
	RLState       []float64        `json:"_rlState"`
	RLAction      int              `json:"_rlAction"`
}

// Decision rebuilds the learning pair carried by the signal.
func (s *Signal) Decision() Decision {
	return Decision{State: s.RLState, Action: s.RLAction, GroupID: s.GroupID}
}

// ExpiresAt is the instant the signal's holding period ends.
func (s *Signal) ExpiresAt() time.Time {
	return time.UnixMilli(s.Timestamp).Add(time.Duration(s.ExpirySeconds) * time.Second)
}

type Result string

const (
	ResultWin  Result = "WIN"
	ResultLoss Result = "LOSS"
)

// OutcomeRecord is a verified signal result.
type OutcomeRecord struct {
	SignalID   string    `json:"signalId"`
	Symbol     string    `json:"symbol"`
	GroupID    string    `json:"groupId"`
	Action     Action    `json:"action"`
	Result     Result    `json:"result"`
	Confidence float64   `json:"confidence"`
	EntryPrice float64   `json:"entryPrice"`
	ExitPrice  float64   `json:"exitPrice"`
	Reward     float64   `json:"reward"`
	Source     string    `json:"source"` // price | manual
	VerifiedAt time.Time `json:"verifiedAt"`
}
