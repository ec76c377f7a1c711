package models

// Requests for the signal API. Defaults and validation come from struct tags.

// CandlesRequest selects the newest N live candles, or a stored range when
// From is set. From and To accept RFC3339 or unix seconds/millis.
type CandlesRequest struct {
	N    int    `query:"n" json:"n" default:"120" validate:"gte=1,lte=2000"`
	From string `query:"from" json:"from"`
	To   string `query:"to" json:"to"`
}

type OutcomeRequest struct {
	SignalID string `json:"signalId" validate:"required"`
	Result   string `json:"result" validate:"required,oneof=WIN LOSS"`
}

// AnalyzeResponse reports the candidate of a manually opened window.
type AnalyzeResponse struct {
	Candidate Action `json:"candidate"`
}

// OrchestratorStatus summarises the decision loop for the API.
type OrchestratorStatus struct {
	Symbol         string            `json:"symbol"`
	WarmupComplete bool              `json:"warmupComplete"`
	Candles        int               `json:"candles"`
	Locked         bool              `json:"locked"`
	WindowActive   bool              `json:"windowActive"`
	WindowElapsed  float64           `json:"windowElapsedSeconds"`
	Regime         *RegimeDescriptor `json:"regime,omitempty"`
	PendingSignal  *Signal           `json:"pendingSignal,omitempty"`
}

// HealthReport is the /healthz body.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
