package models

// StateSize is the length of the encoded market state vector.
const StateSize = 16

// ExperienceRecord is an immutable replay-buffer entry.
type ExperienceRecord struct {
	State     []float64
	Action    int
	Reward    float64
	NextState []float64 // nil when unknown
	Done      bool
}

// LearningStateVersion is bumped whenever the persisted schema changes.
const LearningStateVersion = 2

// NetworkSnapshot is the persisted online network.
type NetworkSnapshot struct {
	Input   int         `json:"input"`
	Hidden1 int         `json:"hidden1"`
	Hidden2 int         `json:"hidden2"`
	Output  int         `json:"output"`
	W1      [][]float64 `json:"w1"`
	B1      []float64   `json:"b1"`
	W2      [][]float64 `json:"w2"`
	B2      []float64   `json:"b2"`
	W3      [][]float64 `json:"w3"`
	B3      []float64   `json:"b3"`
}

// LearningState is the blob round-tripped through the key-value store.
type LearningState struct {
	Version          int                `json:"version"`
	GroupIDs         []string           `json:"groupIds"`
	Weights          map[string]float64 `json:"weights"`
	Epsilon          float64            `json:"epsilon"`
	SessionWins      int                `json:"sessionWins"`
	SessionLosses    int                `json:"sessionLosses"`
	CurrentStreak    int                `json:"currentStreak"`
	MaxStreak        int                `json:"maxStreak"`
	CumulativeReward float64            `json:"cumulativeReward"`
	TotalExperiences int                `json:"totalExperiences"`
	TrainSteps       int                `json:"trainSteps"`
	Network          *NetworkSnapshot   `json:"network,omitempty"`
}

// AgentStats is a read-only view of the agent for the API.
type AgentStats struct {
	Epsilon          float64            `json:"epsilon"`
	SessionWins      int                `json:"sessionWins"`
	SessionLosses    int                `json:"sessionLosses"`
	WinRate          float64            `json:"winRate"`
	CurrentStreak    int                `json:"currentStreak"`
	MaxStreak        int                `json:"maxStreak"`
	CumulativeReward float64            `json:"cumulativeReward"`
	TotalExperiences int                `json:"totalExperiences"`
	TrainSteps       int                `json:"trainSteps"`
	ReplaySize       int                `json:"replaySize"`
	Weights          map[string]float64 `json:"weights"`
}
