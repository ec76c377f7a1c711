// Package agent selects which indicator group to trust using a bandit
// weighting per group and a small Q-network trained online from outcomes.
package agent

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"FinSignal/internal/domain/models"
)

// Config holds the learning hyper-parameters.
type Config struct {
	ReplaySize       int
	BatchSize        int
	MinExperiences   int
	EpsilonStart     float64
	EpsilonFloor     float64
	EpsilonDecay     float64
	EpsilonFastDecay float64
	FastDecayAfter   int
	Gamma            float64
	LearningRate     float64
	Tau              float64
	SaveEvery        int
}

func DefaultConfig() Config {
	return Config{
		ReplaySize:       2000,
		BatchSize:        32,
		MinExperiences:   50,
		EpsilonStart:     0.3,
		EpsilonFloor:     0.01,
		EpsilonDecay:     0.995,
		EpsilonFastDecay: 0.99,
		FastDecayAfter:   100,
		Gamma:            0.95,
		LearningRate:     0.01,
		Tau:              0.005,
		SaveEvery:        10,
	}
}

const maxTD = 20

type Option func(*Agent)

// WithRand makes exploration and sampling deterministic.
func WithRand(rng *rand.Rand) Option {
	return func(a *Agent) { a.rng = rng }
}

// Agent is safe for concurrent use.
type Agent struct {
	mu       sync.Mutex
	cfg      Config
	groupIDs []string
	rng      *rand.Rand

	online *Params
	target *Params
	replay *Replay

	weights          map[string]float64
	epsilon          float64
	wins, losses     int
	streak           int
	maxStreak        int
	cumulativeReward float64
	experiences      int
	trainSteps       int
}

// New builds an agent whose action space is groupIDs, in order.
func New(cfg Config, groupIDs []string, opts ...Option) *Agent {
	a := &Agent{
		cfg:      cfg,
		groupIDs: append([]string(nil), groupIDs...),
		epsilon:  cfg.EpsilonStart,
	}
	for _, o := range opts {
		o(a)
	}
	if a.rng == nil {
		a.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	a.replay = NewReplay(cfg.ReplaySize)
	a.weights = make(map[string]float64, len(groupIDs))
	for _, id := range groupIDs {
		a.weights[id] = 1
	}
	a.resetNetwork()
	return a
}

func (a *Agent) resetNetwork() {
	if len(a.groupIDs) == 0 {
		a.online, a.target = nil, nil
		return
	}
	a.online = NewParams(a.rng, models.StateSize, Hidden1, Hidden2, len(a.groupIDs))
	a.target = a.online.Clone()
}

// Select picks a group for the state with an epsilon-greedy policy. The
// returned decision owns a copy of the state.
func (a *Agent) Select(state []float64) models.Decision {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := models.Decision{State: append([]float64(nil), state...)}
	if len(a.groupIDs) == 0 {
		d.Action = -1
		return d
	}
	if a.online != nil && len(state) == models.StateSize {
		d.QValues, _ = a.online.Forward(state)
	}
	if d.QValues == nil || a.rng.Float64() < a.epsilon {
		d.Action = a.rng.Intn(len(a.groupIDs))
		d.Explored = true
	} else {
		d.Action = argmax(d.QValues)
	}
	d.GroupID = a.groupIDs[d.Action]
	return d
}

// Confidence maps the decision's Q spread into [60,95], scales it by the
// group's bandit weight and clamps to [40,95].
func (a *Agent) Confidence(d models.Decision) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	norm := 0.5
	if len(d.QValues) > 0 && d.Action >= 0 && d.Action < len(d.QValues) {
		lo, hi := d.QValues[0], d.QValues[0]
		for _, q := range d.QValues {
			lo = min(lo, q)
			hi = max(hi, q)
		}
		if hi > lo {
			norm = (d.QValues[d.Action] - lo) / (hi - lo)
		}
	}
	return clamp((60+35*norm)*a.weightLocked(d.GroupID), 40, 95)
}

// QAdvantage is Q[a] minus the mean Q of the decision.
func QAdvantage(d models.Decision) float64 {
	if len(d.QValues) == 0 || d.Action < 0 || d.Action >= len(d.QValues) {
		return 0
	}
	sum := 0.0
	for _, q := range d.QValues {
		sum += q
	}
	return d.QValues[d.Action] - sum/float64(len(d.QValues))
}

// Weight returns a group's bandit multiplier, 1 for unknown groups.
func (a *Agent) Weight(groupID string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.weightLocked(groupID)
}

func (a *Agent) weightLocked(groupID string) float64 {
	if w, ok := a.weights[groupID]; ok {
		return w
	}
	return 1
}

// Weights returns a copy of all bandit weights.
func (a *Agent) Weights() map[string]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]float64, len(a.weights))
	for k, v := range a.weights {
		out[k] = v
	}
	return out
}

// Performance feeds the state encoder.
func (a *Agent) Performance() Performance {
	a.mu.Lock()
	defer a.mu.Unlock()
	p := Performance{WinRate: neutral, Streak: a.streak}
	if n := a.wins + a.losses; n > 0 {
		p.WinRate = float64(a.wins) / float64(n)
	}
	return p
}

func (a *Agent) Epsilon() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.epsilon
}

// Outcome reports what one verification did to the agent.
type Outcome struct {
	Reward  float64
	Trained bool
	Weight  float64
	Epsilon float64
	// Save is a snapshot to persist, set every SaveEvery experiences.
	Save *models.LearningState
}

// OnOutcome learns from a verified result of decision d. nextState is the
// encoded state at verification time and may be nil.
func (a *Agent) OnOutcome(d models.Decision, result models.Result, confidence float64, nextState []float64, r models.RegimeDescriptor) Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	win := result == models.ResultWin
	reward := Reward(result, confidence, r)

	var out Outcome
	out.Reward = reward
	if d.Action >= 0 && d.Action < len(a.groupIDs) && len(d.State) == models.StateSize {
		var next []float64
		if len(nextState) == models.StateSize {
			next = append([]float64(nil), nextState...)
		}
		a.replay.Add(models.ExperienceRecord{
			State:     append([]float64(nil), d.State...),
			Action:    d.Action,
			Reward:    reward,
			NextState: next,
			Done:      true,
		})
		if a.replay.Len() >= a.cfg.MinExperiences {
			a.trainLocked()
			out.Trained = true
		}
	}

	if _, ok := a.weights[d.GroupID]; ok {
		a.weights[d.GroupID] = UpdateWeight(a.weights[d.GroupID], win, confidence)
	}
	out.Weight = a.weightLocked(d.GroupID)

	if win {
		a.wins++
		if a.streak < 0 {
			a.streak = 0
		}
		a.streak++
	} else {
		a.losses++
		if a.streak > 0 {
			a.streak = 0
		}
		a.streak--
	}
	if a.streak > a.maxStreak {
		a.maxStreak = a.streak
	}
	a.cumulativeReward += reward
	a.experiences++
	a.decayEpsilonLocked()
	out.Epsilon = a.epsilon

	if a.cfg.SaveEvery > 0 && a.experiences%a.cfg.SaveEvery == 0 {
		out.Save = a.exportLocked()
	}
	return out
}

func (a *Agent) decayEpsilonLocked() {
	if a.epsilon <= a.cfg.EpsilonFloor {
		return
	}
	rate := a.cfg.EpsilonDecay
	if a.experiences > a.cfg.FastDecayAfter {
		rate = a.cfg.EpsilonFastDecay
	}
	a.epsilon = max(a.cfg.EpsilonFloor, a.epsilon*rate)
}

// trainLocked runs one Double-DQN step on a random batch. Only the output
// row of the taken action is nudged, scaled by TD error, learning rate and
// a factor that shrinks updates in volatile states.
func (a *Agent) trainLocked() {
	if a.online == nil {
		return
	}
	batch := a.replay.Sample(a.rng, a.cfg.BatchSize)
	if len(batch) == 0 {
		return
	}
	next := a.online.Clone()
	for _, e := range batch {
		q, h2 := next.Forward(e.State)
		y := e.Reward
		if !e.Done && e.NextState != nil {
			qOnline, _ := next.Forward(e.NextState)
			qTarget, _ := a.target.Forward(e.NextState)
			y += a.cfg.Gamma * qTarget[argmax(qOnline)]
		}
		td := clamp(y-q[e.Action], -maxTD, maxTD)
		factor := clamp(1-0.5*e.State[1], 0.5, 1)
		step := a.cfg.LearningRate * td * factor
		row := next.W3[e.Action]
		for j := range row {
			row[j] += step * h2[j]
		}
		next.B3[e.Action] += step
	}
	a.online = next
	a.target = SoftUpdate(a.online, a.target, a.cfg.Tau)
	a.trainSteps++
}

// ReplayLen returns the number of stored experiences.
func (a *Agent) ReplayLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.replay.Len()
}

// SeedFromHistory applies bandit updates from past outcomes. It only runs
// for an agent without experience and returns how many outcomes were used.
func (a *Agent) SeedFromHistory(history []models.OutcomeRecord) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.experiences > 0 {
		return 0
	}
	n := 0
	for _, o := range history {
		w, ok := a.weights[o.GroupID]
		if !ok {
			continue
		}
		a.weights[o.GroupID] = UpdateWeight(w, o.Result == models.ResultWin, o.Confidence)
		n++
	}
	return n
}

func (a *Agent) Stats() models.AgentStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := models.AgentStats{
		Epsilon:          a.epsilon,
		SessionWins:      a.wins,
		SessionLosses:    a.losses,
		CurrentStreak:    a.streak,
		MaxStreak:        a.maxStreak,
		CumulativeReward: a.cumulativeReward,
		TotalExperiences: a.experiences,
		TrainSteps:       a.trainSteps,
		ReplaySize:       a.replay.Len(),
		Weights:          make(map[string]float64, len(a.weights)),
	}
	if n := a.wins + a.losses; n > 0 {
		st.WinRate = float64(a.wins) / float64(n)
	}
	for k, v := range a.weights {
		st.Weights[k] = v
	}
	return st
}

// Export snapshots the persistent state.
func (a *Agent) Export() *models.LearningState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exportLocked()
}

func (a *Agent) exportLocked() *models.LearningState {
	st := &models.LearningState{
		Version:          models.LearningStateVersion,
		GroupIDs:         append([]string(nil), a.groupIDs...),
		Weights:          make(map[string]float64, len(a.weights)),
		Epsilon:          a.epsilon,
		SessionWins:      a.wins,
		SessionLosses:    a.losses,
		CurrentStreak:    a.streak,
		MaxStreak:        a.maxStreak,
		CumulativeReward: a.cumulativeReward,
		TotalExperiences: a.experiences,
		TrainSteps:       a.trainSteps,
	}
	for k, v := range a.weights {
		st.Weights[k] = v
	}
	if a.online != nil {
		st.Network = a.online.Snapshot()
	}
	return st
}

// Restore applies a persisted state. A different schema version is rejected
// as a whole. Counters and weights of a compatible state are always applied;
// when the saved network does not fit the current group list a fresh
// network is kept and ErrShapeMismatch is returned.
func (a *Agent) Restore(st *models.LearningState) error {
	if st == nil {
		return nil
	}
	if st.Version != models.LearningStateVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrStateVersion, st.Version, models.LearningStateVersion)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	for id, w := range st.Weights {
		if _, ok := a.weights[id]; ok {
			a.weights[id] = clamp(w, MinWeight, MaxWeight)
		}
	}
	a.epsilon = clamp(st.Epsilon, a.cfg.EpsilonFloor, 1)
	a.wins = max(0, st.SessionWins)
	a.losses = max(0, st.SessionLosses)
	a.streak = st.CurrentStreak
	a.maxStreak = st.MaxStreak
	a.cumulativeReward = st.CumulativeReward
	a.experiences = max(0, st.TotalExperiences)
	a.trainSteps = max(0, st.TrainSteps)

	if !sameIDs(st.GroupIDs, a.groupIDs) {
		a.resetNetwork()
		return fmt.Errorf("%w: saved %d groups, have %d", ErrShapeMismatch, len(st.GroupIDs), len(a.groupIDs))
	}
	p, err := ParamsFromSnapshot(st.Network, models.StateSize, Hidden1, Hidden2, len(a.groupIDs))
	if err != nil {
		a.resetNetwork()
		return err
	}
	a.online = p
	a.target = p.Clone()
	return nil
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
