package usecase

import (
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"FinSignal/internal/domain/models"
	"FinSignal/internal/domain/repository"
	"FinSignal/internal/services/agent"
	"FinSignal/internal/services/candles"
	"FinSignal/internal/services/groups"
	"FinSignal/internal/services/regime"
	"FinSignal/internal/services/timing"
	applogger "FinSignal/pkg/logger"
	"FinSignal/pkg/metrics"
	"FinSignal/pkg/scheduler"
)

var (
	ErrSignalLocked  = errors.New("a signal is awaiting its outcome")
	ErrUnknownSignal = errors.New("unknown or already verified signal")
	ErrWarmingUp     = errors.New("not enough candles yet")
	ErrNoCandidate   = errors.New("no group has a directional opinion")
)

// Sink receives everything the orchestrator emits. Implementations must not
// block; the orchestrator calls them with its lock held.
type Sink interface {
	Signal(s *models.Signal)
	Outcome(o *models.OutcomeRecord)
	State(st *models.LearningState)
}

type OrchestratorConfig struct {
	Symbol             string
	WarmupCandles      int
	CycleInterval      time.Duration
	DisplayThreshold   float64
	AutoTradeThreshold float64
	SettleMargin       time.Duration
	OutcomeRetryDelay  time.Duration
	Timing             timing.Config
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		WarmupCandles:      60,
		CycleInterval:      5 * time.Second,
		DisplayThreshold:   60,
		AutoTradeThreshold: 75,
		SettleMargin:       15 * time.Second,
		OutcomeRetryDelay:  5 * time.Second,
		Timing:             timing.DefaultConfig(),
	}
}

type OrchestratorOption func(*Orchestrator)

func WithLogger(l *applogger.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.log = l }
}

func WithMetrics(m repository.Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithWarmupHook runs f once, outside the lock, when warmup completes.
func WithWarmupHook(f func()) OrchestratorOption {
	return func(o *Orchestrator) { o.onWarmup = f }
}

type pendingSignal struct {
	signal  *models.Signal
	timer   scheduler.Timer
	retried bool
}

// Orchestrator drives the signal pipeline. All core state is guarded by mu;
// ticks, scheduler callbacks and external verifications enter through it.
type Orchestrator struct {
	mu      sync.Mutex
	cfg     OrchestratorConfig
	sched   scheduler.Scheduler
	log     *applogger.Logger
	metrics repository.Metrics

	agg      *candles.Aggregator
	detector *regime.Detector
	registry *groups.Registry
	agent    *agent.Agent
	timing   *timing.Controller
	sink     Sink
	onWarmup func()

	warmupComplete bool
	locked         bool
	pending        *pendingSignal
	last           *models.Signal
	cycle          scheduler.Timer
}

func NewOrchestrator(
	cfg OrchestratorConfig,
	sched scheduler.Scheduler,
	agg *candles.Aggregator,
	detector *regime.Detector,
	registry *groups.Registry,
	ag *agent.Agent,
	sink Sink,
	opts ...OrchestratorOption,
) *Orchestrator {
	d := DefaultOrchestratorConfig()
	if cfg.WarmupCandles <= 0 {
		cfg.WarmupCandles = d.WarmupCandles
	}
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = d.CycleInterval
	}
	if cfg.AutoTradeThreshold <= 0 {
		cfg.AutoTradeThreshold = d.AutoTradeThreshold
	}
	if cfg.OutcomeRetryDelay <= 0 {
		cfg.OutcomeRetryDelay = d.OutcomeRetryDelay
	}
	o := &Orchestrator{
		cfg:      cfg,
		sched:    sched,
		log:      applogger.Nop(),
		metrics:  metrics.Nop{},
		agg:      agg,
		detector: detector,
		registry: registry,
		agent:    ag,
		sink:     sink,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.timing = timing.NewController(sched, cfg.Timing, timing.Handlers{
		OnEvaluate: o.onWindowEvaluate,
		OnExpire:   o.onWindowExpire,
	})
	return o
}

// Start begins the periodic decision cycle.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cycle != nil {
		return
	}
	o.cycle = o.sched.Every(o.cfg.CycleInterval, o.Cycle)
	o.log.Info("signal orchestrator started",
		applogger.String("symbol", o.cfg.Symbol),
		applogger.Int("warmup_candles", o.cfg.WarmupCandles),
		applogger.Duration("cycle_ms", o.cfg.CycleInterval),
	)
}

// Stop cancels the cycle, any open window and any pending outcome check.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cycle != nil {
		o.cycle.Stop()
		o.cycle = nil
	}
	o.timing.Cancel()
	if o.pending != nil && o.pending.timer != nil {
		o.pending.timer.Stop()
	}
}

// SeedCandles warms the aggregator from stored history.
func (o *Orchestrator) SeedCandles(history []models.Candle) int {
	o.mu.Lock()
	n := o.agg.Seed(history)
	fire := o.checkWarmupLocked()
	o.mu.Unlock()
	if fire {
		o.onWarmup()
	}
	return n
}

// PushTick feeds one price into the pipeline.
func (o *Orchestrator) PushTick(tsMillis int64, price float64) {
	o.mu.Lock()
	if !o.agg.PushTick(tsMillis, price) {
		o.mu.Unlock()
		o.metrics.RecordDroppedTick("invalid_or_late")
		return
	}
	o.metrics.RecordTick(o.cfg.Symbol, price)
	o.metrics.RecordCandles(o.agg.Len())
	fire := o.checkWarmupLocked()
	if o.timing.State() == timing.StateWindowOpen {
		o.checkBiasLocked()
	}
	o.mu.Unlock()
	if fire {
		o.onWarmup()
	}
}

// checkWarmupLocked flips warmup once and reports whether the hook must run.
func (o *Orchestrator) checkWarmupLocked() bool {
	if o.warmupComplete || o.agg.Len() < o.cfg.WarmupCandles {
		return false
	}
	o.warmupComplete = true
	o.log.Info("warmup complete", applogger.Int("candles", o.agg.Len()))
	return o.onWarmup != nil
}

func (o *Orchestrator) checkBiasLocked() {
	w, ok := o.timing.Window()
	if !ok {
		return
	}
	if flipped, why := biasFlipped(o.agg.Series(), w.CandidateAction); flipped {
		o.timing.Cancel()
		o.metrics.RecordSuppressed("bias_flip")
		o.log.Info("decision window cancelled",
			applogger.String("candidate", string(w.CandidateAction)),
			applogger.String("reason", why),
		)
	}
}

// Cycle opens a decision window when idle. It is driven by the scheduler.
func (o *Orchestrator) Cycle() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.warmupComplete || o.locked || o.timing.IsActive() {
		return
	}
	_ = o.openWindowLocked()
}

// Analyze runs one decision cycle on demand and reports why it could not.
func (o *Orchestrator) Analyze() (models.Action, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case !o.warmupComplete:
		return models.ActionNone, ErrWarmingUp
	case o.locked:
		return models.ActionNone, ErrSignalLocked
	case o.timing.IsActive():
		return models.ActionNone, timing.ErrWindowActive
	}
	if err := o.openWindowLocked(); err != nil {
		return models.ActionNone, err
	}
	w, _ := o.timing.Window()
	return w.CandidateAction, nil
}

func (o *Orchestrator) openWindowLocked() error {
	start := o.sched.Now()
	series := o.agg.Series()
	r := o.detector.Update(series)
	dec, prop, _ := o.decideLocked(series, r)
	if !prop.HasOpinion() {
		return ErrNoCandidate
	}
	if err := o.timing.StartWindow(prop.Action, prop.Confidence, r); err != nil {
		return err
	}
	o.metrics.RecordLatency("cycle", o.sched.Now().Sub(start).Seconds())
	o.log.Debug("decision window opened",
		applogger.String("group", dec.GroupID),
		applogger.String("candidate", string(prop.Action)),
		applogger.Float64("confidence", prop.Confidence),
		applogger.String("regime", r.Label()),
		applogger.Bool("explored", dec.Explored),
	)
	return nil
}

// decideLocked encodes the state, asks the agent for a group and falls back
// to the weighted consensus when that group has no opinion.
func (o *Orchestrator) decideLocked(series models.Series, r models.RegimeDescriptor) (models.Decision, *models.GroupProposal, *groups.ConsensusResult) {
	state := agent.Encode(series, r, o.agent.Performance())
	dec := o.agent.Select(state)
	prop := o.registry.Evaluate(dec.Action, series)
	if prop.HasOpinion() {
		return dec, prop, nil
	}
	cons := groups.Consensus(o.registry, series, o.agent.Weights())
	return dec, cons.Proposal(), &cons
}

func (o *Orchestrator) onWindowEvaluate(w timing.Window, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cur, ok := o.timing.Window(); !ok || !cur.StartTime.Equal(w.StartTime) {
		return
	}
	o.checkBiasLocked()
}

func (o *Orchestrator) onWindowExpire(w timing.Window) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cur, ok := o.timing.Window(); !ok || !cur.StartTime.Equal(w.StartTime) {
		return
	}
	if o.locked {
		o.timing.StopWindow()
		return
	}
	o.finalizeLocked()
}

// finalizeLocked re-runs selection on current data, applies the gates and
// publishes. The direction is only fixed here, not at window start.
func (o *Orchestrator) finalizeLocked() {
	series := o.agg.Series()
	price, ok := series.LastClose()
	if !ok {
		o.timing.Cancel()
		return
	}
	r := o.detector.Update(series)
	dec, prop, cons := o.decideLocked(series, r)
	if !prop.HasOpinion() {
		o.timing.Cancel()
		o.metrics.RecordSuppressed("no_direction")
		o.log.Info("window expired without a direction", applogger.String("group", dec.GroupID))
		return
	}

	gates := EvaluateGates(series, r, prop.Action)
	agentConf := o.agent.Confidence(dec)
	base := (prop.Confidence + agentConf) / 2
	elevate := gates.Strict && agent.QAdvantage(dec) > 0 && o.agent.Weight(dec.GroupID) >= 1
	final := AdjustConfidence(base, gates, elevate, o.cfg.AutoTradeThreshold)

	reasons := append([]string(nil), prop.Reasons...)
	if cons != nil && prop.GroupID == groups.ConsensusID {
		reasons = append(reasons, "selected group abstained: "+dec.GroupID)
	}
	if len(gates.Failed) > 0 {
		reasons = append(reasons, "gates missed: "+strings.Join(gates.Failed, ","))
	}

	now := o.sched.Now()
	expiry := ExpirySeconds(r)
	sig := &models.Signal{
		ID:            uuid.NewString(),
		Symbol:        o.cfg.Symbol,
		Action:        prop.Action,
		Confidence:    math.Round(final*100) / 100,
		GroupID:       dec.GroupID,
		Reasons:       reasons,
		Price:         price,
		EntryPrice:    price,
		Timestamp:     now.UnixMilli(),
		ExpirySeconds: expiry,
		Duration:      (expiry + 59) / 60,
		Display:       final >= o.cfg.DisplayThreshold,
		AutoTrade:     final >= o.cfg.AutoTradeThreshold,
		GateScore:     gates.Score(),
		Regime:        r,
		RLState:       dec.State,
		RLAction:      dec.Action,
	}

	o.sink.Signal(sig)
	o.metrics.RecordSignal(sig.Action, sig.GroupID, sig.AutoTrade)
	o.timing.StopWindow()
	o.last = sig
	o.locked = true
	o.pending = &pendingSignal{signal: sig}
	id := sig.ID
	o.pending.timer = o.sched.AfterFunc(time.Duration(expiry)*time.Second+o.cfg.SettleMargin, func() { o.checkOutcome(id) })

	o.log.Info("signal published",
		applogger.String("id", sig.ID),
		applogger.String("action", string(sig.Action)),
		applogger.Float64("confidence", sig.Confidence),
		applogger.String("group", sig.GroupID),
		applogger.Float64("gate_score", sig.GateScore),
		applogger.Int("expiry_s", expiry),
		applogger.Bool("auto_trade", sig.AutoTrade),
	)
}

// checkOutcome verifies a published signal from the realised price. A price
// older than the expiry instant counts as unavailable: the check is retried
// once and then the lock is released without learning.
func (o *Orchestrator) checkOutcome(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p := o.pending
	if p == nil || p.signal.ID != id {
		return
	}
	exit, fresh := o.freshPriceLocked(p.signal)
	if !fresh {
		if !p.retried {
			p.retried = true
			p.timer = o.sched.AfterFunc(o.cfg.OutcomeRetryDelay, func() { o.checkOutcome(id) })
			o.log.Warn("no price for outcome check, retrying", applogger.String("id", id))
			return
		}
		o.pending = nil
		o.locked = false
		o.metrics.RecordError("outcome_no_price")
		o.log.Warn("outcome check abandoned, signal lock released", applogger.String("id", id))
		return
	}
	result := models.ResultLoss
	if (exit-p.signal.EntryPrice)*p.signal.Action.Sign() > 0 {
		result = models.ResultWin
	}
	o.learnLocked(p, result, exit, "price")
}

func (o *Orchestrator) freshPriceLocked(s *models.Signal) (float64, bool) {
	price, ok := o.agg.LastPrice()
	if !ok {
		return 0, false
	}
	ts, ok := o.agg.LastTick()
	if !ok || ts < s.ExpiresAt().UnixMilli() {
		return 0, false
	}
	return price, true
}

// VerifyOutcome applies an externally reported result and cancels the
// pending price check.
func (o *Orchestrator) VerifyOutcome(signalID string, result models.Result) error {
	if result != models.ResultWin && result != models.ResultLoss {
		return errors.New("result must be WIN or LOSS")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	p := o.pending
	if p == nil || p.signal.ID != signalID {
		return ErrUnknownSignal
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	exit, _ := o.agg.LastPrice()
	o.learnLocked(p, result, exit, "manual")
	return nil
}

func (o *Orchestrator) learnLocked(p *pendingSignal, result models.Result, exit float64, source string) {
	series := o.agg.Series()
	r := o.detector.Current()
	next := agent.Encode(series, r, o.agent.Performance())
	out := o.agent.OnOutcome(p.signal.Decision(), result, p.signal.Confidence, next, r)

	o.metrics.RecordOutcome(p.signal.GroupID, result, out.Reward)
	o.metrics.RecordEpsilon(out.Epsilon)
	o.metrics.RecordWeight(p.signal.GroupID, out.Weight)
	o.sink.Outcome(&models.OutcomeRecord{
		SignalID:   p.signal.ID,
		Symbol:     p.signal.Symbol,
		GroupID:    p.signal.GroupID,
		Action:     p.signal.Action,
		Result:     result,
		Confidence: p.signal.Confidence,
		EntryPrice: p.signal.EntryPrice,
		ExitPrice:  exit,
		Reward:     out.Reward,
		Source:     source,
		VerifiedAt: o.sched.Now(),
	})
	if out.Save != nil {
		o.sink.State(out.Save)
	}
	o.pending = nil
	o.locked = false

	o.log.Info("signal outcome",
		applogger.String("id", p.signal.ID),
		applogger.String("result", string(result)),
		applogger.String("source", source),
		applogger.Float64("reward", out.Reward),
		applogger.Float64("weight", out.Weight),
		applogger.Float64("epsilon", out.Epsilon),
		applogger.Bool("trained", out.Trained),
	)
}

// Status is a consistent snapshot for the query API.
func (o *Orchestrator) Status() models.OrchestratorStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := models.OrchestratorStatus{
		Symbol:         o.cfg.Symbol,
		WarmupComplete: o.warmupComplete,
		Candles:        o.agg.Len(),
		Locked:         o.locked,
		WindowActive:   o.timing.IsActive(),
		WindowElapsed:  o.timing.Elapsed().Seconds(),
	}
	if o.detector.HistoryLen() > 0 {
		r := o.detector.Current()
		st.Regime = &r
	}
	if o.pending != nil {
		s := *o.pending.signal
		st.PendingSignal = &s
	}
	return st
}

// LastSignal returns the most recently published signal.
func (o *Orchestrator) LastSignal() (*models.Signal, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return nil, false
	}
	s := *o.last
	return &s, true
}

// Candles returns up to n of the newest candles.
func (o *Orchestrator) Candles(n int) []models.Candle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.agg.Latest(n)
}

// Regime returns the latest regime classification.
func (o *Orchestrator) Regime() models.RegimeDescriptor {
	return o.detector.Current()
}
