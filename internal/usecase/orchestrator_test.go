package usecase

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"FinSignal/internal/domain/models"
	"FinSignal/internal/services/agent"
	"FinSignal/internal/services/candles"
	"FinSignal/internal/services/groups"
	"FinSignal/internal/services/regime"
	"FinSignal/internal/services/timing"
	"FinSignal/pkg/scheduler"
)

type fakeSink struct {
	mu       sync.Mutex
	signals  []*models.Signal
	outcomes []*models.OutcomeRecord
	states   []*models.LearningState
}

func (f *fakeSink) Signal(s *models.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, s)
}

func (f *fakeSink) Outcome(o *models.OutcomeRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, o)
}

func (f *fakeSink) State(st *models.LearningState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, st)
}

type fixedGroup struct {
	id     string
	action models.Action
}

func (g fixedGroup) ID() string { return g.id }

func (g fixedGroup) Evaluate(s models.Series) *models.GroupProposal {
	if g.action == models.ActionNone || s.Len() == 0 {
		return nil
	}
	return &models.GroupProposal{GroupID: g.id, Action: g.action, Confidence: 80, Reasons: []string{"fixed"}}
}

type harness struct {
	o      *Orchestrator
	v      *scheduler.Virtual
	sink   *fakeSink
	agent  *agent.Agent
	price  float64
	warmup int
}

// minute aligned
var harnessStart = time.UnixMilli(1_700_000_040_000)

func newHarness(t *testing.T, gs ...groups.Group) *harness {
	t.Helper()
	v := scheduler.NewVirtual(harnessStart)
	reg := groups.NewRegistryFrom(gs...)
	ag := agent.New(agent.DefaultConfig(), reg.IDs(), agent.WithRand(rand.New(rand.NewSource(1))))
	h := &harness{v: v, sink: &fakeSink{}, agent: ag, price: 100}
	cfg := DefaultOrchestratorConfig()
	cfg.Symbol = "TEST"
	h.o = NewOrchestrator(cfg, v, candles.NewAggregator(500), regime.NewDetector(), reg, ag, h.sink,
		WithWarmupHook(func() { h.warmup++ }))
	h.o.Start()
	return h
}

// feed pushes one tick every 10 seconds for d, moving price by step per tick.
func (h *harness) feed(d time.Duration, step float64) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += 10 * time.Second {
		h.price += step
		h.o.PushTick(h.v.Now().UnixMilli(), h.price)
		h.v.Advance(10 * time.Second)
	}
}

func TestWarmupGatesCycle(t *testing.T) {
	h := newHarness(t, fixedGroup{"buy", models.ActionBuy})
	h.feed(58*time.Minute, 0.002)
	if st := h.o.Status(); st.WarmupComplete || st.WindowActive {
		t.Fatalf("status before warmup = %+v", st)
	}
	if _, err := h.o.Analyze(); !errors.Is(err, ErrWarmingUp) {
		t.Fatalf("analyze err = %v", err)
	}
	h.feed(3*time.Minute, 0.002)
	st := h.o.Status()
	if !st.WarmupComplete || !st.WindowActive {
		t.Fatalf("status after warmup = %+v", st)
	}
	if h.warmup != 1 {
		t.Fatalf("warmup hook ran %d times", h.warmup)
	}
	h.feed(2*time.Minute, 0.002)
	if h.warmup != 1 {
		t.Fatalf("warmup hook ran %d times", h.warmup)
	}
}

func TestPublishAndPriceOutcome(t *testing.T) {
	h := newHarness(t, fixedGroup{"buy", models.ActionBuy})
	h.feed(66*time.Minute, 0.002)

	if len(h.sink.signals) != 1 {
		t.Fatalf("signals = %d", len(h.sink.signals))
	}
	sig := h.sink.signals[0]
	if sig.Action != models.ActionBuy || sig.GroupID != "buy" || sig.RLAction != 0 {
		t.Fatalf("signal = %+v", sig)
	}
	if sig.Confidence < 40 || sig.Confidence > 95 {
		t.Fatalf("confidence = %v", sig.Confidence)
	}
	if len(sig.RLState) != models.StateSize || sig.ID == "" || sig.EntryPrice <= 0 {
		t.Fatalf("signal = %+v", sig)
	}
	if sig.Duration*60 < sig.ExpirySeconds || sig.ExpirySeconds > 300 {
		t.Fatalf("expiry %d duration %d", sig.ExpirySeconds, sig.Duration)
	}
	st := h.o.Status()
	if !st.Locked || st.WindowActive || st.PendingSignal == nil {
		t.Fatalf("status after publish = %+v", st)
	}
	if _, err := h.o.Analyze(); !errors.Is(err, ErrSignalLocked) {
		t.Fatalf("analyze while locked err = %v", err)
	}
	if last, ok := h.o.LastSignal(); !ok || last.ID != sig.ID {
		t.Fatal("last signal not recorded")
	}

	h.feed(4*time.Minute, 0.002)
	if len(h.sink.outcomes) != 1 {
		t.Fatalf("outcomes = %d", len(h.sink.outcomes))
	}
	out := h.sink.outcomes[0]
	if out.SignalID != sig.ID || out.Result != models.ResultWin || out.Source != "price" || out.Reward <= 0 {
		t.Fatalf("outcome = %+v", out)
	}
	if h.agent.Stats().SessionWins != 1 {
		t.Fatalf("agent stats = %+v", h.agent.Stats())
	}
	if st := h.o.Status(); st.Locked || !st.WindowActive {
		t.Fatalf("pipeline did not resume after the outcome: %+v", st)
	}
}

func TestManualVerificationCancelsPriceCheck(t *testing.T) {
	h := newHarness(t, fixedGroup{"sell", models.ActionSell})
	h.feed(66*time.Minute, -0.002)
	if len(h.sink.signals) != 1 {
		t.Fatalf("signals = %d", len(h.sink.signals))
	}
	sig := h.sink.signals[0]

	if err := h.o.VerifyOutcome("nope", models.ResultWin); !errors.Is(err, ErrUnknownSignal) {
		t.Fatalf("unknown id err = %v", err)
	}
	if err := h.o.VerifyOutcome(sig.ID, models.ResultLoss); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := h.o.VerifyOutcome(sig.ID, models.ResultLoss); !errors.Is(err, ErrUnknownSignal) {
		t.Fatalf("double verify err = %v", err)
	}
	if len(h.sink.outcomes) != 1 || h.sink.outcomes[0].Source != "manual" {
		t.Fatalf("outcomes = %+v", h.sink.outcomes)
	}

	// past the original check time only new signals may produce outcomes
	h.feed(4*time.Minute, -0.002)
	for _, o := range h.sink.outcomes[1:] {
		if o.SignalID == sig.ID {
			t.Fatal("price check ran after manual verification")
		}
	}
	if h.agent.Stats().SessionLosses != 1 {
		t.Fatalf("stats = %+v", h.agent.Stats())
	}
}

func TestStalePriceForceUnlocks(t *testing.T) {
	h := newHarness(t, fixedGroup{"buy", models.ActionBuy})
	h.feed(66*time.Minute, 0.002)
	if len(h.sink.signals) != 1 {
		t.Fatalf("signals = %d", len(h.sink.signals))
	}
	// no more ticks: the check and its single retry find no fresh price
	h.v.Advance(3 * time.Minute)
	st := h.o.Status()
	if st.Locked || st.PendingSignal != nil {
		t.Fatalf("still locked: %+v", st)
	}
	if len(h.sink.outcomes) != 0 || h.agent.Stats().TotalExperiences != 0 {
		t.Fatal("learned from a stale price")
	}
}

func TestBiasFlipCancelsWindow(t *testing.T) {
	h := newHarness(t, fixedGroup{"buy", models.ActionBuy})
	h.feed(61*time.Minute, 0.002)
	if !h.o.Status().WindowActive {
		t.Fatal("no window opened")
	}
	h.price -= 2
	h.o.PushTick(h.v.Now().UnixMilli(), h.price)
	if h.o.Status().WindowActive {
		t.Fatal("window survived a bias flip")
	}
	if len(h.sink.signals) != 0 {
		t.Fatal("signal published")
	}
}

func TestNoOpinionNoWindow(t *testing.T) {
	h := newHarness(t, fixedGroup{"quiet", models.ActionNone})
	h.feed(70*time.Minute, 0.002)
	st := h.o.Status()
	if !st.WarmupComplete || st.WindowActive || len(h.sink.signals) != 0 {
		t.Fatalf("status = %+v signals = %d", st, len(h.sink.signals))
	}
	if _, err := h.o.Analyze(); !errors.Is(err, ErrNoCandidate) {
		t.Fatalf("analyze err = %v", err)
	}
}

func TestAnalyzeOpensWindow(t *testing.T) {
	h := newHarness(t, fixedGroup{"buy", models.ActionBuy})
	h.o.Stop() // no periodic cycle
	h.feed(61*time.Minute, 0.002)
	a, err := h.o.Analyze()
	if err != nil || a != models.ActionBuy {
		t.Fatalf("analyze = %v, %v", a, err)
	}
	if _, err := h.o.Analyze(); !errors.Is(err, timing.ErrWindowActive) {
		t.Fatalf("second analyze err = %v", err)
	}
}

func TestCandlesDuringTicksAndCycles(t *testing.T) {
	h := newHarness(t, fixedGroup{"buy", models.ActionBuy})
	h.feed(61*time.Minute, 0.002)
	start := h.v.Now().UnixMilli()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			h.o.PushTick(start+int64(i)*5_000, 100+float64(i%7)/10)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			h.o.Cycle()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			cs := h.o.Candles(60)
			for j := 1; j < len(cs); j++ {
				if cs[j].OpenTime <= cs[j-1].OpenTime || cs[j].High < cs[j].Low {
					t.Errorf("candles out of order at %d: %+v %+v", j, cs[j-1], cs[j])
					return
				}
			}
		}
	}()
	wg.Wait()
	if n := len(h.o.Candles(0)); n == 0 {
		t.Fatal("no candles")
	}
}
