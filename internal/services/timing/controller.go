// Package timing implements the bounded decision window that holds a
// candidate signal until it is published or cancelled.
package timing

import (
	"errors"
	"sync"
	"time"

	"FinSignal/internal/domain/models"
	"FinSignal/pkg/scheduler"
)

var ErrWindowActive = errors.New("decision window already open")

type State string

const (
	StateIdle       State = "IDLE"
	StateWindowOpen State = "WINDOW_OPEN"
	StateExpired    State = "EXPIRED"
)

type Config struct {
	MinDuration  time.Duration
	MaxDuration  time.Duration
	EvalInterval time.Duration
}

func DefaultConfig() Config {
	return Config{MinDuration: 60 * time.Second, MaxDuration: 300 * time.Second, EvalInterval: 20 * time.Second}
}

// Window is the pending decision held while the controller is not idle.
type Window struct {
	StartTime         time.Time
	CandidateAction   models.Action
	InitialConfidence float64
	InitialRegime     models.RegimeDescriptor
}

// Handlers are invoked without the controller lock held.
type Handlers struct {
	// OnEvaluate runs on each periodic evaluation after MinDuration.
	OnEvaluate func(w Window, elapsed time.Duration)
	// OnExpire runs once when MaxDuration is reached. The window stays in
	// place until StopWindow or Cancel is called.
	OnExpire func(w Window)
}

type Controller struct {
	mu       sync.Mutex
	sched    scheduler.Scheduler
	cfg      Config
	handlers Handlers

	state  State
	window *Window
	gen    uint64
	ticker scheduler.Timer
	expiry scheduler.Timer
}

func NewController(sched scheduler.Scheduler, cfg Config, h Handlers) *Controller {
	d := DefaultConfig()
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = d.MinDuration
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = d.MaxDuration
	}
	if cfg.EvalInterval <= 0 {
		cfg.EvalInterval = d.EvalInterval
	}
	return &Controller{sched: sched, cfg: cfg, handlers: h, state: StateIdle}
}

// StartWindow opens a window. It fails with ErrWindowActive unless idle.
func (c *Controller) StartWindow(action models.Action, confidence float64, regime models.RegimeDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return ErrWindowActive
	}
	c.gen++
	gen := c.gen
	c.window = &Window{
		StartTime:         c.sched.Now(),
		CandidateAction:   action,
		InitialConfidence: confidence,
		InitialRegime:     regime,
	}
	c.state = StateWindowOpen
	c.ticker = c.sched.Every(c.cfg.EvalInterval, func() { c.evaluate(gen) })
	c.expiry = c.sched.AfterFunc(c.cfg.MaxDuration, func() { c.evaluate(gen) })
	return nil
}

func (c *Controller) evaluate(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateWindowOpen || c.window == nil {
		c.mu.Unlock()
		return
	}
	w := *c.window
	elapsed := c.sched.Now().Sub(w.StartTime)
	if elapsed < c.cfg.MinDuration {
		c.mu.Unlock()
		return
	}
	if elapsed >= c.cfg.MaxDuration {
		c.state = StateExpired
		c.stopTimersLocked()
		c.mu.Unlock()
		if c.handlers.OnExpire != nil {
			c.handlers.OnExpire(w)
		}
		return
	}
	c.mu.Unlock()
	if c.handlers.OnEvaluate != nil {
		c.handlers.OnEvaluate(w, elapsed)
	}
}

func (c *Controller) stopTimersLocked() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
}

// StopWindow clears the window after publishing. Safe from any state.
func (c *Controller) StopWindow() { c.reset() }

// Cancel discards the candidate. Safe from any state.
func (c *Controller) Cancel() { c.reset() }

func (c *Controller) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimersLocked()
	c.window = nil
	c.state = StateIdle
	c.gen++
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsActive reports whether a window exists, expired or not.
func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window != nil
}

// Window returns a copy of the current window.
func (c *Controller) Window() (Window, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.window == nil {
		return Window{}, false
	}
	return *c.window, true
}

func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.window == nil {
		return 0
	}
	return c.sched.Now().Sub(c.window.StartTime)
}

func (c *Controller) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.window == nil {
		return 0
	}
	r := c.cfg.MaxDuration - c.sched.Now().Sub(c.window.StartTime)
	if r < 0 {
		return 0
	}
	return r
}

func (c *Controller) HasExpired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window != nil && c.sched.Now().Sub(c.window.StartTime) >= c.cfg.MaxDuration
}
