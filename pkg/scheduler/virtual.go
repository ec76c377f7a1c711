package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Virtual is a manually advanced clock. Callbacks run synchronously on the
// goroutine calling Advance, in due-time order.
type Virtual struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*vtimer
}

type vtimer struct {
	v      *Virtual
	id     int
	due    time.Time
	period time.Duration
	f      func()
	active bool
}

func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) AfterFunc(d time.Duration, f func()) Timer {
	return v.add(d, 0, f)
}

func (v *Virtual) Every(d time.Duration, f func()) Timer {
	return v.add(d, d, f)
}

func (v *Virtual) add(d, period time.Duration, f func()) *vtimer {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	t := &vtimer{v: v, id: v.seq, due: v.now.Add(d), period: period, f: f, active: true}
	v.timers = append(v.timers, t)
	return t
}

func (t *vtimer) Stop() bool {
	t.v.mu.Lock()
	defer t.v.mu.Unlock()
	was := t.active
	t.active = false
	return was
}

// Pending returns the number of timers that have not fired or been stopped.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, t := range v.timers {
		if t.active {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, firing every timer that falls due.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now.Add(d)
	v.mu.Unlock()
	for {
		t := v.nextDue(target)
		if t == nil {
			break
		}
		t.f()
	}
	v.mu.Lock()
	if v.now.Before(target) {
		v.now = target
	}
	v.mu.Unlock()
}

// nextDue pops the earliest active timer due at or before target and moves the
// clock to its due time.
func (v *Virtual) nextDue(target time.Time) *vtimer {
	v.mu.Lock()
	defer v.mu.Unlock()
	live := v.timers[:0]
	for _, t := range v.timers {
		if t.active {
			live = append(live, t)
		}
	}
	v.timers = live
	sort.SliceStable(v.timers, func(i, j int) bool {
		if v.timers[i].due.Equal(v.timers[j].due) {
			return v.timers[i].id < v.timers[j].id
		}
		return v.timers[i].due.Before(v.timers[j].due)
	})
	if len(v.timers) == 0 || v.timers[0].due.After(target) {
		return nil
	}
	t := v.timers[0]
	if t.due.After(v.now) {
		v.now = t.due
	}
	if t.period > 0 {
		t.due = t.due.Add(t.period)
	} else {
		t.active = false
	}
	return t
}

var _ Scheduler = (*Virtual)(nil)
