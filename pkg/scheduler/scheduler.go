// Package scheduler abstracts wall-clock timers so time-driven components can
// be driven deterministically in tests.
package scheduler

import (
	"sync"
	"time"
)

// Timer is a pending one-shot or periodic callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented a firing.
	Stop() bool
}

type Scheduler interface {
	Now() time.Time
	// AfterFunc runs f once after d in its own goroutine.
	AfterFunc(d time.Duration, f func()) Timer
	// Every runs f every d until the returned timer is stopped.
	Every(d time.Duration, f func()) Timer
}

// Real is backed by the time package.
type Real struct{}

func New() Real { return Real{} }

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

func (Real) Every(d time.Duration, f func()) Timer {
	t := &ticker{tk: time.NewTicker(d), done: make(chan struct{})}
	go func() {
		for {
			select {
			case <-t.tk.C:
				f()
			case <-t.done:
				return
			}
		}
	}()
	return t
}

type ticker struct {
	tk   *time.Ticker
	done chan struct{}
	once sync.Once
}

func (t *ticker) Stop() bool {
	stopped := false
	t.once.Do(func() {
		t.tk.Stop()
		close(t.done)
		stopped = true
	})
	return stopped
}

var _ Scheduler = Real{}
