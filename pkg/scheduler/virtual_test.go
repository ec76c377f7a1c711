package scheduler

import (
	"testing"
	"time"
)

func TestVirtualAfterFuncOrder(t *testing.T) {
	v := NewVirtual(time.Unix(0, 0))
	var got []int
	v.AfterFunc(3*time.Second, func() { got = append(got, 3) })
	v.AfterFunc(1*time.Second, func() { got = append(got, 1) })
	v.AfterFunc(2*time.Second, func() { got = append(got, 2) })

	v.Advance(1500 * time.Millisecond)
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("after 1.5s got %v", got)
	}
	v.Advance(5 * time.Second)
	if len(got) != 3 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("order = %v", got)
	}
	if v.Pending() != 0 {
		t.Fatalf("pending = %d", v.Pending())
	}
}

func TestVirtualEveryAndStop(t *testing.T) {
	v := NewVirtual(time.Unix(0, 0))
	n := 0
	tm := v.Every(10*time.Second, func() { n++ })
	v.Advance(35 * time.Second)
	if n != 3 {
		t.Fatalf("fired %d, want 3", n)
	}
	if !tm.Stop() {
		t.Fatal("first Stop should report true")
	}
	if tm.Stop() {
		t.Fatal("second Stop should report false")
	}
	v.Advance(time.Minute)
	if n != 3 {
		t.Fatalf("fired after stop: %d", n)
	}
}

func TestVirtualNowDuringCallback(t *testing.T) {
	start := time.Unix(100, 0)
	v := NewVirtual(start)
	var seen time.Time
	v.AfterFunc(4*time.Second, func() { seen = v.Now() })
	v.Advance(10 * time.Second)
	if !seen.Equal(start.Add(4 * time.Second)) {
		t.Fatalf("now in callback = %v", seen)
	}
	if !v.Now().Equal(start.Add(10 * time.Second)) {
		t.Fatalf("now after advance = %v", v.Now())
	}
}

func TestVirtualScheduleFromCallback(t *testing.T) {
	v := NewVirtual(time.Unix(0, 0))
	fired := false
	v.AfterFunc(time.Second, func() {
		v.AfterFunc(time.Second, func() { fired = true })
	})
	v.Advance(3 * time.Second)
	if !fired {
		t.Fatal("nested timer did not fire within the advance window")
	}
}
