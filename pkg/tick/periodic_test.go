package tick

import (
	"testing"
	"time"
)

func TestEveryFiresOncePerWindow(t *testing.T) {
	t.Parallel()

	clk := NewSimClock(0)
	var runs int
	p := Every(100*time.Millisecond, func() { runs++ }, WithClock(clk.Now))

	// Polling every 10ms against a 100ms period yields 110ms effective
	// windows: the gate rebases onto the firing sample.
	for ms := Millis(0); ms <= 1000; ms += 10 {
		clk.Set(ms)
		p.Run()
	}
	if runs != 9 {
		t.Fatalf("runs = %d over 1s of 10ms polls, want 9", runs)
	}
}

func TestEveryNilCallbackIsNoOp(t *testing.T) {
	t.Parallel()

	clk := NewSimClock(0)
	p := Every(10*time.Millisecond, nil, WithClock(clk.Now))

	clk.Set(1000)
	p.Run() // must not panic

	// The gate must not advance either: binding a callback later still
	// sees the elapsed backlog.
	var runs int
	p.SetFunc(func() { runs++ })
	p.Run()
	if runs != 1 {
		t.Fatalf("runs = %d after binding a callback, want 1", runs)
	}
}

func TestEveryRebasesBeforeInvoking(t *testing.T) {
	t.Parallel()

	clk := NewSimClock(0)
	var fired int
	var p *Periodic
	p = Every(100*time.Millisecond, func() {
		fired++
		// A slow callback: the clock moves on while it runs, but stays
		// inside the next window. Re-polling must not fire again.
		clk.Advance(60)
		p.Run()
	}, WithClock(clk.Now))

	clk.Set(101)
	p.Run()
	if fired != 1 {
		t.Fatalf("fired = %d, want 1 (gate rebases before the callback runs)", fired)
	}
}

func TestEveryPanicReachesCaller(t *testing.T) {
	t.Parallel()

	clk := NewSimClock(0)
	p := Every(10*time.Millisecond, func() { panic("boom") }, WithClock(clk.Now))

	clk.Set(11)
	defer func() {
		if recover() == nil {
			t.Fatal("panic from the callback did not reach the caller")
		}
	}()
	p.Run()
}

func TestEveryPromotesPeriodAccessors(t *testing.T) {
	t.Parallel()

	p := Every(2500*time.Millisecond, func() {})
	if got := p.PeriodSeconds(); got != 2 {
		t.Fatalf("PeriodSeconds() = %d, want 2", got)
	}
	p.SetPeriodSeconds(10)
	if got := p.PeriodMillis(); got != 10000 {
		t.Fatalf("PeriodMillis() = %d after SetPeriodSeconds(10), want 10000", got)
	}
}
