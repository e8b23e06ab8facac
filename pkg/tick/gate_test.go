package tick

import (
	"math"
	"testing"
	"time"
)

func TestGateOpensOnlyAfterPeriodExceeded(t *testing.T) {
	t.Parallel()

	clk := NewSimClock(0)
	g := NewGate(100*time.Millisecond, WithClock(clk.Now))

	for _, ms := range []Millis{0, 1, 50, 99, 100} {
		clk.Set(ms)
		if g.Allow() {
			t.Fatalf("Allow() = true at %dms, want false until strictly past the period", ms)
		}
	}
	clk.Set(101)
	if !g.Allow() {
		t.Fatal("Allow() = false at 101ms, want true")
	}
	if g.Allow() {
		t.Fatal("Allow() opened twice for one window")
	}
}

func TestGateRebasesOnOpen(t *testing.T) {
	t.Parallel()

	clk := NewSimClock(0)
	g := NewGate(100*time.Millisecond, WithClock(clk.Now))

	// Long overdue: the gate rebases onto the opening sample, not onto
	// some multiple of the period.
	clk.Set(250)
	if !g.Allow() {
		t.Fatal("Allow() = false at 250ms, want true")
	}
	clk.Set(350)
	if g.Allow() {
		t.Fatal("Allow() = true at 350ms, want false (rebased to 250ms)")
	}
	clk.Set(351)
	if !g.Allow() {
		t.Fatal("Allow() = false at 351ms, want true")
	}
}

func TestGateSurvivesCounterWrap(t *testing.T) {
	t.Parallel()

	clk := NewSimClock(math.MaxUint32 - 40)
	g := NewGate(100*time.Millisecond, WithClock(clk.Now))
	g.Reset()

	clk.Advance(100) // counter wrapped, 100ms elapsed
	if g.Allow() {
		t.Fatal("Allow() = true exactly one period after reset, want false")
	}
	clk.Advance(1)
	if !g.Allow() {
		t.Fatal("Allow() = false 101ms after reset across the wrap, want true")
	}
}

func TestGateZeroPeriodOpensOnClockMovement(t *testing.T) {
	t.Parallel()

	clk := NewSimClock(0)
	g := NewGate(0, WithClock(clk.Now))

	if g.Allow() {
		t.Fatal("Allow() = true with no elapsed time, want false")
	}
	clk.Advance(1)
	if !g.Allow() {
		t.Fatal("Allow() = false after the clock moved, want true with zero period")
	}
	if g.Allow() {
		t.Fatal("Allow() = true without further clock movement, want false")
	}
}

func TestGateResetDefersNextOpen(t *testing.T) {
	t.Parallel()

	clk := NewSimClock(500)
	g := NewGate(100*time.Millisecond, WithClock(clk.Now))

	// Fresh gate measures from clock zero, so it is long overdue.
	g.Reset()
	clk.Advance(100)
	if g.Allow() {
		t.Fatal("Allow() = true one period after Reset, want false")
	}
	clk.Advance(1)
	if !g.Allow() {
		t.Fatal("Allow() = false strictly past one period after Reset, want true")
	}
}

func TestGatePeriodAccessors(t *testing.T) {
	t.Parallel()

	g := NewGate(1500 * time.Millisecond)
	if got := g.PeriodMillis(); got != 1500 {
		t.Fatalf("PeriodMillis() = %d, want 1500", got)
	}
	if got := g.PeriodSeconds(); got != 1 {
		t.Fatalf("PeriodSeconds() = %d, want 1 (truncating)", got)
	}
	g.SetPeriodSeconds(3)
	if got := g.PeriodMillis(); got != 3000 {
		t.Fatalf("PeriodMillis() = %d after SetPeriodSeconds(3), want 3000", got)
	}
	if got := g.Period(); got != 3*time.Second {
		t.Fatalf("Period() = %v, want 3s", got)
	}
	g.SetPeriodMillis(250)
	if got := g.Period(); got != 250*time.Millisecond {
		t.Fatalf("Period() = %v after SetPeriodMillis(250), want 250ms", got)
	}
	g.SetPeriod(2 * time.Second)
	if got := g.PeriodSeconds(); got != 2 {
		t.Fatalf("PeriodSeconds() = %d after SetPeriod(2s), want 2", got)
	}
}

func TestGateSetPeriodAppliesToPendingWindow(t *testing.T) {
	t.Parallel()

	clk := NewSimClock(0)
	g := NewGate(time.Hour, WithClock(clk.Now))

	clk.Set(500)
	if g.Allow() {
		t.Fatal("Allow() = true 500ms into an hour-long period, want false")
	}
	g.SetPeriodMillis(100)
	if !g.Allow() {
		t.Fatal("Allow() = false after shrinking the period below the elapsed time, want true")
	}
}
