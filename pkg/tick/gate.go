package tick

import "time"

// Gate is the bare interval gate: Allow reports true at most once per
// period. Periodic and Runner build on it; use it directly when the
// due-work bookkeeping lives elsewhere.
type Gate struct {
	clock  Clock
	period Millis
	prev   Millis
}

// Option adjusts gate construction.
type Option func(*Gate)

// WithClock replaces the default process-uptime clock.
func WithClock(c Clock) Option {
	return func(g *Gate) { g.clock = c }
}

// NewGate returns a gate that opens once more than period has elapsed.
// The reference point starts at clock zero, so on the default clock the
// first Allow fires as soon as the process has been up longer than the
// period. Call Reset to measure from now instead.
func NewGate(period time.Duration, opts ...Option) *Gate {
	g := &Gate{clock: Now, period: Span(period)}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Allow samples the clock once and reports whether strictly more than
// the period has elapsed since the last open. On true the gate rebases
// onto that sample before returning, so a slow caller cannot observe
// two opens for one window. A zero period opens on any clock movement.
func (g *Gate) Allow() bool {
	now := g.clock()
	if Since(now, g.prev) > g.period {
		g.prev = now
		return true
	}
	return false
}

// Reset rebases the gate on the current clock sample: the next Allow
// fires one full period from now.
func (g *Gate) Reset() { g.prev = g.clock() }

// SetPeriod sets the period from a duration. It takes effect
// immediately; a pending window is re-measured against the new value.
func (g *Gate) SetPeriod(d time.Duration) { g.period = Span(d) }

// Period returns the period as a duration.
func (g *Gate) Period() time.Duration { return g.period.Duration() }

// SetPeriodMillis sets the period in clock units.
func (g *Gate) SetPeriodMillis(ms Millis) { g.period = ms }

// PeriodMillis returns the period in clock units.
func (g *Gate) PeriodMillis() Millis { return g.period }

// SetPeriodSeconds sets the period in whole seconds. Values beyond the
// 32-bit millisecond range wrap, like the counter itself.
func (g *Gate) SetPeriodSeconds(s uint32) { g.period = Millis(s) * 1000 }

// PeriodSeconds returns the period in whole seconds, truncating.
func (g *Gate) PeriodSeconds() uint32 { return uint32(g.period) / 1000 }
