package tick

import "time"

// Millis is a timestamp or span on a wrapping 32-bit millisecond clock.
// The counter rolls over every ~49.7 days; all arithmetic in this
// package is modular, so spans stay correct across a single wrap.
type Millis uint32

// Clock is a monotonic millisecond time source. Implementations must be
// cheap and non-blocking: gates sample the clock at most once per poll,
// on the owner's goroutine.
type Clock func() Millis

// Since returns now-earlier on the wrapping clock. Unsigned subtraction
// wraps by definition, so the result is correct even when the counter
// rolled over between the two samples.
func Since(now, earlier Millis) Millis { return now - earlier }

// Span converts a duration to clock units. Negative durations clamp to
// zero; spans beyond the 32-bit range truncate.
func Span(d time.Duration) Millis {
	if d <= 0 {
		return 0
	}
	return Millis(d / time.Millisecond)
}

// Duration converts clock units back to a time.Duration.
func (m Millis) Duration() time.Duration {
	return time.Duration(m) * time.Millisecond
}

var processStart = time.Now()

// Now is the default Clock: milliseconds since process start, truncated
// to 32 bits.
func Now() Millis {
	return Millis(time.Since(processStart) / time.Millisecond)
}

// SimClock is a manually advanced Clock for tests and simulations. Pass
// the Now method value wherever a Clock is expected.
type SimClock struct {
	now Millis
}

// NewSimClock returns a SimClock reading start.
func NewSimClock(start Millis) *SimClock { return &SimClock{now: start} }

// Now returns the current simulated time.
func (c *SimClock) Now() Millis { return c.now }

// Advance moves the simulated clock forward by d units, wrapping.
func (c *SimClock) Advance(d Millis) { c.now += d }

// Set jumps the simulated clock to m.
func (c *SimClock) Set(m Millis) { c.now = m }
