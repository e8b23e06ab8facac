package tick

import "time"

// Periodic runs a callback at most once per period when polled. It is
// the dynamic counterpart of Runner: the callback is an ordinary func
// value and can be rebound at runtime.
type Periodic struct {
	Gate
	fn func()
}

// Every returns a Periodic that invokes fn at most once per period on
// each Run. fn may be nil; Run is then a no-op.
func Every(period time.Duration, fn func(), opts ...Option) *Periodic {
	p := &Periodic{Gate: Gate{clock: Now, period: Span(period)}, fn: fn}
	for _, o := range opts {
		o(&p.Gate)
	}
	return p
}

// Run polls the gate and invokes the callback when due. Without a
// callback nothing happens, not even a clock sample. The gate rebases
// before the callback runs, so a callback slower than the period does
// not fire twice for one window. Panics from the callback unwind
// through Run untouched; containment is the caller's policy.
func (p *Periodic) Run() {
	if p.fn == nil {
		return
	}
	if p.Allow() {
		p.fn()
	}
}

// SetFunc replaces the callback between polls. A nil fn parks the gate.
func (p *Periodic) SetFunc(fn func()) { p.fn = fn }
